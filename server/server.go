// Package server exposes proof generation over HTTP and WebSocket.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"tangled.org/atscan.net/lightproof/internal/observability"
	"tangled.org/atscan.net/lightproof/proof"
)

// Prover generates proof bundles for base58 transaction identifiers
type Prover interface {
	ProveString(ctx context.Context, txID string) (*proof.Bundle, error)
}

// Server serves proof bundles over HTTP
type Server struct {
	prover     Prover
	config     *Config
	startTime  time.Time
	httpServer *http.Server
	handler    http.Handler
	logger     *observability.Logger
	metrics    *observability.Metrics
	stats      *proofStats
}

// Config configures the server
type Config struct {
	Addr            string
	EnableWebSocket bool
	Version         string

	// RPCURL is shown on the info page and in /status
	RPCURL string

	// RequestTimeout bounds a single proof; zero means no limit
	RequestTimeout time.Duration

	// Logger and Metrics are optional
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// New creates a new HTTP server
func New(prover Prover, config *Config) *Server {
	if config.Version == "" {
		config.Version = "dev"
	}

	logger := config.Logger
	if logger == nil {
		logger = observability.NewLogger("lightproof", config.Version, io.Discard)
	}

	s := &Server{
		prover:    prover,
		config:    config,
		startTime: time.Now(),
		logger:    logger.WithComponent("server"),
		metrics:   config.Metrics,
		stats:     newProofStats(),
	}

	s.handler = s.createHandler()

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.logger.ServerStarted(s.config.Addr, s.config.RPCURL)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// createHandler creates the HTTP handler with all routes
func (s *Server) createHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /gettxdata", s.handleGetTxData())
	mux.HandleFunc("POST /gettxdata", s.handleGetTxData())
	mux.HandleFunc("GET /proof/{tx_id}", s.handleProof())
	mux.HandleFunc("GET /status", s.handleStatus())

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	if s.config.EnableWebSocket {
		mux.HandleFunc("GET /ws", s.handleWebSocket())
	}

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			s.handleRoot()(w, r)
			return
		}
		sendJSON(w, 404, ErrorResponse{Error: "not found", Kind: string(proof.KindNotFound)})
	})

	return corsMiddleware(s.requestIDMiddleware(s.accessLogMiddleware(mux)))
}

// prove runs one proof under the configured request timeout
func (s *Server) prove(ctx context.Context, txID string) (*proof.Bundle, error) {
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	b, err := s.prover.ProveString(ctx, txID)
	s.stats.record(err)
	return b, err
}

// GetStartTime returns when the server started
func (s *Server) GetStartTime() time.Time {
	return s.startTime
}
