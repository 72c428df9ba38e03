package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"tangled.org/atscan.net/lightproof/internal/storage"
	"tangled.org/atscan.net/lightproof/proof"
)

// maxRequestBody bounds POST /gettxdata bodies
const maxRequestBody = 4 << 10

func (s *Server) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		baseURL, wsURL := publicURLs(r)
		stats := s.stats.snapshot()

		var sb strings.Builder

		sb.WriteString("\nlightproof server\n\n")
		sb.WriteString("What is lightproof?\n")
		sb.WriteString("━━━━━━━━━━━━━━━━━━━\n")
		sb.WriteString("lightproof resolves a transaction to the checkpoint that finalized it,\n")
		sb.WriteString("cross-checks it against the checkpoint manifest and returns a proof\n")
		sb.WriteString("bundle a light client can verify on its own.\n\n")

		sb.WriteString("Server Stats\n")
		sb.WriteString("━━━━━━━━━━━━\n")
		sb.WriteString(fmt.Sprintf("  Version:           %s\n", s.config.Version))
		if s.config.RPCURL != "" {
			sb.WriteString(fmt.Sprintf("  Full node:         %s\n", s.config.RPCURL))
		}
		sb.WriteString(fmt.Sprintf("  WebSocket:         %v\n", s.config.EnableWebSocket))
		sb.WriteString(fmt.Sprintf("  Proofs served:     %s\n", formatCount(uint64(stats.Served))))
		sb.WriteString(fmt.Sprintf("  Proofs failed:     %s\n", formatCount(uint64(stats.Failed))))
		sb.WriteString(fmt.Sprintf("  Uptime:            %s\n", time.Since(s.startTime).Round(time.Second)))

		sb.WriteString("\n\nAPI Endpoints\n")
		sb.WriteString("━━━━━━━━━━━━━\n")
		sb.WriteString("  GET  /                    This info page\n")
		sb.WriteString("  GET  /gettxdata?tx_id=    Proof bundle (JSON, base64 byte fields)\n")
		sb.WriteString("  POST /gettxdata           Same, body {\"tx_id\": \"...\"}\n")
		sb.WriteString("  GET  /proof/:tx_id        Proof bundle (CBOR, zstd if accepted)\n")
		sb.WriteString("  GET  /status              Server status\n")
		if s.metrics != nil {
			sb.WriteString("  GET  /metrics             Prometheus metrics\n")
		}

		if s.config.EnableWebSocket {
			sb.WriteString("\nWebSocket Endpoints\n")
			sb.WriteString("━━━━━━━━━━━━━━━━━━━\n")
			sb.WriteString("  WS   /ws                  Send tx ids, receive proofs\n")
		}

		sb.WriteString("\nExamples\n")
		sb.WriteString("━━━━━━━━\n")
		sb.WriteString(fmt.Sprintf("  curl '%s/gettxdata?tx_id=<digest>'\n", baseURL))
		sb.WriteString(fmt.Sprintf("  curl -H 'Accept-Encoding: zstd' %s/proof/<digest> -o tx.proof.zst\n", baseURL))
		if s.config.EnableWebSocket {
			sb.WriteString(fmt.Sprintf("  websocat %s/ws\n", wsURL))
		}

		w.Write([]byte(sb.String()))
	}
}

func (s *Server) handleGetTxData() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TxDataRequest

		if r.Method == "POST" {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
			if err != nil || len(body) > maxRequestBody {
				s.sendError(w, r, proof.NewError(proof.KindInvalidInput, "request body too large or unreadable"))
				return
			}
			if err := json.Unmarshal(body, &req); err != nil {
				s.sendError(w, r, proof.WrapError(proof.KindInvalidInput, err, "invalid JSON body"))
				return
			}
		} else {
			req.TxID = r.URL.Query().Get("tx_id")
		}

		if req.TxID == "" {
			s.sendError(w, r, proof.NewError(proof.KindInvalidInput, "tx_id is required"))
			return
		}

		b, err := s.prove(r.Context(), req.TxID)
		if err != nil {
			s.sendError(w, r, err)
			return
		}

		sendJSON(w, 200, b.Response())
	}
}

func (s *Server) handleProof() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txID := r.PathValue("tx_id")

		b, err := s.prove(r.Context(), txID)
		if err != nil {
			s.sendError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/cbor")
		w.Header().Add("Vary", "Accept-Encoding")

		if acceptsZstd(r) {
			w.Header().Set("Content-Encoding", "zstd")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.proof.zst", txID))
			if err := storage.WriteBundle(w, b); err != nil {
				s.requestLogger(r).Error(err, "failed to stream bundle")
			}
			return
		}

		data, err := b.MarshalBinary()
		if err != nil {
			s.sendError(w, r, proof.WrapError(proof.KindInternal, err, "failed to encode bundle"))
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.proof.cbor", txID))
		w.Write(data)
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := StatusResponse{
			Server: ServerStatus{
				Version:          s.config.Version,
				RPCURL:           s.config.RPCURL,
				WebSocketEnabled: s.config.EnableWebSocket,
				MetricsEnabled:   s.metrics != nil,
				UptimeSeconds:    int(time.Since(s.startTime).Seconds()),
			},
			Proofs: s.stats.snapshot(),
		}

		sendJSON(w, 200, response)
	}
}

// sendError writes err using the status code of its kind
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	kind := proof.KindOf(err)
	status := statusForKind(kind)

	if status >= 500 && kind != proof.KindUnavailable {
		s.requestLogger(r).Error(err, "request failed")
	}

	sendJSON(w, status, errorResponse(err, requestID(r)))
}

func errorResponse(err error, requestID string) *ErrorResponse {
	kind := proof.KindOf(err)
	msg := err.Error()
	if kind == proof.KindInternal {
		msg = "internal error"
	}
	return &ErrorResponse{
		Error:     msg,
		Kind:      string(kind),
		RequestID: requestID,
	}
}

// statusForKind maps failure kinds onto HTTP status codes
func statusForKind(kind proof.Kind) int {
	switch kind {
	case proof.KindInvalidInput:
		return http.StatusBadRequest
	case proof.KindNotFound:
		return http.StatusNotFound
	case proof.KindUnavailable:
		return http.StatusServiceUnavailable
	case proof.KindIntegrityMismatch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// acceptsZstd reports whether the client advertised zstd support
func acceptsZstd(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "zstd") {
			continue
		}
		q, ok := strings.CutPrefix(strings.TrimSpace(params), "q=")
		if !ok {
			return true
		}
		weight, err := strconv.ParseFloat(q, 64)
		return err == nil && weight > 0
	}
	return false
}
