package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tangled.org/atscan.net/lightproof/internal/observability"
	"tangled.org/atscan.net/lightproof/proof"
	"tangled.org/atscan.net/lightproof/server"
)

type serveOptions struct {
	ledger          ledgerOptions
	host            string
	port            string
	enableWebSocket bool
	enableMetrics   bool
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
}

func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proof HTTP server",
		Long: `Start the proof HTTP server

Serves proof bundles over HTTP (GET/POST /gettxdata, GET /proof/:tx_id),
optionally over WebSocket (/ws), with /status and Prometheus /metrics.
Every flag can also be set through a LIGHTPROOF_* environment variable.`,

		Example: `  # Serve mainnet proofs on :3000
  lightproof serve

  # Custom node and WebSocket streaming
  lightproof serve --rpc https://fullnode.testnet.sui.io:443 --websocket

  # Same, configured from the environment
  LIGHTPROOF_RPC_URL=https://fullnode.testnet.sui.io:443 LIGHTPROOF_WEBSOCKET=1 lightproof serve`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	addLedgerFlags(cmd, &opts.ledger)
	cmd.Flags().StringVar(&opts.host, "host", envOr("LIGHTPROOF_HOST", "0.0.0.0"), "HTTP server host")
	cmd.Flags().StringVar(&opts.port, "port", envOr("LIGHTPROOF_PORT", "3000"), "HTTP server port")
	cmd.Flags().BoolVar(&opts.enableWebSocket, "websocket", envBool("LIGHTPROOF_WEBSOCKET", false), "enable WebSocket endpoint")
	cmd.Flags().BoolVar(&opts.enableMetrics, "metrics", envBool("LIGHTPROOF_METRICS", true), "expose Prometheus metrics on /metrics")
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", envDuration("LIGHTPROOF_REQUEST_TIMEOUT", 60*time.Second), "upper bound for a single proof")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests on shutdown")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if opts.enableMetrics {
		metrics = observability.NewMetrics()
	}

	client := newLedgerClient(&opts.ledger, logger)
	defer client.Close()

	prover := proof.NewProver(client, proof.WithObserver(observability.NewRecorder(logger, metrics)))

	addr := net.JoinHostPort(opts.host, opts.port)
	srv := server.New(prover, &server.Config{
		Addr:            addr,
		EnableWebSocket: opts.enableWebSocket,
		Version:         GetVersion(),
		RPCURL:          client.GetBaseURL(),
		RequestTimeout:  opts.requestTimeout,
		Logger:          logger,
		Metrics:         metrics,
	})

	displayServerInfo(cmd, addr, client.GetBaseURL(), opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// displayServerInfo shows server configuration
func displayServerInfo(cmd *cobra.Command, addr, rpcURL string, opts *serveOptions) {
	out := cmd.ErrOrStderr()

	fmt.Fprintf(out, "Starting lightproof HTTP server...\n")
	fmt.Fprintf(out, "  Listening: http://%s\n", addr)
	fmt.Fprintf(out, "  Full node: %s\n", rpcURL)

	if opts.enableWebSocket {
		fmt.Fprintf(out, "  WebSocket: ENABLED (ws://%s/ws)\n", addr)
	} else {
		fmt.Fprintf(out, "  WebSocket: disabled (use --websocket to enable)\n")
	}

	if opts.enableMetrics {
		fmt.Fprintf(out, "  Metrics:   http://%s/metrics\n", addr)
	} else {
		fmt.Fprintf(out, "  Metrics:   disabled\n")
	}

	fmt.Fprintf(out, "\nPress Ctrl+C to stop\n\n")
}
