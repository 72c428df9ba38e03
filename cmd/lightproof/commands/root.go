package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tangled.org/atscan.net/lightproof/internal/ledger"
	"tangled.org/atscan.net/lightproof/internal/observability"
	"tangled.org/atscan.net/lightproof/proof"
)

const (
	defaultRPCURL = "https://fullnode.mainnet.sui.io:443"
	serviceName   = "lightproof"
)

// NewRootCommand builds the lightproof command tree
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lightproof",
		Short: "Checkpoint inclusion proofs for light clients",
		Long: `lightproof - checkpoint inclusion proofs for light clients

Resolves a transaction to the checkpoint that finalized it, cross-checks
the transaction against the checkpoint manifest and emits a proof bundle
that a light client can verify on its own.`,
		Version:       GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", envOr("LIGHTPROOF_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", envOr("LIGHTPROOF_LOG_FORMAT", defaultLogFormat()), "log format (json or console)")

	cmd.AddCommand(
		NewServeCommand(),
		NewProveCommand(),
		NewInspectCommand(),
		NewVerifyCommand(),
		NewVersionCommand(),
	)

	return cmd
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	var perr *proof.Error
	if !errors.As(err, &perr) {
		return 1
	}
	switch perr.Kind {
	case proof.KindInvalidInput:
		return 2
	case proof.KindNotFound:
		return 3
	case proof.KindUnavailable:
		return 4
	case proof.KindIntegrityMismatch:
		return 5
	default:
		return 1
	}
}

// ledgerOptions are the flags shared by every command that talks to a node
type ledgerOptions struct {
	rpcURL    string
	restURL   string
	timeout   time.Duration
	rateLimit int
}

func addLedgerFlags(cmd *cobra.Command, opts *ledgerOptions) {
	cmd.Flags().StringVar(&opts.rpcURL, "rpc", envOr("LIGHTPROOF_RPC_URL", defaultRPCURL), "full node JSON-RPC URL")
	cmd.Flags().StringVar(&opts.restURL, "rest", os.Getenv("LIGHTPROOF_REST_URL"), "full node REST URL (default: <rpc>/rest)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", envDuration("LIGHTPROOF_TIMEOUT", 30*time.Second), "HTTP timeout for node requests")
	cmd.Flags().IntVar(&opts.rateLimit, "rate-limit", envInt("LIGHTPROOF_RATE_LIMIT", 100), "max node requests per second")
}

// newLedgerClient builds the one node client a process uses
func newLedgerClient(opts *ledgerOptions, logger *observability.Logger) *ledger.Client {
	clientOpts := []ledger.ClientOption{
		ledger.WithLogger(logger.WithComponent("ledger")),
		ledger.WithTimeout(opts.timeout),
		ledger.WithRateLimit(opts.rateLimit, time.Second),
		ledger.WithUserAgent(serviceName + "/" + GetVersion()),
	}
	if opts.restURL != "" {
		clientOpts = append(clientOpts, ledger.WithRESTURL(opts.restURL))
	}
	return ledger.NewClient(opts.rpcURL, clientOpts...)
}

// newLogger builds the stderr logger from the persistent log flags
func newLogger(cmd *cobra.Command) (*observability.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	output, err := observability.NewOutput(format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	return observability.NewLogger(serviceName, GetVersion(), output).WithLevel(level)
}

// defaultLogFormat prefers console output on a terminal
func defaultLogFormat() string {
	if isTTY(os.Stderr) {
		return observability.FormatConsole
	}
	return observability.FormatJSON
}

// isTTY checks if the given file is a terminal
func isTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "Warning: ignoring invalid %s=%q\n", key, v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "Warning: ignoring invalid %s=%q\n", key, v)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		fmt.Fprintf(os.Stderr, "Warning: ignoring invalid %s=%q\n", key, v)
	}
	return fallback
}
