// Package observability provides the service's structured logging and
// Prometheus metrics.
package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

// Log output formats accepted by ParseFormat
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// NewOutput returns the writer for a --log-format value
func NewOutput(format string, w io.Writer) (io.Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return w, nil
	case FormatConsole:
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatJSON, FormatConsole)
	}
}

// WithLevel returns a logger filtered at the named level
func (l *Logger) WithLevel(level string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return &Logger{logger: l.logger.Level(lvl)}, nil
}

// WithRequest adds request context to logger.
func (l *Logger) WithRequest(requestID, method, path string) *Logger {
	return &Logger{
		logger: l.logger.With().
			Str("request_id", requestID).
			Str("method", method).
			Str("path", path).
			Logger(),
	}
}

// WithComponent adds a component name to logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("component", name).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Printf lets the logger stand in for types.Logger.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

// Println lets the logger stand in for types.Logger.
func (l *Logger) Println(v ...interface{}) {
	l.logger.Info().Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

var _ types.Logger = (*Logger)(nil)

// ServerStarted logs the listen address.
func (l *Logger) ServerStarted(addr, rpcURL string) {
	l.logger.Info().
		Str("addr", addr).
		Str("rpc_url", rpcURL).
		Msg("proof server listening")
}

// RequestCompleted logs one HTTP request.
func (l *Logger) RequestCompleted(status int, bytes int, elapsed time.Duration) {
	l.logger.Debug().
		Int("status", status).
		Int("bytes", bytes).
		Float64("duration_ms", float64(elapsed.Microseconds())/1000).
		Msg("request completed")
}

// ProofServed logs a successful proof.
func (l *Logger) ProofServed(txID types.Digest, seq checkpoint.SequenceNumber, epoch uint64, size int, elapsed time.Duration) {
	l.logger.Info().
		Str("tx_id", txID.String()).
		Uint64("checkpoint", uint64(seq)).
		Uint64("epoch", epoch).
		Int("bundle_size", size).
		Float64("duration_ms", float64(elapsed.Microseconds())/1000).
		Msg("proof served")
}

// ProofFailed logs a failed proof. IntegrityMismatch means the source
// returned inconsistent data and is logged at error level; NotFound and
// InvalidInput are ordinary client outcomes.
func (l *Logger) ProofFailed(txID types.Digest, err *proof.Error, elapsed time.Duration) {
	var event *zerolog.Event
	switch err.Kind {
	case proof.KindIntegrityMismatch, proof.KindInternal:
		event = l.logger.Error()
	case proof.KindUnavailable:
		event = l.logger.Warn()
	default:
		event = l.logger.Info()
	}

	event.
		Str("tx_id", txID.String()).
		Str("kind", string(err.Kind)).
		Str("stage", err.Stage.String()).
		Err(err).
		Float64("duration_ms", float64(elapsed.Microseconds())/1000).
		Msg("proof failed")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
