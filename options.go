package lightproof

import (
	"time"

	"tangled.org/atscan.net/lightproof/internal/ledger"
	"tangled.org/atscan.net/lightproof/proof"
)

type config struct {
	clientOptions []ledger.ClientOption
	observer      proof.Observer
	logger        Logger
}

func defaultConfig() *config {
	return &config{}
}

// Option configures the Service
type Option func(*config)

// WithRESTURL sets the node's REST endpoint (default: <rpcURL>/rest)
func WithRESTURL(url string) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions, ledger.WithRESTURL(url))
	}
}

// WithTimeout sets the HTTP timeout for node requests
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions, ledger.WithTimeout(timeout))
	}
}

// WithRateLimit caps node requests per period
func WithRateLimit(requests int, period time.Duration) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions, ledger.WithRateLimit(requests, period))
	}
}

// WithUserAgent sets the User-Agent sent to the node
func WithUserAgent(userAgent string) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions, ledger.WithUserAgent(userAgent))
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(c *config) {
		c.logger = logger
		c.clientOptions = append(c.clientOptions, ledger.WithLogger(logger))
	}
}

// WithObserver receives stage timings and proof outcomes
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithRetry bounds retries on HTTP 429 responses
func WithRetry(maxRetries int, maxWait time.Duration) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions, ledger.WithRetry(maxRetries, maxWait))
	}
}
