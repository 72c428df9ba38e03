// Package ledger is the network client for a full node: it resolves
// transactions to checkpoints over JSON-RPC and downloads full
// checkpoints over the node's REST API.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

const (
	methodGetTransactionBlock = "sui_getTransactionBlock"

	// maxResponseSize bounds a full checkpoint download
	maxResponseSize = 256 << 20
)

// Client talks to one full node. Create it once and share it; it is
// safe for concurrent use.
type Client struct {
	rpcURL       string
	restURL      string
	httpClient   *http.Client
	rateLimiter  *RateLimiter
	logger       types.Logger
	userAgent    string
	maxRetries   int
	maxRetryWait time.Duration
	nextID       atomic.Uint64
}

// defaultLogger uses standard log package
type defaultLogger struct{}

func (d defaultLogger) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

func (d defaultLogger) Println(v ...interface{}) {
	log.Println(v...)
}

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client)

// WithLogger sets a custom logger
func WithLogger(logger types.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets a custom user agent string
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout sets a custom HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRESTURL overrides the REST endpoint (default: <rpcURL>/rest)
func WithRESTURL(restURL string) ClientOption {
	return func(c *Client) {
		c.restURL = strings.TrimSuffix(restURL, "/")
	}
}

// WithRateLimit sets a custom rate limit (requests per period)
func WithRateLimit(requestsPerPeriod int, period time.Duration) ClientOption {
	return func(c *Client) {
		if c.rateLimiter != nil {
			c.rateLimiter.Stop()
		}
		c.rateLimiter = NewRateLimiter(requestsPerPeriod, period)
	}
}

// WithRetry configures how often a rate-limited (429) request is retried
// and the longest Retry-After the client is willing to honor
func WithRetry(maxRetries int, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.maxRetryWait = maxWait
	}
}

// NewClient creates a new full node client
// Default: 100 requests per second, 30 second timeout
func NewClient(rpcURL string, opts ...ClientOption) *Client {
	rpcURL = strings.TrimSuffix(rpcURL, "/")

	c := &Client{
		rpcURL:  rpcURL,
		restURL: rpcURL + "/rest",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter:  NewRateLimiter(100, time.Second),
		logger:       defaultLogger{},
		userAgent:    "lightproof/dev",
		maxRetries:   3,
		maxRetryWait: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close closes the client and cleans up resources
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
	c.httpClient.CloseIdleConnections()
}

// ResolveCheckpoint returns the checkpoint that finalized txID
func (c *Client) ResolveCheckpoint(ctx context.Context, txID types.Digest) (checkpoint.SequenceNumber, error) {
	var block TransactionBlock
	err := c.call(ctx, methodGetTransactionBlock, []interface{}{txID.String(), TransactionBlockOptions{}}, &block)
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && isNotFoundMessage(rpcErr.Message) {
			return 0, proof.WrapError(proof.KindNotFound, rpcErr, "transaction %s not found", txID)
		}
		return 0, err
	}

	if block.Checkpoint == nil {
		return 0, proof.NewError(proof.KindNotFound, "transaction %s is not checkpointed yet", txID)
	}

	return checkpoint.SequenceNumber(*block.Checkpoint), nil
}

// FetchCheckpoint downloads the full checkpoint payload
func (c *Client) FetchCheckpoint(ctx context.Context, seq checkpoint.SequenceNumber) (*checkpoint.Data, error) {
	url := fmt.Sprintf("%s/checkpoints/%d/full", c.restURL, seq)

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, proof.NewError(proof.KindNotFound, "checkpoint %d not found", seq)
	default:
		return nil, statusError(resp, fmt.Sprintf("checkpoint %d", seq))
	}

	var data checkpoint.Data
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&data); err != nil {
		return nil, proof.WrapError(proof.KindUnavailable, err, "failed to decode checkpoint %d", seq)
	}

	return &data, nil
}

// call performs one JSON-RPC call and decodes its result into out
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, method)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&rpcResp); err != nil {
		return proof.WrapError(proof.KindUnavailable, err, "failed to decode %s response", method)
	}
	if rpcResp.Error != nil {
		return proof.WrapError(proof.KindUnavailable, rpcResp.Error, "%s failed", method)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return proof.NewError(proof.KindNotFound, "%s returned no result", method)
	}

	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return proof.WrapError(proof.KindUnavailable, err, "failed to decode %s result", method)
	}
	return nil
}

// do sends a request built by newReq, waiting on the rate limiter and
// retrying only when the node answers 429
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, proof.WrapError(proof.KindUnavailable, err, "rate limiter wait aborted")
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, proof.WrapError(proof.KindUnavailable, err, "request to %s failed", req.URL.Host)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp)
		resp.Body.Close()

		if attempt > c.maxRetries || retryAfter > c.maxRetryWait {
			return nil, proof.NewError(proof.KindUnavailable,
				"rate limited by node (retry after %v, attempt %d)", retryAfter, attempt)
		}

		c.logger.Printf("Rate limited by node, waiting %v before retry %d/%d",
			retryAfter, attempt, c.maxRetries)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, proof.WrapError(proof.KindUnavailable, ctx.Err(), "aborted while rate limited")
		}
	}
}

// statusError maps a non-OK node response onto the error taxonomy
func statusError(resp *http.Response, what string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	if resp.StatusCode == http.StatusNotFound {
		return proof.NewError(proof.KindNotFound, "%s: not found: %s", what, msg)
	}
	// 425 Too Early, 503 and every other status are treated as transient
	return proof.NewError(proof.KindUnavailable, "%s: unexpected status code %d: %s", what, resp.StatusCode, msg)
}

// isNotFoundMessage recognizes the node's "unknown transaction" errors
func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "could not find") || strings.Contains(msg, "not found")
}

// parseRetryAfter parses the Retry-After header
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return time.Second
	}

	// Try parsing as seconds
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return time.Second
}

// GetStats returns basic stats about the client
func (c *Client) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"rpc_url":  c.rpcURL,
		"rest_url": c.restURL,
		"timeout":  c.httpClient.Timeout,
	}
}

// GetBaseURL returns the JSON-RPC endpoint
func (c *Client) GetBaseURL() string {
	return c.rpcURL
}
