package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimiterStopped is returned by Wait once the limiter has been stopped
var ErrLimiterStopped = errors.New("rate limiter stopped")

// RateLimiter spaces node requests with a token bucket. The bucket starts
// full, so a burst of requestsPerPeriod calls goes through immediately.
type RateLimiter struct {
	limiter  *rate.Limiter
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter allowing requestsPerPeriod calls per period
func NewRateLimiter(requestsPerPeriod int, period time.Duration) *RateLimiter {
	if requestsPerPeriod < 1 {
		requestsPerPeriod = 1
	}
	if period <= 0 {
		period = time.Second
	}

	every := rate.Every(period / time.Duration(requestsPerPeriod))
	return &RateLimiter{
		limiter: rate.NewLimiter(every, requestsPerPeriod),
		stopped: make(chan struct{}),
	}
}

// Wait blocks until a token is available, ctx is done or the limiter stops
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.stopped:
		return ErrLimiterStopped
	default:
	}

	res := rl.limiter.Reserve()
	delay := res.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	case <-rl.stopped:
		res.Cancel()
		return ErrLimiterStopped
	}
}

// Stop releases waiters. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopped)
	})
}
