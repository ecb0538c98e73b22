package client

import (
	"math"
	"sync"
	"time"
)

// RetryStrategy decides when a disconnected client may try to connect
// again. Every permitted check consumes one retry slot, whether the attempt
// that follows succeeds or not.
type RetryStrategy struct {
	mu          sync.Mutex
	maxRetries  int
	interval    time.Duration
	iterations  int
	lastAttempt time.Time
	now         func() time.Time
}

// None returns a strategy that never retries.
func None() *RetryStrategy {
	return newRetryStrategy(0, 0)
}

// RetryEvery returns a strategy that retries forever, at most once per
// interval.
func RetryEvery(interval time.Duration) *RetryStrategy {
	return newRetryStrategy(math.MaxInt, interval)
}

// RetryMaxEvery returns a strategy that retries at most max times, at most
// once per interval.
//
// Parameters:
//   - max: Number of retries allowed over the strategy's lifetime
//   - interval: Minimum time between two permitted retries
//
// Returns:
//   - The strategy
func RetryMaxEvery(max int, interval time.Duration) *RetryStrategy {
	if max < 0 {
		max = 0
	}
	return newRetryStrategy(max, interval)
}

func newRetryStrategy(max int, interval time.Duration) *RetryStrategy {
	return &RetryStrategy{
		maxRetries: max,
		interval:   interval,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (r *RetryStrategy) WithClock(now func() time.Time) *RetryStrategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

// CanRetryToConnect reports whether a connection attempt may be made now.
// A true answer consumes one retry and restarts the interval.
func (r *RetryStrategy) CanRetryToConnect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.iterations >= r.maxRetries {
		return false
	}

	now := r.now()
	if !r.lastAttempt.IsZero() && now.Before(r.lastAttempt.Add(r.interval)) {
		return false
	}

	r.iterations++
	r.lastAttempt = now
	return true
}

// Attempts returns how many retries were permitted so far.
func (r *RetryStrategy) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.iterations
}
