package classify

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCooldown is applied after a quota rejection that carries no server
// retry hint.
const DefaultCooldown = 60 * time.Second

// ErrCoolingDown is returned while the limiter is waiting out a quota
// cool-down window.
var ErrCoolingDown = errors.New("classify: oracle cooling down after quota rejection")

// QuotaError signals that the remote model rejected a call for quota reasons.
// RetryDelay carries the server-suggested wait, zero when the server gave none.
type QuotaError struct {
	RetryDelay time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded, retry after %s", e.RetryDelay)
}

// RateLimiter serializes oracle calls and enforces a cool-down window after
// quota rejections. Calls made during the window fail fast with ErrCoolingDown
// instead of burning more quota.
type RateLimiter struct {
	mu            sync.Mutex
	cooldownUntil time.Time
	now           func() time.Time
}

// NewRateLimiter returns a limiter using the wall clock.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithClock(time.Now)
}

// NewRateLimiterWithClock returns a limiter with an injectable clock for tests.
func NewRateLimiterWithClock(now func() time.Time) *RateLimiter {
	return &RateLimiter{now: now}
}

// Do runs fn under the limiter. At most one call runs at a time. When fn
// fails with a QuotaError the limiter starts a cool-down window of the
// server-suggested duration, or DefaultCooldown when none was given.
func (r *RateLimiter) Do(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Before(r.cooldownUntil) {
		return ErrCoolingDown
	}

	err := fn()

	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		delay := quotaErr.RetryDelay
		if delay <= 0 {
			delay = DefaultCooldown
		}
		r.cooldownUntil = r.now().Add(delay)
	}
	return err
}
