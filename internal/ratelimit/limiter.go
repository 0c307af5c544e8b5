// Package ratelimit throttles a Worker's write rate to bytes per second,
// wrapping golang.org/x/time/rate the way internal/mysqlconn wraps
// database/sql: a small adapter over an ecosystem primitive rather than a
// hand-rolled token bucket.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds cumulative bytes reported through ReportBytes to
// bytesPerSecond, with a burst equal to one second's worth of bytes.
// One Limiter belongs to one Worker; there is no cross-worker
// coordination (spec.md §4.2, §5).
type Limiter struct {
	l *rate.Limiter
}

// New returns a Limiter. bytesPerSecond <= 0 disables throttling.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return &Limiter{l: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := int(bytesPerSecond)
	return &Limiter{l: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// ReportBytes blocks until n bytes are admitted under the configured
// rate, or ctx is done.
func (r *Limiter) ReportBytes(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	// WaitN rejects a request larger than the burst, so a large report is
	// admitted in burst-sized pieces.
	burst := r.l.Burst()
	for n > 0 {
		step := n
		if burst > 0 && step > burst {
			step = burst
		}
		if err := r.l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
