package model

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped client. The limiter may be
// shared by several clients so the process as a whole stays under the
// provider quota.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewLimiter allows perMinute calls per minute with no burst.
// A non-positive value returns nil, meaning unlimited.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// WithLimiter wraps next. A nil limiter returns next unchanged.
func WithLimiter(next Client, limiter *rate.Limiter) Client {
	if limiter == nil {
		return next
	}
	return &RateLimited{next: next, limiter: limiter}
}

// Complete waits for a token and then calls the wrapped client. A cancelled
// context aborts the wait with the context's error.
func (r *RateLimited) Complete(ctx context.Context, req Request) (Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Completion{}, ctxErr
		}
		return Completion{}, err
	}
	return r.next.Complete(ctx, req)
}
