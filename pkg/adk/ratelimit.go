package adk

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitedBackend struct {
	Backend
	limiter *rate.Limiter
}

// RateLimited wraps b so that at most perMinute calls start per minute.
// A non-positive perMinute returns b unchanged.
func RateLimited(b Backend, perMinute int) Backend {
	if b == nil || perMinute <= 0 {
		return b
	}
	return &rateLimitedBackend{
		Backend: b,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

func (r *rateLimitedBackend) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Backend.Complete(ctx, prompt, opts)
}
