package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles calls to a Provider with a client-side token bucket.
// A single Limited is shared by every agent so the configured rate applies to
// the whole process, not to each dimension separately.
type Limited struct {
	next    Provider
	limiter *rate.Limiter
	name    string
}

// NewLimited wraps p so that at most rps calls per second (with the given burst) reach it.
// A non-positive rps disables limiting and returns p unchanged.
func NewLimited(p Provider, name string, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		next:    p,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Generate waits for a token, then delegates. A wait that cannot complete before
// the context deadline fails immediately as a rate-limit error.
func (l *Limited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, &Error{Kind: KindRateLimited, Provider: l.name, Err: fmt.Errorf("waiting for rate limiter: %w", err)}
	}
	return l.next.Generate(ctx, req)
}
