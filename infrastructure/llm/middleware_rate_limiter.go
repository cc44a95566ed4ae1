package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/judgebench/internal/ports"
)

// rateLimitedLLM implements rate limiting using a token bucket algorithm.
// This prevents overwhelming provider rate limits when several tasks run
// concurrently.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces rate limiting using a token bucket algorithm.
// The limit parameter sets requests per second, while burst allows
// temporary spikes above the sustained rate. The limiter is shared by every
// CoreLLM the middleware wraps.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{
			next:    next,
			limiter: limiter,
		}
	}
}

// DoChat waits for rate limit permission before forwarding the request.
func (r *rateLimitedLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ChatResponse{}, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoChat(ctx, req)
}

// Unload is not rate limited.
func (r *rateLimitedLLM) Unload(ctx context.Context, model string) error {
	return r.next.Unload(ctx, model)
}

// Provider returns the provider name from the wrapped implementation.
func (r *rateLimitedLLM) Provider() string { return r.next.Provider() }
