package llm

import (
	"context"
	"time"

	"github.com/ahrav/judgebench/internal/ports"
)

// timeoutLLM implements request timeout functionality.
// Each attempt gets its own deadline when placed inside the retry middleware.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces request timeouts on
// both chat and unload calls.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{
			next:    next,
			timeout: timeout,
		}
	}
}

// DoChat executes the request with a timeout context.
// If the request doesn't complete within the timeout duration,
// it returns a context deadline exceeded error.
func (t *timeoutLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoChat(ctx, req)
}

// Unload executes the unload with a timeout context.
func (t *timeoutLLM) Unload(ctx context.Context, model string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Unload(ctx, model)
}

// Provider returns the provider name from the wrapped implementation.
func (t *timeoutLLM) Provider() string { return t.next.Provider() }
