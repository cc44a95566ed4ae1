// Package llm provides a unified chat interface over several inference
// backends with built-in support for rate limiting, circuit breaking,
// retries, metrics, and tracing.
//
// The package abstracts multiple providers (Ollama, OpenAI, Anthropic,
// Google) behind a common CoreLLM interface while adding cross-cutting
// concerns through a middleware pattern. This allows the harness to switch
// providers or add operational features without changing calling code.
//
// Basic usage:
//
//	client, err := llm.NewClient("ollama", llm.ClientConfig{
//	    BaseURL: "http://localhost:11434",
//	})
//	reply, err := client.Chat(ctx, ports.ChatRequest{
//	    Model:    "llama3",
//	    Messages: []domain.Message{domain.UserMessage("Hello")},
//	})
//
// Advanced usage with middleware:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(20, 40),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	        llm.MetricsMiddleware(metricsCollector),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// CoreLLM defines the minimal interface that providers must implement.
// This interface abstracts the core functionality needed to make requests
// to different inference services, allowing the middleware system to wrap
// any conforming implementation.
type CoreLLM interface {
	// DoChat sends the conversation to the provider and returns the reply
	// together with token usage, when the provider reports it.
	DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error)

	// Unload releases the model from the backend. Providers without model
	// residency return nil.
	Unload(ctx context.Context, model string) error

	// Provider returns the provider name, such as "ollama".
	Provider() string
}

// ChatResponse is a provider reply with usage information.
type ChatResponse struct {
	// Message is the assistant reply.
	Message domain.Message
	// TokensIn is the number of prompt tokens consumed, or 0 if unknown.
	TokensIn int
	// TokensOut is the number of generated tokens, or 0 if unknown.
	TokensOut int
}

// ClientConfig holds all configuration options for creating a client.
// This struct centralizes settings for providers and middleware.
type ClientConfig struct {
	// APIKey authenticates requests to hosted providers.
	// Ollama ignores it.
	APIKey string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string

	// HTTPClient overrides the HTTP client used by providers that accept one.
	HTTPClient *http.Client

	// Timeout sets the maximum duration for individual requests.
	// Zero value means no timeout.
	Timeout time.Duration

	// Middleware allows custom middleware insertion.
	// These are applied in the order specified.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
// This pattern allows composition of features like rate limiting, circuit breaking,
// metrics collection, and custom behavior without modifying core provider logic.
type Middleware func(CoreLLM) CoreLLM

// Client implements the ports.ChatClient interface with all cross-cutting concerns.
// It wraps a provider-specific CoreLLM implementation with middleware.
type Client struct {
	core CoreLLM
}

var _ ports.ChatClient = (*Client)(nil)

// NewClient creates a new client with the specified provider and configuration.
// This function assembles the middleware chain before returning a
// ready-to-use client instance.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return newClientFromCore(core, config.Middleware), nil
}

// newClientFromCore wraps core with middleware. The first middleware is the
// outermost.
func newClientFromCore(core CoreLLM, middleware []Middleware) *Client {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Chat sends the conversation to the model and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, req ports.ChatRequest) (domain.Message, error) {
	resp, err := c.ChatWithUsage(ctx, req)
	if err != nil {
		return domain.Message{}, err
	}
	return resp.Message, nil
}

// ChatWithUsage sends the conversation and returns the reply with token usage.
func (c *Client) ChatWithUsage(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	if len(req.Messages) == 0 {
		return ChatResponse{}, fmt.Errorf("chat request for %q has no messages", req.Model)
	}
	return c.core.DoChat(ctx, req)
}

// Unload releases the model from the backend.
func (c *Client) Unload(ctx context.Context, model string) error {
	return c.core.Unload(ctx, model)
}

// Provider returns the underlying provider name.
func (c *Client) Provider() string { return c.core.Provider() }

// ProviderFactory creates a CoreLLM implementation from configuration.
// This function signature allows the provider registry to create
// provider instances without knowing their specific implementation details.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// Provider factory registry for extensibility.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory allows registration of custom provider factories.
// This enables extension of the client with additional providers
// without modifying the core library code.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// RegisteredProviders returns the names of all registered providers.
func RegisteredProviders() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	return names
}
