package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// DefaultProvider handles model ids that carry no provider prefix.
const DefaultProvider = "ollama"

// Registry routes model specs to provider clients. A spec of the form
// "provider/model" is sent to that provider when the prefix names a
// configured provider; anything else, including Ollama names such as
// "hf.co/org/model", goes to the default provider unchanged.
//
// Clients are created lazily on first use and shared by every model of
// the same provider.
type Registry struct {
	// providers maps provider names to their configuration.
	providers map[string]ProviderConfig
	// clients maps provider names to built clients.
	clients map[string]*Client
	// defaultProvider receives unprefixed model ids.
	defaultProvider string
	// defaultMiddleware is applied to every client before provider middleware.
	defaultMiddleware []Middleware
	// defaultTimeout applies to providers that do not set their own.
	defaultTimeout time.Duration
	mu             sync.RWMutex
}

var _ ports.ChatClient = (*Registry)(nil)

// ProviderConfig holds provider-specific configuration.
type ProviderConfig struct {
	// Type is the provider factory name (ollama, openai, anthropic, google).
	// Defaults to the provider's registry key.
	Type string
	// APIKey authenticates against hosted providers.
	APIKey string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// Timeout overrides the registry default timeout.
	Timeout time.Duration
	// Middleware is applied inside the registry default middleware.
	Middleware []Middleware
}

// RegistryConfig holds configuration for the provider registry.
type RegistryConfig struct {
	// Providers defines the available providers and their configurations.
	Providers map[string]ProviderConfig
	// DefaultProvider receives model ids without a known provider prefix.
	// Defaults to DefaultProvider.
	DefaultProvider string
	// DefaultTimeout sets the request timeout for all providers.
	DefaultTimeout time.Duration
	// DefaultMiddleware is applied to all providers.
	DefaultMiddleware []Middleware
}

// NewRegistry creates a provider registry. The default provider must be
// configured.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	defaultProvider := config.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = DefaultProvider
	}

	providers := make(map[string]ProviderConfig, len(config.Providers))
	for name, pc := range config.Providers {
		if name == "" {
			return nil, fmt.Errorf("provider name cannot be empty")
		}
		if pc.Type == "" {
			pc.Type = name
		}
		if _, ok := providerFactories[pc.Type]; !ok {
			return nil, fmt.Errorf("provider %q: %w: %s", name, ErrUnknownProvider, pc.Type)
		}
		providers[name] = pc
	}

	if _, exists := providers[defaultProvider]; !exists {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", defaultProvider)
	}

	return &Registry{
		providers:         providers,
		clients:           make(map[string]*Client),
		defaultProvider:   defaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
	}, nil
}

// Resolve splits a model spec into the provider that serves it and the
// model id that provider expects.
func (r *Registry) Resolve(spec string) (provider, model string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if prefix, rest, ok := strings.Cut(spec, "/"); ok && rest != "" {
		if _, known := r.providers[prefix]; known {
			return prefix, rest
		}
	}
	return r.defaultProvider, spec
}

// Chat routes the request to the provider named by req.Model.
func (r *Registry) Chat(ctx context.Context, req ports.ChatRequest) (domain.Message, error) {
	resp, err := r.ChatWithUsage(ctx, req)
	if err != nil {
		return domain.Message{}, err
	}
	return resp.Message, nil
}

// ChatWithUsage routes the request and returns the reply with token usage.
func (r *Registry) ChatWithUsage(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	if req.Model == "" {
		return ChatResponse{}, fmt.Errorf("chat request has no model")
	}
	provider, model := r.Resolve(req.Model)
	client, err := r.GetClient(provider)
	if err != nil {
		return ChatResponse{}, err
	}
	req.Model = model
	return client.ChatWithUsage(ctx, req)
}

// Unload routes the unload to the provider named by model.
func (r *Registry) Unload(ctx context.Context, model string) error {
	provider, id := r.Resolve(model)
	client, err := r.GetClient(provider)
	if err != nil {
		return err
	}
	return client.Unload(ctx, id)
}

// GetClient returns the client for a configured provider, creating it on
// first request.
func (r *Registry) GetClient(provider string) (*Client, error) {
	r.mu.RLock()
	if client, exists := r.clients[provider]; exists {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[provider]; exists {
		return client, nil
	}

	pc, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	client, err := NewClient(pc.Type, r.clientConfig(pc))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	r.clients[provider] = client
	return client, nil
}

// clientConfig merges registry defaults into a provider configuration.
// Callers hold r.mu.
func (r *Registry) clientConfig(pc ProviderConfig) ClientConfig {
	timeout := pc.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	middleware := append([]Middleware{}, r.defaultMiddleware...)
	middleware = append(middleware, pc.Middleware...)

	return ClientConfig{
		APIKey:     pc.APIKey,
		BaseURL:    pc.BaseURL,
		Timeout:    timeout,
		Middleware: middleware,
	}
}

// GetRegisteredProviders returns the configured provider names, sorted.
func (r *Registry) GetRegisteredProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.providers))
	for name := range r.providers {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// DefaultProviderName returns the provider that receives unprefixed ids.
func (r *Registry) DefaultProviderName() string { return r.defaultProvider }
