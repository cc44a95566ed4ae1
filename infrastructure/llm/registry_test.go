package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// registerMockProvider installs a factory that hands out core and records
// the configuration each client was built with.
func registerMockProvider(t *testing.T, name string, core *MockCoreLLM) *[]ClientConfig {
	t.Helper()
	var configs []ClientConfig
	RegisterProviderFactory(name, func(cfg ClientConfig) (CoreLLM, error) {
		configs = append(configs, cfg)
		return core, nil
	})
	t.Cleanup(func() { delete(providerFactories, name) })
	return &configs
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"ollama": {},
			"openai": {APIKey: "test-key"},
		},
		DefaultTimeout: 30 * time.Second,
		DefaultMiddleware: []Middleware{
			TimeoutMiddleware(30 * time.Second),
			RetryMiddleware(3, time.Second, 5*time.Second),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, registry)

	assert.Equal(t, "ollama", registry.DefaultProviderName())
	assert.Len(t, registry.defaultMiddleware, 2)
	assert.Equal(t, []string{"ollama", "openai"}, registry.GetRegisteredProviders())
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config RegistryConfig
		errIs  error
	}{
		{
			name:   "default provider missing",
			config: RegistryConfig{Providers: map[string]ProviderConfig{"openai": {}}},
		},
		{
			name: "explicit default not configured",
			config: RegistryConfig{
				DefaultProvider: "google",
				Providers:       map[string]ProviderConfig{"ollama": {}},
			},
		},
		{
			name: "unknown provider type",
			config: RegistryConfig{
				Providers: map[string]ProviderConfig{
					"ollama": {},
					"local":  {Type: "does-not-exist"},
				},
			},
			errIs: ErrUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.config)
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"ollama":    {},
			"openai":    {APIKey: "k"},
			"anthropic": {APIKey: "k"},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		spec         string
		wantProvider string
		wantModel    string
	}{
		{spec: "llama3.1:8b", wantProvider: "ollama", wantModel: "llama3.1:8b"},
		{spec: "openai/gpt-4o", wantProvider: "openai", wantModel: "gpt-4o"},
		{spec: "anthropic/claude-sonnet-4", wantProvider: "anthropic", wantModel: "claude-sonnet-4"},
		{spec: "hf.co/org/model:Q4_K_M", wantProvider: "ollama", wantModel: "hf.co/org/model:Q4_K_M"},
		{spec: "google/gemini-2.5-flash", wantProvider: "ollama", wantModel: "google/gemini-2.5-flash"},
		{spec: "openai/", wantProvider: "ollama", wantModel: "openai/"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			provider, model := registry.Resolve(tt.spec)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestRegistry_ChatRoutesAndStripsPrefix(t *testing.T) {
	local := NewMockCoreLLM()
	local.Response = "from local"
	remote := NewMockCoreLLM()
	remote.Response = "from remote"
	registerMockProvider(t, "mock-local", local)
	registerMockProvider(t, "mock-remote", remote)

	registry, err := NewRegistry(RegistryConfig{
		DefaultProvider: "local",
		Providers: map[string]ProviderConfig{
			"local":  {Type: "mock-local"},
			"remote": {Type: "mock-remote"},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	reply, err := registry.Chat(ctx, ports.ChatRequest{
		Model:    "remote/big-model",
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "from remote", reply.Content)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "big-model", remote.GetLastRequest().Model)

	reply, err = registry.Chat(ctx, ports.ChatRequest{
		Model:    "small-model",
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "from local", reply.Content)
	assert.Equal(t, "small-model", local.GetLastRequest().Model)
}

func TestRegistry_ChatRequiresModel(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{"ollama": {}},
	})
	require.NoError(t, err)

	_, err = registry.Chat(context.Background(), ports.ChatRequest{
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	assert.Error(t, err)
}

func TestRegistry_UnloadRoutesToProvider(t *testing.T) {
	core := NewMockCoreLLM()
	registerMockProvider(t, "mock-unload", core)

	registry, err := NewRegistry(RegistryConfig{
		DefaultProvider: "local",
		Providers:       map[string]ProviderConfig{"local": {Type: "mock-unload"}},
	})
	require.NoError(t, err)

	require.NoError(t, registry.Unload(context.Background(), "qwen2.5:7b"))
	assert.Equal(t, []string{"qwen2.5:7b"}, core.GetUnloaded())
}

func TestRegistry_ClientsAreCachedPerProvider(t *testing.T) {
	core := NewMockCoreLLM()
	configs := registerMockProvider(t, "mock-cache", core)

	registry, err := NewRegistry(RegistryConfig{
		DefaultProvider: "local",
		Providers:       map[string]ProviderConfig{"local": {Type: "mock-cache"}},
	})
	require.NoError(t, err)

	first, err := registry.GetClient("local")
	require.NoError(t, err)
	second, err := registry.GetClient("local")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, *configs, 1)
}

func TestRegistry_GetClientUnknownProvider(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{"ollama": {}},
	})
	require.NoError(t, err)

	_, err = registry.GetClient("nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistry_ProviderCreationErrorSurfaces(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"ollama": {},
			"openai": {},
		},
	})
	require.NoError(t, err)

	_, err = registry.Chat(context.Background(), ports.ChatRequest{
		Model:    "openai/gpt-4o",
		Messages: []domain.Message{domain.UserMessage("hi")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestRegistry_ConfigInheritance(t *testing.T) {
	core := NewMockCoreLLM()
	configs := registerMockProvider(t, "mock-inherit", core)

	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			order = append(order, name)
			return next
		}
	}

	registry, err := NewRegistry(RegistryConfig{
		DefaultProvider:   "local",
		DefaultTimeout:    45 * time.Second,
		DefaultMiddleware: []Middleware{tag("default")},
		Providers: map[string]ProviderConfig{
			"local": {
				Type:       "mock-inherit",
				BaseURL:    "http://gpu-box:11434",
				Middleware: []Middleware{tag("provider")},
			},
			"pinned": {
				Type:    "mock-inherit",
				Timeout: 5 * time.Second,
			},
		},
	})
	require.NoError(t, err)

	_, err = registry.GetClient("local")
	require.NoError(t, err)
	_, err = registry.GetClient("pinned")
	require.NoError(t, err)

	require.Len(t, *configs, 2)
	assert.Equal(t, 45*time.Second, (*configs)[0].Timeout)
	assert.Equal(t, "http://gpu-box:11434", (*configs)[0].BaseURL)
	assert.Len(t, (*configs)[0].Middleware, 2)
	assert.Equal(t, 5*time.Second, (*configs)[1].Timeout)

	// Middleware is applied innermost first, so the provider middleware wraps
	// the core before the registry default does.
	assert.Equal(t, []string{"provider", "default"}, order)
}
