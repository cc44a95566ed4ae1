package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		config      ClientConfig
		expectError bool
	}{
		{
			name:     "ollama needs no api key",
			provider: "ollama",
			config:   ClientConfig{},
		},
		{
			name:     "ollama with custom host",
			provider: "ollama",
			config:   ClientConfig{BaseURL: "http://gpu-box:11434"},
		},
		{
			name:     "valid openai client",
			provider: "openai",
			config:   ClientConfig{APIKey: "test-api-key"},
		},
		{
			name:     "valid anthropic client",
			provider: "anthropic",
			config:   ClientConfig{APIKey: "test-api-key"},
		},
		{
			name:     "valid google client",
			provider: "google",
			config:   ClientConfig{APIKey: "test-api-key"},
		},
		{
			name:        "missing api key",
			provider:    "openai",
			config:      ClientConfig{},
			expectError: true,
		},
		{
			name:        "invalid base url",
			provider:    "ollama",
			config:      ClientConfig{BaseURL: "ftp://example.com"},
			expectError: true,
		},
		{
			name:        "unknown provider",
			provider:    "unknown",
			config:      ClientConfig{APIKey: "test-key"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.provider, tt.config)

			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, client)
			assert.Equal(t, tt.provider, client.Provider())
		})
	}
}

func TestClient_Chat(t *testing.T) {
	core := NewMockCoreLLM()
	core.Response = "Paris"
	client := newClientFromCore(core, nil)

	reply, err := client.Chat(context.Background(), ports.ChatRequest{
		Model: "llama3",
		Messages: []domain.Message{
			domain.SystemMessage("Answer briefly."),
			domain.UserMessage("Capital of France?"),
		},
		Options: map[string]any{"temperature": 0.0},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AssistantMessage("Paris"), reply)

	sent := core.GetLastRequest()
	assert.Equal(t, "llama3", sent.Model)
	assert.Len(t, sent.Messages, 2)
	assert.Equal(t, 0.0, sent.Options["temperature"])
}

func TestClient_ChatWithUsage(t *testing.T) {
	core := NewMockCoreLLM()
	core.TokensIn = 12
	core.TokensOut = 34
	client := newClientFromCore(core, nil)

	resp, err := client.ChatWithUsage(context.Background(), testRequest("hello"))
	require.NoError(t, err)

	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 34, resp.TokensOut)
}

func TestClient_ChatRejectsEmptyConversation(t *testing.T) {
	core := NewMockCoreLLM()
	client := newClientFromCore(core, nil)

	_, err := client.Chat(context.Background(), ports.ChatRequest{Model: "llama3"})

	assert.Error(t, err)
	assert.Equal(t, 0, core.GetCallCount())
}

func TestClient_Unload(t *testing.T) {
	core := NewMockCoreLLM()
	client := newClientFromCore(core, nil)

	require.NoError(t, client.Unload(context.Background(), "llama3"))
	assert.Equal(t, []string{"llama3"}, core.GetUnloaded())
}

func TestClient_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &orderRecordingLLM{next: next, name: name, order: &order}
		}
	}

	client := newClientFromCore(NewMockCoreLLM(), []Middleware{tag("outer"), tag("inner")})

	_, err := client.Chat(context.Background(), testRequest("hi"))
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, order)
}

// TestClientWithMiddleware runs a request through the full middleware stack
// and checks that every layer observed it.
func TestClientWithMiddleware(t *testing.T) {
	metrics := newMockMetricsCollector()
	cbMetrics := newMockCircuitBreakerMetrics()
	core := NewMockCoreLLM()

	client := newClientFromCore(core, []Middleware{
		RateLimitMiddleware(rate.Limit(100), 10),
		CircuitBreakerMiddlewareWithMetrics(3, 60*time.Second, cbMetrics),
		TimeoutMiddleware(30 * time.Second),
		MetricsMiddleware(metrics),
	})

	reply, err := client.Chat(context.Background(), testRequest("test prompt"))
	require.NoError(t, err)

	assert.Equal(t, "test response", reply.Content)
	assert.NotEmpty(t, metrics.find(MetricLLMRequests))
	assert.Equal(t, 1, cbMetrics.successes)
	assert.Equal(t, "mock", client.Provider())
}

func TestRegisteredProviders(t *testing.T) {
	providers := RegisteredProviders()

	for _, want := range []string{"ollama", "openai", "anthropic", "google"} {
		assert.Contains(t, providers, want)
	}
}

// orderRecordingLLM appends its name when a request passes through it.
type orderRecordingLLM struct {
	next  CoreLLM
	name  string
	order *[]string
}

func (o *orderRecordingLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	*o.order = append(*o.order, o.name)
	return o.next.DoChat(ctx, req)
}

func (o *orderRecordingLLM) Unload(ctx context.Context, model string) error {
	return o.next.Unload(ctx, model)
}

func (o *orderRecordingLLM) Provider() string { return o.next.Provider() }
