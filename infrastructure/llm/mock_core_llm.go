package llm

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// MockCoreLLM provides a configurable mock implementation of CoreLLM for testing.
// It allows precise control over response behavior, timing, and error conditions
// to facilitate comprehensive middleware testing.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	UnloadError   error
	ProviderName  string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N chats, then succeeds.
	FailUntilAttempt int

	// Tracking
	CallCount     int
	LastRequest   ports.ChatRequest
	LastContext   context.Context
	Contexts      []context.Context // All contexts received
	Unloaded      []string
	UnloadContext context.Context
}

// NewMockCoreLLM creates a new mock CoreLLM with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:     "test response",
		TokensIn:     10,
		TokensOut:    20,
		ProviderName: "mock",
		Contexts:     make([]context.Context, 0),
	}
}

// DoChat implements the CoreLLM interface with configurable behavior.
func (m *MockCoreLLM) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Track the call
	m.CallCount++
	m.LastRequest = req
	m.LastContext = ctx
	m.Contexts = append(m.Contexts, ctx)

	// Simulate response delay if configured
	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return ChatResponse{}, ctx.Err()
		}
	}

	// Handle failure behaviors
	if m.FailUntilAttempt > 0 && m.CallCount <= m.FailUntilAttempt {
		if m.Error != nil {
			return ChatResponse{}, m.Error
		}
		return ChatResponse{}, &testError{message: "simulated failure"}
	}

	if m.Error != nil {
		return ChatResponse{}, m.Error
	}

	return ChatResponse{
		Message:   domain.AssistantMessage(m.Response),
		TokensIn:  m.TokensIn,
		TokensOut: m.TokensOut,
	}, nil
}

// Unload records the model and returns UnloadError.
func (m *MockCoreLLM) Unload(ctx context.Context, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unloaded = append(m.Unloaded, model)
	m.UnloadContext = ctx
	return m.UnloadError
}

// Provider returns the configured provider name.
func (m *MockCoreLLM) Provider() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProviderName
}

// GetCallCount returns the number of times DoChat was called.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetLastRequest returns the most recent chat request.
func (m *MockCoreLLM) GetLastRequest() ports.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequest
}

// GetUnloaded returns the models passed to Unload, in order.
func (m *MockCoreLLM) GetUnloaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Unloaded...)
}

// testError provides a simple error type for testing.
type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
