// Package testutils provides deterministic test doubles for the ports used
// by the benchmark harness.
package testutils

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// DefaultJudgement is the reply the mock gives to judge prompts.
const DefaultJudgement = `{"evaluation": "Relevant and accurate.", "total_rating": 80, "feedback": "Add an example."}`

// DefaultAnswer is the reply the mock gives when nothing else matches.
const DefaultAnswer = "This is a standard response for testing purposes."

// MockChatClient implements ports.ChatClient with deterministic replies and
// records every call for later inspection. It is safe for concurrent use.
type MockChatClient struct {
	mu sync.Mutex

	// responses maps lower-case substrings of the last message to replies.
	responses map[string]string
	// queued holds scripted replies per model, consumed in order.
	queued map[string][]string
	// chatErrs fails every Chat call for a model.
	chatErrs  map[string]error
	unloadErr error

	calls   []ports.ChatRequest
	unloads []string
	events  []string
}

// MockResponse is a pattern-based reply for MockChatClient.
type MockResponse struct {
	// Pattern is matched case-insensitively against the content of the
	// last message in the request.
	Pattern string
	// Response is returned as the assistant reply.
	Response string
}

// NewMockChatClient creates a client that answers judge prompts with
// DefaultJudgement and everything else with DefaultAnswer.
func NewMockChatClient() *MockChatClient {
	m := &MockChatClient{
		responses: make(map[string]string),
		queued:    make(map[string][]string),
		chatErrs:  make(map[string]error),
	}
	m.AddResponse(MockResponse{Pattern: "now here are the question and answer", Response: DefaultJudgement})
	return m
}

// AddResponse registers a pattern-based reply. Longer patterns win when
// several match.
func (m *MockChatClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[strings.ToLower(r.Pattern)] = r.Response
}

// QueueResponses scripts the next replies for model. Queued replies take
// precedence over patterns.
func (m *MockChatClient) QueueResponses(model string, replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[model] = append(m.queued[model], replies...)
}

// FailChat makes every Chat call for model return err.
func (m *MockChatClient) FailChat(model string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatErrs[model] = err
}

// FailUnload makes every Unload call return err.
func (m *MockChatClient) FailUnload(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unloadErr = err
}

// Chat implements ports.ChatClient.
func (m *MockChatClient) Chat(ctx context.Context, req ports.ChatRequest) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, cloneRequest(req))
	m.events = append(m.events, "chat:"+req.Model)

	if err, ok := m.chatErrs[req.Model]; ok {
		return domain.Message{}, err
	}
	if len(req.Messages) == 0 {
		return domain.Message{}, fmt.Errorf("messages cannot be empty")
	}

	if q := m.queued[req.Model]; len(q) > 0 {
		m.queued[req.Model] = q[1:]
		return domain.AssistantMessage(q[0]), nil
	}
	return domain.AssistantMessage(m.match(req.Messages[len(req.Messages)-1].Content)), nil
}

// Unload implements ports.ChatClient.
func (m *MockChatClient) Unload(ctx context.Context, model string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.unloads = append(m.unloads, model)
	m.events = append(m.events, "unload:"+model)
	return m.unloadErr
}

func (m *MockChatClient) match(content string) string {
	lower := strings.ToLower(content)
	patterns := slices.SortedFunc(maps.Keys(m.responses), func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, p) {
			return m.responses[p]
		}
	}
	if r, ok := m.responses[""]; ok {
		return r
	}
	return DefaultAnswer
}

// Calls returns a copy of every Chat request received.
func (m *MockChatClient) Calls() []ports.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallsFor returns the Chat requests sent to model.
func (m *MockChatClient) CallsFor(model string) []ports.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.ChatRequest
	for _, c := range m.calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

// Unloads returns the models passed to Unload, in call order.
func (m *MockChatClient) Unloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.unloads)
}

// Events returns "chat:<model>" and "unload:<model>" entries in call order.
func (m *MockChatClient) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// Reset clears recorded calls. Configured replies and failures are kept.
func (m *MockChatClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.unloads = nil
	m.events = nil
}

// cloneRequest deep-copies the request so later appends by the caller do
// not alter the recorded history.
func cloneRequest(req ports.ChatRequest) ports.ChatRequest {
	out := req
	out.Messages = domain.Transcript(req.Messages).Clone()
	out.Options = maps.Clone(req.Options)
	out.Format = slices.Clone(req.Format)
	return out
}

var _ ports.ChatClient = (*MockChatClient)(nil)
