package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

const (
	// OllamaDefaultBaseURL is the address of a local Ollama server.
	OllamaDefaultBaseURL = "http://127.0.0.1:11434"
)

func init() {
	RegisterProviderFactory("ollama", newOllamaProvider)
}

// ollamaProvider implements the CoreLLM interface for an Ollama server.
// Options are forwarded verbatim, since Ollama understands its own option
// names (num_ctx, num_predict, temperature, ...).
type ollamaProvider struct {
	client          *api.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newOllamaProvider creates a new Ollama provider instance. No API key is
// needed.
func newOllamaProvider(config ClientConfig) (CoreLLM, error) {
	base := config.BaseURL
	if base == "" {
		base = OllamaDefaultBaseURL
	}
	validatedURL, err := ValidateBaseURL(base)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	u, err := url.Parse(validatedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &ollamaProvider{
		client:          api.NewClient(u, httpClient),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "ollama"},
	}, nil
}

// Provider returns "ollama".
func (p *ollamaProvider) Provider() string { return "ollama" }

// DoChat sends a non-streaming chat request to the Ollama server.
func (p *ollamaProvider) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	messages, err := p.buildMessages(req.Messages)
	if err != nil {
		return ChatResponse{}, err
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  req.Options,
		Format:   req.Format,
	}

	var final api.ChatResponse
	var content strings.Builder
	err = p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return ChatResponse{}, p.handleError(err)
	}

	text := content.String()
	tokensIn := final.PromptEvalCount
	if tokensIn <= 0 {
		tokensIn = p.tokenCounter.EstimateMessages(req.Messages)
	}
	return ChatResponse{
		Message:   domain.AssistantMessage(text),
		TokensIn:  tokensIn,
		TokensOut: p.tokenCounter.GetTokenCount(final.EvalCount, text),
	}, nil
}

// Unload evicts the model from server memory by issuing an empty chat with
// a zero keep-alive.
func (p *ollamaProvider) Unload(ctx context.Context, model string) error {
	stream := false
	req := &api.ChatRequest{
		Model:     model,
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: 0},
	}
	if err := p.client.Chat(ctx, req, func(api.ChatResponse) error { return nil }); err != nil {
		return p.handleError(err)
	}
	return nil
}

// buildMessages converts domain messages into Ollama messages. Images are
// sent as raw bytes; the client base64-encodes them on the wire.
func (p *ollamaProvider) buildMessages(in []domain.Message) ([]api.Message, error) {
	out := make([]api.Message, 0, len(in))
	for i, m := range in {
		msg := api.Message{Role: m.Role.String(), Content: m.Content}
		for j, b64 := range m.Images {
			img, err := decodeImage(b64)
			if err != nil {
				return nil, fmt.Errorf("message %d image %d: %w", i, j, err)
			}
			msg.Images = append(msg.Images, api.ImageData(img.Data))
		}
		out = append(out, msg)
	}
	return out, nil
}

// handleError classifies errors returned by the Ollama client.
func (p *ollamaProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.ErrorMessage
		if message == "" {
			message = statusErr.Status
		}
		return p.errorClassifier.ClassifyHTTPError(statusErr.StatusCode, message, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewProviderError("ollama", ErrorTypeNetwork, 0, "server unreachable", err)
	}

	return NewProviderError("ollama", ErrorTypeUnknown, 0, "request failed", err)
}
