package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements the CoreLLM interface for Anthropic's Claude API.
// System messages are lifted into the request's system blocks.
type anthropicProvider struct {
	client          anthropic.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider creates a new Anthropic provider instance.
func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyAPIKey)
	}

	// Retries belong to RetryMiddleware.
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &anthropicProvider{
		client:          anthropic.NewClient(opts...),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// Provider returns "anthropic".
func (p *anthropicProvider) Provider() string { return "anthropic" }

// DoChat sends the conversation to the Messages API.
func (p *anthropicProvider) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	params, err := p.buildAnthropicParams(req)
	if err != nil {
		return ChatResponse{}, err
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return ChatResponse{}, p.wrapError(err)
	}

	return p.processResponse(message, req.Messages)
}

// Unload is a no-op for hosted models.
func (p *anthropicProvider) Unload(context.Context, string) error { return nil }

// buildAnthropicParams creates the API request parameters.
func (p *anthropicProvider) buildAnthropicParams(req ports.ChatRequest) (anthropic.MessageNewParams, error) {
	options := ParseRequestOptions(req.Options)
	system, rest := splitSystem(req.Messages)

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for i, m := range rest {
		blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
		for j, b64 := range m.Images {
			img, err := decodeImage(b64)
			if err != nil {
				return anthropic.MessageNewParams{}, fmt.Errorf("message %d image %d: %w", i, j, err)
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64))
		}

		if m.Role == domain.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if options.Temperature != nil {
		// Anthropic accepts temperatures up to 1.0.
		params.Temperature = anthropic.Float(ClampFloat64(*options.Temperature, 0, 1))
	}
	if options.TopP != nil {
		params.TopP = anthropic.Float(*options.TopP)
	}
	if len(options.Stop) > 0 {
		params.StopSequences = options.Stop
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return params, nil
}

// processResponse extracts content and token counts from the API response.
func (p *anthropicProvider) processResponse(message *anthropic.Message, prompt []domain.Message) (ChatResponse, error) {
	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	responseStr := responseText.String()
	if responseStr == "" {
		return ChatResponse{}, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	tokensIn := int(message.Usage.InputTokens)
	if tokensIn <= 0 {
		tokensIn = p.tokenCounter.EstimateMessages(prompt)
	}

	return ChatResponse{
		Message:   domain.AssistantMessage(responseStr),
		TokensIn:  tokensIn,
		TokensOut: p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), responseStr),
	}, nil
}

// wrapError classifies Anthropic SDK errors.
func (p *anthropicProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return p.errorClassifier.ClassifyHTTPError(anthropicErr.StatusCode, "anthropic API error", err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
