package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreLLM interface for Google's Gemini API.
// System messages become the system instruction; assistant turns use the
// "model" role.
type googleProvider struct {
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a new Google Gemini provider instance.
// It returns an error if the required configuration is missing or invalid.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// Provider returns "google".
func (p *googleProvider) Provider() string { return "google" }

// DoChat sends the conversation to GenerateContent.
func (p *googleProvider) DoChat(ctx context.Context, req ports.ChatRequest) (ChatResponse, error) {
	options := ParseRequestOptions(req.Options)
	system, rest := splitSystem(req.Messages)

	contents, err := p.buildContents(rest)
	if err != nil {
		return ChatResponse{}, err
	}
	config := p.buildGenerationConfig(options, system, len(req.Format) > 0)

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return ChatResponse{}, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return ChatResponse{}, ErrEmptyResponse
	}

	tokensIn, tokensOut := 0, 0
	if usage := resp.UsageMetadata; usage != nil {
		tokensIn = int(usage.PromptTokenCount)
		tokensOut = int(usage.CandidatesTokenCount)
	}
	if tokensIn <= 0 {
		tokensIn = p.tokenCounter.EstimateMessages(req.Messages)
	}

	return ChatResponse{
		Message:   domain.AssistantMessage(content),
		TokensIn:  tokensIn,
		TokensOut: p.tokenCounter.GetTokenCount(tokensOut, content),
	}, nil
}

// Unload is a no-op for hosted models.
func (p *googleProvider) Unload(context.Context, string) error { return nil }

// buildContents converts non-system messages into Gemini contents with
// inline image parts.
func (p *googleProvider) buildContents(messages []domain.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for i, m := range messages {
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		for j, b64 := range m.Images {
			img, err := decodeImage(b64)
			if err != nil {
				return nil, fmt.Errorf("message %d image %d: %w", i, j, err)
			}
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}

		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, nil
}

// buildGenerationConfig creates the generation configuration for a Gemini request.
func (p *googleProvider) buildGenerationConfig(options RequestOptions, system string, jsonOutput bool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	if jsonOutput {
		config.ResponseMIMEType = "application/json"
	}

	if options.Temperature != nil {
		temp := ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature)
		config.Temperature = genai.Ptr(float32(temp))
	}

	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}

	if options.TopP != nil {
		config.TopP = genai.Ptr(float32(ClampFloat64(*options.TopP, MinTopP, MaxTopP)))
	}

	if options.Seed != nil && *options.Seed >= math.MinInt32 && *options.Seed <= math.MaxInt32 {
		config.Seed = genai.Ptr(int32(*options.Seed))
	}

	if len(options.Stop) > 0 {
		config.StopSequences = options.Stop
	}

	if topK, ok := SafeInt(options.Extra["top_k"]); ok {
		// Gemini supports top_k between 1 and 40.
		topK = max(1, min(topK, 40))
		config.TopK = genai.Ptr(float32(topK))
	}

	return config
}

// handleError classifies errors from the Gemini API.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		if strings.Contains(strings.ToLower(genaiErr.Message), "safety") {
			return NewProviderError("google", ErrorTypeContentPolicy, genaiErr.Code,
				"request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(genaiErr.Code, genaiErr.Message, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}

		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// buildAuthConfig creates the client configuration. Only API key
// authentication is supported.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if !fileExists(config.APIKey) {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}
		return nil, fmt.Errorf("service account authentication is not supported; " +
			"set GOOGLE_API_KEY to an API key")
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		cc.HTTPOptions.BaseURL = validatedURL
	}
	return cc, nil
}

// looksLikeFilePath checks if a string appears to be a file path.
func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) {
		return true
	}

	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	lower := strings.ToLower(s)
	return strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".p12") ||
		strings.HasSuffix(lower, ".pem") ||
		strings.Contains(lower, "credentials")
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isContextError checks if an error is a context-related error.
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// containsContentPolicyError checks if a Google API error is related to
// content policy violations.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if apiErr.Message != "" {
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "safety") ||
			strings.Contains(lower, "policy") ||
			strings.Contains(lower, "blocked") {
			return true
		}
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}

	return false
}
