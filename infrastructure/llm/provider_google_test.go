package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// TestNewGoogleProvider tests provider construction with valid and invalid
// credentials.
func TestNewGoogleProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      ClientConfig
		expectError bool
	}{
		{
			name:   "valid API key configuration",
			config: ClientConfig{APIKey: "test-api-key"},
		},
		{
			name:        "file path authentication should error",
			config:      ClientConfig{APIKey: "/path/to/credentials.json"},
			expectError: true,
		},
		{
			name:        "empty API key should error",
			config:      ClientConfig{},
			expectError: true,
		},
		{
			name:        "invalid base url",
			config:      ClientConfig{APIKey: "test-api-key", BaseURL: "gopher://x"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := newGoogleProvider(tt.config)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "google", provider.Provider())
			assert.NoError(t, provider.Unload(context.Background(), "gemini-2.5-flash"))
		})
	}
}

func TestGoogleProvider_BuildContents(t *testing.T) {
	provider := &googleProvider{}

	t.Run("roles map to user and model", func(t *testing.T) {
		contents, err := provider.buildContents([]domain.Message{
			domain.UserMessage("q1"),
			domain.AssistantMessage("a1"),
			domain.UserMessage("q2"),
		})
		require.NoError(t, err)
		require.Len(t, contents, 3)

		assert.Equal(t, string(genai.RoleUser), string(contents[0].Role))
		assert.Equal(t, string(genai.RoleModel), string(contents[1].Role))
		assert.Equal(t, "q2", contents[2].Parts[0].Text)
	})

	t.Run("images become inline parts", func(t *testing.T) {
		contents, err := provider.buildContents([]domain.Message{
			domain.UserMessage("what is this?", testPNGBase64),
		})
		require.NoError(t, err)
		require.Len(t, contents[0].Parts, 2)

		inline := contents[0].Parts[1].InlineData
		require.NotNil(t, inline)
		assert.Equal(t, "image/png", inline.MIMEType)
	})

	t.Run("invalid image rejected", func(t *testing.T) {
		_, err := provider.buildContents([]domain.Message{
			domain.UserMessage("what is this?", "!!!not-base64"),
		})
		assert.Error(t, err)
	})
}

// TestBuildGenerationConfig tests the construction of the generation
// configuration from request options.
func TestBuildGenerationConfig(t *testing.T) {
	provider := &googleProvider{}

	t.Run("empty options", func(t *testing.T) {
		config := provider.buildGenerationConfig(ParseRequestOptions(nil), "", false)

		assert.Nil(t, config.Temperature)
		assert.Nil(t, config.TopP)
		assert.Nil(t, config.TopK)
		assert.Zero(t, config.MaxOutputTokens)
		assert.Nil(t, config.SystemInstruction)
		assert.Empty(t, config.ResponseMIMEType)
	})

	t.Run("system instruction and json output", func(t *testing.T) {
		config := provider.buildGenerationConfig(ParseRequestOptions(nil), "Be strict.", true)

		require.NotNil(t, config.SystemInstruction)
		assert.Equal(t, "Be strict.", config.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "application/json", config.ResponseMIMEType)
	})

	t.Run("all valid options", func(t *testing.T) {
		config := provider.buildGenerationConfig(ParseRequestOptions(map[string]any{
			"temperature": 0.8,
			"max_tokens":  256,
			"top_p":       0.95,
			"top_k":       100,
			"seed":        7,
			"stop":        []any{"###"},
		}), "", false)

		require.NotNil(t, config.Temperature)
		assert.InDelta(t, 0.8, *config.Temperature, 0.0001)
		assert.Equal(t, int32(256), config.MaxOutputTokens)
		require.NotNil(t, config.TopP)
		assert.InDelta(t, 0.95, *config.TopP, 0.0001)
		require.NotNil(t, config.TopK)
		assert.Equal(t, float32(40), *config.TopK, "top_k is capped at 40")
		require.NotNil(t, config.Seed)
		assert.Equal(t, int32(7), *config.Seed)
		assert.Equal(t, []string{"###"}, config.StopSequences)
	})
}

func TestGoogleProvider_HandleError(t *testing.T) {
	provider := &googleProvider{errorClassifier: &ErrorClassifier{Provider: "google"}}

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
	}{
		{
			name:         "deadline",
			err:          context.DeadlineExceeded,
			expectedType: ErrorTypeTimeout,
		},
		{
			name:         "genai rate limit",
			err:          genai.APIError{Code: 429, Message: "quota exceeded"},
			expectedType: ErrorTypeRateLimit,
		},
		{
			name:         "genai safety block",
			err:          genai.APIError{Code: 400, Message: "Response blocked due to SAFETY"},
			expectedType: ErrorTypeContentPolicy,
		},
		{
			name:         "googleapi auth",
			err:          &googleapi.Error{Code: 403, Message: "permission denied"},
			expectedType: ErrorTypeAuthentication,
		},
		{
			name: "googleapi blocked reason",
			err: &googleapi.Error{
				Code:   400,
				Errors: []googleapi.ErrorItem{{Reason: "SAFETY", Message: "unsafe"}},
			},
			expectedType: ErrorTypeContentPolicy,
		},
		{
			name:         "unknown",
			err:          errors.New("boom"),
			expectedType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := provider.handleError(tt.err)

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.expectedType, perr.Type)
			assert.NotNil(t, perr.WrappedError)
		})
	}
}

func TestGoogleProvider_DoChat(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Gemini says hi."}]}}],
			"usageMetadata": {"promptTokenCount": 11, "candidatesTokenCount": 4}
		}`))
	}))
	defer server.Close()

	provider, err := newGoogleProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.DoChat(context.Background(), ports.ChatRequest{
		Model: "gemini-2.5-flash",
		Messages: []domain.Message{
			domain.SystemMessage("Be brief."),
			domain.UserMessage("Hello"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AssistantMessage("Gemini says hi."), resp.Message)
	assert.Equal(t, 11, resp.TokensIn)
	assert.Equal(t, 4, resp.TokensOut)

	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1, "system message is sent as the system instruction")
	assert.Contains(t, body, "systemInstruction")
}

func TestLooksLikeFilePath(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "AIzaSyExample", want: false},
		{input: "/etc/creds.json", want: true},
		{input: "creds.json", want: true},
		{input: "dir\\key.pem", want: true},
		{input: "my-credentials", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeFilePath(tt.input))
		})
	}
}
