package llm

import (
	"strings"

	"github.com/ahrav/judgebench/internal/domain"
)

// DefaultMaxTokens is the generation cap applied when a provider requires one
// and the caller did not set max_tokens.
const DefaultMaxTokens = 1024

// RequestOptions represents a standardized set of inference parameters.
// It consolidates common settings across different providers.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	// Zero means the provider default.
	MaxTokens int
	// Temperature controls the randomness of the output.
	// A nil value indicates that the provider's default should be used.
	Temperature *float64
	// TopP is nucleus sampling.
	// A nil value indicates that the provider's default should be used.
	TopP *float64
	// Seed requests deterministic sampling where supported.
	Seed *int
	// Stop lists sequences that end generation.
	Stop []string
	// Extra holds any provider-specific options that are not part of the standardized set.
	Extra map[string]any
}

// ParseRequestOptions extracts and validates inference parameters from a map.
// Ollama-style names (num_predict) are accepted as aliases so that one
// options block can target any provider. Unrecognized options are collected
// into the Extra field.
func ParseRequestOptions(opts map[string]any) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", 0, IsPositiveInt),
		Stop:      ExtractOptionalStrings(opts, "stop"),
		Extra:     make(map[string]any),
	}
	if options.MaxTokens == 0 {
		options.MaxTokens = ExtractOptionalInt(opts, "num_predict", 0, IsPositiveInt)
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	if _, ok := opts["seed"]; ok {
		if seed, valid := SafeInt(opts["seed"]); valid {
			options.Seed = &seed
		}
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "num_predict", "temperature", "top_p", "seed", "stop":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// splitSystem separates system messages from the conversation for providers
// that take the system prompt as a distinct parameter. Multiple system
// messages are joined with blank lines.
func splitSystem(messages []domain.Message) (system string, rest []domain.Message) {
	var parts []string
	rest = make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}

// TokenCounter provides a utility for estimating token counts from text.
// This is useful when a provider does not report usage.
type TokenCounter struct {
	// CharactersPerToken represents the average number of characters per token.
	CharactersPerToken float64
}

// NewTokenCounter creates a new TokenCounter with a default character-per-token ratio.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		CharactersPerToken: 4.0, // A common approximation for English text.
	}
}

// EstimateTokens calculates an estimated token count for a given string of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// EstimateMessages estimates the prompt size of a conversation.
func (tc *TokenCounter) EstimateMessages(messages []domain.Message) int {
	var total int
	for _, m := range messages {
		total += tc.EstimateTokens(m.Content)
	}
	return total
}

// GetTokenCount returns the actual token count if it is available and positive.
// Otherwise, it falls back to estimating the count based on the provided text.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
