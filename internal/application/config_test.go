package application

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/judgebench/internal/domain"
)

// TestParseConfig tests YAML decoding of Config. It verifies that defaults
// survive partial documents and that unknown keys are rejected. Semantic
// validation is covered by TestConfig_Validate.
func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		verify  func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal config keeps defaults",
			yaml: `
model: llama3
judge_model: llama3
question: "81"
`,
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "llama3", cfg.Model)
				assert.Equal(t, "81", cfg.Question)
				assert.Equal(t, 1, cfg.MaxTurns)
				assert.Equal(t, 1, cfg.Concurrency)
				assert.Equal(t, "json", cfg.OutputFormat)
				assert.Equal(t, "-", cfg.Output)
			},
		},
		{
			name: "full config",
			yaml: `
model: llava
judge_model: openai/gpt-4o
system_prompt: prompts/system.txt
judge_system_prompt: Be harsh.
judge_prompt: "Q={{.Question}} A={{.Answer}}"
inference_options:
  temperature: 0.2
  num_ctx: 4096
judge_inference_options:
  temperature: 0
question: "101"
questions: bank.jsonl
max_turns: 2
concurrency: 4
judge_structured_output: true
output: out.yaml
output_format: yaml
llm:
  default_provider: ollama
  timeout: 90s
  rate_limit: 2.5
  burst: 3
  max_retries: 2
  circuit_breaker_failures: 5
`,
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "openai/gpt-4o", cfg.JudgeModel)
				assert.Equal(t, 0.2, cfg.InferenceOptions["temperature"])
				assert.Equal(t, 4096, cfg.InferenceOptions["num_ctx"])
				assert.Equal(t, 0, cfg.JudgeInferenceOptions["temperature"])
				assert.Equal(t, 2, cfg.MaxTurns)
				assert.True(t, cfg.JudgeStructuredOutput)
				assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
				assert.Equal(t, 2.5, cfg.LLM.RateLimit)
				assert.Equal(t, 5, cfg.LLM.CircuitBreakerFailures)
			},
		},
		{
			name:   "empty document yields defaults",
			yaml:   ``,
			verify: func(t *testing.T, cfg *Config) { assert.Equal(t, DefaultConfig(), *cfg) },
		},
		{
			name:    "unknown key is rejected",
			yaml:    "model: llama3\nmodle: typo\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "model: [llama3\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(strings.NewReader(tt.yaml))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Model = "llama3"
	cfg.JudgeModel = "llama3"
	cfg.Question = "81"
	return cfg
}

// TestConfig_Validate tests struct-level validation and the configuration
// key reported for each failure.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantKey string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "replay does not need a question",
			mutate: func(c *Config) { c.Question = ""; c.LoadMessages = "messages.json" },
		},
		{
			name:   "prefixed model ids",
			mutate: func(c *Config) { c.Model = "anthropic/claude-sonnet-4"; c.JudgeModel = "hf.co/org/model:Q4" },
		},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantKey: "model"},
		{name: "missing judge model", mutate: func(c *Config) { c.JudgeModel = "" }, wantKey: "judge_model"},
		{name: "model with spaces", mutate: func(c *Config) { c.Model = "llama 3" }, wantKey: "model"},
		{name: "empty provider segment", mutate: func(c *Config) { c.JudgeModel = "openai/" }, wantKey: "judge_model"},
		{name: "no question and no transcripts", mutate: func(c *Config) { c.Question = "" }, wantKey: "question"},
		{name: "zero max turns", mutate: func(c *Config) { c.MaxTurns = 0 }, wantKey: "max_turns"},
		{name: "too much concurrency", mutate: func(c *Config) { c.Concurrency = 64 }, wantKey: "concurrency"},
		{name: "bad output format", mutate: func(c *Config) { c.OutputFormat = "xml" }, wantKey: "output_format"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.DefaultProvider = "cohere" }, wantKey: "llm.default_provider"},
		{name: "negative timeout", mutate: func(c *Config) { c.LLM.Timeout = -time.Second }, wantKey: "llm.timeout"},
		{name: "too many retries", mutate: func(c *Config) { c.LLM.MaxRetries = 50 }, wantKey: "llm.max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			var cerr *domain.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantKey, cerr.Key)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: llama3\njudge_model: qwen2\nquestion: \"1\"\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2", cfg.JudgeModel)
	assert.NoError(t, cfg.Validate())

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLoadEnvironmentWith(t *testing.T) {
	env, err := LoadEnvironmentWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"OLLAMA_HOST":       "http://gpu-box:11434",
		"OPENAI_API_KEY":    "sk-test",
		"ANTHROPIC_API_KEY": "ak-test",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", env.OllamaHost)
	assert.Equal(t, "sk-test", env.OpenAIAPIKey)
	assert.Equal(t, "ak-test", env.AnthropicAPIKey)
	assert.Empty(t, env.GoogleAPIKey)
	assert.Empty(t, env.OpenAIBaseURL)
}
