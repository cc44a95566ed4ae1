package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/judgebench/internal/domain"
)

// Config is the complete run configuration for a judge benchmark. It is
// decoded from YAML and may be overridden by command-line flags before
// Validate is called.
type Config struct {
	// Model is the subject model that answers the questions.
	Model string `yaml:"model" validate:"required,modelspec"`
	// JudgeModel scores each answer.
	JudgeModel string `yaml:"judge_model" validate:"required,modelspec"`

	// SystemPrompt is a path to a file whose content is prepended as the
	// system message of every driven conversation.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
	// JudgeSystemPrompt replaces the default judge rubric.
	JudgeSystemPrompt string `yaml:"judge_system_prompt,omitempty"`
	// JudgePrompt is a text/template rendered once per (question, answer)
	// pair. It must reference both {{.Question}} and {{.Answer}}.
	JudgePrompt string `yaml:"judge_prompt,omitempty"`

	// InferenceOptions are sent with every subject call and, for
	// compatibility, with every judge call too.
	InferenceOptions map[string]any `yaml:"inference_options,omitempty"`
	// JudgeInferenceOptions are exposed to the judge template as .Options.
	JudgeInferenceOptions map[string]any `yaml:"judge_inference_options,omitempty"`
	// JudgeStructuredOutput asks the judge backend to constrain its reply
	// to the judgement JSON schema.
	JudgeStructuredOutput bool `yaml:"judge_structured_output,omitempty"`

	// Question is the id of the question to drive.
	Question string `yaml:"question,omitempty" validate:"required_without=LoadMessages"`
	// Questions is a path to the question bank.
	Questions string `yaml:"questions,omitempty"`
	// MaxTurns caps how many question turns are driven.
	MaxTurns int `yaml:"max_turns" validate:"min=1"`
	// LoadMessages is a path to a JSON file of recorded transcripts. When
	// set, every transcript is judged and no live conversation is driven.
	LoadMessages string `yaml:"load_messages,omitempty"`

	// Concurrency is the number of tasks evaluated in parallel.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=32"`
	// Output is where the run report is written; "-" means stdout.
	Output string `yaml:"output,omitempty"`
	// OutputFormat selects the report encoding.
	OutputFormat string `yaml:"output_format" validate:"oneof=json yaml"`

	// LLM configures the inference adapters.
	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig configures provider routing and client-side resilience. Every
// feature is disabled at its zero value.
type LLMConfig struct {
	// DefaultProvider serves model ids without a provider prefix.
	DefaultProvider string `yaml:"default_provider,omitempty" validate:"omitempty,oneof=ollama openai anthropic google"`
	// Timeout bounds each inference request.
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"min=0"`
	// RateLimit is the sustained request rate per provider, in requests
	// per second.
	RateLimit float64 `yaml:"rate_limit,omitempty" validate:"min=0"`
	// Burst is the rate limiter bucket size.
	Burst int `yaml:"burst,omitempty" validate:"min=0"`
	// MaxRetries enables retries with exponential backoff for transient
	// provider failures.
	MaxRetries int `yaml:"max_retries,omitempty" validate:"min=0,max=10"`
	// CircuitBreakerFailures opens a per-provider circuit after this many
	// consecutive transient failures.
	CircuitBreakerFailures int `yaml:"circuit_breaker_failures,omitempty" validate:"min=0"`
}

// Environment holds provider endpoints and credentials read from the
// process environment.
type Environment struct {
	OllamaHost      string `env:"OLLAMA_HOST"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
}

// DefaultConfig returns a configuration with every optional field at its
// default.
func DefaultConfig() Config {
	return Config{
		MaxTurns:     1,
		Concurrency:  1,
		Output:       "-",
		OutputFormat: "json",
	}
}

// LoadConfig reads a YAML configuration file without validating it. Fields absent
// from the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, domain.NewConfigurationError("", fmt.Errorf("failed to read config file: %w", err))
	}

	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes a YAML configuration from r without validating it, so
// that callers can apply overrides first. Unknown keys are rejected.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.NewConfigurationError("", fmt.Errorf("YAML decode failed: %w", err))
	}
	return &cfg, nil
}

// Validate checks struct constraints. Template and transcript checks happen
// in NewTester, since they require reading files.
func (c *Config) Validate() error {
	v, err := newConfigValidator()
	if err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.NewConfigurationError(configKey(fe.Namespace()), describeFieldError(fe))
		}
		return domain.NewConfigurationError("", err)
	}
	return nil
}

// LoadEnvironment reads provider settings from the process environment.
func LoadEnvironment(ctx context.Context) (Environment, error) {
	return LoadEnvironmentWith(ctx, envconfig.OsLookuper())
}

// LoadEnvironmentWith reads provider settings through the given lookuper.
func LoadEnvironmentWith(ctx context.Context, lookuper envconfig.Lookuper) (Environment, error) {
	var env Environment
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return Environment{}, fmt.Errorf("failed to process environment: %w", err)
	}
	return env, nil
}
