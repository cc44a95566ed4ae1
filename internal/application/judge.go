package application

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// JudgePipeline asks the judge model to score every (prompt, answer) pair of
// a transcript.
type JudgePipeline struct {
	client ports.ChatClient

	model         string
	systemPrompt  string
	prompt        *template.Template
	options       map[string]any
	promptOptions map[string]any
	format        json.RawMessage
}

// JudgeConfig configures a JudgePipeline.
type JudgeConfig struct {
	// Model is the judge model.
	Model string
	// SystemPrompt is the rubric. Empty selects DefaultJudgeSystemPrompt.
	SystemPrompt string
	// Prompt is the user-message template. Empty selects DefaultJudgePrompt.
	Prompt string
	// Options are sent with every judge call. Callers pass the general
	// inference options here.
	Options map[string]any
	// PromptOptions are exposed to the template as {{.Options}}.
	PromptOptions map[string]any
	// Format constrains the judge reply when set.
	Format json.RawMessage
}

// NewJudgePipeline validates the prompt template and creates a pipeline. A
// template missing the question or answer marker is a configuration error.
func NewJudgePipeline(client ports.ChatClient, cfg JudgeConfig) (*JudgePipeline, error) {
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultJudgeSystemPrompt
	}
	promptText := cfg.Prompt
	if promptText == "" {
		promptText = DefaultJudgePrompt
	}

	tmpl, err := parseJudgeTemplate(promptText)
	if err != nil {
		return nil, domain.NewConfigurationError("judge_prompt", err)
	}

	return &JudgePipeline{
		client:        client,
		model:         cfg.Model,
		systemPrompt:  systemPrompt,
		prompt:        tmpl,
		options:       maps.Clone(cfg.Options),
		promptOptions: maps.Clone(cfg.PromptOptions),
		format:        cfg.Format,
	}, nil
}

// Evaluate returns one raw judge reply per (prompt, answer) pair of the
// transcript, in order. A leading system message is never judged.
func (p *JudgePipeline) Evaluate(ctx context.Context, transcript domain.Transcript) ([]domain.Message, error) {
	log := clog.FromContext(ctx).With("judge_model", p.model)

	pairs, err := transcript.Pairs()
	if err != nil {
		return nil, err
	}

	replies := make([]domain.Message, 0, len(pairs))
	for i, pair := range pairs {
		rendered, err := p.render(i+1, pair)
		if err != nil {
			return nil, fmt.Errorf("failed to render judge prompt for pair %d: %w", i, err)
		}

		log.Debugf("system > %s", p.systemPrompt)
		log.Infof("> %s", rendered)

		reply, err := p.client.Chat(ctx, ports.ChatRequest{
			Model: p.model,
			Messages: []domain.Message{
				domain.SystemMessage(p.systemPrompt),
				domain.UserMessage(rendered),
			},
			Options: p.options,
			Format:  p.format,
		})
		if err != nil {
			return nil, fmt.Errorf("judge call for pair %d: %w", i, ports.NewLLMError(p.model, "judge", err))
		}
		log.Infof("< %s", reply.Content)

		replies = append(replies, reply)
	}
	return replies, nil
}

func (p *JudgePipeline) render(turn int, pair domain.Pair) (string, error) {
	var sb strings.Builder
	err := p.prompt.Execute(&sb, judgePromptData{
		Question: pair.Prompt.Content,
		Answer:   pair.Answer.Content,
		Turn:     turn,
		Options:  p.promptOptions,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
