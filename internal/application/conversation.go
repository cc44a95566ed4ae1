package application

import (
	"context"
	"fmt"
	"maps"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// ConversationDriver drives the subject model through the turns of a
// question and records the resulting transcript.
type ConversationDriver struct {
	client    ports.ChatClient
	questions ports.QuestionSource

	model        string
	systemPrompt *string
	maxTurns     int
	options      map[string]any
}

// ConversationConfig configures a ConversationDriver.
type ConversationConfig struct {
	// Model is the subject model.
	Model string
	// SystemPrompt is prepended to every transcript when non-nil, even if
	// it points at an empty string. It is content, not a path.
	SystemPrompt *string
	// MaxTurns caps the number of driven turns.
	MaxTurns int
	// Options are the inference options sent with every call.
	Options map[string]any
}

// NewConversationDriver creates a driver. MaxTurns below one is treated as
// one.
func NewConversationDriver(client ports.ChatClient, questions ports.QuestionSource, cfg ConversationConfig) *ConversationDriver {
	maxTurns := cfg.MaxTurns
	if maxTurns < 1 {
		maxTurns = 1
	}
	return &ConversationDriver{
		client:       client,
		questions:    questions,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTurns:     maxTurns,
		options:      maps.Clone(cfg.Options),
	}
}

// Drive runs up to MaxTurns turns of the question and returns the
// transcript. Any failure aborts the conversation.
func (d *ConversationDriver) Drive(ctx context.Context, questionID string) (domain.Transcript, error) {
	log := clog.FromContext(ctx).With("question_id", questionID, "model", d.model)

	question, err := d.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question %s: %w", questionID, err)
	}

	var images []string
	if question.HasImages() {
		images, err = d.questions.GetQuestionImagesBase64(ctx, questionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get images for question %s: %w", questionID, err)
		}
	}

	turns := min(d.maxTurns, len(question.Turns))
	messages := make(domain.Transcript, 0, 1+2*turns)
	if d.systemPrompt != nil {
		messages = append(messages, domain.SystemMessage(*d.systemPrompt))
	}

	for i := range turns {
		log.Debugf("turn #%d", i)

		prompt := question.Turns[i]
		log.Infof("> %s", prompt)
		messages = append(messages, domain.UserMessage(prompt, images...))

		reply, err := d.client.Chat(ctx, ports.ChatRequest{
			Model:    d.model,
			Messages: messages,
			Options:  d.options,
		})
		if err != nil {
			return nil, fmt.Errorf("turn %d of question %s: %w", i, questionID, ports.NewLLMError(d.model, "chat", err))
		}
		log.Infof("< %s", reply.Content)

		messages = append(messages, domain.AssistantMessage(reply.Content))
	}

	return messages, nil
}
