// Package application runs judge benchmarks: it drives or replays
// conversations with a subject model, has a judge model score every answer,
// and assembles timed results.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// Metric and operation names recorded by Tester.
const (
	OperationConversation = "conversation"
	OperationJudge        = "judge"

	MetricTasks         = "tasks_total"
	MetricTasksInFlight = "tasks_in_flight"
	MetricJudgeRating   = "judge_rating"
)

var errNoQuestionSource = errors.New("a question source is required unless load_messages is set")

// Tester evaluates benchmark tasks. Configuration is checked once by
// NewTester; Run may then be called concurrently.
type Tester struct {
	model       string
	judgeModel  string
	question    string
	concurrency int

	client      ports.ChatClient
	driver      *ConversationDriver
	judge       *JudgePipeline
	transcripts *TranscriptSet
	metrics     ports.MetricsCollector

	inFlight atomic.Int64
}

// TesterOption configures optional Tester collaborators.
type TesterOption func(*Tester)

// WithMetrics records phase durations, ratings and task outcomes.
func WithMetrics(m ports.MetricsCollector) TesterOption {
	return func(t *Tester) {
		if m != nil {
			t.metrics = m
		}
	}
}

// Outcome is the result of one task. Exactly one of Result and Err is set.
type Outcome struct {
	Task   domain.Task
	Result *domain.Result
	Err    error
}

// NewTester validates cfg and prepares everything a run needs before any
// model is called: the judge template is checked, recorded transcripts are
// loaded and the system prompt file is read. Every failure is a
// *domain.ConfigurationError. questions may be nil when replaying.
func NewTester(cfg *Config, client ports.ChatClient, questions ports.QuestionSource, opts ...TesterOption) (*Tester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var format json.RawMessage
	if cfg.JudgeStructuredOutput {
		format = JudgementSchema()
	}
	judge, err := NewJudgePipeline(client, JudgeConfig{
		Model:         cfg.JudgeModel,
		SystemPrompt:  cfg.JudgeSystemPrompt,
		Prompt:        cfg.JudgePrompt,
		Options:       cfg.InferenceOptions,
		PromptOptions: cfg.JudgeInferenceOptions,
		Format:        format,
	})
	if err != nil {
		return nil, err
	}

	t := &Tester{
		model:       cfg.Model,
		judgeModel:  cfg.JudgeModel,
		question:    cfg.Question,
		concurrency: cfg.Concurrency,
		client:      client,
		judge:       judge,
		metrics:     ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(t)
	}

	if cfg.LoadMessages != "" {
		t.transcripts, err = LoadTranscriptsFile(cfg.LoadMessages)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	if questions == nil {
		return nil, domain.NewConfigurationError("questions", errNoQuestionSource)
	}

	var systemPrompt *string
	if cfg.SystemPrompt != "" {
		data, err := os.ReadFile(filepath.Clean(cfg.SystemPrompt))
		if err != nil {
			return nil, domain.NewConfigurationError("system_prompt", fmt.Errorf("failed to read system prompt: %w", err))
		}
		content := string(data)
		systemPrompt = &content
	}

	t.driver = NewConversationDriver(client, questions, ConversationConfig{
		Model:        cfg.Model,
		SystemPrompt: systemPrompt,
		MaxTurns:     cfg.MaxTurns,
		Options:      cfg.InferenceOptions,
	})
	return t, nil
}

// Replaying reports whether tasks use recorded transcripts.
func (t *Tester) Replaying() bool { return t.transcripts != nil }

// Tasks enumerates the run: one task per recorded transcript when
// replaying, otherwise the single configured question.
func (t *Tester) Tasks() []domain.Task {
	if t.transcripts == nil {
		return []domain.Task{{Index: 0, QuestionID: t.question}}
	}

	tasks := make([]domain.Task, t.transcripts.Len())
	for i := range tasks {
		tasks[i] = domain.Task{Index: i, QuestionID: domain.ReplayQuestionID, Replay: true}
	}
	return tasks
}

// Run evaluates one task. The subject model is unloaded between capture and
// judging when it is also the judge and the transcript was driven live.
func (t *Tester) Run(ctx context.Context, task domain.Task) (*domain.Result, error) {
	log := clog.FromContext(ctx).With("task", task.String())
	ctx = clog.WithLogger(ctx, log)

	mode := "live"
	if task.Replay {
		mode = "replay"
	}

	start := time.Now()
	transcript, err := t.transcript(ctx, task)
	if err != nil {
		return nil, err
	}
	messageDuration := time.Since(start)
	t.metrics.RecordLatency(OperationConversation, messageDuration, map[string]string{"mode": mode, "model": t.model})

	if !task.Replay && t.model == t.judgeModel {
		log.Debugf("unloading %s before judging", t.model)
		if err := t.client.Unload(ctx, t.model); err != nil {
			return nil, ports.NewLLMError(t.model, "unload", err)
		}
	}

	start = time.Now()
	replies, err := t.judge.Evaluate(ctx, transcript)
	if err != nil {
		return nil, err
	}
	judgeDuration := time.Since(start)
	t.metrics.RecordLatency(OperationJudge, judgeDuration, map[string]string{"mode": mode, "model": t.judgeModel})

	judgements := make([]domain.Judgement, 0, len(replies))
	for i, reply := range replies {
		j, err := ParseJudgement(i, reply.Content)
		if err != nil {
			return nil, err
		}
		if v, err := j.TotalRating.Float(); err == nil {
			t.metrics.RecordHistogram(MetricJudgeRating, v, map[string]string{"judge_model": t.judgeModel})
		}
		judgements = append(judgements, j)
	}

	result := domain.NewResult(transcript, judgements, messageDuration, judgeDuration)
	log.Infof("judged %d turns in %s", len(judgements), result.WorkDuration)
	return result, nil
}

func (t *Tester) transcript(ctx context.Context, task domain.Task) (domain.Transcript, error) {
	if task.Replay {
		if t.transcripts == nil {
			return nil, fmt.Errorf("%w: no transcripts loaded", domain.ErrTranscriptNotFound)
		}
		return t.transcripts.Get(task.Index)
	}
	if t.driver == nil {
		return nil, errNoQuestionSource
	}
	return t.driver.Drive(ctx, task.QuestionID)
}

// RunAll evaluates every task with at most Concurrency tasks in flight. A
// failed task does not stop the others; its error is kept in its Outcome.
// Outcomes are returned in task order.
func (t *Tester) RunAll(ctx context.Context) []Outcome {
	tasks := t.Tasks()
	outcomes := make([]Outcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(max(t.concurrency, 1))
	for i, task := range tasks {
		g.Go(func() error {
			t.metrics.RecordGauge(MetricTasksInFlight, float64(t.inFlight.Add(1)), nil)
			defer func() {
				t.metrics.RecordGauge(MetricTasksInFlight, float64(t.inFlight.Add(-1)), nil)
			}()

			result, err := t.Run(ctx, task)
			status := "success"
			if err != nil {
				status = "error"
				clog.FromContext(ctx).With("task", task.String()).Errorf("task failed: %v", err)
			}
			t.metrics.RecordCounter(MetricTasks, 1, map[string]string{"status": status})

			outcomes[i] = Outcome{Task: task, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
