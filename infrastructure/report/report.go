// Package report assembles benchmark outcomes into a run report and renders
// it as JSON, YAML or a console summary table.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/judgebench/internal/domain"
)

// Encoding formats accepted by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// RunConfig is the part of the run configuration recorded in a report.
type RunConfig struct {
	Model        string `json:"model" yaml:"model"`
	JudgeModel   string `json:"judge_model" yaml:"judge_model"`
	Question     string `json:"question,omitempty" yaml:"question,omitempty"`
	MaxTurns     int    `json:"max_turns" yaml:"max_turns"`
	LoadMessages string `json:"load_messages,omitempty" yaml:"load_messages,omitempty"`
	Concurrency  int    `json:"concurrency" yaml:"concurrency"`
}

// Outcome is the result of one task as handed to the report.
type Outcome struct {
	Task   domain.Task
	Result *domain.Result
	Err    error
}

// Report is the persisted record of one benchmark run.
type Report struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Config     RunConfig    `json:"config" yaml:"config"`
	Results    []TaskResult `json:"results" yaml:"results"`
	Errors     []TaskError  `json:"errors,omitempty" yaml:"errors,omitempty"`
	// Summary is absent when no task produced a numeric rating.
	Summary *RatingSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// TaskResult is a successful task with derived statistics.
type TaskResult struct {
	Task       domain.Task    `json:"task" yaml:"task"`
	Result     *domain.Result `json:"result" yaml:"result"`
	MeanRating *float64       `json:"mean_rating,omitempty" yaml:"mean_rating,omitempty"`
	// AnswerDrift holds the normalized edit distance between consecutive
	// assistant replies.
	AnswerDrift []float64 `json:"answer_drift,omitempty" yaml:"answer_drift,omitempty"`
}

// TaskError is a failed task.
type TaskError struct {
	Task  domain.Task `json:"task" yaml:"task"`
	Error string      `json:"error" yaml:"error"`
}

// New builds a report from task outcomes, preserving their order.
func New(cfg RunConfig, startedAt, finishedAt time.Time, outcomes []Outcome) *Report {
	r := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: finishedAt.UTC(),
		Config:     cfg,
		Results:    make([]TaskResult, 0, len(outcomes)),
	}

	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			msg := "no result"
			if o.Err != nil {
				msg = o.Err.Error()
			}
			r.Errors = append(r.Errors, TaskError{Task: o.Task, Error: msg})
			continue
		}

		tr := TaskResult{
			Task:        o.Task,
			Result:      o.Result,
			AnswerDrift: AnswerDrift(o.Result.Messages.AssistantReplies()),
		}
		if mean, ok := o.Result.MeanRating(); ok {
			tr.MeanRating = &mean
		}
		r.Results = append(r.Results, tr)
	}
	r.Summary = summarize(r.Results)
	return r
}

// Failed reports whether any task failed.
func (r *Report) Failed() bool { return len(r.Errors) > 0 }

// Write encodes the report to w in the given format.
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode JSON report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode YAML report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteFile writes the report to path, or to stdout when path is "-" or
// empty.
func WriteFile(path string, r *Report, format string) (err error) {
	if path == "" || path == "-" {
		return Write(os.Stdout, r, format)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", cerr)
		}
	}()

	return Write(f, r, format)
}
