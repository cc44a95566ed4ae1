package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rating is a judge's total_rating exactly as it appeared in the judge output.
// Judges emit either a JSON number or a numeric string; the text is kept
// verbatim so that "70" stays "70".
type Rating struct {
	text   string
	quoted bool
}

// NewRating creates a Rating from its textual form. quoted records whether
// the judge emitted it as a JSON string.
func NewRating(text string, quoted bool) Rating {
	return Rating{text: text, quoted: quoted}
}

// String returns the rating text without JSON quoting.
func (r Rating) String() string { return r.text }

// IsZero reports whether the rating was never set. A judge that emitted
// "" set it.
func (r Rating) IsZero() bool { return r.text == "" && !r.quoted }

// Float parses the rating as a number.
func (r Rating) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.text), 64)
	if err != nil {
		return 0, fmt.Errorf("rating %q is not numeric: %w", r.text, err)
	}
	return v, nil
}

// MarshalJSON emits the rating in the form the judge used.
func (r Rating) MarshalJSON() ([]byte, error) {
	switch {
	case r.quoted:
		return json.Marshal(r.text)
	case r.text == "":
		return []byte("null"), nil
	default:
		return []byte(r.text), nil
	}
}

// UnmarshalJSON accepts a JSON string or a JSON number.
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("total_rating must be a string or a number, got %s", string(data))
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Rating{text: s, quoted: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("total_rating must be a string or a number: %w", err)
	}
	*r = Rating{text: n.String()}
	return nil
}

// MarshalYAML emits numeric ratings as YAML numbers and quoted ratings as
// YAML strings.
func (r Rating) MarshalYAML() (any, error) {
	if r.quoted {
		return r.text, nil
	}
	if r.IsZero() {
		return nil, nil
	}
	if v, err := r.Float(); err == nil {
		return v, nil
	}
	return r.text, nil
}

// Judgement is the structured verdict a judge model returns for one
// (prompt, answer) pair.
type Judgement struct {
	// Evaluation is the judge's rationale for the rating.
	Evaluation string `json:"evaluation" yaml:"evaluation"`

	// TotalRating is the score, nominally between 1 and 100.
	TotalRating Rating `json:"total_rating" yaml:"total_rating"`

	// Feedback describes how the answer could be improved.
	Feedback string `json:"feedback" yaml:"feedback"`
}

// Result is the outcome of evaluating one task.
type Result struct {
	// Messages is the transcript that was judged.
	Messages Transcript

	// Judgements holds one judgement per (prompt, answer) pair, in order.
	Judgements []Judgement

	// MessageDuration is the time spent obtaining the transcript.
	MessageDuration time.Duration

	// JudgeDuration is the time spent running the judge model.
	JudgeDuration time.Duration

	// WorkDuration is always MessageDuration + JudgeDuration.
	WorkDuration time.Duration
}

// NewResult assembles a Result. WorkDuration is derived, never measured.
func NewResult(messages Transcript, judgements []Judgement, messageDuration, judgeDuration time.Duration) *Result {
	return &Result{
		Messages:        messages,
		Judgements:      judgements,
		MessageDuration: messageDuration,
		JudgeDuration:   judgeDuration,
		WorkDuration:    messageDuration + judgeDuration,
	}
}

// resultDocument is the serialized shape of a Result. Durations are
// expressed in seconds.
type resultDocument struct {
	Messages        Transcript  `json:"messages" yaml:"messages"`
	Judgements      []Judgement `json:"judgements" yaml:"judgements"`
	MessageDuration float64     `json:"message_duration" yaml:"message_duration"`
	JudgeDuration   float64     `json:"judge_duration" yaml:"judge_duration"`
	WorkDuration    float64     `json:"work_duration" yaml:"work_duration"`
}

func (r *Result) document() resultDocument {
	return resultDocument{
		Messages:        r.Messages,
		Judgements:      r.Judgements,
		MessageDuration: r.MessageDuration.Seconds(),
		JudgeDuration:   r.JudgeDuration.Seconds(),
		WorkDuration:    r.WorkDuration.Seconds(),
	}
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) { return json.Marshal(r.document()) }

// MarshalYAML implements yaml.Marshaler.
func (r *Result) MarshalYAML() (any, error) { return r.document(), nil }

// MeanRating averages the numeric ratings of the result's judgements.
// Ratings that are not numeric are skipped; ok is false when none parse.
func (r *Result) MeanRating() (mean float64, ok bool) {
	var sum float64
	var n int
	for _, j := range r.Judgements {
		v, err := j.TotalRating.Float()
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
