package domain

import "fmt"

// ReplayQuestionID is the question identifier attached to every task that
// replays a loaded transcript. Replayed tasks never consult the question
// source, so they all share this constant tag.
const ReplayQuestionID = "0"

// Question is a benchmark question resolved from a question source.
type Question struct {
	// ID uniquely identifies the question within its source.
	ID string `json:"question_id" yaml:"question_id"`

	// Category is an optional grouping label such as "writing" or "math".
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Turns holds the user prompt for each conversation turn.
	Turns []string `json:"turns" yaml:"turns"`

	// ImageURLs lists images that accompany the question. When present, the
	// images are attached to every user turn.
	ImageURLs []string `json:"image_urls,omitempty" yaml:"image_urls,omitempty"`
}

// HasImages reports whether the question declares image URLs.
func (q Question) HasImages() bool { return len(q.ImageURLs) > 0 }

// Task identifies one unit of evaluation.
type Task struct {
	// Index is the position of the task. For replayed tasks it selects the
	// loaded transcript.
	Index int `json:"index" yaml:"index"`

	// QuestionID is the question to drive. Replayed tasks carry
	// ReplayQuestionID.
	QuestionID string `json:"question_id" yaml:"question_id"`

	// Replay marks tasks that use a loaded transcript instead of a live
	// conversation.
	Replay bool `json:"replay" yaml:"replay"`
}

// String returns a compact identifier for logs.
func (t Task) String() string {
	if t.Replay {
		return fmt.Sprintf("replay#%d", t.Index)
	}
	return fmt.Sprintf("question:%s", t.QuestionID)
}
