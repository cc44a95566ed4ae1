// Package domain contains pure, dependency-free domain models and types
// for the benchmarking harness.
package domain

import (
	"fmt"
	"slices"
)

// Role identifies the author of a Message within a Transcript.
// The zero value is not a valid role.
type Role int

// Supported message roles.
const (
	// RoleSystem carries instructions that seed a conversation.
	RoleSystem Role = iota + 1
	// RoleUser carries a prompt sent to a model.
	RoleUser
	// RoleAssistant carries a model's reply.
	RoleAssistant
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole converts a wire name into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "system":
		return RoleSystem, nil
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, fmt.Errorf("unknown message role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so roles serialize as their
// wire names in both JSON and YAML.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid role %d", int(r))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Message is a single entry of a conversation.
type Message struct {
	// Role identifies who produced the message.
	Role Role `json:"role" yaml:"role"`

	// Content is the message text.
	Content string `json:"content" yaml:"content"`

	// Images holds base64-encoded image blobs attached to the message,
	// in the order they should be presented to the model.
	Images []string `json:"images,omitempty" yaml:"images,omitempty"`
}

// SystemMessage builds a message with RoleSystem.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a message with RoleUser and optional images.
func UserMessage(content string, images ...string) Message {
	m := Message{Role: RoleUser, Content: content}
	if len(images) > 0 {
		m.Images = slices.Clone(images)
	}
	return m
}

// AssistantMessage builds a message with RoleAssistant.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Pair is one (prompt, answer) unit extracted from a Transcript.
type Pair struct {
	Prompt Message
	Answer Message
}

// Transcript is the ordered message history of one conversation run. A
// transcript optionally starts with a single system message, followed by
// alternating user and assistant messages.
type Transcript []Message

// Clone returns a deep copy of the transcript.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		out[i] = m
		out[i].Images = slices.Clone(m.Images)
	}
	return out
}

// HasSystemPrompt reports whether the transcript starts with a system message.
func (t Transcript) HasSystemPrompt() bool {
	return len(t) > 0 && t[0].Role == RoleSystem
}

// WithoutSystem returns the transcript with a leading system message removed.
// The returned slice shares storage with t and must not be modified.
func (t Transcript) WithoutSystem() Transcript {
	if t.HasSystemPrompt() {
		return t[1:]
	}
	return t
}

// Pairs splits the non-system portion of the transcript into (prompt, answer)
// pairs by position. A transcript whose non-system portion has odd length, or
// whose pairs are not (user, assistant), is rejected with
// ErrMalformedTranscript.
func (t Transcript) Pairs() ([]Pair, error) {
	body := t.WithoutSystem()
	if len(body)%2 != 0 {
		return nil, fmt.Errorf("%w: %d messages after the system prompt, expected an even count",
			ErrMalformedTranscript, len(body))
	}

	pairs := make([]Pair, 0, len(body)/2)
	for i := 0; i < len(body)/2; i++ {
		prompt, answer := body[2*i], body[2*i+1]
		if prompt.Role != RoleUser || answer.Role != RoleAssistant {
			return nil, fmt.Errorf("%w: pair %d has roles (%s, %s), expected (user, assistant)",
				ErrMalformedTranscript, i, prompt.Role, answer.Role)
		}
		pairs = append(pairs, Pair{Prompt: prompt, Answer: answer})
	}
	return pairs, nil
}

// Turns returns the number of complete (user, assistant) exchanges.
func (t Transcript) Turns() int { return len(t.WithoutSystem()) / 2 }

// AssistantReplies returns the content of every assistant message in order.
func (t Transcript) AssistantReplies() []string {
	var out []string
	for _, m := range t {
		if m.Role == RoleAssistant {
			out = append(out, m.Content)
		}
	}
	return out
}
