package testutils

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// MockQuestionSource is an in-memory ports.QuestionSource.
type MockQuestionSource struct {
	mu        sync.Mutex
	questions map[string]domain.Question
	images    map[string][]string

	questionCalls []string
	imageCalls    []string
}

// NewMockQuestionSource creates a source holding the given questions.
func NewMockQuestionSource(questions ...domain.Question) *MockQuestionSource {
	s := &MockQuestionSource{
		questions: make(map[string]domain.Question, len(questions)),
		images:    make(map[string][]string),
	}
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return s
}

// SetImages sets the base64 images returned for question id.
func (s *MockQuestionSource) SetImages(id string, images ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id] = slices.Clone(images)
}

// GetQuestion implements ports.QuestionSource.
func (s *MockQuestionSource) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionCalls = append(s.questionCalls, id)

	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, ports.NewQuestionError(id, "get_question",
			fmt.Errorf("%w: %s", ports.ErrQuestionNotFound, id))
	}
	return q, nil
}

// GetQuestionImagesBase64 implements ports.QuestionSource.
func (s *MockQuestionSource) GetQuestionImagesBase64(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageCalls = append(s.imageCalls, id)

	if _, ok := s.questions[id]; !ok {
		return nil, ports.NewQuestionError(id, "get_images",
			fmt.Errorf("%w: %s", ports.ErrQuestionNotFound, id))
	}
	return slices.Clone(s.images[id]), nil
}

// QuestionCalls returns the ids passed to GetQuestion.
func (s *MockQuestionSource) QuestionCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.questionCalls)
}

// ImageCalls returns the ids passed to GetQuestionImagesBase64.
func (s *MockQuestionSource) ImageCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.imageCalls)
}

var _ ports.QuestionSource = (*MockQuestionSource)(nil)
