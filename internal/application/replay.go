package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ahrav/judgebench/internal/domain"
)

const loadMessagesKey = "load_messages"

var errNoTranscripts = errors.New("no loaded messages")

// TranscriptSet is an immutable set of recorded transcripts. It is loaded
// once and is safe for concurrent reads.
type TranscriptSet struct {
	transcripts []domain.Transcript
}

// LoadTranscriptsFile reads a transcript set from a JSON file.
func LoadTranscriptsFile(path string) (*TranscriptSet, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, domain.NewConfigurationError(loadMessagesKey, fmt.Errorf("failed to open messages file: %w", err))
	}
	defer f.Close()

	return LoadTranscripts(f)
}

// LoadTranscripts decodes a JSON array of transcripts, each an array of
// messages. Malformed JSON, unknown roles and an empty set are configuration
// errors.
func LoadTranscripts(r io.Reader) (*TranscriptSet, error) {
	var transcripts []domain.Transcript
	dec := json.NewDecoder(r)
	if err := dec.Decode(&transcripts); err != nil {
		return nil, domain.NewConfigurationError(loadMessagesKey, fmt.Errorf("invalid JSON messages file: %w", err))
	}
	if len(transcripts) == 0 {
		return nil, domain.NewConfigurationError(loadMessagesKey, errNoTranscripts)
	}
	return &TranscriptSet{transcripts: transcripts}, nil
}

// Len returns the number of loaded transcripts.
func (s *TranscriptSet) Len() int { return len(s.transcripts) }

// Get returns a copy of transcript i.
func (s *TranscriptSet) Get(i int) (domain.Transcript, error) {
	if i < 0 || i >= len(s.transcripts) {
		return nil, fmt.Errorf("%w: index %d, %d loaded", domain.ErrTranscriptNotFound, i, len(s.transcripts))
	}
	return s.transcripts[i].Clone(), nil
}
