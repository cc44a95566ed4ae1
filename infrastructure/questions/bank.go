// Package questions provides a file-backed question bank implementing
// ports.QuestionSource.
package questions

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// Format identifies the encoding of a question bank file.
type Format string

// Supported bank formats.
const (
	// FormatJSONL is one JSON object per line, as used by MT-bench.
	FormatJSONL Format = "jsonl"
	// FormatYAML is a YAML list of questions.
	FormatYAML Format = "yaml"
)

// record is the on-disk shape of a question. question_id may be a number or
// a string.
type record struct {
	QuestionID flexibleID `json:"question_id" yaml:"question_id" validate:"required"`
	Category   string     `json:"category" yaml:"category"`
	Turns      []string   `json:"turns" yaml:"turns" validate:"required,min=1,dive,required"`
	ImageURLs  []string   `json:"image_urls" yaml:"image_urls" validate:"omitempty,dive,required"`
}

// flexibleID accepts JSON numbers and strings.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question_id must be a string or a number: %w", err)
	}
	*id = flexibleID(n.String())
	return nil
}

// Bank is an in-memory question bank. Questions are immutable after
// loading; images are fetched lazily and cached per question.
type Bank struct {
	questions map[string]domain.Question
	order     []string

	fetcher *imageFetcher

	// images caches base64-encoded images by question id.
	images   map[string][]string
	imagesMu sync.RWMutex
	// sf prevents concurrent fetches of the same question's images.
	sf singleflight.Group
}

// Option configures a Bank.
type Option func(*Bank)

// WithHTTPClient sets the client used to fetch http(s) image URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bank) {
		if c != nil {
			b.fetcher.client = c
		}
	}
}

// WithBaseDir sets the directory relative image paths resolve against.
func WithBaseDir(dir string) Option {
	return func(b *Bank) { b.fetcher.baseDir = dir }
}

// WithMaxImageBytes caps the size of a single fetched image.
func WithMaxImageBytes(n int64) Option {
	return func(b *Bank) {
		if n > 0 {
			b.fetcher.maxBytes = n
		}
	}
}

// LoadFile loads a bank from path. The format follows the extension:
// .yaml and .yml are YAML, anything else is JSONL. Relative image paths
// resolve against the file's directory unless WithBaseDir is given.
func LoadFile(path string, opts ...Option) (*Bank, error) {
	clean := filepath.Clean(path)
	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to open question bank: %w", err)
	}
	defer f.Close()

	format := FormatJSONL
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	opts = append([]Option{WithBaseDir(filepath.Dir(clean))}, opts...)
	return Load(f, format, opts...)
}

// Load reads a bank in the given format.
func Load(r io.Reader, format Format, opts ...Option) (*Bank, error) {
	var (
		records []record
		err     error
	)
	switch format {
	case FormatJSONL:
		records, err = decodeJSONL(r)
	case FormatYAML:
		records, err = decodeYAML(r)
	default:
		return nil, fmt.Errorf("unsupported question bank format %q", format)
	}
	if err != nil {
		return nil, err
	}

	b := &Bank{
		questions: make(map[string]domain.Question, len(records)),
		order:     make([]string, 0, len(records)),
		fetcher: &imageFetcher{
			client:   &http.Client{Timeout: 30 * time.Second},
			maxBytes: defaultMaxImageBytes,
		},
		images: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(b)
	}

	v := validator.New()
	problems := domain.NewValidationError("question bank")
	for i, rec := range records {
		if err := v.Struct(rec); err != nil {
			problems.AddError(fmt.Sprintf("question %d: %v", i, describe(err)))
			continue
		}
		id := string(rec.QuestionID)
		if _, dup := b.questions[id]; dup {
			problems.AddError(fmt.Sprintf("question %d: duplicate question_id %q", i, id))
			continue
		}
		b.questions[id] = domain.Question{
			ID:        id,
			Category:  rec.Category,
			Turns:     rec.Turns,
			ImageURLs: rec.ImageURLs,
		}
		b.order = append(b.order, id)
	}
	if problems.HasErrors() {
		return nil, problems
	}
	return b, nil
}

func decodeJSONL(r io.Reader) ([]record, error) {
	var records []record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid question: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	return records, nil
}

func decodeYAML(r io.Reader) ([]record, error) {
	var records []record
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML question bank: %w", err)
	}
	return records, nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
	}
	return err
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.order) }

// IDs returns the question ids in file order.
func (b *Bank) IDs() []string { return append([]string(nil), b.order...) }

// GetQuestion implements ports.QuestionSource.
func (b *Bank) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	q, ok := b.questions[id]
	if !ok {
		return domain.Question{}, ports.NewQuestionError(id, "get_question",
			fmt.Errorf("%w: %s", ports.ErrQuestionNotFound, id))
	}
	return q, nil
}

// GetQuestionImagesBase64 implements ports.QuestionSource. Images are
// fetched once per question; concurrent callers share the fetch.
func (b *Bank) GetQuestionImagesBase64(ctx context.Context, id string) ([]string, error) {
	q, err := b.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.HasImages() {
		return nil, nil
	}

	if images, ok := b.cachedImages(id); ok {
		return images, nil
	}

	v, err, _ := b.sf.Do(id, func() (any, error) {
		if images, ok := b.cachedImages(id); ok {
			return images, nil
		}

		images := make([]string, 0, len(q.ImageURLs))
		for _, ref := range q.ImageURLs {
			encoded, err := b.fetcher.fetchBase64(ctx, ref)
			if err != nil {
				return nil, ports.NewQuestionError(id, "get_images", err)
			}
			images = append(images, encoded)
		}

		b.imagesMu.Lock()
		b.images[id] = images
		b.imagesMu.Unlock()
		return images, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}

func (b *Bank) cachedImages(id string) ([]string, bool) {
	b.imagesMu.RLock()
	defer b.imagesMu.RUnlock()
	images, ok := b.images[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), images...), true
}

var _ ports.QuestionSource = (*Bank)(nil)
