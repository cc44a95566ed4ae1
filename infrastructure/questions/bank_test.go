package questions

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/judgebench/internal/domain"
	"github.com/ahrav/judgebench/internal/ports"
)

// pngBytes is a minimal payload that sniffs as image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 17)...)

const mtBench = `{"question_id": 81, "category": "writing", "turns": ["Compose a travel blog post.", "Rewrite it starting every sentence with A."]}
{"question_id": 82, "category": "writing", "turns": ["Draft an email."]}

{"question_id": "vision-1", "category": "vision", "turns": ["What is shown?"], "image_urls": ["cat.png"]}
`

func TestLoad_JSONL(t *testing.T) {
	bank, err := Load(strings.NewReader(mtBench), FormatJSONL)
	require.NoError(t, err)

	assert.Equal(t, 3, bank.Len())
	assert.Equal(t, []string{"81", "82", "vision-1"}, bank.IDs())

	q, err := bank.GetQuestion(context.Background(), "81")
	require.NoError(t, err)
	assert.Equal(t, "81", q.ID)
	assert.Equal(t, "writing", q.Category)
	assert.Len(t, q.Turns, 2)
	assert.False(t, q.HasImages())

	vision, err := bank.GetQuestion(context.Background(), "vision-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat.png"}, vision.ImageURLs)
}

func TestLoad_YAML(t *testing.T) {
	bank, err := Load(strings.NewReader(`
- question_id: 1
  category: math
  turns: ["2+2?", "Times 3?"]
- question_id: geo
  turns: ["Capital of Peru?"]
`), FormatYAML)
	require.NoError(t, err)

	q, err := bank.GetQuestion(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2+2?", "Times 3?"}, q.Turns)

	_, err = bank.GetQuestion(context.Background(), "geo")
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
	}{
		{name: "malformed json line", input: `{"question_id": 1, "turns": [`, format: FormatJSONL},
		{name: "missing turns", input: `{"question_id": 1}`, format: FormatJSONL},
		{name: "empty turn", input: `{"question_id": 1, "turns": [""]}`, format: FormatJSONL},
		{name: "missing id", input: `{"turns": ["q"]}`, format: FormatJSONL},
		{name: "boolean id", input: `{"question_id": true, "turns": ["q"]}`, format: FormatJSONL},
		{name: "duplicate id", input: "{\"question_id\": 1, \"turns\": [\"a\"]}\n{\"question_id\": \"1\", \"turns\": [\"b\"]}", format: FormatJSONL},
		{name: "unknown yaml key", input: "- question_id: 1\n  turns: [a]\n  answer: b\n", format: FormatYAML},
		{name: "unsupported format", input: "", format: Format("csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReportsEveryInvalidRecord(t *testing.T) {
	input := strings.Join([]string{
		`{"question_id": 1, "turns": ["a"]}`,
		`{"question_id": 2}`,
		`{"question_id": 1, "turns": ["b"]}`,
	}, "\n")

	_, err := Load(strings.NewReader(input), FormatJSONL)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 2)
	assert.Contains(t, verr.Errors[0], "question 1")
	assert.Contains(t, verr.Errors[1], `duplicate question_id "1"`)
}

func TestBank_GetQuestionNotFound(t *testing.T) {
	bank, err := Load(strings.NewReader(mtBench), FormatJSONL)
	require.NoError(t, err)

	_, err = bank.GetQuestion(context.Background(), "999")
	assert.ErrorIs(t, err, ports.ErrQuestionNotFound)

	var qerr *ports.QuestionError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "999", qerr.QuestionID)

	_, err = bank.GetQuestionImagesBase64(context.Background(), "999")
	assert.ErrorIs(t, err, ports.ErrQuestionNotFound)
}

func TestLoadFile_RelativeImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), pngBytes, 0o600))
	path := filepath.Join(dir, "questions.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(mtBench), 0o600))

	bank, err := LoadFile(path)
	require.NoError(t, err)

	images, err := bank.GetQuestionImagesBase64(context.Background(), "vision-1")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), images[0])

	none, err := bank.GetQuestionImagesBase64(context.Background(), "81")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoadFile_YAMLByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yml")
	require.NoError(t, os.WriteFile(path, []byte("- question_id: 7\n  turns: [hello]\n"), 0o600))

	bank, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, bank.IDs())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestBank_FileURLImages(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "dog.png")
	require.NoError(t, os.WriteFile(imgPath, pngBytes, 0o600))

	bank, err := Load(strings.NewReader(
		`{"question_id": 1, "turns": ["q"], "image_urls": ["file://`+filepath.ToSlash(imgPath)+`"]}`), FormatJSONL)
	require.NoError(t, err)

	images, err := bank.GetQuestionImagesBase64(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestBank_HTTPImagesAreFetchedOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/a.png", "/b.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	bank, err := Load(strings.NewReader(
		`{"question_id": 1, "turns": ["q"], "image_urls": ["`+server.URL+`/a.png", "`+server.URL+`/b.png"]}`),
		FormatJSONL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			images, err := bank.GetQuestionImagesBase64(context.Background(), "1")
			assert.NoError(t, err)
			assert.Len(t, images, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), hits.Load(), "each image is downloaded once")
}

func TestBank_ImageErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/text":
			_, _ = w.Write([]byte("just some text"))
		case "/big.png":
			_, _ = w.Write(append(pngBytes, make([]byte, 1024)...))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tests := []struct {
		name string
		ref  string
		opts []Option
	}{
		{name: "not found", ref: server.URL + "/missing.png"},
		{name: "not an image", ref: server.URL + "/text"},
		{name: "too large", ref: server.URL + "/big.png", opts: []Option{WithMaxImageBytes(64)}},
		{name: "missing file", ref: "does/not/exist.png", opts: []Option{WithBaseDir(t.TempDir())}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithHTTPClient(server.Client())}, tt.opts...)
			bank, err := Load(strings.NewReader(`{"question_id": 1, "turns": ["q"], "image_urls": ["`+tt.ref+`"]}`),
				FormatJSONL, opts...)
			require.NoError(t, err)

			_, err = bank.GetQuestionImagesBase64(context.Background(), "1")
			require.Error(t, err)

			var qerr *ports.QuestionError
			require.ErrorAs(t, err, &qerr)
			assert.Equal(t, "get_images", qerr.Operation)
		})
	}
}

func TestBank_CachedImagesAreCopies(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), pngBytes, 0o600))
	bank, err := Load(strings.NewReader(mtBench), FormatJSONL, WithBaseDir(dir))
	require.NoError(t, err)

	first, err := bank.GetQuestionImagesBase64(context.Background(), "vision-1")
	require.NoError(t, err)
	first[0] = "mutated"

	second, err := bank.GetQuestionImagesBase64(context.Background(), "vision-1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0])
}
