package questions

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMaxImageBytes int64 = 20 << 20

// imageFetcher resolves image references to base64 strings. A reference is
// an http(s) URL, a file:// URL or a filesystem path.
type imageFetcher struct {
	client   *http.Client
	baseDir  string
	maxBytes int64
}

func (f *imageFetcher) fetchBase64(ctx context.Context, ref string) (string, error) {
	data, err := f.fetch(ctx, ref)
	if err != nil {
		return "", err
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("image %s is %s, not an image", ref, mt.String())
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *imageFetcher) fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.fetchHTTP(ctx, ref)
		case "file":
			return f.readFile(u.Path)
		}
	}

	path := ref
	if !filepath.IsAbs(path) && f.baseDir != "" {
		path = filepath.Join(f.baseDir, path)
	}
	return f.readFile(path)
}

func (f *imageFetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image %s: status %d", ref, resp.StatusCode)
	}
	return f.readLimited(resp.Body, ref)
}

func (f *imageFetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()
	return f.readLimited(file, path)
}

func (f *imageFetcher) readLimited(r io.Reader, ref string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", ref, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", ref, f.maxBytes)
	}
	return data, nil
}
