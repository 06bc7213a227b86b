package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source errors.
var (
	// ErrMissing is returned by a Source when the resource does not exist.
	ErrMissing = errors.New("resource: missing source")
	// ErrTooLarge is returned when a remote body is longer than HTTPSource.MaxBytes.
	ErrTooLarge = errors.New("resource: body too large")
)

// Source opens the encoded bytes of a resource.
type Source interface {
	Open(ctx context.Context, key Key) (io.ReadCloser, error)
}

// FileSource reads local files.
type FileSource struct{}

// Open checks that the file exists before opening it.
func (FileSource) Open(_ context.Context, key Key) (io.ReadCloser, error) {
	info, err := os.Stat(string(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, key)
		}
		return nil, fmt.Errorf("resource: stat %s: %w", key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMissing, key)
	}

	f, err := os.Open(string(key))
	if err != nil {
		return nil, fmt.Errorf("resource: open %s: %w", key, err)
	}
	return f, nil
}

// HTTPSource fetches remote resources with a plain GET.
type HTTPSource struct {
	Client    *http.Client
	UserAgent string
	// MaxBytes caps the body size; zero means unlimited.
	MaxBytes int64
}

// NewHTTPSource returns an HTTPSource whose client times out after timeout.
func NewHTTPSource(timeout time.Duration, userAgent string, maxBytes int64) *HTTPSource {
	return &HTTPSource{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		MaxBytes:  maxBytes,
	}
}

// Open issues the request; any non-2xx status is reported as ErrMissing.
func (s *HTTPSource) Open(ctx context.Context, key Key) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(key), nil)
	if err != nil {
		return nil, fmt.Errorf("resource: request %s: %w", key, err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource: fetch %s: %w", key, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %s", ErrMissing, key, resp.Status)
	}

	if s.MaxBytes > 0 {
		if resp.ContentLength > s.MaxBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s: %d bytes exceeds %d", ErrTooLarge, key, resp.ContentLength, s.MaxBytes)
		}
		return &limitedBody{body: resp.Body, key: key, max: s.MaxBytes}, nil
	}
	return resp.Body, nil
}

// limitedBody fails with ErrTooLarge once more than max bytes are read.
type limitedBody struct {
	body io.ReadCloser
	key  Key
	max  int64
	read int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.read > b.max {
		return 0, b.tooLarge()
	}
	if rem := b.max + 1 - b.read; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := b.body.Read(p)
	b.read += int64(n)
	if b.read > b.max {
		return n, b.tooLarge()
	}
	return n, err
}

func (b *limitedBody) tooLarge() error {
	return fmt.Errorf("%w: %s: body exceeds %d bytes", ErrTooLarge, b.key, b.max)
}

func (b *limitedBody) Close() error { return b.body.Close() }
