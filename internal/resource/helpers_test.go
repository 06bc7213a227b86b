package resource

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, dir, name string, w, h int) Key {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngBytes(t, w, h), 0644))
	return Key(path)
}

// memSource serves fixed bytes per key and counts opens.
type memSource struct {
	mu    sync.Mutex
	data  map[Key][]byte
	opens map[Key]int
}

func newMemSource() *memSource {
	return &memSource{data: make(map[Key][]byte), opens: make(map[Key]int)}
}

func (s *memSource) put(k Key, b []byte) {
	s.mu.Lock()
	s.data[k] = b
	s.mu.Unlock()
}

func (s *memSource) Open(_ context.Context, k Key) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens[k]++
	b, ok := s.data[k]
	if !ok {
		return nil, ErrMissing
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memSource) openCount(k Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[k]
}

// gateSource blocks every Open until the gate is closed or ctx is done.
type gateSource struct {
	inner   Source
	gate    chan struct{}
	entered chan Key
}

func newGateSource(inner Source) *gateSource {
	return &gateSource{inner: inner, gate: make(chan struct{}), entered: make(chan Key, 16)}
}

func (s *gateSource) Open(ctx context.Context, k Key) (io.ReadCloser, error) {
	s.entered <- k
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.inner.Open(ctx, k)
}

type fakeTexture struct {
	id       int
	released atomic.Bool
}

func (t *fakeTexture) Release() { t.released.Store(true) }

type fakeUploader struct {
	uploads int
}

func (u *fakeUploader) Upload(_ *image.NRGBA, prev Texture) (Texture, error) {
	u.uploads++
	if prev != nil {
		return prev, nil
	}
	return &fakeTexture{id: u.uploads}, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, "timed out waiting for %s", what)
}

func refs(c *Cache, img *Image) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return img.refs
}

// waitLoads waits until the loaders have finished n items, queue
// references included.
func waitLoads(t *testing.T, c *Cache, n int64) {
	t.Helper()
	local, remote := c.Loaders()
	waitFor(t, "loads", func() bool { return local.Done()+remote.Done() >= n })
}
