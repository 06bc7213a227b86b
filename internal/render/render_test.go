package render

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-resource-cache/internal/binding"
	"image-resource-cache/internal/resource"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestMemoryUploaderReusesTexture(t *testing.T) {
	up := NewMemoryUploader()
	a := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	t1, err := up.Upload(a, nil)
	require.NoError(t, err)
	t2, err := up.Upload(a, t1)
	require.NoError(t, err)
	require.Same(t, t1, t2, "same-size upload reuses the texture")
	assert.Equal(t, 1, t2.(*MemoryTexture).Generation)

	b := image.NewNRGBA(image.Rect(0, 0, 2, 8))
	t3, err := up.Upload(b, t2)
	require.NoError(t, err)
	assert.NotSame(t, t2, t3, "resized upload reused a texture of the wrong size")
	assert.EqualValues(t, 2, up.Live())
	assert.EqualValues(t, 3, up.Uploads())

	t2.Release()
	t2.Release()
	t3.Release()
	assert.EqualValues(t, 0, up.Live())
}

func TestRunStopsWhenDone(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 3, 3))))
	f.Close()

	c := resource.NewCache()
	c.Start()
	defer c.Close()

	up := NewMemoryUploader()
	loop := NewLoop(c, up, 240, quietLog())
	b := binding.New(c, binding.WithBaseDir(dir))
	defer b.Close()
	loop.Add(b)
	b.Set("a.png")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx, b.Ready))
	assert.NotZero(t, loop.Frames())
	assert.EqualValues(t, 1, up.Live())
	assert.Len(t, loop.Bindings(), 1)
}

func TestRunHonoursContext(t *testing.T) {
	c := resource.NewCache()
	defer c.Close()
	loop := NewLoop(c, NewMemoryUploader(), 1000, quietLog())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx, func() bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewLoopClaimsToken(t *testing.T) {
	c := resource.NewCache()
	NewLoop(c, NewMemoryUploader(), 0, quietLog())
	assert.Panics(t, func() { NewLoop(c, NewMemoryUploader(), 0, quietLog()) }, "second loop on one cache")
}
