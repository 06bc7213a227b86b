package manifest

import (
	"encoding/json"
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
	"image-resource-cache/internal/render"
	"image-resource-cache/internal/resource"
)

func TestFromBindingsAndWrite(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 4, 2))))
	f.Close()

	c := resource.NewCache()
	c.Start()
	defer c.Close()

	l := logrus.New()
	l.SetOutput(io.Discard)
	loop := render.NewLoop(c, render.NewMemoryUploader(), 0, logrus.NewEntry(l))

	found := binding.New(c, binding.WithBaseDir(dir))
	missing := binding.New(c, binding.WithBaseDir(dir))
	idle := binding.New(c)
	for _, b := range []*binding.Binding{found, missing, idle} {
		defer b.Close()
		loop.Add(b)
	}
	found.Set("a.png")
	missing.Set("gone.png")

	require.Eventually(t, func() bool {
		loop.Frame()
		return found.Ready() && missing.Ready()
	}, 5*time.Second, time.Millisecond, "loads")

	saved := map[string]string{found.ID().String(): "/out/a.webp"}
	entries := FromBindings(loop.Bindings(), saved)
	require.Len(t, entries, 2, "idle binding skipped")

	want := Entry{
		Key:    filepath.Join(dir, "a.png"),
		State:  "loaded",
		Width:  4,
		Height: 2,
		Saved:  "/out/a.webp",
	}
	assert.Equal(t, want, entries[0])
	assert.True(t, entries[1].Empty)
	assert.Zero(t, entries[1].Width)

	path := filepath.Join(dir, "report", "manifest.json")
	require.NoError(t, Write(path, entries))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back []Entry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, entries, back)
}
