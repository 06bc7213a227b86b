// Package binding implements the per-instance consumer of the resource
// cache: one displayed image, a set of reserved images, and the per-frame
// update that polls loads, applies edits and reports size/saved/monitor
// changes.
package binding

import (
	"image"
	"image/color"
	"io"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"image-resource-cache/internal/resource"
)

// Binding is safe for concurrent use, but Update and the methods taking a
// RenderToken must run on the render goroutine.
type Binding struct {
	id      uuid.UUID
	cache   *resource.Cache
	baseDir string
	notify  func(Event)
	log     *logrus.Entry

	canvasW, canvasH int

	mu       sync.Mutex
	want     resource.Key
	shown    resource.Key
	active   *resource.Handle
	reserved []*resource.Handle
	resize   resource.Transform
	crop     resource.Transform
	capture  resource.Transform
	save     string
	monitor  bool
	stats    resource.Stats
	width    int
	height   int
	ready    bool
	closed   bool
}

// Option configures a Binding.
type Option func(*Binding)

// WithBaseDir resolves relative keys and save paths against dir.
func WithBaseDir(dir string) Option {
	return func(b *Binding) { b.baseDir = dir }
}

// WithNotify registers the receiver of size, saved and monitor events.
func WithNotify(fn func(Event)) Option {
	return func(b *Binding) { b.notify = fn }
}

// WithCanvas gives loaded-but-empty images a blank w×h payload so they
// can be captured into. A zero height means square.
func WithCanvas(w, h int) Option {
	return func(b *Binding) { b.canvasW, b.canvasH = w, h }
}

// WithLogger sets the log entry.
func WithLogger(l *logrus.Entry) Option {
	return func(b *Binding) { b.log = l }
}

// New creates a binding on cache with nothing displayed.
func New(cache *resource.Cache, opts ...Option) *Binding {
	b := &Binding{
		id:     uuid.New(),
		cache:  cache,
		notify: func(Event) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.log = logrus.NewEntry(l)
	}
	b.log = b.log.WithField("binding", b.id.String())
	return b
}

// ID returns the binding's unique id.
func (b *Binding) ID() uuid.UUID { return b.id }

// Set selects the image to display. The swap happens at the next Update.
func (b *Binding) Set(name string) {
	key := resource.NewKey(name, b.baseDir)
	if key == "" {
		return
	}
	b.mu.Lock()
	b.want = key
	if key != b.shown {
		b.ready = false
	}
	b.mu.Unlock()
}

// Key returns the key currently displayed.
func (b *Binding) Key() resource.Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shown
}

// Active returns the displayed handle, nil before the first Update after Set.
func (b *Binding) Active() *resource.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Reserve pins name in the cache and starts loading it.
// Reserving a key twice keeps a single reference.
func (b *Binding) Reserve(name string) {
	key := resource.NewKey(name, b.baseDir)
	if key == "" {
		return
	}
	h := b.cache.Acquire(key)
	h.RequestLoad()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.indexOf(h.Image()) >= 0 {
		h.Release()
		return
	}
	b.reserved = append(b.reserved, h)
	b.log.WithField("key", key).Debug("Reserved")
}

// Unreserve drops the reservation for name; unknown keys are ignored.
func (b *Binding) Unreserve(name string) {
	key := resource.NewKey(name, b.baseDir)
	img, ok := b.cache.Find(key)
	if !ok {
		return
	}

	b.mu.Lock()
	i := b.indexOf(img)
	if i < 0 {
		b.mu.Unlock()
		return
	}
	h := b.reserved[i]
	b.reserved = slices.Delete(b.reserved, i, i+1)
	b.mu.Unlock()

	h.Release()
	b.log.WithField("key", key).Debug("Unreserved")
}

// UnreserveAll drops every reservation.
func (b *Binding) UnreserveAll() {
	b.mu.Lock()
	hs := b.reserved
	b.reserved = nil
	b.mu.Unlock()

	for _, h := range hs {
		h.Release()
	}
}

// Reserved returns the reserved keys in reservation order.
func (b *Binding) Reserved() []resource.Key {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]resource.Key, len(b.reserved))
	for i, h := range b.reserved {
		keys[i] = h.Key()
	}
	return keys
}

func (b *Binding) indexOf(img *resource.Image) int {
	return slices.IndexFunc(b.reserved, func(h *resource.Handle) bool { return h.Image() == img })
}

// Resize requests a resize of the displayed image. The edit is shared by
// every holder of the key. Resize, crop and capture requests are kept
// separately and applied in that order.
func (b *Binding) Resize(w, h int) {
	b.mu.Lock()
	b.resize = resource.Resize{W: w, H: h}
	b.ready = false
	b.mu.Unlock()
}

// Crop requests a crop of the displayed image.
func (b *Binding) Crop(x, y, w, h int) {
	b.mu.Lock()
	b.crop = resource.Crop{Rect: image.Rect(x, y, x+w, y+h)}
	b.ready = false
	b.mu.Unlock()
}

// Capture requests that the displayed image be replaced by a framebuffer region.
func (b *Binding) Capture(fb resource.Framebuffer, r image.Rectangle) {
	b.mu.Lock()
	b.capture = resource.Capture{Source: fb, Rect: r}
	b.ready = false
	b.mu.Unlock()
}

// Save requests that the displayed image be written to path once loaded.
// The request stays with the binding, so a Set before the load finishes
// moves it to the new image.
func (b *Binding) Save(path string) {
	if path == "" {
		return
	}
	if !filepath.IsAbs(path) && b.baseDir != "" {
		path = filepath.Join(b.baseDir, path)
	}
	b.mu.Lock()
	b.save = path
	b.ready = false
	b.mu.Unlock()
}

// SetMonitor enables monitor events.
func (b *Binding) SetMonitor(on bool) {
	b.mu.Lock()
	b.monitor = on
	b.mu.Unlock()
}

// SetColor writes one pixel of the displayed image.
func (b *Binding) SetColor(tok *resource.RenderToken, p image.Point, c color.Color) {
	if h := b.Active(); h != nil {
		h.SetColor(tok, p, c)
	}
}

// ColorAt reads one pixel of the displayed image.
func (b *Binding) ColorAt(p image.Point) (color.NRGBA, bool) {
	if h := b.Active(); h != nil {
		return h.ColorAt(p)
	}
	return color.NRGBA{}, false
}

// Clear empties the displayed image.
func (b *Binding) Clear(tok *resource.RenderToken) {
	if h := b.Active(); h != nil {
		h.Clear(tok)
	}
}

// Size returns the size last reported for the displayed image.
func (b *Binding) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// Ready reports whether the last Update saw the displayed image loaded
// with all requested edits and saves applied.
func (b *Binding) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Close releases the displayed image and every reservation.
// Calling Close more than once is a no-op.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	active := b.active
	b.active = nil
	b.mu.Unlock()

	if active != nil {
		active.Release()
	}
	b.UnreserveAll()
}
