package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"image-resource-cache/internal/texture"
)

// State is the load state of an Image. It only moves forward.
type State int32

const (
	Unloaded State = iota
	Queued
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Queued:
		return "queued"
	case Loaded:
		return "loaded"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Image is one cached resource. All holders of the same key share it,
// including its payload: transforms requested by one holder are seen by all.
type Image struct {
	key   Key
	cache *Cache

	// refs is guarded by cache.mu.
	refs int

	queued atomic.Bool
	state  atomic.Int32

	mu         sync.Mutex
	pix        *image.NRGBA
	tex        Texture
	dirty      bool
	pending    [numStages]Transform
	saveTarget string
}

// Key returns the resource key.
func (img *Image) Key() Key { return img.key }

// State returns the current load state.
func (img *Image) State() State { return State(img.state.Load()) }

// Loaded reports whether the loader has finished with the resource.
// A loaded resource may still be empty.
func (img *Image) Loaded() bool { return img.State() == Loaded }

// RequestLoad schedules the resource on the local or remote queue.
// Only the first call on an instance has an effect.
func (img *Image) RequestLoad() {
	if !img.queued.CompareAndSwap(false, true) {
		return
	}
	img.cache.enqueue(img)
}

// performLoad runs on a loader goroutine. It always ends Loaded and drops
// the reference taken when the image was queued.
func (img *Image) performLoad(ctx context.Context, src Source, decode DecodeFunc, log *logrus.Entry) {
	defer img.cache.release(img)

	if img.Loaded() {
		return
	}

	pix, err := fetch(ctx, src, decode, img.key)
	switch {
	case errors.Is(err, ErrMissing):
		log.WithField("key", img.key).Debug("Resource missing, left empty")
	case err != nil:
		log.WithError(err).WithField("key", img.key).Warn("Resource load failed, left empty")
	default:
		log.WithFields(logrus.Fields{
			"key":    img.key,
			"width":  pix.Bounds().Dx(),
			"height": pix.Bounds().Dy(),
		}).Debug("Resource loaded")
	}

	img.mu.Lock()
	img.pix = pix
	img.dirty = pix != nil
	img.mu.Unlock()

	img.state.Store(int32(Loaded))
}

func fetch(ctx context.Context, src Source, decode DecodeFunc, key Key) (*image.NRGBA, error) {
	rc, err := src.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", key, err)
	}
	pix, err := decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("resource: decode %s: %w", key, err)
	}
	return pix, nil
}

// markAbandoned finishes an image that will never reach a loader.
func (img *Image) markAbandoned() {
	img.state.Store(int32(Loaded))
}

// RequestTransform sets the pending transform of t's kind, replacing an
// earlier request of the same kind.
func (img *Image) RequestTransform(t Transform) {
	if t == nil {
		return
	}
	img.mu.Lock()
	img.pending[t.stage()] = t
	img.mu.Unlock()
}

// RequestSave asks the render goroutine to write the payload to path.
func (img *Image) RequestSave(path string) {
	img.mu.Lock()
	img.saveTarget = path
	img.mu.Unlock()
}

// EnsureUploaded applies the pending transforms and uploads the payload when
// it is not resident or has changed. Render goroutine only.
func (img *Image) EnsureUploaded(tok *RenderToken, up Uploader) error {
	img.cache.checkToken(tok)
	if !img.Loaded() {
		return nil
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	pending := img.pending
	img.pending = [numStages]Transform{}
	for stage, t := range pending {
		if t == nil || (img.pix == nil && stage != stageCapture) {
			continue
		}
		out, err := t.apply(img.pix)
		if err != nil {
			return err
		}
		if out != img.pix {
			img.pix = out
			img.dirty = true
		}
	}

	if img.pix == nil {
		return nil
	}
	if img.tex != nil && !img.dirty {
		return nil
	}

	tex, err := up.Upload(img.pix, img.tex)
	if err != nil {
		return fmt.Errorf("resource: upload %s: %w", img.key, err)
	}
	if img.tex != nil && tex != img.tex {
		img.tex.Release()
	}
	img.tex = tex
	img.dirty = false
	return nil
}

// ApplySave writes the payload to the pending save target.
// It returns the target and true when a file was written. Render goroutine only.
func (img *Image) ApplySave(tok *RenderToken) (string, bool, error) {
	img.cache.checkToken(tok)
	if !img.Loaded() {
		return "", false, nil
	}

	img.mu.Lock()
	path, pix := img.saveTarget, img.pix
	img.saveTarget = ""
	img.mu.Unlock()

	if path == "" {
		return "", false, nil
	}
	if pix == nil {
		return path, false, fmt.Errorf("resource: save %s: %w", img.key, texture.ErrEmpty)
	}
	if err := texture.Save(path, pix); err != nil {
		return path, false, err
	}
	return path, true, nil
}

// Allocate gives a loaded but empty resource a blank w×h payload so it can
// be drawn into. It reports whether a payload was created. Render goroutine only.
func (img *Image) Allocate(tok *RenderToken, w, h int) bool {
	img.cache.checkToken(tok)
	if !img.Loaded() {
		return false
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	if img.pix != nil {
		return false
	}
	img.pix = texture.Blank(w, h)
	img.dirty = true
	return true
}

// SetColor overwrites one pixel; the position is clamped to the image.
// Render goroutine only.
func (img *Image) SetColor(tok *RenderToken, p image.Point, c color.Color) {
	img.cache.checkToken(tok)
	if !img.Loaded() {
		return
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	if img.pix == nil {
		return
	}
	texture.SetColor(img.pix, p, c)
	img.dirty = true
}

// ColorAt reads one pixel; the position is clamped to the image.
// The second result is false while the resource is not loaded or empty.
func (img *Image) ColorAt(p image.Point) (color.NRGBA, bool) {
	if !img.Loaded() {
		return color.NRGBA{}, false
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	if img.pix == nil {
		return color.NRGBA{}, false
	}
	return texture.ColorAt(img.pix, p), true
}

// Clear drops the payload and its texture. Render goroutine only.
func (img *Image) Clear(tok *RenderToken) {
	img.cache.checkToken(tok)

	img.mu.Lock()
	defer img.mu.Unlock()

	if img.tex != nil {
		img.tex.Release()
		img.tex = nil
	}
	img.pix = nil
	img.dirty = false
}

// Size returns the payload dimensions, zero when empty.
func (img *Image) Size() (int, int) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.pix == nil {
		return 0, 0
	}
	b := img.pix.Bounds()
	return b.Dx(), b.Dy()
}

// Empty reports whether the resource has no payload.
func (img *Image) Empty() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.pix == nil
}

// Pixels returns the shared payload. Callers must not modify it.
func (img *Image) Pixels() *image.NRGBA {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.pix
}

// Texture returns the uploaded texture, nil if none.
func (img *Image) Texture() Texture {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.tex
}

// destroy drops the payload. The texture is parked for the render goroutine.
// Called with cache.mu held.
func (img *Image) destroy() {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.tex != nil {
		img.cache.orphans = append(img.cache.orphans, img.tex)
		img.tex = nil
	}
	img.pix = nil
	img.pending = [numStages]Transform{}
	img.saveTarget = ""
}
