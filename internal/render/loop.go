// Package render drives bindings from a single frame goroutine and provides
// an in-memory Uploader for headless use.
package render

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"image-resource-cache/internal/binding"
	"image-resource-cache/internal/resource"
)

// Loop owns the cache's RenderToken and updates its bindings once per frame.
// All of its methods must be called from the same goroutine.
type Loop struct {
	cache    *resource.Cache
	tok      *resource.RenderToken
	up       resource.Uploader
	interval time.Duration
	log      *logrus.Entry

	bindings []*binding.Binding
	frames   int64
}

// NewLoop claims the render token of cache. fps caps the frame rate;
// zero means unlimited.
func NewLoop(cache *resource.Cache, up resource.Uploader, fps int, log *logrus.Entry) *Loop {
	interval := time.Nanosecond
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &Loop{
		cache:    cache,
		tok:      cache.ClaimRenderToken(),
		up:       up,
		interval: interval,
		log:      log,
	}
}

// Token returns the render token for direct GPU-side calls.
func (l *Loop) Token() *resource.RenderToken { return l.tok }

// Add registers a binding to be updated every frame.
func (l *Loop) Add(b *binding.Binding) {
	l.bindings = append(l.bindings, b)
}

// Bindings returns the registered bindings.
func (l *Loop) Bindings() []*binding.Binding { return l.bindings }

// Frames returns the number of frames run so far.
func (l *Loop) Frames() int64 { return l.frames }

// Frame runs one frame: every binding is updated, then textures of
// destroyed images are freed.
func (l *Loop) Frame() error {
	var errs []error
	for _, b := range l.bindings {
		if err := b.Update(l.tok, l.up); err != nil {
			errs = append(errs, err)
		}
	}
	if n := l.cache.ReleaseTextures(l.tok); n > 0 {
		l.log.WithField("textures", n).Debug("Released orphaned textures")
	}
	l.frames++
	return errors.Join(errs...)
}

// Run pumps frames until done reports true or ctx ends.
// Frame errors are logged and do not stop the loop.
func (l *Loop) Run(ctx context.Context, done func() bool) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.Frame(); err != nil {
			l.log.WithError(err).Warn("Frame had errors")
		}
		if done != nil && done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
