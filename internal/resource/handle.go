package resource

import (
	"errors"
	"sync/atomic"
)

// ErrReleased is returned when a Handle is released a second time.
var ErrReleased = errors.New("resource: handle already released")

// imageRef lets Handle embed *Image without exporting the field, so a
// Handle can only come from Cache.Acquire or Clone.
type imageRef = Image

// Handle owns exactly one reference to a cached Image. It exposes the
// Image's methods and must be released once; copies share the same
// reference, use Clone for an independent one.
type Handle struct {
	*imageRef
	released atomic.Bool
}

// Image returns the shared image the handle refers to.
func (h *Handle) Image() *Image { return h.imageRef }

// Clone takes another reference to the same Image.
func (h *Handle) Clone() *Handle {
	h.cache.retain(h.imageRef)
	return &Handle{imageRef: h.imageRef}
}

// Release drops the reference and returns the remaining count;
// zero means the Image was destroyed.
func (h *Handle) Release() (int, error) {
	if !h.released.CompareAndSwap(false, true) {
		return 0, ErrReleased
	}
	return h.cache.release(h.imageRef), nil
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}
