package render

import (
	"image"
	"sync/atomic"

	"image-resource-cache/internal/resource"
)

// MemoryTexture is a CPU-side stand-in for a GPU texture.
type MemoryTexture struct {
	Width, Height int
	Pix           []byte
	Generation    int

	owner    *MemoryUploader
	released bool
}

// Release frees the texture once.
func (t *MemoryTexture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.Pix = nil
	t.owner.live.Add(-1)
}

// MemoryUploader copies pixels into MemoryTextures and tracks how many
// are alive, which makes leaks visible in headless runs.
type MemoryUploader struct {
	live    atomic.Int64
	uploads atomic.Int64
}

// NewMemoryUploader creates an uploader with no live textures.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{}
}

// Upload reuses prev when it is one of ours and the size matches.
func (u *MemoryUploader) Upload(pix *image.NRGBA, prev resource.Texture) (resource.Texture, error) {
	u.uploads.Add(1)
	b := pix.Bounds()

	if t, ok := prev.(*MemoryTexture); ok && !t.released && t.owner == u && t.Width == b.Dx() && t.Height == b.Dy() {
		copy(t.Pix, pix.Pix)
		t.Generation++
		return t, nil
	}

	t := &MemoryTexture{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    append([]byte(nil), pix.Pix...),
		owner:  u,
	}
	u.live.Add(1)
	return t, nil
}

// Live returns the number of textures not yet released.
func (u *MemoryUploader) Live() int64 { return u.live.Load() }

// Uploads returns the total number of Upload calls.
func (u *MemoryUploader) Uploads() int64 { return u.uploads.Load() }
