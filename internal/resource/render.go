package resource

import (
	"fmt"
	"image"

	"image-resource-cache/internal/texture"
)

// Texture is a GPU-resident copy of an image payload.
// Release must only be called on the render goroutine.
type Texture interface {
	Release()
}

// Uploader moves decoded pixels to the GPU.
// Upload may update prev in place and return it; if it returns a different
// texture the caller releases prev.
type Uploader interface {
	Upload(pix *image.NRGBA, prev Texture) (Texture, error)
}

// Framebuffer is a render target whose pixels can be captured into a resource.
type Framebuffer interface {
	ReadPixels(r image.Rectangle) (*image.NRGBA, error)
}

// RenderToken is the capability to touch GPU state. Each Cache hands out
// exactly one, to the goroutine that runs the frame loop.
type RenderToken struct {
	cache *Cache
}

// Transform is a pending destructive edit of a resource payload.
// It runs on the render goroutine during EnsureUploaded.
//
// An image holds one pending edit per kind. In a single upload they run
// in the order resize, crop, capture.
type Transform interface {
	stage() int
	apply(pix *image.NRGBA) (*image.NRGBA, error)
}

const (
	stageResize = iota
	stageCrop
	stageCapture
	numStages
)

// Resize scales the payload to W×H.
type Resize struct {
	W, H int
}

func (Resize) stage() int { return stageResize }

func (t Resize) apply(pix *image.NRGBA) (*image.NRGBA, error) {
	return texture.Resize(pix, t.W, t.H), nil
}

// Crop keeps the part of the payload inside Rect.
type Crop struct {
	Rect image.Rectangle
}

func (Crop) stage() int { return stageCrop }

func (t Crop) apply(pix *image.NRGBA) (*image.NRGBA, error) {
	return texture.Crop(pix, t.Rect), nil
}

// Capture replaces the payload with pixels read from a framebuffer.
type Capture struct {
	Source Framebuffer
	Rect   image.Rectangle
}

func (Capture) stage() int { return stageCapture }

func (t Capture) apply(pix *image.NRGBA) (*image.NRGBA, error) {
	if t.Source == nil {
		return pix, nil
	}
	out, err := t.Source.ReadPixels(t.Rect)
	if err != nil {
		return pix, fmt.Errorf("resource: capture: %w", err)
	}
	if out == nil {
		return pix, nil
	}
	return texture.ToNRGBA(out), nil
}
