package texture

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Resize scales src to w×h with Catmull-Rom filtering.
// Non-positive dimensions return src unchanged.
func Resize(src *image.NRGBA, w, h int) *image.NRGBA {
	if src == nil || w <= 0 || h <= 0 {
		return src
	}
	if b := src.Bounds(); b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Crop copies the part of src inside r into a new image anchored at (0,0).
// r is clipped to the source bounds; an empty result returns src unchanged.
func Crop(src *image.NRGBA, r image.Rectangle) *image.NRGBA {
	if src == nil {
		return nil
	}
	r = r.Intersect(src.Bounds())
	if r.Empty() {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, src, r, draw.Src, nil)
	return dst
}

// Blank returns a fully transparent w×h image.
func Blank(w, h int) *image.NRGBA {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = w
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// Clamp limits p to the pixel grid of img.
func Clamp(img *image.NRGBA, p image.Point) image.Point {
	b := img.Bounds()
	p.X = min(max(p.X, b.Min.X), b.Max.X-1)
	p.Y = min(max(p.Y, b.Min.Y), b.Max.Y-1)
	return p
}

// SetColor writes c at the clamped position p.
func SetColor(img *image.NRGBA, p image.Point, c color.Color) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	p = Clamp(img, p)
	img.Set(p.X, p.Y, c)
}

// ColorAt reads the pixel at the clamped position p.
func ColorAt(img *image.NRGBA, p image.Point) color.NRGBA {
	if img == nil || img.Bounds().Empty() {
		return color.NRGBA{}
	}
	p = Clamp(img, p)
	return img.NRGBAAt(p.X, p.Y)
}
