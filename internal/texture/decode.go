package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Decode errors.
var (
	// ErrEmpty is returned when there is no data to decode.
	ErrEmpty = errors.New("texture: empty data")
)

// format pairs a magic-number test with its decoder.
type format struct {
	name   string
	match  func(raw []byte) bool
	decode func(r io.Reader) (image.Image, error)
}

func prefix(magics ...string) func([]byte) bool {
	return func(raw []byte) bool {
		for _, m := range magics {
			if bytes.HasPrefix(raw, []byte(m)) {
				return true
			}
		}
		return false
	}
}

// TGA has no magic number; it is tried when nothing here matches.
// The tga package registers itself with image.RegisterFormat using an
// empty magic, so image.Decode must not be used.
var formats = []format{
	{"png", prefix("\x89PNG\r\n\x1a\n"), png.Decode},
	{"jpeg", prefix("\xff\xd8"), jpeg.Decode},
	{"gif", prefix("GIF87a", "GIF89a"), gif.Decode},
	{"bmp", prefix("BM"), bmp.Decode},
	{"tiff", prefix("II*\x00", "MM\x00*"), tiff.Decode},
	{"webp", func(raw []byte) bool {
		return len(raw) >= 12 && string(raw[:4]) == "RIFF" && string(raw[8:12]) == "WEBP"
	}, webp.Decode},
}

// Format names the encoding of raw: png, jpeg, gif, bmp, tiff, webp,
// or tga when no magic number matches.
func Format(raw []byte) string {
	for _, f := range formats {
		if f.match(raw) {
			return f.name
		}
	}
	return "tga"
}

// Decode reads an encoded image and returns it as NRGBA pixels.
// Accepted formats are png, jpeg, gif, bmp, tiff, webp and tga.
func Decode(r io.Reader) (*image.NRGBA, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("texture: read: %w", err)
	}
	return DecodeBytes(raw)
}

// DecodeBytes decodes an in-memory encoded image.
func DecodeBytes(raw []byte) (*image.NRGBA, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	decode := tga.Decode
	name := "tga"
	for _, f := range formats {
		if f.match(raw) {
			decode, name = f.decode, f.name
			break
		}
	}

	img, err := decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", name, err)
	}

	return ToNRGBA(img), nil
}

// ToNRGBA converts any image to NRGBA format with its origin moved to (0,0).
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
