package texture

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 50, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeFormats(t *testing.T) {
	src := gradient(12, 7)
	tests := []struct {
		ext      string
		format   string
		lossless bool
	}{
		{".png", "png", true},
		{".jpg", "jpeg", false},
		{".gif", "gif", false},
		{".bmp", "bmp", true},
		{".tiff", "tiff", true},
		{".webp", "webp", true},
		{".tga", "tga", true},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src, tt.ext))
			assert.Equal(t, tt.format, Format(buf.Bytes()))

			got, err := Decode(&buf)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), got.Bounds())
			if tt.lossless {
				assert.Equal(t, src.Pix, got.Pix)
			}
		})
	}
}

func TestDecodeTGAFixture(t *testing.T) {
	// 2x1 uncompressed true-colour, 32 bpp BGRA, top-left origin.
	raw := []byte{
		0, 0, 2, 0, 0, 0, 0, 0,
		0, 0, 0, 0,
		2, 0, 1, 0,
		32, 0x28,
		0, 0, 255, 255, // red
		255, 0, 0, 128, // half-transparent blue
	}

	assert.Equal(t, "tga", Format(raw))
	img, err := DecodeBytes(raw)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{B: 255, A: 128}, img.NRGBAAt(1, 0))
}

func TestEncodeUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, gradient(1, 1), ".psd")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeBytes(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = DecodeBytes([]byte("garbage"))
	assert.Error(t, err)

	// A damaged PNG is reported by the PNG decoder, not the TGA fallback.
	_, err = DecodeBytes([]byte("\x89PNG\r\n\x1a\ntruncated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode png")
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.png")
	require.NoError(t, Save(path, gradient(4, 4)))
	require.NoError(t, Save(path, gradient(2, 3)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := DecodeBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2, 3), img.Bounds().Size())

	err = Save(filepath.Join(t.TempDir(), "x.xcf"), gradient(1, 1))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestToNRGBAMovesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 8, 9))
	src.Set(5, 5, color.RGBA{R: 255, A: 255})

	got := ToNRGBA(src)
	require.Equal(t, image.Rect(0, 0, 3, 4), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, got.NRGBAAt(0, 0))

	n := gradient(2, 2)
	assert.Same(t, n, ToNRGBA(n), "NRGBA already at the origin is returned as is")
}

func TestResize(t *testing.T) {
	src := gradient(20, 10)
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"up", 50, 50, 50, 50},
		{"down", 4, 2, 4, 2},
		{"zero height", 30, 0, 20, 10},
		{"negative", -1, 5, 20, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resize(src, tt.w, tt.h).Bounds().Size()
			assert.Equal(t, image.Pt(tt.wantW, tt.wantH), got)
		})
	}
}

func TestCrop(t *testing.T) {
	src := gradient(10, 10)

	got := Crop(src, image.Rect(2, 3, 6, 5))
	require.Equal(t, image.Rect(0, 0, 4, 2), got.Bounds())
	assert.Equal(t, src.NRGBAAt(2, 3), got.NRGBAAt(0, 0))

	assert.Equal(t, image.Pt(2, 2), Crop(src, image.Rect(8, 8, 20, 20)).Bounds().Size())
	assert.Same(t, src, Crop(src, image.Rect(50, 50, 60, 60)), "empty crop keeps the source")
}

func TestColorAccessClamps(t *testing.T) {
	img := Blank(3, 0)
	require.Equal(t, image.Pt(3, 3), img.Bounds().Size())

	blue := color.NRGBA{B: 255, A: 255}
	SetColor(img, image.Pt(99, -4), blue)
	assert.Equal(t, blue, ColorAt(img, image.Pt(2, 0)))
	assert.Equal(t, color.NRGBA{}, ColorAt(nil, image.Pt(0, 0)))
}
