package texture

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrUnsupportedFormat is returned when no encoder matches a file extension.
var ErrUnsupportedFormat = errors.New("texture: unsupported format")

// DefaultJPEGQuality is used by Save for .jpg targets.
const DefaultJPEGQuality = 90

// Encode writes img to w in the format named by ext (".png", ".webp", ...).
func Encode(w io.Writer, img image.Image, ext string) error {
	var err error
	switch strings.ToLower(ext) {
	case ".png":
		err = png.Encode(w, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: DefaultJPEGQuality})
	case ".gif":
		err = gif.Encode(w, img, nil)
	case ".bmp":
		err = bmp.Encode(w, img)
	case ".tif", ".tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".webp":
		err = nativewebp.Encode(w, img, nil)
	case ".tga":
		err = tga.Encode(w, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("texture: encode %s: %w", ext, err)
	}
	return nil
}

// Save writes img to path, choosing the format from the extension.
// An existing file is overwritten.
func Save(path string, img image.Image) error {
	ext := filepath.Ext(path)
	if !Supported(ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("texture: save %s: %w", path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("texture: save %s: %w", path, err)
	}

	if err := Encode(f, img, ext); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Supported reports whether Save can write files with the given extension.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".tga":
		return true
	}
	return false
}
