// Package texture loads, scales and writes the raster images that back a
// mesh's UV space, and draws debug overlays on them.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// Registered decoders
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Texture errors.
var (
	ErrUnsupportedEncoding = errors.New("unsupported texture encoding")
	ErrInvalidScale        = errors.New("texture scale must be positive")
)

// Texture is a decoded source image.
type Texture struct {
	Path   string
	Format string
	Image  image.Image
}

// Width returns the image width in pixels.
func (t *Texture) Width() int { return t.Image.Bounds().Dx() }

// Height returns the image height in pixels.
func (t *Texture) Height() int { return t.Image.Bounds().Dy() }

// Load decodes the image at path. PNG, JPEG, BMP, WebP and TGA are supported.
func Load(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening texture: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", path, err)
	}
	return &Texture{Path: path, Format: format, Image: img}, nil
}

// Scale resizes img by factor with Catmull-Rom resampling. A factor of 1
// returns img unchanged.
func Scale(img image.Image, factor float64) (image.Image, error) {
	if factor <= 0 {
		return nil, ErrInvalidScale
	}
	if factor == 1 {
		return img, nil
	}

	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// ToRGBA converts img to *image.RGBA with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Encoding returns the encoder name for a file extension or format name.
func Encoding(name string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "jpg", "jpeg":
		return "jpg", nil
	case "png":
		return "png", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
}

// Save writes img to path, choosing the encoder from the file extension.
// quality applies to JPEG only.
func Save(path string, img image.Image, quality int) error {
	enc, err := Encoding(filepath.Ext(path))
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating texture: %w", err)
	}

	switch enc {
	case "jpg":
		if quality <= 0 || quality > 100 {
			quality = DefaultQuality
		}
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
