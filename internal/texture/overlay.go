package texture

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// Overlay colors.
var (
	ColorTransform = color.RGBA{R: 255, A: 255}
	ColorMissing   = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	ColorTriangle  = color.RGBA{G: 255, A: 255}
	ColorPacked    = color.RGBA{R: 64, G: 160, B: 255, A: 255}
)

const (
	overlayLineWidth = 1.5
	overlayPointSize = 3.0
)

// OverlayWriter saves debug overlays as PNG files under one directory.
type OverlayWriter struct {
	outputDir string
	prefix    string
}

// NewOverlayWriter creates an overlay writer. Files are named
// <prefix>_<name>.png inside outputDir.
func NewOverlayWriter(outputDir, prefix string) *OverlayWriter {
	return &OverlayWriter{outputDir: outputDir, prefix: prefix}
}

// Path returns the file an overlay called name is written to.
func (w *OverlayWriter) Path(name string) string {
	filename := name + ".png"
	if w.prefix != "" {
		filename = w.prefix + "_" + filename
	}
	return filepath.Join(w.outputDir, filename)
}

// Save writes img as the overlay called name and returns its path.
func (w *OverlayWriter) Save(name string, img image.Image) (string, error) {
	if w.outputDir != "" {
		if err := os.MkdirAll(w.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating overlay dir: %w", err)
		}
	}
	path := w.Path(name)
	if err := Save(path, img, 0); err != nil {
		return "", err
	}
	return path, nil
}

// UVToPixel maps a UV coordinate to pixel space of a w x h image, with V
// pointing up.
func UVToPixel(uv math.Vec2, w, h int) (float64, float64) {
	return uv.X * float64(w), (1 - uv.Y) * float64(h)
}

func setColor(dc *gg.Context, c color.Color) {
	r, g, b, a := c.RGBA()
	dc.SetRGBA(float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff, float64(a)/0xffff)
}

// drawOverlay runs fn on a copy of img and returns the result.
func drawOverlay(img image.Image, fn func(dc *gg.Context) error) (image.Image, error) {
	dc := gg.NewContextForImage(img)
	defer dc.Close()

	dc.SetLineWidth(overlayLineWidth)
	if err := fn(dc); err != nil {
		return nil, fmt.Errorf("drawing overlay: %w", err)
	}
	return dc.Image(), nil
}

// DrawRects outlines rects in pixel coordinates on a copy of img.
func DrawRects(img image.Image, rects []image.Rectangle, c color.Color) (image.Image, error) {
	return drawOverlay(img, func(dc *gg.Context) error {
		setColor(dc, c)
		for _, r := range rects {
			if r.Empty() {
				continue
			}
			dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
			if err := dc.Stroke(); err != nil {
				return err
			}
		}
		return nil
	})
}

// DrawUVPoints marks UV coordinates with filled dots on a copy of img.
func DrawUVPoints(img image.Image, uvs []math.Vec2, c color.Color) (image.Image, error) {
	b := img.Bounds()
	return drawOverlay(img, func(dc *gg.Context) error {
		setColor(dc, c)
		for _, uv := range uvs {
			x, y := UVToPixel(uv, b.Dx(), b.Dy())
			dc.DrawCircle(x, y, overlayPointSize)
			if err := dc.Fill(); err != nil {
				return err
			}
		}
		return nil
	})
}

// DrawUVTriangles outlines triangles given in UV space on a copy of img.
func DrawUVTriangles(img image.Image, tris [][3]math.Vec2, c color.Color) (image.Image, error) {
	b := img.Bounds()
	return drawOverlay(img, func(dc *gg.Context) error {
		setColor(dc, c)
		for _, tri := range tris {
			x, y := UVToPixel(tri[0], b.Dx(), b.Dy())
			dc.MoveTo(x, y)
			for _, uv := range tri[1:] {
				x, y = UVToPixel(uv, b.Dx(), b.Dy())
				dc.LineTo(x, y)
			}
			dc.ClosePath()
			if err := dc.Stroke(); err != nil {
				return err
			}
		}
		return nil
	})
}
