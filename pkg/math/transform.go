package math

import (
	"image"
	"math"
)

const transformPrecision = 1e6

// RectTransform maps texture coordinates inside a normalized source rectangle
// to their position in a packed atlas. Top and Bottom use OBJ orientation, so
// Top >= Bottom.
type RectTransform struct {
	Left    float64 `json:"left"`
	Right   float64 `json:"right"`
	Top     float64 `json:"top"`
	Bottom  float64 `json:"bottom"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	ScaleX  float64 `json:"scaleX"`
	ScaleY  float64 `json:"scaleY"`
}

// NewRectTransform builds the transform that moves pixel rectangle src of a
// srcW x srcH texture to pixel rectangle dst of a dstW x dstH atlas.
func NewRectTransform(src, dst image.Rectangle, srcW, srcH, dstW, dstH int) RectTransform {
	sw, sh := float64(srcW), float64(srcH)
	dw, dh := float64(dstW), float64(dstH)
	return RectTransform{
		Top:     1 - float64(src.Min.Y)/sh,
		Bottom:  1 - float64(src.Max.Y)/sh,
		Left:    float64(src.Min.X) / sw,
		Right:   float64(src.Max.X) / sw,
		OffsetX: float64(src.Min.X)/sw - float64(dst.Min.X)/dw,
		OffsetY: float64(src.Min.Y)/sh - float64(dst.Min.Y)/dh,
		ScaleX:  sw / dw,
		ScaleY:  sh / dh,
	}
}

func round6(v float64) float64 {
	return math.Round(v*transformPrecision) / transformPrecision
}

// ContainsPoint reports whether (x, y) lies in the source rectangle. Values are
// compared at six decimal places.
func (t RectTransform) ContainsPoint(x, y float64) bool {
	x, y = round6(x), round6(y)
	return x >= round6(t.Left) && x <= round6(t.Right) &&
		y >= round6(t.Bottom) && y <= round6(t.Top)
}

// Apply maps a source coordinate into atlas space.
func (t RectTransform) Apply(uv Vec2) Vec2 {
	return Vec2{
		X: t.Left + (uv.X-t.Left)*t.ScaleX - t.OffsetX,
		Y: t.Top + (uv.Y-t.Top)*t.ScaleY + t.OffsetY,
	}
}

// PixelRect returns the source rectangle in pixels of a w x h texture.
func (t RectTransform) PixelRect(w, h int) image.Rectangle {
	return image.Rect(
		int(t.Left*float64(w)),
		int((1-t.Top)*float64(h)),
		int(t.Right*float64(w)),
		int((1-t.Bottom)*float64(h)),
	)
}
