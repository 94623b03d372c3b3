package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// tgaHeaderBytes builds an 18-byte true-color TGA header.
func tgaHeaderBytes(imageType byte, w, h, bpp int, descriptor byte) []byte {
	return []byte{
		0, 0, imageType,
		0, 0, 0, 0, 0,
		0, 0, 0, 0,
		byte(w), byte(w >> 8), byte(h), byte(h >> 8),
		byte(bpp), descriptor,
	}
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// 1x2 bottom-up: first row in the file is the bottom row.
	data := tgaHeaderBytes(TGATypeUncompressed, 1, 2, 24, 0)
	data = append(data,
		0, 0, 255, // red, bottom
		255, 0, 0, // blue, top
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("expected blue at top, got %v", got)
	}
	if got := img.RGBAAt(0, 1); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("expected red at bottom, got %v", got)
	}
}

func TestDecodeTGATopToBottom32(t *testing.T) {
	data := tgaHeaderBytes(TGATypeUncompressed, 1, 2, 32, 0x20)
	data = append(data,
		0, 255, 0, 128, // green, top
		0, 0, 0, 255, // black, bottom
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{G: 255, A: 128}) {
		t.Errorf("expected translucent green at top, got %v", got)
	}
	if got := img.RGBAAt(0, 1); got != (color.RGBA{A: 255}) {
		t.Errorf("expected black at bottom, got %v", got)
	}
}

func TestDecodeTGARLE(t *testing.T) {
	data := tgaHeaderBytes(TGATypeRLE, 4, 1, 24, 0x20)
	data = append(data,
		0x82, 0, 0, 255, // repeat red x3
		0x00, 255, 255, 255, // raw white x1
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := img.RGBAAt(x, 0); got != (color.RGBA{R: 255, A: 255}) {
			t.Errorf("pixel %d: expected red, got %v", x, got)
		}
	}
	if got := img.RGBAAt(3, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("expected white, got %v", got)
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{0, 0, 2}, ErrTruncatedTGA},
		{"short pixels", append(tgaHeaderBytes(TGATypeUncompressed, 2, 2, 24, 0), 1, 2, 3), ErrTruncatedTGA},
		{"short rle", append(tgaHeaderBytes(TGATypeRLE, 2, 2, 24, 0), 0x81), ErrTruncatedTGA},
		{"grayscale", tgaHeaderBytes(3, 1, 1, 8, 0), ErrUnsupportedTGA},
		{"16 bit", tgaHeaderBytes(TGATypeUncompressed, 1, 1, 16, 0), ErrUnsupportedTGA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTGA(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestImageDecodeRecognizesTGA(t *testing.T) {
	data := tgaHeaderBytes(TGATypeUncompressed, 1, 1, 24, 0)
	data = append(data, 10, 20, 30)

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image.Decode failed: %v", err)
	}
	if format != "tga" {
		t.Errorf("expected format tga, got %q", format)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 30 || g>>8 != 20 || b>>8 != 10 {
		t.Errorf("expected (30,20,10), got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestSaveLoadPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(2, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	path := filepath.Join(t.TempDir(), "atlas.png")
	if err := Save(path, src, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tex, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tex.Format != "png" {
		t.Errorf("expected png, got %q", tex.Format)
	}
	if tex.Width() != 3 || tex.Height() != 2 {
		t.Errorf("expected 3x2, got %dx%d", tex.Width(), tex.Height())
	}
	r, g, b, _ := tex.Image.At(2, 1).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Errorf("expected (200,100,50), got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestSaveJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	path := filepath.Join(t.TempDir(), "atlas.jpg")
	if err := Save(path, src, 75); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tex, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tex.Format != "jpeg" {
		t.Errorf("expected jpeg, got %q", tex.Format)
	}
}

func TestSaveUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.gif")
	err := Save(path, image.NewRGBA(image.Rect(0, 0, 1, 1)), 0)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("expected no file to be created")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{".jpg", "jpg", false},
		{"JPEG", "jpg", false},
		{".png", "png", false},
		{"tga", "", true},
	}

	for _, tt := range tests {
		got, err := Encoding(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Encoding(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Encoding(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestScale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))

	got, err := Scale(src, 0.5)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}
	if b := got.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("expected 50x25, got %dx%d", b.Dx(), b.Dy())
	}

	same, err := Scale(src, 1)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}
	if same != image.Image(src) {
		t.Error("expected factor 1 to return the source image")
	}

	if _, err := Scale(src, 0); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("expected ErrInvalidScale, got %v", err)
	}
}

func TestToRGBAOffset(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 7))
	src.SetRGBA(5, 5, color.RGBA{R: 1, A: 255})

	got := ToRGBA(src)
	if got.Bounds().Min != (image.Point{}) {
		t.Errorf("expected origin at 0,0, got %v", got.Bounds().Min)
	}
	if got.RGBAAt(0, 0).R != 1 {
		t.Errorf("expected copied pixel, got %v", got.RGBAAt(0, 0))
	}
}

func TestUVToPixel(t *testing.T) {
	x, y := UVToPixel(math.Vec2{X: 0.25, Y: 0.75}, 200, 100)
	if x != 50 || y != 25 {
		t.Errorf("expected (50,25), got (%v,%v)", x, y)
	}
}

func TestDrawUVPoints(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 20, 20))

	out, err := DrawUVPoints(src, []math.Vec2{{X: 0.5, Y: 0.5}}, ColorTransform)
	if err != nil {
		t.Fatalf("DrawUVPoints failed: %v", err)
	}
	if r, _, _, _ := out.At(10, 10).RGBA(); r < 0x8000 {
		t.Errorf("expected red dot at center, got r=%#x", r)
	}
	if r, _, _, _ := out.At(0, 0).RGBA(); r != 0 {
		t.Errorf("expected untouched corner, got r=%#x", r)
	}
	if src.RGBAAt(10, 10).R != 0 {
		t.Error("expected source image to be left unchanged")
	}
}

func TestDrawRects(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	out, err := DrawRects(src, []image.Rectangle{image.Rect(4, 4, 20, 20), {}}, ColorPacked)
	if err != nil {
		t.Fatalf("DrawRects failed: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("expected 32x32, got %dx%d", b.Dx(), b.Dy())
	}
	if _, _, b, _ := out.At(4, 10).RGBA(); b == 0 {
		t.Error("expected the left edge to be stroked")
	}
	if _, _, b, _ := out.At(12, 12).RGBA(); b != 0 {
		t.Errorf("expected untouched interior, got b=%#x", b)
	}
}

func TestOverlayWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	w := NewOverlayWriter(dir, "texture_0_1")

	want := filepath.Join(dir, "texture_0_1_missing.png")
	if got := w.Path("missing"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	path, err := w.Save("missing", image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected overlay file: %v", err)
	}
}
