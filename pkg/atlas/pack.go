package atlas

import (
	"errors"
	"fmt"
	"image"
	gomath "math"
	"sort"

	"github.com/Faultbox/meshcuber/pkg/binpack"
	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
	"golang.org/x/image/draw"
)

// Defaults.
const (
	DefaultPadding = 2
	DefaultMaxSize = 16384
)

// ErrAtlasOverflow is returned when the islands do not fit the maximum size.
var ErrAtlasOverflow = errors.New("atlas: islands exceed maximum atlas size")

// Options configures packing.
type Options struct {
	// Padding is added in pixels on every side of an island.
	Padding int
	// MaxSize bounds both atlas dimensions.
	MaxSize int
	// Heuristic selects the free rectangle for each island.
	Heuristic binpack.Heuristic
}

// DefaultOptions returns best-area-fit packing with a 2 pixel border.
func DefaultOptions() Options {
	return Options{
		Padding:   DefaultPadding,
		MaxSize:   DefaultMaxSize,
		Heuristic: binpack.BestAreaFit,
	}
}

// Placement moves a source texture rectangle to an atlas rectangle.
type Placement struct {
	Src image.Rectangle
	Dst image.Rectangle
}

// Layout is a packed atlas.
type Layout struct {
	Width      int
	Height     int
	Placements []Placement
	Transforms []math.RectTransform
	Islands    int
}

// Empty reports whether nothing was packed.
func (l *Layout) Empty() bool {
	return len(l.Placements) == 0
}

// Occupancy returns the used share of the atlas area.
func (l *Layout) Occupancy() float64 {
	if l.Width == 0 || l.Height == 0 {
		return 0
	}
	used := 0
	for _, p := range l.Placements {
		used += p.Dst.Dx() * p.Dst.Dy()
	}
	return float64(used) / float64(l.Width*l.Height)
}

// OverflowError reports the atlas size reached when packing gave up.
type OverflowError struct {
	Width, Height int
	Rects         []image.Rectangle
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%v: %d rects at %dx%d", ErrAtlasOverflow, len(e.Rects), e.Width, e.Height)
}

func (e *OverflowError) Unwrap() error {
	return ErrAtlasOverflow
}

// Build finds the islands of faces, converts them to padded pixel rectangles of
// a texW x texH texture, drops rectangles contained in others and packs the
// rest.
func Build(m *mesh.Mesh, faces []int, texW, texH int, opts Options) (*Layout, error) {
	islands := FindIslands(m, faces)
	rects := make([]image.Rectangle, 0, len(islands))
	for _, island := range islands {
		r := island.Bounds.PixelRect(texW, texH, opts.Padding)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}

	layout, err := Pack(Prune(rects), texW, texH, opts)
	if err != nil {
		return nil, err
	}
	layout.Islands = len(islands)
	return layout, nil
}

// Prune removes rectangles that lie inside another one. Of identical
// rectangles the first is kept.
func Prune(rects []image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rects))
	for i, r := range rects {
		contained := false
		for j, o := range rects {
			if i == j || !r.In(o) {
				continue
			}
			if r.Eq(o) && i < j {
				continue
			}
			contained = true
			break
		}
		if !contained {
			out = append(out, r)
		}
	}
	return out
}

// Pack places rects, largest first, into the smallest atlas found by starting
// at the next power of two of the square root of their total area and doubling
// the smaller side after each failure. Transforms follow the order of rects.
func Pack(rects []image.Rectangle, texW, texH int, opts Options) (*Layout, error) {
	if len(rects) == 0 {
		return &Layout{}, nil
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}

	order := make([]int, len(rects))
	area := 0
	for i, r := range rects {
		order[i] = i
		area += r.Dx() * r.Dy()
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rects[order[a]], rects[order[b]]
		return ra.Dx()*ra.Dy() > rb.Dx()*rb.Dy()
	})

	side := NextPowerOfTwo(int(gomath.Ceil(gomath.Sqrt(float64(area)))))
	w, h := side, side
	dst := make([]image.Rectangle, len(rects))
	packer := binpack.New(w, h, false)
	for {
		if w > opts.MaxSize || h > opts.MaxSize {
			return nil, &OverflowError{Width: w, Height: h, Rects: rects}
		}
		packer.Reset(w, h, false)
		if packAll(packer, rects, order, dst, opts.Heuristic) {
			break
		}
		if w <= h {
			w *= 2
		} else {
			h *= 2
		}
	}

	right, bottom := 0, 0
	for _, r := range dst {
		right = max(right, r.Max.X)
		bottom = max(bottom, r.Max.Y)
	}
	layout := &Layout{
		Width:      NextPowerOfTwo(right),
		Height:     NextPowerOfTwo(bottom),
		Placements: make([]Placement, len(rects)),
		Transforms: make([]math.RectTransform, len(rects)),
	}
	for i, src := range rects {
		layout.Placements[i] = Placement{Src: src, Dst: dst[i]}
		layout.Transforms[i] = math.NewRectTransform(src, dst[i], texW, texH, layout.Width, layout.Height)
	}
	return layout, nil
}

func packAll(p *binpack.Packer, rects []image.Rectangle, order []int, dst []image.Rectangle, method binpack.Heuristic) bool {
	for _, i := range order {
		r := p.Insert(rects[i].Dx(), rects[i].Dy(), method)
		if r.Empty() {
			return false
		}
		dst[i] = r
	}
	return true
}

// Compose copies every placement from src into a new atlas image.
func Compose(src image.Image, layout *Layout) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, layout.Width, layout.Height))
	origin := src.Bounds().Min
	for _, p := range layout.Placements {
		draw.Draw(out, p.Dst, src, p.Src.Min.Add(origin), draw.Src)
	}
	return out
}

// NextPowerOfTwo returns the smallest power of two >= v, and 1 for v <= 1.
func NextPowerOfTwo(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
