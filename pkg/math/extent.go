package math

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"
)

// Extent is an axis-aligned bounding box.
type Extent struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// EmptyExtent returns an inverted extent that any Extend call will replace.
func EmptyExtent() Extent {
	return Extent{Min: fromT(vec3.MaxVal), Max: fromT(vec3.MinVal)}
}

// Extend grows the extent to include p.
func (e *Extent) Extend(p Vec3) {
	lo, hi, pt := e.Min.t(), e.Max.t(), p.t()
	e.Min = fromT(vec3.Min(&lo, &pt))
	e.Max = fromT(vec3.Max(&hi, &pt))
}

// IsEmpty reports whether nothing has been added to the extent.
func (e Extent) IsEmpty() bool {
	return e.Min.X > e.Max.X || e.Min.Y > e.Max.Y || e.Min.Z > e.Max.Z
}

// Size returns the side lengths.
func (e Extent) Size() Vec3 {
	return e.Max.Sub(e.Min)
}

// Cubical grows the extent to a cube using its longest side, anchored at Min.
func (e Extent) Cubical() Extent {
	s := e.Size()
	side := math.Max(math.Max(s.X, s.Y), s.Z)
	return Extent{
		Min: e.Min,
		Max: Vec3{e.Min.X + side, e.Min.Y + side, e.Min.Z + side},
	}
}

// Contains reports whether p lies inside the extent, boundary included.
func (e Extent) Contains(p Vec3) bool {
	return p.X >= e.Min.X && p.X <= e.Max.X &&
		p.Y >= e.Min.Y && p.Y <= e.Max.Y &&
		p.Z >= e.Min.Z && p.Z <= e.Max.Z
}

// ContainsEps is Contains with a tolerance on every face.
func (e Extent) ContainsEps(p Vec3, eps float64) bool {
	return p.X >= e.Min.X-eps && p.X <= e.Max.X+eps &&
		p.Y >= e.Min.Y-eps && p.Y <= e.Max.Y+eps &&
		p.Z >= e.Min.Z-eps && p.Z <= e.Max.Z+eps
}

// Clamp moves p onto the nearest point of the extent.
func (e Extent) Clamp(p Vec3) Vec3 {
	lo, hi, pt := e.Min.t(), e.Max.t(), p.t()
	up := vec3.Max(&pt, &lo)
	return fromT(vec3.Min(&up, &hi))
}

// CellIndex maps p to its cell in a grid of counts cells per axis laid over the
// extent. Points on the upper boundary belong to the last cell.
func (e Extent) CellIndex(p Vec3, counts [3]int) [3]int {
	size := e.Size()
	var idx [3]int
	for axis := 0; axis < 3; axis++ {
		n := counts[axis]
		span := size.Axis(axis)
		if span <= 0 || n <= 1 {
			continue
		}
		i := int(math.Floor((p.Axis(axis) - e.Min.Axis(axis)) * float64(n) / span))
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		idx[axis] = i
	}
	return idx
}

// Cell returns the extent of cell idx in a grid of counts cells per axis.
func (e Extent) Cell(counts [3]int, idx [3]int) Extent {
	size := e.Size()
	var lo, hi [3]float64
	for axis := 0; axis < 3; axis++ {
		width := size.Axis(axis) / float64(counts[axis])
		lo[axis] = e.Min.Axis(axis) + width*float64(idx[axis])
		hi[axis] = lo[axis] + width
		if idx[axis] == counts[axis]-1 {
			hi[axis] = e.Max.Axis(axis)
		}
	}
	return Extent{
		Min: Vec3{lo[0], lo[1], lo[2]},
		Max: Vec3{hi[0], hi[1], hi[2]},
	}
}

// Entry returns the point where the segment from -> to enters the extent,
// together with the segment parameter t in [0,1] of that point. ok is false
// when the segment is degenerate or misses the box.
func (e Extent) Entry(from, to Vec3) (hit Vec3, t float64, ok bool) {
	d := to.Sub(from)
	if d.Length() == 0 {
		return Vec3{}, 0, false
	}

	tEnter, tExit := 0.0, 1.0
	for axis := 0; axis < 3; axis++ {
		o := from.Axis(axis)
		dir := d.Axis(axis)
		lo, hi := e.Min.Axis(axis), e.Max.Axis(axis)

		if dir == 0 {
			// Parallel to both slab planes.
			if o < lo || o > hi {
				return Vec3{}, 0, false
			}
			continue
		}

		t1 := (lo - o) / dir
		t2 := (hi - o) / dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tEnter = math.Max(tEnter, t1)
		tExit = math.Min(tExit, t2)
		if tEnter > tExit {
			return Vec3{}, 0, false
		}
	}

	return e.Clamp(from.Add(d.Scale(tEnter))), tEnter, true
}
