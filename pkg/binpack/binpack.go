// Package binpack implements the MaxRects rectangle bin packer.
//
// The packer keeps a list of maximal free rectangles. Every placement splits
// each free rectangle it overlaps into up to four residual rectangles along
// the placed rectangle's edges, then prunes free rectangles that are fully
// contained in another one.
package binpack

import (
	"fmt"
	"image"
	"math"
)

// Heuristic selects the free rectangle a new rectangle is placed into.
type Heuristic int

const (
	// BestShortSideFit places against the short side of the best fitting free rectangle.
	BestShortSideFit Heuristic = iota
	// BestLongSideFit places against the long side of the best fitting free rectangle.
	BestLongSideFit
	// BestAreaFit places into the smallest free rectangle that fits.
	BestAreaFit
	// BottomLeft does Tetris placement.
	BottomLeft
	// ContactPoint maximises the perimeter touching the bin edge or placed rectangles.
	ContactPoint
)

// String returns the short name of the heuristic.
func (h Heuristic) String() string {
	switch h {
	case BestShortSideFit:
		return "BSSF"
	case BestLongSideFit:
		return "BLSF"
	case BestAreaFit:
		return "BAF"
	case BottomLeft:
		return "BL"
	case ContactPoint:
		return "CP"
	default:
		return fmt.Sprintf("Unknown(%d)", int(h))
	}
}

// Packer is a MaxRects bin. The zero value is an empty 0x0 bin; use New.
type Packer struct {
	width, height int
	allowRotation bool

	used []image.Rectangle
	free []image.Rectangle
}

// New creates a packer for a width x height bin.
func New(width, height int, allowRotation bool) *Packer {
	p := &Packer{}
	p.Reset(width, height, allowRotation)
	return p
}

// Reset empties the bin and resizes it, keeping allocated storage.
func (p *Packer) Reset(width, height int, allowRotation bool) {
	p.width = width
	p.height = height
	p.allowRotation = allowRotation
	p.used = p.used[:0]
	p.free = append(p.free[:0], image.Rect(0, 0, width, height))
}

// Width returns the bin width.
func (p *Packer) Width() int { return p.width }

// Height returns the bin height.
func (p *Packer) Height() int { return p.height }

// Used returns the placed rectangles in insertion order.
func (p *Packer) Used() []image.Rectangle { return p.used }

// Free returns the current free rectangle list.
func (p *Packer) Free() []image.Rectangle { return p.free }

// Insert places a width x height rectangle. It returns the zero rectangle when
// no free rectangle can hold it. With rotation enabled the returned rectangle
// may be height x width.
func (p *Packer) Insert(width, height int, method Heuristic) image.Rectangle {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}
	}

	node, _, _ := p.score(width, height, method)
	if node.Empty() {
		return image.Rectangle{}
	}

	p.place(node)
	return node
}

// InsertAll places every size, each round choosing the rectangle with the best
// global score. The result is indexed like sizes; ok is false when at least
// one size did not fit, in which case the unplaced entries are zero.
func (p *Packer) InsertAll(sizes []image.Point, method Heuristic) (placed []image.Rectangle, ok bool) {
	placed = make([]image.Rectangle, len(sizes))
	remaining := make([]int, 0, len(sizes))
	for i, s := range sizes {
		if s.X > 0 && s.Y > 0 {
			remaining = append(remaining, i)
		}
	}
	ok = len(remaining) == len(sizes)

	for len(remaining) > 0 {
		best1, best2 := math.MaxInt, math.MaxInt
		bestIdx := -1
		var bestNode image.Rectangle

		for i, idx := range remaining {
			node, s1, s2 := p.score(sizes[idx].X, sizes[idx].Y, method)
			if node.Empty() {
				continue
			}
			if s1 < best1 || (s1 == best1 && s2 < best2) {
				best1, best2 = s1, s2
				bestNode = node
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			return placed, false
		}

		p.place(bestNode)
		placed[remaining[bestIdx]] = bestNode
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return placed, ok
}

// Occupancy returns the ratio of used area to bin area.
func (p *Packer) Occupancy() float64 {
	if p.width == 0 || p.height == 0 {
		return 0
	}
	var usedArea int64
	for _, r := range p.used {
		usedArea += int64(r.Dx()) * int64(r.Dy())
	}
	return float64(usedArea) / (float64(p.width) * float64(p.height))
}

// score finds the placement for method. Lower scores are better; the contact
// point score is negated so the same ordering applies.
func (p *Packer) score(width, height int, method Heuristic) (node image.Rectangle, score1, score2 int) {
	switch method {
	case BestShortSideFit:
		node, score1, score2 = p.findBestShortSideFit(width, height)
	case BestLongSideFit:
		node, score1, score2 = p.findBestLongSideFit(width, height)
	case BestAreaFit:
		node, score1, score2 = p.findBestAreaFit(width, height)
	case BottomLeft:
		node, score1, score2 = p.findBottomLeft(width, height)
	case ContactPoint:
		var contact int
		node, contact = p.findContactPoint(width, height)
		score1 = -contact
	}

	if node.Empty() {
		return image.Rectangle{}, math.MaxInt, math.MaxInt
	}
	return node, score1, score2
}

func (p *Packer) place(node image.Rectangle) {
	n := len(p.free)
	for i := 0; i < n; i++ {
		if p.splitFreeNode(p.free[i], node) {
			p.free = append(p.free[:i], p.free[i+1:]...)
			i--
			n--
		}
	}
	p.pruneFreeList()
	p.used = append(p.used, node)
}

func fits(free image.Rectangle, width, height int) bool {
	return free.Dx() >= width && free.Dy() >= height
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (p *Packer) findBottomLeft(width, height int) (best image.Rectangle, bestY, bestX int) {
	bestY, bestX = math.MaxInt, math.MaxInt
	for _, f := range p.free {
		if fits(f, width, height) {
			top := f.Min.Y + height
			if top < bestY || (top == bestY && f.Min.X < bestX) {
				best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+width, f.Min.Y+height)
				bestY, bestX = top, f.Min.X
			}
		}
		if p.allowRotation && fits(f, height, width) {
			top := f.Min.Y + width
			if top < bestY || (top == bestY && f.Min.X < bestX) {
				best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+height, f.Min.Y+width)
				bestY, bestX = top, f.Min.X
			}
		}
	}
	return best, bestY, bestX
}

func (p *Packer) findBestShortSideFit(width, height int) (best image.Rectangle, bestShort, bestLong int) {
	bestShort, bestLong = math.MaxInt, math.MaxInt
	try := func(f image.Rectangle, w, h int) {
		horiz := abs(f.Dx() - w)
		vert := abs(f.Dy() - h)
		short, long := min(horiz, vert), max(horiz, vert)
		if short < bestShort || (short == bestShort && long < bestLong) {
			best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+w, f.Min.Y+h)
			bestShort, bestLong = short, long
		}
	}
	for _, f := range p.free {
		if fits(f, width, height) {
			try(f, width, height)
		}
		if p.allowRotation && fits(f, height, width) {
			try(f, height, width)
		}
	}
	return best, bestShort, bestLong
}

func (p *Packer) findBestLongSideFit(width, height int) (best image.Rectangle, bestLong, bestShort int) {
	bestShort, bestLong = math.MaxInt, math.MaxInt
	try := func(f image.Rectangle, w, h int) {
		horiz := abs(f.Dx() - w)
		vert := abs(f.Dy() - h)
		short, long := min(horiz, vert), max(horiz, vert)
		if long < bestLong || (long == bestLong && short < bestShort) {
			best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+w, f.Min.Y+h)
			bestShort, bestLong = short, long
		}
	}
	for _, f := range p.free {
		if fits(f, width, height) {
			try(f, width, height)
		}
		if p.allowRotation && fits(f, height, width) {
			try(f, height, width)
		}
	}
	return best, bestLong, bestShort
}

func (p *Packer) findBestAreaFit(width, height int) (best image.Rectangle, bestArea, bestShort int) {
	bestArea, bestShort = math.MaxInt, math.MaxInt
	for _, f := range p.free {
		areaFit := f.Dx()*f.Dy() - width*height
		try := func(w, h int) {
			short := min(abs(f.Dx()-w), abs(f.Dy()-h))
			if areaFit < bestArea || (areaFit == bestArea && short < bestShort) {
				best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+w, f.Min.Y+h)
				bestArea, bestShort = areaFit, short
			}
		}
		if fits(f, width, height) {
			try(width, height)
		}
		if p.allowRotation && fits(f, height, width) {
			try(height, width)
		}
	}
	return best, bestArea, bestShort
}

// commonIntervalLength returns the overlap of [aStart,aEnd] and [bStart,bEnd].
func commonIntervalLength(aStart, aEnd, bStart, bEnd int) int {
	if aEnd < bStart || bEnd < aStart {
		return 0
	}
	return min(aEnd, bEnd) - max(aStart, bStart)
}

func (p *Packer) contactPointScore(x, y, width, height int) int {
	score := 0
	if x == 0 || x+width == p.width {
		score += height
	}
	if y == 0 || y+height == p.height {
		score += width
	}
	for _, u := range p.used {
		if u.Min.X == x+width || u.Max.X == x {
			score += commonIntervalLength(u.Min.Y, u.Max.Y, y, y+height)
		}
		if u.Min.Y == y+height || u.Max.Y == y {
			score += commonIntervalLength(u.Min.X, u.Max.X, x, x+width)
		}
	}
	return score
}

func (p *Packer) findContactPoint(width, height int) (best image.Rectangle, bestScore int) {
	bestScore = -1
	for _, f := range p.free {
		if fits(f, width, height) {
			if s := p.contactPointScore(f.Min.X, f.Min.Y, width, height); s > bestScore {
				best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+width, f.Min.Y+height)
				bestScore = s
			}
		}
		if p.allowRotation && fits(f, height, width) {
			if s := p.contactPointScore(f.Min.X, f.Min.Y, height, width); s > bestScore {
				best = image.Rect(f.Min.X, f.Min.Y, f.Min.X+height, f.Min.Y+width)
				bestScore = s
			}
		}
	}
	return best, bestScore
}

// splitFreeNode appends the residual pieces of free around used and reports
// whether free was split and must be removed.
func (p *Packer) splitFreeNode(free, used image.Rectangle) bool {
	if !used.Overlaps(free) {
		return false
	}

	if used.Min.X < free.Max.X && used.Max.X > free.Min.X {
		// Above the used rectangle.
		if used.Min.Y > free.Min.Y && used.Min.Y < free.Max.Y {
			p.free = append(p.free, image.Rect(free.Min.X, free.Min.Y, free.Max.X, used.Min.Y))
		}
		// Below the used rectangle.
		if used.Max.Y < free.Max.Y {
			p.free = append(p.free, image.Rect(free.Min.X, used.Max.Y, free.Max.X, free.Max.Y))
		}
	}

	if used.Min.Y < free.Max.Y && used.Max.Y > free.Min.Y {
		// Left of the used rectangle.
		if used.Min.X > free.Min.X && used.Min.X < free.Max.X {
			p.free = append(p.free, image.Rect(free.Min.X, free.Min.Y, used.Min.X, free.Max.Y))
		}
		// Right of the used rectangle.
		if used.Max.X < free.Max.X {
			p.free = append(p.free, image.Rect(used.Max.X, free.Min.Y, free.Max.X, free.Max.Y))
		}
	}

	return true
}

func (p *Packer) pruneFreeList() {
	for i := 0; i < len(p.free); i++ {
		for j := i + 1; j < len(p.free); j++ {
			if p.free[i].In(p.free[j]) {
				p.free = append(p.free[:i], p.free[i+1:]...)
				i--
				break
			}
			if p.free[j].In(p.free[i]) {
				p.free = append(p.free[:j], p.free[j+1:]...)
				j--
			}
		}
	}
}
