package slicer

import (
	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// WizardSizes are the cubic grid sizes the wizard evaluates.
var WizardSizes = []int{4, 8, 16, 32, 64, 128}

// GridEstimate is the busiest cell of one cubic grid size.
type GridEstimate struct {
	Size        int
	MaxFaces    int
	MaxVertices int
}

// Recommendation is the wizard result for one mesh.
type Recommendation struct {
	Estimates []GridEstimate
	// Size is the smallest grid whose busiest cell stays under the vertex
	// cap, or 0 when none does.
	Size int
	// MaxVertices is the estimate for Size.
	MaxVertices int
}

// Recommend estimates, for every size in WizardSizes, the vertex count of the
// busiest cell of a size^3 grid over bounds and picks the smallest size whose
// estimate is below maxVertices. Vertices per cell are estimated from the
// mesh's vertex to face ratio.
func Recommend(m *mesh.Mesh, bounds math.Extent, maxVertices int) *Recommendation {
	ratio := 0.0
	if len(m.Faces) > 0 {
		ratio = float64(len(m.Vertices)) / float64(len(m.Faces))
	}

	rec := &Recommendation{}
	for _, size := range WizardSizes {
		faces := maxCellFaces(m, bounds, size)
		est := GridEstimate{
			Size:        size,
			MaxFaces:    faces,
			MaxVertices: int(float64(faces) * ratio),
		}
		rec.Estimates = append(rec.Estimates, est)
		if rec.Size == 0 && est.MaxVertices < maxVertices {
			rec.Size = est.Size
			rec.MaxVertices = est.MaxVertices
		}
	}
	return rec
}

// maxCellFaces counts faces per cell the way Partition assigns them, without
// building the face lists.
func maxCellFaces(m *mesh.Mesh, bounds math.Extent, size int) int {
	counts := [3]int{size, size, size}
	cells := make([]int, size*size*size)
	best := 0
	for _, f := range m.Faces {
		idx := bounds.CellIndex(m.Position(f.Vertices[0]), counts)
		slot := (idx[0]*size+idx[1])*size + idx[2]
		cells[slot]++
		if cells[slot] > best {
			best = cells[slot]
		}
	}
	return best
}
