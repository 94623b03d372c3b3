package mesh

import (
	"fmt"
	"slices"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// Cell addresses one element of the partition grid.
type Cell struct {
	X, Y, Z int
}

func (c Cell) array() [3]int {
	return [3]int{c.X, c.Y, c.Z}
}

func (c Cell) String() string {
	return fmt.Sprintf("%d_%d_%d", c.X, c.Y, c.Z)
}

// Less orders cells by X, then Y, then Z.
func (c Cell) Less(o Cell) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// Grid is a dense 3D array of face lists laid over an extent.
type Grid struct {
	Counts [3]int
	Bounds math.Extent

	cells [][]int
	crop  [][]int
}

// Partition assigns every face of m to the cell containing its first vertex.
// It also records, per cell, every face with a vertex in that cell, which is
// the set a cell is cropped from.
func Partition(m *Mesh, counts [3]int, bounds math.Extent) (*Grid, error) {
	for _, n := range counts {
		if n <= 0 {
			return nil, ErrInvalidGrid
		}
	}

	g := &Grid{
		Counts: counts,
		Bounds: bounds,
		cells:  make([][]int, counts[0]*counts[1]*counts[2]),
		crop:   make([][]int, counts[0]*counts[1]*counts[2]),
	}
	for i := range g.cells {
		g.cells[i] = []int{}
		g.crop[i] = []int{}
	}

	for fi, f := range m.Faces {
		var slots [3]int
		for i, v := range f.Vertices {
			idx := bounds.CellIndex(m.Position(v), counts)
			slots[i] = g.slot(Cell{idx[0], idx[1], idx[2]})
		}
		g.cells[slots[0]] = append(g.cells[slots[0]], fi)
		for i, slot := range slots {
			if slices.Contains(slots[:i], slot) {
				continue
			}
			g.crop[slot] = append(g.crop[slot], fi)
		}
	}
	return g, nil
}

func (g *Grid) slot(c Cell) int {
	return (c.X*g.Counts[1]+c.Y)*g.Counts[2] + c.Z
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Faces returns the indices into Mesh.Faces assigned to c.
func (g *Grid) Faces(c Cell) []int {
	return g.cells[g.slot(c)]
}

// CropFaces returns, in ascending order, every face with at least one vertex
// in c: the faces assigned to c plus those of neighbouring cells that reach
// into it.
func (g *Grid) CropFaces(c Cell) []int {
	return g.crop[g.slot(c)]
}

// Extent returns the bounds of cell c.
func (g *Grid) Extent(c Cell) math.Extent {
	return g.Bounds.Cell(g.Counts, c.array())
}

// Cells returns every cell in X, Y, Z order.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, 0, len(g.cells))
	for x := 0; x < g.Counts[0]; x++ {
		for y := 0; y < g.Counts[1]; y++ {
			for z := 0; z < g.Counts[2]; z++ {
				out = append(out, Cell{x, y, z})
			}
		}
	}
	return out
}

// Column returns the cells whose texture column is (tx, ty) for a texture grid
// of tiles[0] x tiles[1] columns.
func (g *Grid) Column(tiles [2]int, tx, ty int) []Cell {
	var out []Cell
	for _, c := range g.Cells() {
		if cx, cy := g.TextureColumn(c, tiles); cx == tx && cy == ty {
			out = append(out, c)
		}
	}
	return out
}

// ColumnFaces returns, in ascending order, every face cropped into a cell of
// column (tx, ty). Faces crossing a column seam appear in both columns.
func (g *Grid) ColumnFaces(tiles [2]int, tx, ty int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range g.Column(tiles, tx, ty) {
		for _, fi := range g.CropFaces(c) {
			if !seen[fi] {
				seen[fi] = true
				out = append(out, fi)
			}
		}
	}
	slices.Sort(out)
	return out
}

// TextureColumn maps a cell to its texture column.
func (g *Grid) TextureColumn(c Cell, tiles [2]int) (int, int) {
	tx := c.X * tiles[0] / g.Counts[0]
	ty := c.Y * tiles[1] / g.Counts[1]
	return tx, ty
}

// MaxFaces returns the largest face count of any cell.
func (g *Grid) MaxFaces() int {
	best := 0
	for _, faces := range g.cells {
		if len(faces) > best {
			best = len(faces)
		}
	}
	return best
}
