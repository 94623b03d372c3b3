package mesh

import (
	"context"
	"fmt"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// degenerateEpsilon is the smallest clipped triangle area, relative to the
// squared cell diagonal, that is kept.
const degenerateEpsilon = 1e-12

// AnomalyKind classifies geometry the cropper could not clip cleanly.
type AnomalyKind int

const (
	// AnomalyNoIntersection means an edge leaving the cell did not hit its
	// boundary; the face was kept unclipped.
	AnomalyNoIntersection AnomalyKind = iota
	// AnomalyOutside means every vertex of the face lies outside the cell.
	AnomalyOutside
	// AnomalyDegenerate means a clipped triangle collapsed to zero area.
	AnomalyDegenerate
)

func (k AnomalyKind) String() string {
	switch k {
	case AnomalyNoIntersection:
		return "no intersection"
	case AnomalyOutside:
		return "outside"
	case AnomalyDegenerate:
		return "degenerate"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Anomaly is a face the cropper reported instead of clipping.
type Anomaly struct {
	Face int
	Kind AnomalyKind
}

// Corner is one triangle corner: a vertex handle and a texture handle. Handles
// up to the mesh counts address the mesh; larger handles address the tile
// overlay. A texture handle of 0 means no coordinate.
type Corner struct {
	V, T int
}

// Triangle is a cropped face.
type Triangle [3]Corner

// Tile is the cropped geometry of one grid cell. It reads mesh positions
// directly and carries its own copy of every UV it references, so later
// remapping of other columns cannot change it.
type Tile struct {
	Cell      Cell
	Extent    math.Extent
	Triangles []Triangle
	Anomalies []Anomaly

	mesh       *Mesh
	vertexBase int
	uvBase     int
	positions  []math.Vec3
	uvs        map[int]math.Vec2
}

// Len returns the number of triangles.
func (t *Tile) Len() int {
	return len(t.Triangles)
}

// Triangle returns triangle i.
func (t *Tile) Triangle(i int) Triangle {
	return t.Triangles[i]
}

// Empty reports whether the tile has no geometry.
func (t *Tile) Empty() bool {
	return len(t.Triangles) == 0
}

// Position resolves a vertex handle.
func (t *Tile) Position(h int) math.Vec3 {
	if h > t.vertexBase {
		return t.positions[h-t.vertexBase-1]
	}
	return t.mesh.Position(h)
}

// UV resolves a texture handle. Handle 0 yields the zero coordinate.
func (t *Tile) UV(h int) math.Vec2 {
	return t.uvs[h]
}

// Textured reports whether any corner carries a texture coordinate.
func (t *Tile) Textured() bool {
	for _, tri := range t.Triangles {
		for _, c := range tri {
			if c.T != 0 {
				return true
			}
		}
	}
	return false
}

// Area returns the total surface area.
func (t *Tile) Area() float64 {
	var sum float64
	for _, tri := range t.Triangles {
		sum += math.TriangleArea(t.Position(tri[0].V), t.Position(tri[1].V), t.Position(tri[2].V))
	}
	return sum
}

func (t *Tile) addPosition(p math.Vec3) int {
	t.positions = append(t.positions, p)
	return t.vertexBase + len(t.positions)
}

func (t *Tile) addUV(uv math.Vec2) int {
	t.uvBase++
	t.uvs[t.uvBase] = uv
	return t.uvBase
}

type edgeKey struct {
	from, to int
}

type uvEdgeKey struct {
	from, to int
	v, w     int
}

// cropper holds the per-tile caches that make clipped points shared by
// neighbouring faces resolve to one handle.
type cropper struct {
	tile     *Tile
	remap    *RemapResult
	minArea  float64
	vertices map[edgeKey]int
	uvs      map[uvEdgeKey]int
}

// CropCell clips the given faces against extent. Faces fully inside are
// copied, faces crossing the boundary are cut at the boundary, with UVs
// interpolated by 3D distance along the cut edge. Faces are usually the cell's
// Grid.CropFaces, so each neighbour contributes the part that reaches into the
// cell.
//
// Texture handles are resolved through remap, the result of the column's
// RemapUVs, or used as is when remap is nil. Vertices the remap reported as
// unmapped keep their original coordinate. The mesh is not modified.
func CropCell(ctx context.Context, m *Mesh, cell Cell, extent math.Extent, faces []int, remap *RemapResult) (*Tile, error) {
	tile := &Tile{
		Cell:       cell,
		Extent:     extent,
		Triangles:  make([]Triangle, 0, len(faces)),
		mesh:       m,
		vertexBase: len(m.Vertices),
	}
	tile.uvs, tile.uvBase = m.snapshotUVs(faces, remap)

	diag := extent.Size().Length()
	c := &cropper{
		tile:     tile,
		remap:    remap,
		minArea:  degenerateEpsilon * diag * diag,
		vertices: make(map[edgeKey]int),
		uvs:      make(map[uvEdgeKey]int),
	}

	for _, fi := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.crop(fi, m.Faces[fi])
	}
	return tile, nil
}

// snapshotUVs copies the coordinates of every texture handle faces resolve to,
// and returns them with the store size the tile overlay starts above.
func (m *Mesh) snapshotUVs(faces []int, remap *RemapResult) (map[int]math.Vec2, int) {
	out := make(map[int]math.Vec2, len(faces)*3/2)
	m.uvMu.RLock()
	defer m.uvMu.RUnlock()
	for _, fi := range faces {
		for _, uv := range m.Faces[fi].UVs {
			if uv == 0 {
				continue
			}
			h := remap.Handle(uv)
			if _, ok := out[h]; ok {
				continue
			}
			if remap.Unmapped(uv) {
				out[h] = m.uvs[uv-1].Original()
			} else {
				out[h] = m.uvs[h-1].UV()
			}
		}
	}
	return out, len(m.uvs)
}

func (c *cropper) crop(fi int, f Face) {
	t := c.tile
	var corners [3]Corner
	var outside [3]bool
	count := 0
	for i := 0; i < 3; i++ {
		corners[i] = Corner{V: f.Vertices[i], T: c.remap.Handle(f.UVs[i])}
		if !t.Extent.Contains(t.Position(f.Vertices[i])) {
			outside[i] = true
			count++
		}
	}

	switch count {
	case 0:
		t.Triangles = append(t.Triangles, Triangle(corners))

	case 3:
		t.Anomalies = append(t.Anomalies, Anomaly{Face: fi, Kind: AnomalyOutside})

	case 2:
		home := 0
		for i := range outside {
			if !outside[i] {
				home = i
			}
		}
		tri := Triangle(corners)
		for i := 0; i < 3; i++ {
			if i == home {
				continue
			}
			hit, ok := c.entry(corners[i], corners[home])
			if !ok {
				t.Anomalies = append(t.Anomalies, Anomaly{Face: fi, Kind: AnomalyNoIntersection})
				t.Triangles = append(t.Triangles, Triangle(corners))
				return
			}
			tri[i] = hit
		}
		c.emit(fi, tri)

	case 1:
		out := 0
		for i := range outside {
			if outside[i] {
				out = i
			}
		}
		a, b := (out+1)%3, (out+2)%3
		hitA, okA := c.entry(corners[out], corners[a])
		hitB, okB := c.entry(corners[out], corners[b])
		if !okA || !okB {
			t.Anomalies = append(t.Anomalies, Anomaly{Face: fi, Kind: AnomalyNoIntersection})
			t.Triangles = append(t.Triangles, Triangle(corners))
			return
		}
		// Quad (hitA, a, b, hitB) split on the a-hitB diagonal; both halves
		// keep the face winding.
		c.emit(fi, Triangle{hitA, corners[a], hitB})
		c.emit(fi, Triangle{corners[a], corners[b], hitB})
	}
}

func (c *cropper) emit(fi int, tri Triangle) {
	t := c.tile
	area := math.TriangleArea(t.Position(tri[0].V), t.Position(tri[1].V), t.Position(tri[2].V))
	if area <= c.minArea {
		t.Anomalies = append(t.Anomalies, Anomaly{Face: fi, Kind: AnomalyDegenerate})
		return
	}
	t.Triangles = append(t.Triangles, tri)
}

// entry returns the corner where the edge from an outside corner to an inside
// corner enters the cell.
func (c *cropper) entry(out, home Corner) (Corner, bool) {
	t := c.tile
	from := t.Position(out.V)
	to := t.Position(home.V)

	key := edgeKey{out.V, home.V}
	v, ok := c.vertices[key]
	var hit math.Vec3
	if ok {
		hit = t.Position(v)
	} else {
		var found bool
		hit, _, found = t.Extent.Entry(from, to)
		if !found {
			return Corner{}, false
		}
		v = t.addPosition(hit)
		c.vertices[key] = v
	}

	if out.T == 0 || home.T == 0 {
		return Corner{V: v}, true
	}

	uvKey := uvEdgeKey{out.V, home.V, out.T, home.T}
	if uv, ok := c.uvs[uvKey]; ok {
		return Corner{V: v, T: uv}, true
	}

	homeUV := t.UV(home.T)
	outUV := t.UV(out.T)
	ratio := 0.0
	if full := to.Distance(from); full > 0 {
		ratio = to.Distance(hit) / full
	}
	uv := t.addUV(homeUV.Add(outUV.Sub(homeUV).Scale(ratio)))
	c.uvs[uvKey] = uv
	return Corner{V: v, T: uv}, true
}
