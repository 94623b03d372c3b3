// Package mesh holds a textured triangle mesh and the operations that cut it
// into grid cells: spatial partitioning, cell cropping and UV remapping.
package mesh

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// Mesh errors.
var (
	ErrMalformedRecord    = errors.New("mesh: malformed record")
	ErrNonTriangularFace  = errors.New("mesh: face is not a triangle")
	ErrIndexOutOfRange    = errors.New("mesh: index out of range")
	ErrEmptyMesh          = errors.New("mesh: no vertices")
	ErrInvalidGrid        = errors.New("mesh: grid dimensions must be positive")
	ErrTransformedTexture = errors.New("mesh: texture vertex already transformed")
)

// Vertex is a mesh position. Index is 1-based and stable.
type Vertex struct {
	Index    int
	Position math.Vec3
}

// TextureVertex is a UV coordinate. X and Y may be moved once by an atlas
// transform; the original coordinates never change.
type TextureVertex struct {
	Index       int
	X, Y        float64
	OriginalX   float64
	OriginalY   float64
	Transformed bool
}

// UV returns the current coordinate.
func (t TextureVertex) UV() math.Vec2 {
	return math.Vec2{X: t.X, Y: t.Y}
}

// Original returns the coordinate as loaded.
func (t TextureVertex) Original() math.Vec2 {
	return math.Vec2{X: t.OriginalX, Y: t.OriginalY}
}

// Transform applies tr to the original coordinate and marks the vertex.
func (t *TextureVertex) Transform(tr math.RectTransform) error {
	if t.Transformed {
		return ErrTransformedTexture
	}
	uv := tr.Apply(t.Original())
	t.X, t.Y = uv.X, uv.Y
	t.Transformed = true
	return nil
}

// Face is a triangle. Indices are 1-based; a UV index of 0 means the corner has
// no texture coordinate.
type Face struct {
	Vertices [3]int
	UVs      [3]int
}

// HasUV reports whether face references texture vertex uv.
func (f Face) HasUV(uv int) bool {
	return f.UVs[0] == uv || f.UVs[1] == uv || f.UVs[2] == uv
}

// Textured reports whether every corner has a texture coordinate.
func (f Face) Textured() bool {
	return f.UVs[0] != 0 && f.UVs[1] != 0 && f.UVs[2] != 0
}

// String returns the face in OBJ notation.
func (f Face) String() string {
	return fmt.Sprintf("f %d/%d %d/%d %d/%d",
		f.Vertices[0], f.UVs[0], f.Vertices[1], f.UVs[1], f.Vertices[2], f.UVs[2])
}

// Mesh owns the vertex, texture vertex and face lists.
//
// Vertices and faces are written by the loader only. Texture vertices are
// shared between concurrently processed tile columns and are guarded by a
// lock; they may be transformed or cloned by RemapUVs.
type Mesh struct {
	Vertices []Vertex
	Faces    []Face
	Material string

	Size        math.Extent
	CubicalSize math.Extent

	uvMu sync.RWMutex
	uvs  []TextureVertex
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{
		Size:        math.EmptyExtent(),
		CubicalSize: math.EmptyExtent(),
	}
}

// AddVertex appends a position and returns its index.
func (m *Mesh) AddVertex(p math.Vec3) int {
	idx := len(m.Vertices) + 1
	m.Vertices = append(m.Vertices, Vertex{Index: idx, Position: p})
	return idx
}

// AddTextureVertex appends a UV coordinate and returns its index.
func (m *Mesh) AddTextureVertex(x, y float64) int {
	m.uvMu.Lock()
	defer m.uvMu.Unlock()
	idx := len(m.uvs) + 1
	m.uvs = append(m.uvs, TextureVertex{Index: idx, X: x, Y: y, OriginalX: x, OriginalY: y})
	return idx
}

// AddFace appends a triangle and returns its 0-based position in Faces.
func (m *Mesh) AddFace(vertices, uvs [3]int) int {
	m.Faces = append(m.Faces, Face{Vertices: vertices, UVs: uvs})
	return len(m.Faces) - 1
}

// Position returns the position of vertex index (1-based).
func (m *Mesh) Position(index int) math.Vec3 {
	return m.Vertices[index-1].Position
}

// TextureVertexCount returns the number of texture vertices, clones included.
func (m *Mesh) TextureVertexCount() int {
	m.uvMu.RLock()
	defer m.uvMu.RUnlock()
	return len(m.uvs)
}

// TextureVertex returns a copy of texture vertex index (1-based).
func (m *Mesh) TextureVertex(index int) TextureVertex {
	m.uvMu.RLock()
	defer m.uvMu.RUnlock()
	return m.uvs[index-1]
}

// TextureVertices returns copies of every texture vertex referenced by faces.
func (m *Mesh) TextureVertices(faces []int) map[int]TextureVertex {
	out := make(map[int]TextureVertex, len(faces)*3/2)
	m.uvMu.RLock()
	defer m.uvMu.RUnlock()
	for _, fi := range faces {
		for _, uv := range m.Faces[fi].UVs {
			if uv == 0 {
				continue
			}
			if _, ok := out[uv]; !ok {
				out[uv] = m.uvs[uv-1]
			}
		}
	}
	return out
}

// UpdateSize recomputes Size and CubicalSize from all vertices.
func (m *Mesh) UpdateSize() {
	size := math.EmptyExtent()
	for _, v := range m.Vertices {
		size.Extend(v.Position)
	}
	m.Size = size
	m.CubicalSize = size.Cubical()
}

// Validate checks that every face index refers to an existing vertex.
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return ErrEmptyMesh
	}
	uvCount := m.TextureVertexCount()
	for i, f := range m.Faces {
		for c := 0; c < 3; c++ {
			if v := f.Vertices[c]; v < 1 || v > len(m.Vertices) {
				return fmt.Errorf("%w: face %d vertex %d of %d", ErrIndexOutOfRange, i+1, v, len(m.Vertices))
			}
			if t := f.UVs[c]; t < 0 || t > uvCount {
				return fmt.Errorf("%w: face %d texture vertex %d of %d", ErrIndexOutOfRange, i+1, t, uvCount)
			}
		}
	}
	return nil
}
