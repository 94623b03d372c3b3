// Package atlas groups UV islands of a set of faces and packs them into a
// power-of-two texture atlas.
package atlas

import (
	"image"
	gomath "math"

	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// Bounds is a rectangle in normalized UV space.
type Bounds struct {
	MinU, MinV float64
	MaxU, MaxV float64
}

func emptyBounds() Bounds {
	return Bounds{
		MinU: gomath.Inf(1), MinV: gomath.Inf(1),
		MaxU: gomath.Inf(-1), MaxV: gomath.Inf(-1),
	}
}

func (b *Bounds) extend(u, v float64) {
	b.MinU = gomath.Min(b.MinU, u)
	b.MinV = gomath.Min(b.MinV, v)
	b.MaxU = gomath.Max(b.MaxU, u)
	b.MaxV = gomath.Max(b.MaxV, v)
}

// PixelRect converts the bounds to a pixel rectangle of a w x h texture, V
// flipped, grown by padding on every side and clamped to the texture.
func (b Bounds) PixelRect(w, h, padding int) image.Rectangle {
	r := image.Rect(
		int(gomath.Floor(b.MinU*float64(w)))-padding,
		int(gomath.Floor((1-b.MaxV)*float64(h)))-padding,
		int(gomath.Ceil(b.MaxU*float64(w)))+padding,
		int(gomath.Ceil((1-b.MinV)*float64(h)))+padding,
	)
	return r.Intersect(image.Rect(0, 0, w, h))
}

// Island is a maximal set of faces connected by shared texture vertices.
type Island struct {
	Faces  []int
	UVs    []int
	Bounds Bounds
}

type unionFind struct {
	parent map[int]int
}

func (u *unionFind) find(x int) int {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	for p != x {
		gp := u.parent[p]
		u.parent[x] = gp
		x, p = p, gp
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// FindIslands groups faces into islands. Bounds use the original texture
// coordinates so the result does not depend on earlier remapping. Faces
// without texture coordinates belong to no island. Islands are ordered by
// their first face.
func FindIslands(m *mesh.Mesh, faces []int) []Island {
	uf := &unionFind{parent: make(map[int]int)}
	for _, fi := range faces {
		f := m.Faces[fi]
		first := 0
		for _, uv := range f.UVs {
			if uv == 0 {
				continue
			}
			if first == 0 {
				first = uv
				uf.find(uv)
				continue
			}
			uf.union(first, uv)
		}
	}

	uvs := m.TextureVertices(faces)
	byRoot := make(map[int]int)
	var islands []Island
	seenUV := make(map[int]bool)
	for _, fi := range faces {
		f := m.Faces[fi]
		anchor := 0
		for _, uv := range f.UVs {
			if uv != 0 {
				anchor = uv
				break
			}
		}
		if anchor == 0 {
			continue
		}

		root := uf.find(anchor)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(islands)
			byRoot[root] = idx
			islands = append(islands, Island{Bounds: emptyBounds()})
		}
		island := &islands[idx]
		island.Faces = append(island.Faces, fi)
		for _, uv := range f.UVs {
			if uv == 0 || seenUV[uv] {
				continue
			}
			seenUV[uv] = true
			island.UVs = append(island.UVs, uv)
			o := uvs[uv].Original()
			island.Bounds.extend(o.X, o.Y)
		}
	}
	return islands
}
