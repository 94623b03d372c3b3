package mesh

import (
	"context"
	"sort"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// RemapResult summarises one column remap.
type RemapResult struct {
	// Transformed counts vertices moved in place.
	Transformed int
	// Cloned counts vertices that were already transformed by another column
	// and were copied for this one.
	Cloned int
	// Missing holds vertices whose original coordinate matched no transform.
	Missing []TextureVertex

	clones  map[int]int
	missing map[int]bool
}

// Handle returns the texture handle the remapped column uses for uv: the
// clone made for this column, or uv itself. A nil result maps uv to itself.
func (r *RemapResult) Handle(uv int) int {
	if r == nil {
		return uv
	}
	if clone, ok := r.clones[uv]; ok {
		return clone
	}
	return uv
}

// Unmapped reports whether uv matched no transform of the column.
func (r *RemapResult) Unmapped(uv int) bool {
	return r != nil && r.missing[uv]
}

// RemapUVs moves every texture vertex referenced by faces into atlas space
// using the first transform whose source rectangle contains its original
// coordinate. A vertex already transformed for another column is cloned; the
// clone is recorded in the result and resolved through Handle, so faces shared
// with other columns keep pointing at the original. Each vertex is updated
// under the store lock, so cancellation never leaves a vertex half remapped.
func (m *Mesh) RemapUVs(ctx context.Context, faces []int, transforms []math.RectTransform) (*RemapResult, error) {
	result := &RemapResult{
		clones:  make(map[int]int),
		missing: make(map[int]bool),
	}

	seen := make(map[int]bool)
	var order []int
	for _, fi := range faces {
		for _, uv := range m.Faces[fi].UVs {
			if uv != 0 && !seen[uv] {
				seen[uv] = true
				order = append(order, uv)
			}
		}
	}
	sort.Ints(order)

	for _, uv := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		m.remapOne(uv, transforms, result)
	}
	return result, nil
}

func (m *Mesh) remapOne(uv int, transforms []math.RectTransform, result *RemapResult) {
	m.uvMu.Lock()
	defer m.uvMu.Unlock()

	tv := &m.uvs[uv-1]
	tr, ok := findTransform(tv.Original(), transforms)
	if !ok {
		result.Missing = append(result.Missing, *tv)
		result.missing[uv] = true
		return
	}

	if !tv.Transformed {
		_ = tv.Transform(tr)
		result.Transformed++
		return
	}

	clone := TextureVertex{
		Index:     len(m.uvs) + 1,
		OriginalX: tv.OriginalX,
		OriginalY: tv.OriginalY,
	}
	_ = clone.Transform(tr)
	m.uvs = append(m.uvs, clone)
	result.clones[uv] = clone.Index
	result.Cloned++
}

func findTransform(uv math.Vec2, transforms []math.RectTransform) (math.RectTransform, bool) {
	for _, tr := range transforms {
		if tr.ContainsPoint(uv.X, uv.Y) {
			return tr, true
		}
	}
	return math.RectTransform{}, false
}
