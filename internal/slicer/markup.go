package slicer

import (
	"context"
	"image"

	"github.com/Faultbox/meshcuber/internal/texture"
	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// UVTriangles returns the texture-space triangle of every textured face.
func UVTriangles(ctx context.Context, m *mesh.Mesh) ([][3]math.Vec2, error) {
	tris := make([][3]math.Vec2, 0, len(m.Faces))
	for i, f := range m.Faces {
		if i%mesh.ProgressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !f.Textured() {
			continue
		}
		var tri [3]math.Vec2
		for c, uv := range f.UVs {
			tri[c] = m.TextureVertex(uv).UV()
		}
		tris = append(tris, tri)
	}
	return tris, nil
}

// Markup draws every UV triangle of m over img.
func Markup(ctx context.Context, m *mesh.Mesh, img image.Image) (image.Image, error) {
	tris, err := UVTriangles(ctx, m)
	if err != nil {
		return nil, err
	}
	return texture.DrawUVTriangles(img, tris, texture.ColorTriangle)
}
