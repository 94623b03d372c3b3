// Package formats provides writers and parsers for mesh tile files and the
// cell existence bitmap.
package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// Format identifies a tile file format.
type Format int

// Tile formats.
const (
	FormatOBJ  Format = iota // Wavefront text mesh
	FormatEBO                // Compact binary mesh with back-references
	FormatEBO2               // EBO with a unique vertex count in the header
	FormatCTM                // OpenCTM RAW
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown tile format")

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatEBO:
		return "ebo"
	case FormatEBO2:
		return "ebo2"
	case FormatCTM:
		return "ctm"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	return "." + f.String()
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "obj":
		return FormatOBJ, nil
	case "ebo":
		return FormatEBO, nil
	case "ebo2":
		return FormatEBO2, nil
	case "ctm", "openctm":
		return FormatCTM, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// TileSource is the triangle list written to a tile file. Corners carry
// vertex and texture handles that Position and UV resolve.
type TileSource interface {
	Len() int
	Triangle(i int) mesh.Triangle
	Position(h int) math.Vec3
	UV(h int) math.Vec2
}

// indexed is a tile's corners collapsed to unique (vertex, texture) pairs in
// order of first use.
type indexed struct {
	pairs   []mesh.Corner
	indices []uint32
}

func indexCorners(src TileSource) indexed {
	n := src.Len()
	out := indexed{indices: make([]uint32, 0, n*3)}
	seen := make(map[mesh.Corner]uint32, n*3)
	for i := 0; i < n; i++ {
		for _, c := range src.Triangle(i) {
			idx, ok := seen[c]
			if !ok {
				idx = uint32(len(out.pairs))
				seen[c] = idx
				out.pairs = append(out.pairs, c)
			}
			out.indices = append(out.indices, idx)
		}
	}
	return out
}
