package formats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// OBJHeader is the comment line at the top of every written OBJ tile.
const OBJHeader = "# Generated by meshcuber"

// OBJOptions configures WriteOBJ.
type OBJOptions struct {
	// Material is written as the mtllib reference when set.
	Material string
}

// WriteOBJ writes a tile as a Wavefront OBJ. Only referenced vertices and
// texture vertices are written, densely renumbered from 1 in order of first
// use. It returns the number of faces written.
func WriteOBJ(w io.Writer, src TileSource, opts OBJOptions) (int, error) {
	bw := bufio.NewWriter(w)

	bw.WriteString(OBJHeader)
	bw.WriteByte('\n')
	if opts.Material != "" {
		fmt.Fprintf(bw, "mtllib %s\n", opts.Material)
	}

	n := src.Len()
	vertices := make(map[int]int)
	uvs := make(map[int]int)
	var vertexOrder, uvOrder []int
	for i := 0; i < n; i++ {
		for _, c := range src.Triangle(i) {
			if _, ok := vertices[c.V]; !ok {
				vertexOrder = append(vertexOrder, c.V)
				vertices[c.V] = len(vertexOrder)
			}
			if c.T == 0 {
				continue
			}
			if _, ok := uvs[c.T]; !ok {
				uvOrder = append(uvOrder, c.T)
				uvs[c.T] = len(uvOrder)
			}
		}
	}

	for _, h := range vertexOrder {
		p := src.Position(h)
		fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
	}
	for _, h := range uvOrder {
		uv := src.UV(h)
		fmt.Fprintf(bw, "vt %s %s\n", formatFloat(uv.X), formatFloat(uv.Y))
	}

	for i := 0; i < n; i++ {
		bw.WriteString("f")
		for _, c := range src.Triangle(i) {
			writeOBJCorner(bw, c, vertices, uvs)
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("writing OBJ: %w", err)
	}
	return n, nil
}

func writeOBJCorner(bw *bufio.Writer, c mesh.Corner, vertices, uvs map[int]int) {
	bw.WriteByte(' ')
	bw.WriteString(strconv.Itoa(vertices[c.V]))
	if c.T != 0 {
		bw.WriteByte('/')
		bw.WriteString(strconv.Itoa(uvs[c.T]))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
