package formats

import (
	"bufio"
	"fmt"
	"io"
)

// WriteMTL writes a material library with one material whose diffuse map is
// texture.
func WriteMTL(w io.Writer, material, texture string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, OBJHeader)
	fmt.Fprintf(bw, "newmtl %s\n", material)
	fmt.Fprintln(bw, "Ka 1.000 1.000 1.000")
	fmt.Fprintln(bw, "Kd 1.000 1.000 1.000")
	fmt.Fprintln(bw, "Ks 0.000 0.000 0.000")
	fmt.Fprintln(bw, "d 1.0")
	fmt.Fprintln(bw, "illum 1")
	fmt.Fprintf(bw, "map_Kd %s\n", texture)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing MTL: %w", err)
	}
	return nil
}
