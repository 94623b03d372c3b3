package mesh

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshcuber/pkg/math"
)

// ProgressInterval is the number of lines between progress callbacks.
const ProgressInterval = 1000

// maxLineLength bounds a single OBJ line.
const maxLineLength = 16 * 1024 * 1024

// ParseError describes a record that could not be parsed.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadOptions configures OBJ loading.
type LoadOptions struct {
	// SwapYZ stores (x, z, -y) instead of (x, y, z).
	SwapYZ bool
	// Progress is called every ProgressInterval lines with the line count.
	Progress func(lines int)
}

// LoadFile opens and parses an OBJ file.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()

	return Load(ctx, f, opts)
}

// Load parses an OBJ stream one line at a time. Records other than v, vt, f
// and mtllib are ignored.
func Load(ctx context.Context, r io.Reader, opts LoadOptions) (*Mesh, error) {
	m := New()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)

	line := 0
	for scanner.Scan() {
		line++
		if line%ProgressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if opts.Progress != nil {
				opts.Progress(line)
			}
		}

		text := scanner.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "v":
			err = m.parseVertex(fields[1:], opts.SwapYZ)
		case "vt":
			err = m.parseTextureVertex(fields[1:])
		case "f":
			err = m.parseFace(fields[1:])
		case "mtllib":
			if len(fields) < 2 {
				err = ErrMalformedRecord
			} else {
				m.Material = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "mtllib"))
			}
		}
		if err != nil {
			return nil, &ParseError{Line: line, Text: text, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mesh: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.UpdateSize()
	return m, nil
}

func (m *Mesh) parseVertex(args []string, swapYZ bool) error {
	if len(args) < 3 {
		return ErrMalformedRecord
	}
	var c [3]float64
	for i := range c {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		c[i] = v
	}
	p := math.Vec3{X: c[0], Y: c[1], Z: c[2]}
	if swapYZ {
		p.Y, p.Z = c[2], -c[1]
	}
	if !p.IsFinite() {
		return fmt.Errorf("%w: non-finite coordinate", ErrMalformedRecord)
	}
	m.AddVertex(p)
	return nil
}

func (m *Mesh) parseTextureVertex(args []string) error {
	if len(args) < 2 {
		return ErrMalformedRecord
	}
	u, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	m.AddTextureVertex(u, v)
	return nil
}

func (m *Mesh) parseFace(args []string) error {
	if len(args) < 3 {
		return ErrMalformedRecord
	}
	if len(args) > 3 {
		return ErrNonTriangularFace
	}

	var vertices, uvs [3]int
	uvCount := m.TextureVertexCount()
	for i, arg := range args {
		parts := strings.Split(arg, "/")
		if len(parts) > 3 {
			return ErrMalformedRecord
		}
		v, err := resolveIndex(parts[0], len(m.Vertices))
		if err != nil {
			return err
		}
		vertices[i] = v
		if len(parts) > 1 && parts[1] != "" {
			t, err := resolveIndex(parts[1], uvCount)
			if err != nil {
				return err
			}
			uvs[i] = t
		}
	}
	m.AddFace(vertices, uvs)
	return nil
}

// resolveIndex parses a 1-based OBJ index. Negative indices count back from
// the most recent element.
func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	switch {
	case i > 0:
		return i, nil
	case i < 0 && count+i+1 > 0:
		return count + i + 1, nil
	default:
		return 0, fmt.Errorf("%w: index %s", ErrIndexOutOfRange, s)
	}
}
