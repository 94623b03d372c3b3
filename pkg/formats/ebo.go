package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// EBO record tags.
const (
	EBOTagReference byte = 0    // u32 back-reference to an identical corner
	EBOTagPosition  byte = 64   // u32 back-reference to the position, then a new UV
	EBOTagVertex    byte = 255  // full position and UV
	EBOTerminator   byte = 0x80 // end of stream
)

// EBO format errors.
var (
	ErrTooManyFaces         = errors.New("tile exceeds 65535 faces")
	ErrTruncatedEBOData     = errors.New("truncated EBO data")
	ErrInvalidEBOTag        = errors.New("invalid EBO record tag")
	ErrInvalidEBOReference  = errors.New("EBO back-reference out of range")
	ErrMissingEBOTerminator = errors.New("missing EBO terminator")
)

// EBOVertex is one decoded triangle corner.
type EBOVertex struct {
	Position [3]float32
	UV       [2]float32
}

// EBO is a decoded EBO or EBO2 stream.
type EBO struct {
	FaceCount int
	// Unique is the header's unique (position, UV) count. Zero for EBO.
	Unique int
	// Vertices holds three corners per face with back-references resolved.
	Vertices []EBOVertex
	// Tags holds the record tag of every corner.
	Tags []byte
}

// WriteEBO writes a tile as an EBO stream and returns the face count.
func WriteEBO(w io.Writer, src TileSource) (int, error) {
	return writeEBO(w, src, false)
}

// WriteEBO2 writes a tile as an EBO stream whose header also carries the
// number of unique (position, UV) pairs.
func WriteEBO2(w io.Writer, src TileSource) (int, error) {
	return writeEBO(w, src, true)
}

func writeEBO(w io.Writer, src TileSource, withUnique bool) (int, error) {
	n := src.Len()
	if n > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %d", ErrTooManyFaces, n)
	}

	bw := bufio.NewWriter(w)
	binary.Write(bw, binary.LittleEndian, uint16(n))
	if withUnique {
		binary.Write(bw, binary.LittleEndian, uint32(len(indexCorners(src).pairs)))
	}

	// Linear corner index of the first occurrence of each pair and position.
	pairs := make(map[mesh.Corner]uint32, n*3)
	positions := make(map[int]uint32, n*3)
	var k uint32
	for i := 0; i < n; i++ {
		for _, c := range src.Triangle(i) {
			if ref, ok := pairs[c]; ok {
				bw.WriteByte(EBOTagReference)
				binary.Write(bw, binary.LittleEndian, ref)
				k++
				continue
			}
			pairs[c] = k

			uv := src.UV(c.T)
			if ref, ok := positions[c.V]; ok {
				bw.WriteByte(EBOTagPosition)
				binary.Write(bw, binary.LittleEndian, ref)
			} else {
				positions[c.V] = k
				p := src.Position(c.V)
				bw.WriteByte(EBOTagVertex)
				binary.Write(bw, binary.LittleEndian, [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
			}
			binary.Write(bw, binary.LittleEndian, [2]float32{float32(uv.X), float32(uv.Y)})
			k++
		}
	}
	bw.WriteByte(EBOTerminator)

	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("writing EBO: %w", err)
	}
	return n, nil
}

// ParseEBO decodes an EBO stream.
func ParseEBO(data []byte) (*EBO, error) {
	return parseEBO(data, false)
}

// ParseEBO2 decodes an EBO2 stream.
func ParseEBO2(data []byte) (*EBO, error) {
	return parseEBO(data, true)
}

func parseEBO(data []byte, withUnique bool) (*EBO, error) {
	r := bytes.NewReader(data)

	var faces uint16
	if err := binary.Read(r, binary.LittleEndian, &faces); err != nil {
		return nil, fmt.Errorf("%w: reading face count", ErrTruncatedEBOData)
	}
	ebo := &EBO{
		FaceCount: int(faces),
		Vertices:  make([]EBOVertex, 0, int(faces)*3),
		Tags:      make([]byte, 0, int(faces)*3),
	}
	if withUnique {
		var unique uint32
		if err := binary.Read(r, binary.LittleEndian, &unique); err != nil {
			return nil, fmt.Errorf("%w: reading unique count", ErrTruncatedEBOData)
		}
		ebo.Unique = int(unique)
	}

	for k := 0; k < ebo.FaceCount*3; k++ {
		v, tag, err := parseEBOVertex(r, ebo.Vertices)
		if err != nil {
			return nil, fmt.Errorf("parsing corner %d: %w", k, err)
		}
		ebo.Vertices = append(ebo.Vertices, v)
		ebo.Tags = append(ebo.Tags, tag)
	}

	end, err := r.ReadByte()
	if err != nil || end != EBOTerminator {
		return nil, ErrMissingEBOTerminator
	}
	return ebo, nil
}

func parseEBOVertex(r *bytes.Reader, prior []EBOVertex) (EBOVertex, byte, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return EBOVertex{}, 0, fmt.Errorf("%w: reading tag", ErrTruncatedEBOData)
	}

	var v EBOVertex
	switch tag {
	case EBOTagReference, EBOTagPosition:
		var ref uint32
		if err := binary.Read(r, binary.LittleEndian, &ref); err != nil {
			return EBOVertex{}, 0, fmt.Errorf("%w: reading reference", ErrTruncatedEBOData)
		}
		if int(ref) >= len(prior) {
			return EBOVertex{}, 0, fmt.Errorf("%w: %d of %d", ErrInvalidEBOReference, ref, len(prior))
		}
		v = prior[ref]
		if tag == EBOTagReference {
			return v, tag, nil
		}
	case EBOTagVertex:
		if err := binary.Read(r, binary.LittleEndian, &v.Position); err != nil {
			return EBOVertex{}, 0, fmt.Errorf("%w: reading position", ErrTruncatedEBOData)
		}
	default:
		return EBOVertex{}, 0, fmt.Errorf("%w: %d", ErrInvalidEBOTag, tag)
	}

	if err := binary.Read(r, binary.LittleEndian, &v.UV); err != nil {
		return EBOVertex{}, 0, fmt.Errorf("%w: reading uv", ErrTruncatedEBOData)
	}
	return v, tag, nil
}
