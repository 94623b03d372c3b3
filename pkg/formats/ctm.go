package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// OpenCTM constants.
const (
	CTMVersion = 5
	ctmMagic   = "OCTM"
	ctmRaw     = "RAW\x00"
	ctmIndices = "INDX"
	ctmVerts   = "VERT"
	ctmTexture = "TEXC"
)

// CTM format errors.
var (
	ErrInvalidCTMMagic       = errors.New("invalid CTM magic: expected 'OCTM'")
	ErrUnsupportedCTMVersion = errors.New("unsupported CTM version")
	ErrUnsupportedCTMMethod  = errors.New("unsupported CTM compression method")
	ErrTruncatedCTMData      = errors.New("truncated CTM data")
	ErrInvalidCTMChunk       = errors.New("unexpected CTM chunk")
)

// CTMOptions configures WriteCTM.
type CTMOptions struct {
	Comment  string
	Material string
	Texture  string
}

// CTM is a decoded OpenCTM RAW file with at most one UV map.
type CTM struct {
	Version  uint32
	Comment  string
	Indices  []uint32
	Vertices [][3]float32
	UVs      [][2]float32
	Material string
	Texture  string
}

// TriangleCount returns the number of triangles.
func (c *CTM) TriangleCount() int {
	return len(c.Indices) / 3
}

// WriteCTM writes a tile as OpenCTM RAW with a single UV map and returns the
// face count.
func WriteCTM(w io.Writer, src TileSource, opts CTMOptions) (int, error) {
	ix := indexCorners(src)
	bw := bufio.NewWriter(w)

	// Header
	bw.WriteString(ctmMagic)
	binary.Write(bw, binary.LittleEndian, uint32(CTMVersion))
	bw.WriteString(ctmRaw)
	binary.Write(bw, binary.LittleEndian, uint32(len(ix.pairs)))
	binary.Write(bw, binary.LittleEndian, uint32(src.Len()))
	binary.Write(bw, binary.LittleEndian, uint32(1)) // UV maps
	binary.Write(bw, binary.LittleEndian, uint32(0)) // attribute maps
	binary.Write(bw, binary.LittleEndian, uint32(0)) // flags
	writeCTMString(bw, opts.Comment)

	// Indices
	bw.WriteString(ctmIndices)
	binary.Write(bw, binary.LittleEndian, ix.indices)

	// Positions
	bw.WriteString(ctmVerts)
	for _, c := range ix.pairs {
		p := src.Position(c.V)
		binary.Write(bw, binary.LittleEndian, [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
	}

	// Texture coordinates
	bw.WriteString(ctmTexture)
	writeCTMString(bw, opts.Material)
	writeCTMString(bw, opts.Texture)
	for _, c := range ix.pairs {
		uv := src.UV(c.T)
		binary.Write(bw, binary.LittleEndian, [2]float32{float32(uv.X), float32(uv.Y)})
	}

	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("writing CTM: %w", err)
	}
	return src.Len(), nil
}

func writeCTMString(w *bufio.Writer, s string) {
	binary.Write(w, binary.LittleEndian, uint32(len(s)))
	w.WriteString(s)
}

// ParseCTM decodes an OpenCTM RAW file.
func ParseCTM(data []byte) (*CTM, error) {
	if len(data) < 36 {
		return nil, ErrTruncatedCTMData
	}
	if string(data[0:4]) != ctmMagic {
		return nil, ErrInvalidCTMMagic
	}

	r := bytes.NewReader(data[4:])
	var header struct {
		Version    uint32
		Method     [4]byte
		Vertices   uint32
		Triangles  uint32
		UVMaps     uint32
		AttribMaps uint32
		Flags      uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedCTMData)
	}
	if header.Version != CTMVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCTMVersion, header.Version)
	}
	if string(header.Method[:]) != ctmRaw {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCTMMethod, header.Method[:])
	}
	if header.UVMaps > 1 || header.AttribMaps != 0 || header.Flags != 0 {
		return nil, fmt.Errorf("%w: %d uv maps, %d attribute maps, flags %d",
			ErrUnsupportedCTMMethod, header.UVMaps, header.AttribMaps, header.Flags)
	}
	// Each triangle needs 12 bytes and each vertex at least 12.
	if uint64(header.Triangles)*12+uint64(header.Vertices)*12 > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: counts exceed data", ErrTruncatedCTMData)
	}

	ctm := &CTM{Version: header.Version}
	var err error
	if ctm.Comment, err = readCTMString(r); err != nil {
		return nil, err
	}

	if err := expectCTMChunk(r, ctmIndices); err != nil {
		return nil, err
	}
	ctm.Indices = make([]uint32, header.Triangles*3)
	if err := binary.Read(r, binary.LittleEndian, ctm.Indices); err != nil {
		return nil, fmt.Errorf("%w: reading indices", ErrTruncatedCTMData)
	}

	if err := expectCTMChunk(r, ctmVerts); err != nil {
		return nil, err
	}
	ctm.Vertices = make([][3]float32, header.Vertices)
	if err := binary.Read(r, binary.LittleEndian, ctm.Vertices); err != nil {
		return nil, fmt.Errorf("%w: reading vertices", ErrTruncatedCTMData)
	}

	if header.UVMaps == 1 {
		if err := expectCTMChunk(r, ctmTexture); err != nil {
			return nil, err
		}
		if ctm.Material, err = readCTMString(r); err != nil {
			return nil, err
		}
		if ctm.Texture, err = readCTMString(r); err != nil {
			return nil, err
		}
		ctm.UVs = make([][2]float32, header.Vertices)
		if err := binary.Read(r, binary.LittleEndian, ctm.UVs); err != nil {
			return nil, fmt.Errorf("%w: reading uvs", ErrTruncatedCTMData)
		}
	}

	return ctm, nil
}

func expectCTMChunk(r *bytes.Reader, tag string) error {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return fmt.Errorf("%w: reading %s tag", ErrTruncatedCTMData, tag)
	}
	if string(got[:]) != tag {
		return fmt.Errorf("%w: expected %s, got %q", ErrInvalidCTMChunk, tag, got[:])
	}
	return nil
}

func readCTMString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("%w: reading string length", ErrTruncatedCTMData)
	}
	if int64(n) > int64(r.Len()) {
		return "", fmt.Errorf("%w: string of %d bytes", ErrTruncatedCTMData, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: reading string", ErrTruncatedCTMData)
	}
	return string(buf), nil
}
