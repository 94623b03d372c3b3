package formats

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// testTile is an in-memory TileSource.
type testTile struct {
	triangles []mesh.Triangle
	positions map[int]math.Vec3
	uvs       map[int]math.Vec2
	length    int
}

func (t *testTile) Len() int {
	if t.length != 0 {
		return t.length
	}
	return len(t.triangles)
}
func (t *testTile) Triangle(i int) mesh.Triangle { return t.triangles[i] }
func (t *testTile) Position(h int) math.Vec3     { return t.positions[h] }
func (t *testTile) UV(h int) math.Vec2           { return t.uvs[h] }

// createTestTile returns two triangles sharing an edge. Vertex 2 carries two
// different texture coordinates.
func createTestTile() *testTile {
	return &testTile{
		triangles: []mesh.Triangle{
			{{V: 1, T: 1}, {V: 2, T: 2}, {V: 3, T: 3}},
			{{V: 3, T: 3}, {V: 2, T: 4}, {V: 4, T: 5}},
		},
		positions: map[int]math.Vec3{
			1: {X: 0, Y: 0, Z: 0},
			2: {X: 1, Y: 0, Z: 0},
			3: {X: 0, Y: 1, Z: 0},
			4: {X: 1, Y: 1, Z: 0.5},
		},
		uvs: map[int]math.Vec2{
			1: {X: 0, Y: 0},
			2: {X: 0.5, Y: 0},
			3: {X: 0, Y: 0.5},
			4: {X: 0.75, Y: 0.25},
			5: {X: 1, Y: 1},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
		ext  string
	}{
		{"obj", FormatOBJ, ".obj"},
		{"EBO", FormatEBO, ".ebo"},
		{"ebo2", FormatEBO2, ".ebo2"},
		{"openctm", FormatCTM, ".ctm"},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.name)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("expected %v, got %v", tt.want, got)
		}
		if got.Extension() != tt.ext {
			t.Errorf("expected extension %s, got %s", tt.ext, got.Extension())
		}
	}

	if _, err := ParseFormat("fbx"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if Format(9).String() != "Unknown(9)" {
		t.Errorf("expected Unknown(9), got %s", Format(9))
	}
}

func TestWriteOBJ(t *testing.T) {
	tile := createTestTile()
	tile.triangles[0][0].V = 7
	tile.positions[7] = math.Vec3{X: -1.5, Y: 2, Z: 0.25}

	var buf bytes.Buffer
	n, err := WriteOBJ(&buf, tile, OBJOptions{Material: "tile_0_0.mtl"})
	if err != nil {
		t.Fatalf("WriteOBJ failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 faces, got %d", n)
	}

	want := strings.Join([]string{
		OBJHeader,
		"mtllib tile_0_0.mtl",
		"v -1.5 2 0.25",
		"v 1 0 0",
		"v 0 1 0",
		"v 1 1 0.5",
		"vt 0 0",
		"vt 0.5 0",
		"vt 0 0.5",
		"vt 0.75 0.25",
		"vt 1 1",
		"f 1/1 2/2 3/3",
		"f 3/3 2/4 4/5",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("unexpected OBJ:\n%s\nexpected:\n%s", buf.String(), want)
	}
}

func TestWriteOBJ_Untextured(t *testing.T) {
	tile := &testTile{
		triangles: []mesh.Triangle{{{V: 4}, {V: 5}, {V: 6}}},
		positions: map[int]math.Vec3{4: {}, 5: {X: 1}, 6: {Y: 1}},
	}

	var buf bytes.Buffer
	if _, err := WriteOBJ(&buf, tile, OBJOptions{}); err != nil {
		t.Fatalf("WriteOBJ failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "mtllib") || strings.Contains(out, "vt ") {
		t.Errorf("expected no material or texture lines, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "f 1 2 3\n") {
		t.Errorf("expected face without texture indices, got:\n%s", out)
	}
}

func TestWriteEBO(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteEBO(&buf, createTestTile())
	if err != nil {
		t.Fatalf("WriteEBO failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 faces, got %d", n)
	}

	data := buf.Bytes()
	// 2 header + 4 full records + 1 reference + 1 position reference + terminator
	if len(data) != 2+4*21+5+13+1 {
		t.Errorf("expected %d bytes, got %d", 2+4*21+5+13+1, len(data))
	}
	if data[len(data)-1] != EBOTerminator {
		t.Errorf("expected terminator 0x80, got 0x%02x", data[len(data)-1])
	}

	ebo, err := ParseEBO(data)
	if err != nil {
		t.Fatalf("ParseEBO failed: %v", err)
	}
	wantTags := []byte{EBOTagVertex, EBOTagVertex, EBOTagVertex, EBOTagReference, EBOTagPosition, EBOTagVertex}
	if !bytes.Equal(ebo.Tags, wantTags) {
		t.Errorf("expected tags %v, got %v", wantTags, ebo.Tags)
	}
	if ebo.Vertices[3] != ebo.Vertices[2] {
		t.Errorf("expected corner 3 to repeat corner 2, got %+v", ebo.Vertices[3])
	}
	if ebo.Vertices[4].Position != ebo.Vertices[1].Position {
		t.Errorf("expected corner 4 to share the position of corner 1")
	}
	if ebo.Vertices[4].UV != [2]float32{0.75, 0.25} {
		t.Errorf("expected corner 4 uv (0.75, 0.25), got %v", ebo.Vertices[4].UV)
	}
	if ebo.Vertices[5].Position != [3]float32{1, 1, 0.5} {
		t.Errorf("expected corner 5 at (1, 1, 0.5), got %v", ebo.Vertices[5].Position)
	}
}

func TestWriteEBO2(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteEBO2(&buf, createTestTile()); err != nil {
		t.Fatalf("WriteEBO2 failed: %v", err)
	}

	ebo, err := ParseEBO2(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseEBO2 failed: %v", err)
	}
	if ebo.Unique != 5 {
		t.Errorf("expected 5 unique pairs, got %d", ebo.Unique)
	}
	if ebo.FaceCount != 2 || len(ebo.Vertices) != 6 {
		t.Errorf("expected 2 faces and 6 corners, got %d and %d", ebo.FaceCount, len(ebo.Vertices))
	}
}

func TestWriteEBO_TooManyFaces(t *testing.T) {
	_, err := WriteEBO(&bytes.Buffer{}, &testTile{length: 70000})
	if !errors.Is(err, ErrTooManyFaces) {
		t.Errorf("expected ErrTooManyFaces, got %v", err)
	}
}

func TestParseEBO_Errors(t *testing.T) {
	var buf bytes.Buffer
	WriteEBO(&buf, createTestTile())
	valid := buf.Bytes()

	badRef := []byte{1, 0, EBOTagReference, 5, 0, 0, 0}
	badTag := []byte{1, 0, 17}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedEBOData},
		{"truncated", valid[:30], ErrTruncatedEBOData},
		{"no terminator", valid[:len(valid)-1], ErrMissingEBOTerminator},
		{"forward reference", badRef, ErrInvalidEBOReference},
		{"bad tag", badTag, ErrInvalidEBOTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEBO(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteCTM(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCTM(&buf, createTestTile(), CTMOptions{
		Comment:  "cell 0_0_0",
		Material: "atlas",
		Texture:  "texture_0_0.jpg",
	})
	if err != nil {
		t.Fatalf("WriteCTM failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 faces, got %d", n)
	}

	data := buf.Bytes()
	if string(data[0:4]) != "OCTM" || string(data[8:12]) != "RAW\x00" {
		t.Errorf("unexpected header %q", data[:12])
	}

	ctm, err := ParseCTM(data)
	if err != nil {
		t.Fatalf("ParseCTM failed: %v", err)
	}
	if ctm.Comment != "cell 0_0_0" || ctm.Material != "atlas" || ctm.Texture != "texture_0_0.jpg" {
		t.Errorf("unexpected strings %q %q %q", ctm.Comment, ctm.Material, ctm.Texture)
	}
	if ctm.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", ctm.TriangleCount())
	}
	wantIndices := []uint32{0, 1, 2, 2, 3, 4}
	for i, idx := range wantIndices {
		if ctm.Indices[i] != idx {
			t.Errorf("index %d: expected %d, got %d", i, idx, ctm.Indices[i])
		}
	}
	if len(ctm.Vertices) != 5 || len(ctm.UVs) != 5 {
		t.Fatalf("expected 5 vertices and uvs, got %d and %d", len(ctm.Vertices), len(ctm.UVs))
	}
	if ctm.Vertices[3] != [3]float32{1, 0, 0} || ctm.UVs[3] != [2]float32{0.75, 0.25} {
		t.Errorf("unexpected vertex 3: %v %v", ctm.Vertices[3], ctm.UVs[3])
	}
}

func TestParseCTM_Errors(t *testing.T) {
	var buf bytes.Buffer
	WriteCTM(&buf, createTestTile(), CTMOptions{})
	valid := buf.Bytes()

	badMagic := append([]byte("XXXX"), valid[4:]...)
	badVersion := bytes.Clone(valid)
	badVersion[4] = 4
	badChunk := bytes.Clone(valid)
	copy(badChunk[36:40], "VERT")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", valid[:20], ErrTruncatedCTMData},
		{"magic", badMagic, ErrInvalidCTMMagic},
		{"version", badVersion, ErrUnsupportedCTMVersion},
		{"chunk", badChunk, ErrInvalidCTMChunk},
		{"truncated", valid[:len(valid)-4], ErrTruncatedCTMData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCTM(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWriteMTL(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMTL(&buf, "tile_1_0", "texture_1_0.jpg"); err != nil {
		t.Fatalf("WriteMTL failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "newmtl tile_1_0\n") || !strings.Contains(out, "map_Kd texture_1_0.jpg\n") {
		t.Errorf("unexpected MTL:\n%s", out)
	}
}
