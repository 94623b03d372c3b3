package slicer

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshcuber/internal/config"
	"github.com/Faultbox/meshcuber/internal/texture"
	"github.com/Faultbox/meshcuber/pkg/atlas"
	"github.com/Faultbox/meshcuber/pkg/formats"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// cubeOBJ is a 2x2x2 cube with each side split on one diagonal.
const cubeOBJ = `mtllib cube.mtl
v 0 0 0
v 2 0 0
v 0 2 0
v 2 2 0
v 0 0 2
v 2 0 2
v 0 2 2
v 2 2 2
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 3/4 4/3
f 1/1 4/3 2/2
f 5/1 6/2 8/3
f 5/1 8/3 7/4
f 1/1 2/2 6/3
f 1/1 6/3 5/4
f 3/1 7/4 8/3
f 3/1 8/3 4/2
f 1/1 5/4 7/3
f 1/1 7/3 3/2
f 2/1 4/2 8/3
f 2/1 8/3 6/4
`

func writeCube(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cube.obj")
	if err := os.WriteFile(path, []byte(cubeOBJ), 0644); err != nil {
		t.Fatalf("writing cube: %v", err)
	}
	return path
}

func writeTexture(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	path := filepath.Join(t.TempDir(), "cube.png")
	if err := texture.Save(path, img, 0); err != nil {
		t.Fatalf("writing texture: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.Formats = []string{"obj", "ebo", "ctm"}
	cfg.Slicing.Workers = 2
	return cfg
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(config.Default(), "", zap.NewNop()); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}

	cfg := config.Default()
	cfg.Slicing.GridX = 0
	if _, err := New(cfg, "mesh.obj", zap.NewNop()); !errors.Is(err, config.ErrInvalidGrid) {
		t.Errorf("expected ErrInvalidGrid, got %v", err)
	}

	cfg = config.Default()
	cfg.Output.Formats = []string{"fbx"}
	if _, err := New(cfg, "mesh.obj", zap.NewNop()); !errors.Is(err, formats.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestRun_Cube(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, writeCube(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	md, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if md.Count() != 8 {
		t.Errorf("expected 8 non-empty cells, got %d", md.Count())
	}
	if md.VertexCount != 8 {
		t.Errorf("expected vertex count 8, got %d", md.VertexCount)
	}
	if md.TextureSetSize != [2]int{1, 1} {
		t.Errorf("expected texture set 1x1, got %v", md.TextureSetSize)
	}
	if md.RunID == "" {
		t.Error("expected a run id")
	}

	for _, c := range formats.GridCells(2, 2, 2) {
		for _, ext := range []string{".obj", ".ebo", ".ctm"} {
			path := filepath.Join(cfg.Output.Dir, c.String()+ext)
			if _, err := os.Stat(path); err != nil {
				t.Errorf("expected tile %s: %v", path, err)
			}
		}
	}

	obj, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "0_0_0.obj"))
	if err != nil {
		t.Fatalf("reading tile: %v", err)
	}
	if !strings.Contains(string(obj), "mtllib cube.mtl\n") {
		t.Errorf("expected mesh material reference, got:\n%s", obj)
	}

	ebo, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "1_1_1.ebo"))
	if err != nil {
		t.Fatalf("reading tile: %v", err)
	}
	parsed, err := formats.ParseEBO(ebo)
	if err != nil {
		t.Fatalf("ParseEBO failed: %v", err)
	}
	if parsed.FaceCount == 0 {
		t.Error("expected faces in cell 1_1_1")
	}

	saved, err := LoadMetadata(filepath.Join(cfg.Output.Dir, MetadataFile))
	if err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}
	if saved.Count() != 8 || saved.Bitmap != md.EncodeExistence() {
		t.Errorf("expected saved metadata to match, got %d cells, bitmap %q", saved.Count(), saved.Bitmap)
	}
}

func TestRun_CubeTileBounds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"ctm"}
	s, err := New(cfg, writeCube(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	total := 0
	for _, c := range formats.GridCells(2, 2, 2) {
		data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, c.String()+".ctm"))
		if err != nil {
			t.Fatalf("reading tile: %v", err)
		}
		ctm, err := formats.ParseCTM(data)
		if err != nil {
			t.Fatalf("ParseCTM failed: %v", err)
		}
		total += len(ctm.Vertices)

		lo := [3]float32{float32(c.X), float32(c.Y), float32(c.Z)}
		for _, v := range ctm.Vertices {
			for axis := 0; axis < 3; axis++ {
				if v[axis] < lo[axis]-1e-5 || v[axis] > lo[axis]+1+1e-5 {
					t.Errorf("cell %s: vertex %v outside unit sub-cube", c, v)
				}
			}
		}
	}
	if total < 8 {
		t.Errorf("expected at least 8 vertices over all tiles, got %d", total)
	}
}

func TestRun_Texture(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"obj"}
	cfg.Output.WriteMTL = true
	cfg.Output.Debug = true
	cfg.Texture.Path = writeTexture(t)
	cfg.Texture.TilesX = 2
	cfg.Texture.TilesY = 2
	cfg.Texture.Format = "png"

	s, err := New(cfg, writeCube(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	md, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if md.TextureSetSize != [2]int{2, 2} {
		t.Errorf("expected texture set 2x2, got %v", md.TextureSetSize)
	}

	for _, name := range []string{"0_0", "0_1", "1_0", "1_1"} {
		for _, ext := range []string{".png", ".mtl"} {
			path := filepath.Join(cfg.Output.Dir, TextureDir, name+ext)
			if _, err := os.Stat(path); err != nil {
				t.Errorf("expected %s: %v", path, err)
			}
		}
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, DebugDir, "transforms_"+name+".png")); err != nil {
			t.Errorf("expected transform overlay for %s: %v", name, err)
		}
	}

	obj, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "1_0_1.obj"))
	if err != nil {
		t.Fatalf("reading tile: %v", err)
	}
	if !strings.Contains(string(obj), "mtllib texture/1_0.mtl\n") {
		t.Errorf("expected column material reference, got:\n%s", obj)
	}
}

func TestRun_PackingOverflow(t *testing.T) {
	// The left triangle uses a 4x4 texel corner of the texture, the right one
	// the whole 16x16 texture, which does not fit an 8x8 atlas.
	twoParts := `v 0 0 0
v 1 0 0
v 0 1 0
v 3 0 0
v 4 0 0
v 3 1 0
vt 0 0
vt 0.25 0
vt 0 0.25
vt 0 0
vt 1 0
vt 0 1
f 1/1 2/2 3/3
f 4/4 5/5 6/6
`
	input := filepath.Join(t.TempDir(), "parts.obj")
	if err := os.WriteFile(input, []byte(twoParts), 0644); err != nil {
		t.Fatalf("writing mesh: %v", err)
	}

	cfg := testConfig(t)
	cfg.Output.Formats = []string{"obj"}
	cfg.Output.Debug = true
	cfg.Slicing.GridX = 2
	cfg.Slicing.GridY = 1
	cfg.Slicing.GridZ = 1
	cfg.Texture.Path = writeTexture(t)
	cfg.Texture.TilesX = 2
	cfg.Texture.TilesY = 1
	cfg.Texture.Format = "png"
	cfg.Texture.Padding = 0
	cfg.Texture.MaxSize = 8

	s, err := New(cfg, input, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	md, err := s.Run(context.Background())
	if !errors.Is(err, atlas.ErrAtlasOverflow) {
		t.Fatalf("expected ErrAtlasOverflow, got %v", err)
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Errorf("expected 1 failed column, got %d", n)
	}
	if md == nil {
		t.Fatal("expected metadata for the columns that succeeded")
	}
	if !md.Exists(mesh.Cell{}) || md.Exists(mesh.Cell{X: 1}) {
		t.Errorf("expected only cell 0_0_0 to exist, got bitmap %q", md.EncodeExistence())
	}

	for _, path := range []string{
		filepath.Join(cfg.Output.Dir, "0_0_0.obj"),
		filepath.Join(cfg.Output.Dir, TextureDir, "0_0.png"),
		filepath.Join(cfg.Output.Dir, DebugDir, "packing_1_0.png"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "1_0_0.obj")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no tile for the overflowing column, got %v", err)
	}

	img, err := texture.Load(filepath.Join(cfg.Output.Dir, DebugDir, "packing_1_0.png"))
	if err != nil {
		t.Fatalf("loading packing overlay: %v", err)
	}
	if img.Width() != 16 || img.Height() != 16 {
		t.Errorf("expected overlay at texture size 16x16, got %dx%d", img.Width(), img.Height())
	}
}

func TestRun_MtlOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"obj"}
	cfg.Output.MtlOverride = "shared.mtl"

	s, err := New(cfg, writeCube(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	obj, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "0_1_0.obj"))
	if err != nil {
		t.Fatalf("reading tile: %v", err)
	}
	if !strings.Contains(string(obj), "mtllib shared.mtl\n") {
		t.Errorf("expected overridden material, got:\n%s", obj)
	}
}

func TestRun_Resume(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Formats = []string{"obj"}
	input := writeCube(t)

	s, err := New(cfg, input, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	marker := []byte("kept\n")
	tile := filepath.Join(cfg.Output.Dir, "0_0_0.obj")
	if err := os.WriteFile(tile, marker, 0644); err != nil {
		t.Fatalf("writing marker: %v", err)
	}

	cfg.Slicing.AttemptResume = true
	s, err = New(cfg, input, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	md, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if md.Count() != 8 {
		t.Errorf("expected resumed run to count 8 cells, got %d", md.Count())
	}

	data, err := os.ReadFile(tile)
	if err != nil {
		t.Fatalf("reading tile: %v", err)
	}
	if string(data) != string(marker) {
		t.Errorf("expected existing tile to be kept, got:\n%s", data)
	}
}

func TestRun_ForceCubical(t *testing.T) {
	flat := "v 0 0 0\nv 4 0 0\nv 0 2 0\nf 1 2 3\nf 2 3 1\nf 3 1 2\n"
	path := filepath.Join(t.TempDir(), "flat.obj")
	if err := os.WriteFile(path, []byte(flat), 0644); err != nil {
		t.Fatalf("writing mesh: %v", err)
	}

	cfg := testConfig(t)
	cfg.Slicing.GridX = 2
	cfg.Slicing.GridY = 5
	cfg.Slicing.ForceCubical = true

	s, err := New(cfg, path, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	md, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if md.SetSize != [3]int{2, 2, 2} {
		t.Errorf("expected set size 2x2x2, got %v", md.SetSize)
	}
	if md.VirtualWorldBounds.Max.Y != 4 || md.VirtualWorldBounds.Max.Z != 4 {
		t.Errorf("expected cubical bounds of side 4, got %+v", md.VirtualWorldBounds)
	}
	if md.WorldBounds.Max.Y != 2 {
		t.Errorf("expected world bounds to keep Y 2, got %+v", md.WorldBounds)
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, writeCube(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_MissingInput(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, filepath.Join(t.TempDir(), "missing.obj"), zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func loadCube(t *testing.T) *mesh.Mesh {
	t.Helper()
	m, err := mesh.Load(context.Background(), strings.NewReader(cubeOBJ), mesh.LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return m
}

func TestRecommend(t *testing.T) {
	m := loadCube(t)

	rec := Recommend(m, m.Size, 60000)
	if len(rec.Estimates) != len(WizardSizes) {
		t.Fatalf("expected %d estimates, got %d", len(WizardSizes), len(rec.Estimates))
	}
	if rec.Size != 4 {
		t.Errorf("expected recommended size 4, got %d", rec.Size)
	}
	// Corner 1 starts six faces.
	if rec.Estimates[0].MaxFaces != 6 {
		t.Errorf("expected 6 faces in the busiest cell, got %d", rec.Estimates[0].MaxFaces)
	}

	if rec := Recommend(m, m.Size, 1); rec.Size != 0 {
		t.Errorf("expected no recommendation under a cap of 1, got %d", rec.Size)
	}
}

func TestMarkup(t *testing.T) {
	m := loadCube(t)

	tris, err := UVTriangles(context.Background(), m)
	if err != nil {
		t.Fatalf("UVTriangles failed: %v", err)
	}
	if len(tris) != 12 {
		t.Errorf("expected 12 triangles, got %d", len(tris))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := 3; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = 255
	}

	out, err := Markup(context.Background(), m, canvas)
	if err != nil {
		t.Fatalf("Markup failed: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("expected 32x32, got %dx%d", b.Dx(), b.Dy())
	}
	// The diagonal of the unit square runs through pixel (15, 16).
	if _, g, _, _ := out.At(15, 16).RGBA(); g == 0 {
		t.Error("expected a triangle edge through the center")
	}
}
