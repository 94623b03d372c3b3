package slicer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshcuber/internal/texture"
	"github.com/Faultbox/meshcuber/pkg/atlas"
	"github.com/Faultbox/meshcuber/pkg/binpack"
	"github.com/Faultbox/meshcuber/pkg/formats"
	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// material is what the tiles of one texture column reference.
type material struct {
	name    string // Material and atlas base name
	mtllib  string // OBJ mtllib line, relative to the output dir
	texture string // Atlas path, relative to the output dir
}

// processColumn packs and remaps the atlas of texture column (tx, ty), then
// crops and writes its cells. It returns the written face count per cell.
func (s *Slicer) processColumn(ctx context.Context, tx, ty int) (map[mesh.Cell]int, error) {
	tiles := s.cfg.TextureTiles()
	cells := s.grid.Column(tiles, tx, ty)
	faces := s.grid.ColumnFaces(tiles, tx, ty)
	log := s.log.With(zap.Int("tx", tx), zap.Int("ty", ty))

	if len(faces) == 0 {
		log.Debug("skipping empty column")
		return nil, nil
	}
	started := time.Now()
	log.Info("processing column", zap.Int("cells", len(cells)), zap.Int("faces", len(faces)))

	mat := material{mtllib: s.cfg.Output.MtlOverride}
	if mat.mtllib == "" {
		mat.mtllib = s.mesh.Material
	}
	var remap *mesh.RemapResult
	if s.tex != nil {
		var err error
		if mat, remap, err = s.processTexture(ctx, log, tx, ty, faces); err != nil {
			return nil, err
		}
	}

	counts := make(map[mesh.Cell]int, len(cells))
	for _, c := range cells {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		n, err := s.processCell(ctx, log, c, mat, remap)
		if err != nil {
			return counts, fmt.Errorf("cell %s: %w", c, err)
		}
		counts[c] = n
	}

	log.Info("column finished", zap.Duration("elapsed", time.Since(started)))
	return counts, nil
}

func (s *Slicer) atlasOptions() atlas.Options {
	return atlas.Options{
		Padding:   s.cfg.Texture.Padding,
		MaxSize:   s.cfg.Texture.MaxSize,
		Heuristic: binpack.BestAreaFit,
	}
}

// processTexture builds the column atlas, writes it and moves the column's
// texture vertices into atlas space. The returned remap resolves the column's
// texture handles for cropping.
func (s *Slicer) processTexture(ctx context.Context, log *zap.Logger, tx, ty int, faces []int) (material, *mesh.RemapResult, error) {
	name := fmt.Sprintf("%d_%d", tx, ty)
	ext := s.cfg.Texture.Format
	if enc, err := texture.Encoding(ext); err == nil {
		ext = enc
	}

	packStarted := time.Now()
	layout, err := atlas.Build(s.mesh, faces, s.tex.Width(), s.tex.Height(), s.atlasOptions())
	if err != nil {
		var overflow *atlas.OverflowError
		if s.cfg.Output.Debug && errors.As(err, &overflow) {
			s.debugImage(log, "packing_"+name, func() (image.Image, error) {
				return texture.DrawRects(s.tex.Image, overflow.Rects, texture.ColorPacked)
			})
		}
		return material{}, nil, fmt.Errorf("packing column %s: %w", name, err)
	}
	if layout.Empty() {
		log.Debug("column has no texture coordinates")
		return material{mtllib: s.cfg.Output.MtlOverride}, nil, nil
	}
	log.Info("packed atlas",
		zap.Int("islands", layout.Islands),
		zap.Int("rects", len(layout.Placements)),
		zap.Int("width", layout.Width),
		zap.Int("height", layout.Height),
		zap.Float64("occupancy", layout.Occupancy()),
		zap.Duration("elapsed", time.Since(packStarted)))

	mat := material{
		name:    name,
		mtllib:  s.cfg.Output.MtlOverride,
		texture: TextureDir + "/" + name + "." + ext,
	}
	atlasPath := filepath.Join(s.cfg.Output.Dir, TextureDir, name+"."+ext)
	if err := s.writeAtlas(log, atlasPath, layout); err != nil {
		return material{}, nil, err
	}

	if s.cfg.Output.Debug {
		srcs := make([]image.Rectangle, len(layout.Placements))
		for i, p := range layout.Placements {
			srcs[i] = p.Src
		}
		s.debugImage(log, "transforms_"+name, func() (image.Image, error) {
			return texture.DrawRects(s.tex.Image, srcs, texture.ColorTransform)
		})
	}

	res, err := s.mesh.RemapUVs(ctx, faces, layout.Transforms)
	if err != nil {
		return material{}, nil, err
	}
	log.Debug("remapped texture vertices",
		zap.Int("transformed", res.Transformed),
		zap.Int("cloned", res.Cloned))
	if len(res.Missing) > 0 {
		log.Warn("texture vertices matched no transform", zap.Int("count", len(res.Missing)))
		if s.cfg.Output.Debug {
			lost := make([]math.Vec2, len(res.Missing))
			for i, tv := range res.Missing {
				lost[i] = tv.Original()
			}
			s.debugImage(log, "missing_"+name, func() (image.Image, error) {
				return texture.DrawUVPoints(s.tex.Image, lost, texture.ColorMissing)
			})
		}
	}

	if s.cfg.Output.WriteMTL {
		mtlPath := filepath.Join(s.cfg.Output.Dir, TextureDir, name+".mtl")
		if err := writeFile(mtlPath, func(f *os.File) error {
			return formats.WriteMTL(f, name, name+"."+ext)
		}); err != nil {
			return material{}, nil, err
		}
		if mat.mtllib == "" {
			mat.mtllib = TextureDir + "/" + name + ".mtl"
		}
	}
	return mat, res, nil
}

func (s *Slicer) writeAtlas(log *zap.Logger, path string, layout *atlas.Layout) error {
	if s.cfg.Slicing.AttemptResume && fileExists(path) {
		log.Debug("keeping existing atlas", zap.String("path", path))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating texture dir: %w", err)
	}

	img, err := texture.Scale(atlas.Compose(s.tex.Image, layout), s.cfg.Texture.Scale)
	if err != nil {
		return err
	}
	return texture.Save(path, img, s.cfg.Texture.Quality)
}

// processCell crops one cell and writes it in every requested format. It
// returns the face count, 0 for an empty cell.
func (s *Slicer) processCell(ctx context.Context, log *zap.Logger, c mesh.Cell, mat material, remap *mesh.RemapResult) (int, error) {
	tile, err := mesh.CropCell(ctx, s.mesh, c, s.grid.Extent(c), s.grid.CropFaces(c), remap)
	if err != nil {
		return 0, err
	}
	if len(tile.Anomalies) > 0 {
		kinds := make(map[mesh.AnomalyKind]int)
		for _, a := range tile.Anomalies {
			kinds[a.Kind]++
		}
		for kind, n := range kinds {
			log.Warn("clip anomalies", zap.Stringer("cell", c), zap.Stringer("kind", kind), zap.Int("faces", n))
		}
	}
	if tile.Empty() {
		return 0, nil
	}

	base := filepath.Join(s.cfg.Output.Dir, c.String())
	if s.cfg.Slicing.AttemptResume && s.tileExists(base) {
		log.Debug("keeping existing tile", zap.Stringer("cell", c))
		return tile.Len(), nil
	}

	for _, f := range s.formats {
		if err := writeFile(base+f.Extension(), func(w *os.File) error {
			return writeTile(w, f, tile, mat)
		}); err != nil {
			return 0, err
		}
	}
	log.Debug("wrote tile", zap.Stringer("cell", c), zap.Int("faces", tile.Len()))
	return tile.Len(), nil
}

func (s *Slicer) tileExists(base string) bool {
	for _, f := range s.formats {
		if !fileExists(base + f.Extension()) {
			return false
		}
	}
	return true
}

func writeTile(w io.Writer, f formats.Format, tile *mesh.Tile, mat material) error {
	var err error
	switch f {
	case formats.FormatOBJ:
		_, err = formats.WriteOBJ(w, tile, formats.OBJOptions{Material: mat.mtllib})
	case formats.FormatEBO:
		_, err = formats.WriteEBO(w, tile)
	case formats.FormatEBO2:
		_, err = formats.WriteEBO2(w, tile)
	case formats.FormatCTM:
		_, err = formats.WriteCTM(w, tile, formats.CTMOptions{
			Comment:  "cell " + tile.Cell.String(),
			Material: mat.name,
			Texture:  mat.texture,
		})
	default:
		err = fmt.Errorf("%w: %v", formats.ErrUnknownFormat, f)
	}
	return err
}

// debugImage renders and saves a diagnostic image. Failures are logged only.
func (s *Slicer) debugImage(log *zap.Logger, name string, render func() (image.Image, error)) {
	img, err := render()
	if err == nil {
		var path string
		if path, err = s.overlay.Save(name, img); err == nil {
			log.Debug("wrote debug image", zap.String("path", path))
			return
		}
	}
	log.Warn("debug image failed", zap.String("name", name), zap.Error(err))
}

func writeFile(path string, write func(f *os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return write(f)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
