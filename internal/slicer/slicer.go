// Package slicer runs the tiling pipeline: it loads a mesh, partitions it into
// a grid of cells, packs one texture atlas per texture column and writes every
// non-empty cell in the configured tile formats.
package slicer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/meshcuber/internal/config"
	"github.com/Faultbox/meshcuber/internal/logger"
	"github.com/Faultbox/meshcuber/internal/texture"
	"github.com/Faultbox/meshcuber/pkg/formats"
	"github.com/Faultbox/meshcuber/pkg/math"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

const (
	// MetadataFile is written to the output directory after a run.
	MetadataFile = "metadata.json"
	// TextureDir holds the atlases, relative to the output directory.
	TextureDir = "texture"
	// DebugDir holds diagnostic images, relative to the output directory.
	DebugDir = "debug"
)

// ErrNoInput is returned when no mesh path is given.
var ErrNoInput = errors.New("no input mesh")

// Slicer runs one slicing job.
type Slicer struct {
	cfg     *config.Config
	input   string
	log     *zap.Logger
	formats []formats.Format

	mesh    *mesh.Mesh
	grid    *mesh.Grid
	tex     *texture.Texture
	overlay *texture.OverlayWriter
}

// New validates cfg and prepares a job for the mesh at input. A nil log uses
// the global logger.
func New(cfg *config.Config, input string, log *zap.Logger) (*Slicer, error) {
	if input == "" {
		return nil, ErrNoInput
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs, err := cfg.OutputFormats()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Named("slicer")
	}

	return &Slicer{
		cfg:     cfg,
		input:   input,
		log:     log,
		formats: fs,
		overlay: texture.NewOverlayWriter(filepath.Join(cfg.Output.Dir, DebugDir), ""),
	}, nil
}

// LoadMesh parses the OBJ at path, logging progress at debug level.
func LoadMesh(ctx context.Context, path string, swapYZ bool, log *zap.Logger) (*mesh.Mesh, error) {
	started := time.Now()
	log.Info("loading mesh", zap.String("path", path))

	m, err := mesh.LoadFile(ctx, path, mesh.LoadOptions{
		SwapYZ: swapYZ,
		Progress: func(lines int) {
			log.Debug("loading", zap.Int("lines", lines))
		},
	})
	if err != nil {
		return nil, err
	}

	size := m.Size.Size()
	log.Info("loaded mesh",
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("faces", len(m.Faces)),
		zap.Int("uvs", m.TextureVertexCount()),
		zap.Float64("size_x", size.X),
		zap.Float64("size_y", size.Y),
		zap.Float64("size_z", size.Z),
		zap.Duration("elapsed", time.Since(started)))
	return m, nil
}

// Bounds returns the extent the grid is laid over: the cubical extent when
// cubical slicing is forced, otherwise the mesh extent.
func Bounds(m *mesh.Mesh, cubical bool) math.Extent {
	if cubical {
		return m.CubicalSize
	}
	return m.Size
}

// Run executes the job. Failed texture columns do not stop the others; their
// errors are returned together with the metadata of everything that was
// written. Cancellation aborts the run and returns ctx.Err().
func (s *Slicer) Run(ctx context.Context) (*Metadata, error) {
	started := time.Now()

	m, err := LoadMesh(ctx, s.input, s.cfg.Slicing.SwapYZ, s.log)
	if err != nil {
		return nil, err
	}
	s.mesh = m

	bounds := Bounds(m, s.cfg.Slicing.ForceCubical)
	s.grid, err = mesh.Partition(m, s.cfg.Grid(), bounds)
	if err != nil {
		return nil, err
	}
	s.log.Info("partitioned mesh",
		zap.Ints("grid", s.grid.Counts[:]),
		zap.Int("max_faces_per_cell", s.grid.MaxFaces()))

	if s.cfg.Texture.Path != "" {
		s.tex, err = texture.Load(s.cfg.Texture.Path)
		if err != nil {
			return nil, err
		}
		s.log.Info("loaded texture",
			zap.String("path", s.tex.Path),
			zap.String("format", s.tex.Format),
			zap.Int("width", s.tex.Width()),
			zap.Int("height", s.tex.Height()))
	}

	if err := os.MkdirAll(s.cfg.Output.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	tiles := s.cfg.TextureTiles()
	md := NewMetadata(runID.String(), s.grid.Counts, tiles, m.Size, bounds, len(m.Vertices))

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Slicing.Workers)
	for tx := 0; tx < tiles[0]; tx++ {
		for ty := 0; ty < tiles[1]; ty++ {
			g.Go(func() error {
				counts, err := s.processColumn(gctx, tx, ty)

				mu.Lock()
				defer mu.Unlock()
				for c, n := range counts {
					md.SetExists(c, n > 0)
				}
				if err == nil {
					return nil
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.log.Error("column failed", zap.Int("tx", tx), zap.Int("ty", ty), zap.Error(err))
				errs = multierr.Append(errs, err)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.cfg.Output.Metadata {
		if err := md.Save(filepath.Join(s.cfg.Output.Dir, MetadataFile)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	s.log.Info("slicing finished",
		zap.String("run_id", md.RunID),
		zap.Int("tiles", md.Count()),
		zap.Int("failed_columns", len(multierr.Errors(errs))),
		zap.Duration("elapsed", time.Since(started)))
	return md, errs
}
