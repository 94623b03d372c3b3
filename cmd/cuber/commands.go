package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/meshcuber/internal/config"
	"github.com/Faultbox/meshcuber/internal/logger"
	"github.com/Faultbox/meshcuber/internal/slicer"
	"github.com/Faultbox/meshcuber/internal/texture"
	"github.com/Faultbox/meshcuber/pkg/formats"
	"github.com/Faultbox/meshcuber/pkg/mesh"
)

// setup loads the config with flag overrides and initialises logging.
func setup(flags *config.Flags) (*config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)
	return cfg, nil
}

func cmdSlice(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("slice", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: cuber slice [options] <mesh.obj>")
	}

	cfg, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := slicer.New(cfg, fs.Arg(0), logger.Named("slicer"))
	if err != nil {
		return err
	}
	md, err := s.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("done",
		zap.String("output", cfg.Output.Dir),
		zap.Int("tiles", md.Count()),
		zap.String("bitmap", md.EncodeExistence()))
	return nil
}

func cmdInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: cuber info [options] <mesh.obj>")
	}

	cfg, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, err := slicer.LoadMesh(ctx, fs.Arg(0), cfg.Slicing.SwapYZ, logger.Named("info"))
	if err != nil {
		return err
	}

	bounds := slicer.Bounds(m, cfg.Slicing.ForceCubical)
	grid, err := mesh.Partition(m, cfg.Grid(), bounds)
	if err != nil {
		return err
	}

	nonEmpty := 0
	for _, c := range grid.Cells() {
		if len(grid.Faces(c)) > 0 {
			nonEmpty++
		}
	}

	size := m.Size.Size()
	fmt.Printf("Mesh:      %s\n", fs.Arg(0))
	fmt.Printf("Vertices:  %d\n", len(m.Vertices))
	fmt.Printf("UVs:       %d\n", m.TextureVertexCount())
	fmt.Printf("Faces:     %d\n", len(m.Faces))
	fmt.Printf("Material:  %s\n", m.Material)
	fmt.Printf("Size:      %.3f x %.3f x %.3f\n", size.X, size.Y, size.Z)
	fmt.Printf("Bounds:    %v - %v\n", m.Size.Min, m.Size.Max)
	fmt.Printf("Cubical:   %v - %v\n", m.CubicalSize.Min, m.CubicalSize.Max)
	fmt.Println()
	fmt.Printf("Grid:      %dx%dx%d\n", grid.Counts[0], grid.Counts[1], grid.Counts[2])
	fmt.Printf("Occupied:  %d of %d cells\n", nonEmpty, grid.Len())
	fmt.Printf("Max faces: %d per cell\n", grid.MaxFaces())
	return nil
}

func cmdWizard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("wizard", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	limit := fs.Int("cap", 0, "Vertex cap per cell (0 = config max_vertices)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: cuber wizard [options] <mesh.obj>...")
	}

	cfg, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	maxVertices := cfg.Slicing.MaxVertices
	if *limit > 0 {
		maxVertices = *limit
	}

	type loaded struct {
		path string
		mesh *mesh.Mesh
	}
	var meshes []loaded
	for _, path := range fs.Args() {
		m, err := slicer.LoadMesh(ctx, path, cfg.Slicing.SwapYZ, logger.Named("wizard"))
		if err != nil {
			return err
		}
		meshes = append(meshes, loaded{path, m})
	}
	sort.SliceStable(meshes, func(i, j int) bool {
		return len(meshes[i].mesh.Vertices) < len(meshes[j].mesh.Vertices)
	})

	for _, l := range meshes {
		rec := slicer.Recommend(l.mesh, slicer.Bounds(l.mesh, cfg.Slicing.ForceCubical), maxVertices)
		fmt.Printf("%s (%d vertices)\n", l.path, len(l.mesh.Vertices))
		for _, est := range rec.Estimates {
			fmt.Printf("  %3d^3  %8d faces  %8d vertices\n", est.Size, est.MaxFaces, est.MaxVertices)
		}
		if rec.Size == 0 {
			fmt.Printf("  No grid keeps cells under %d vertices\n", maxVertices)
			continue
		}
		fmt.Printf("  Recommended %dx%dx%d, %d max vertices\n", rec.Size, rec.Size, rec.Size, rec.MaxVertices)
	}
	return nil
}

func cmdMarkup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("markup", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	out := fs.String("out", "markup.png", "Output image")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: cuber markup -t <texture> [-out markup.png] <mesh.obj>")
	}

	cfg, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Texture.Path == "" {
		return fmt.Errorf("markup needs a texture (-t)")
	}
	tex, err := texture.Load(cfg.Texture.Path)
	if err != nil {
		return err
	}
	m, err := slicer.LoadMesh(ctx, fs.Arg(0), cfg.Slicing.SwapYZ, logger.Named("markup"))
	if err != nil {
		return err
	}

	img, err := slicer.Markup(ctx, m, tex.Image)
	if err != nil {
		return err
	}
	if err := texture.Save(*out, img, cfg.Texture.Quality); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", *out)
	return nil
}

func cmdBitmap(args []string) error {
	fs := flag.NewFlagSet("bitmap", flag.ExitOnError)
	x := fs.Int("x", 1, "Cells along X")
	y := fs.Int("y", 1, "Cells along Y")
	z := fs.Int("z", 1, "Cells along Z")
	merge := fs.String("merge", "", "Merge the bitmaps into this metadata file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: cuber bitmap [-x n -y n -z n | -merge metadata.json] <bitmap>...")
	}

	if *merge != "" {
		md, err := slicer.LoadMetadata(*merge)
		if err != nil {
			return err
		}
		for _, encoded := range fs.Args() {
			if err := md.MergeExistence(encoded); err != nil {
				return err
			}
		}
		if err := md.Save(*merge); err != nil {
			return err
		}
		fmt.Printf("Merged %d bitmaps: %d of %d cells, %s\n", fs.NArg(), md.Count(), len(md.Keys()), md.Bitmap)
		return nil
	}

	keys := formats.GridCells(*x, *y, *z)
	for _, encoded := range fs.Args() {
		exists, err := formats.DecodeBitmap(encoded, keys)
		if err != nil {
			return err
		}
		var cells []string
		for _, c := range keys {
			if exists[c] {
				cells = append(cells, c.String())
			}
		}
		fmt.Printf("%s: %d of %d cells\n", encoded, len(cells), len(keys))
		if len(cells) > 0 {
			fmt.Printf("  %s\n", strings.Join(cells, " "))
		}
	}
	return nil
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	save := fs.Bool("save", false, "Save to the user config directory")
	fs.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	if *save {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", config.Path())
		return nil
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if path, err := config.Locate(flags); err == nil && path != "" {
		fmt.Printf("# from %s\n", path)
	}
	os.Stdout.Write(out)
	return nil
}
