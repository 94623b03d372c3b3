package config

import (
	"flag"
	"strings"
)

// Flags holds command-line overrides registered on a subcommand's flag set.
type Flags struct {
	Config *string
	Debug  *bool
	Output *string

	GridX, GridY, GridZ *int
	ForceCubical        *bool
	SwapYZ              *bool
	Workers             *int
	Resume              *bool

	Texture      *string
	TilesX       *int
	TilesY       *int
	TextureScale *float64

	Formats     *string
	MtlOverride *string
	WriteMTL    *bool
	DebugImages *bool
}

// RegisterFlags adds the slicing overrides to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config: fs.String("config", "", "Path to config file"),
		Debug:  fs.Bool("v", false, "Enable debug logging"),
		Output: fs.String("o", "", "Output directory"),

		GridX:        fs.Int("x", 0, "Cells along X"),
		GridY:        fs.Int("y", 0, "Cells along Y"),
		GridZ:        fs.Int("z", 0, "Cells along Z"),
		ForceCubical: fs.Bool("cubical", false, "Equal grid sizes over a cubical world"),
		SwapYZ:       fs.Bool("swapyz", false, "Swap Y and Z on load"),
		Workers:      fs.Int("workers", 0, "Parallel texture columns"),
		Resume:       fs.Bool("resume", false, "Skip tiles whose files exist"),

		Texture:      fs.String("t", "", "Texture to partition"),
		TilesX:       fs.Int("tx", 0, "Texture columns along X"),
		TilesY:       fs.Int("ty", 0, "Texture columns along Y"),
		TextureScale: fs.Float64("scale", 0, "Atlas scale in (0,1]"),

		Formats:     fs.String("formats", "", "Comma separated tile formats: obj,ebo,ebo2,ctm"),
		MtlOverride: fs.String("mtl", "", "Override the mtllib reference of OBJ tiles"),
		WriteMTL:    fs.Bool("writemtl", false, "Write one MTL per texture column"),
		DebugImages: fs.Bool("debug", false, "Write diagnostic images"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.Config
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.Debug {
		cfg.Logging.Level = "debug"
	}
	if *f.Output != "" {
		cfg.Output.Dir = *f.Output
	}
	if *f.GridX > 0 {
		cfg.Slicing.GridX = *f.GridX
	}
	if *f.GridY > 0 {
		cfg.Slicing.GridY = *f.GridY
	}
	if *f.GridZ > 0 {
		cfg.Slicing.GridZ = *f.GridZ
	}
	if *f.ForceCubical {
		cfg.Slicing.ForceCubical = true
	}
	if *f.SwapYZ {
		cfg.Slicing.SwapYZ = true
	}
	if *f.Workers > 0 {
		cfg.Slicing.Workers = *f.Workers
	}
	if *f.Resume {
		cfg.Slicing.AttemptResume = true
	}
	if *f.Texture != "" {
		cfg.Texture.Path = *f.Texture
	}
	if *f.TilesX > 0 {
		cfg.Texture.TilesX = *f.TilesX
	}
	if *f.TilesY > 0 {
		cfg.Texture.TilesY = *f.TilesY
	}
	if *f.TextureScale > 0 {
		cfg.Texture.Scale = *f.TextureScale
	}
	if *f.Formats != "" {
		cfg.Output.Formats = strings.Split(*f.Formats, ",")
	}
	if *f.MtlOverride != "" {
		cfg.Output.MtlOverride = *f.MtlOverride
	}
	if *f.WriteMTL {
		cfg.Output.WriteMTL = true
	}
	if *f.DebugImages {
		cfg.Output.Debug = true
	}
}
