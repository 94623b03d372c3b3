// Package config handles slicing configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/Faultbox/meshcuber/pkg/formats"
)

// Config holds all slicing settings.
type Config struct {
	Slicing SlicingConfig `yaml:"slicing"`
	Texture TextureConfig `yaml:"texture"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// SlicingConfig holds the grid and pipeline settings.
type SlicingConfig struct {
	GridX         int  `yaml:"grid_x"`
	GridY         int  `yaml:"grid_y"`
	GridZ         int  `yaml:"grid_z"`
	ForceCubical  bool `yaml:"force_cubical"` // Equal grid sizes over the cubical bounds
	SwapYZ        bool `yaml:"swap_yz"`
	Workers       int  `yaml:"workers"`
	AttemptResume bool `yaml:"attempt_resume"`
	MaxVertices   int  `yaml:"max_vertices"` // Per-cell cap used by the wizard
}

// TextureConfig holds the source texture and atlas settings.
type TextureConfig struct {
	Path    string  `yaml:"path"`
	TilesX  int     `yaml:"tiles_x"`
	TilesY  int     `yaml:"tiles_y"`
	Scale   float64 `yaml:"scale"`
	Padding int     `yaml:"padding"`
	MaxSize int     `yaml:"max_size"`
	Format  string  `yaml:"format"` // jpg or png
	Quality int     `yaml:"quality"`
}

// OutputConfig holds what is written and where.
type OutputConfig struct {
	Dir         string   `yaml:"dir"`
	Formats     []string `yaml:"formats"`
	MtlOverride string   `yaml:"mtl_override"`
	WriteMTL    bool     `yaml:"write_mtl"`
	Metadata    bool     `yaml:"metadata"`
	Debug       bool     `yaml:"debug"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Validation errors.
var (
	ErrInvalidGrid    = errors.New("grid sizes must be positive")
	ErrInvalidTexture = errors.New("invalid texture settings")
	ErrInvalidOutput  = errors.New("invalid output settings")
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Slicing: SlicingConfig{
			GridX:       2,
			GridY:       2,
			GridZ:       2,
			Workers:     runtime.NumCPU(),
			MaxVertices: 60000,
		},
		Texture: TextureConfig{
			TilesX:  4,
			TilesY:  4,
			Scale:   1,
			Padding: 2,
			MaxSize: 16384,
			Format:  "jpg",
			Quality: 90,
		},
		Output: OutputConfig{
			Dir:      "output",
			Formats:  []string{"obj"},
			Metadata: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Grid returns the grid size. With ForceCubical every axis uses GridX.
func (c *Config) Grid() [3]int {
	if c.Slicing.ForceCubical {
		return [3]int{c.Slicing.GridX, c.Slicing.GridX, c.Slicing.GridX}
	}
	return [3]int{c.Slicing.GridX, c.Slicing.GridY, c.Slicing.GridZ}
}

// TextureTiles returns the texture column grid, 1x1 without a texture.
func (c *Config) TextureTiles() [2]int {
	if c.Texture.Path == "" {
		return [2]int{1, 1}
	}
	return [2]int{c.Texture.TilesX, c.Texture.TilesY}
}

// OutputFormats parses Output.Formats.
func (c *Config) OutputFormats() ([]formats.Format, error) {
	out := make([]formats.Format, 0, len(c.Output.Formats))
	for _, name := range c.Output.Formats {
		f, err := formats.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Validate checks the config for values the slicer cannot run with.
func (c *Config) Validate() error {
	for _, n := range c.Grid() {
		if n <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidGrid, c.Grid())
		}
	}
	if c.Slicing.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidGrid)
	}

	if c.Texture.Path != "" {
		if c.Texture.TilesX <= 0 || c.Texture.TilesY <= 0 {
			return fmt.Errorf("%w: tiles %dx%d", ErrInvalidTexture, c.Texture.TilesX, c.Texture.TilesY)
		}
		if c.Texture.Scale <= 0 || c.Texture.Scale > 1 {
			return fmt.Errorf("%w: scale %v not in (0,1]", ErrInvalidTexture, c.Texture.Scale)
		}
		if c.Texture.Padding < 0 || c.Texture.MaxSize <= 0 {
			return fmt.Errorf("%w: padding %d, max size %d", ErrInvalidTexture, c.Texture.Padding, c.Texture.MaxSize)
		}
		switch strings.ToLower(c.Texture.Format) {
		case "jpg", "jpeg", "png":
		default:
			return fmt.Errorf("%w: format %q", ErrInvalidTexture, c.Texture.Format)
		}
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("%w: empty directory", ErrInvalidOutput)
	}
	if _, err := c.OutputFormats(); err != nil {
		return err
	}
	return nil
}
