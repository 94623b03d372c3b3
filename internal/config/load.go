package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file name looked up in SearchPaths.
	FileName = "cuber.yaml"
	// EnvConfig names a config file when no -config flag is given.
	EnvConfig = "MESHCUBER_CONFIG"

	appDir = "meshcuber"
)

// ErrConfigNotFound is returned when an explicitly named config file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Load builds the config of a subcommand: defaults, overlaid by the file Locate
// picks, overlaid by the subcommand's flags. flags may be nil.
func Load(flags *Flags) (*Config, error) {
	cfg := Default()

	path, err := Locate(flags)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.merge(path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	flags.apply(cfg)
	return cfg, nil
}

// Locate returns the config file a subcommand reads. The -config flag wins over
// $MESHCUBER_CONFIG, which wins over the first existing entry of SearchPaths.
// A named file that does not exist is an error. An empty path means no file.
func Locate(flags *Flags) (string, error) {
	for _, named := range []string{flags.ConfigPath(), os.Getenv(EnvConfig)} {
		if named == "" {
			continue
		}
		if _, err := os.Stat(named); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, named)
		}
		return named, nil
	}

	for _, path := range SearchPaths() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}

// SearchPaths lists the implicit config locations in lookup order: the working
// directory, then the user config directory.
func SearchPaths() []string {
	paths := []string{FileName}
	if dir := ConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, FileName))
	}
	return paths
}

// ConfigDir returns the meshcuber directory inside the user config directory,
// or "" when the platform has none.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, appDir)
}

// merge decodes the YAML file at path over c. Keys the config does not know
// are rejected; an empty file changes nothing.
func (c *Config) merge(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
