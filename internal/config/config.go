// Package config holds generation parameters and their defaults,
// loadable from YAML preset files with CLI flags taking precedence.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the generator configuration.
type Config struct {
	Seed        int64   `yaml:"seed"`
	PathNodes   int     `yaml:"path_nodes"`
	NodeSpacing float64 `yaml:"node_spacing"`

	SurfaceLevel  float64 `yaml:"surface_level"`  // isosurface threshold in [0,1]
	Resolution    float64 `yaml:"resolution"`     // samples per world unit
	FloorFlatness float64 `yaml:"floor_flatness"` // [0,1]

	PathInfluenceRadius float64 `yaml:"path_influence_radius"`
	MaxInfluenceRadius  float64 `yaml:"max_influence_radius"`

	DistortionWeight float64 `yaml:"distortion_weight"` // 0 disables the noise layer
	DistortionScale  float64 `yaml:"distortion_scale"`

	Workers    int `yaml:"workers"`     // 0 = GOMAXPROCS
	ProbeLimit int `yaml:"probe_limit"` // start-search bound in cells
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Seed:                1,
		PathNodes:           128,
		NodeSpacing:         4,
		SurfaceLevel:        0.5,
		Resolution:          2,
		FloorFlatness:       0.35,
		PathInfluenceRadius: 6,
		MaxInfluenceRadius:  12,
		DistortionScale:     16,
		ProbeLimit:          256,
	}
}

// Validate checks parameter ranges.
func (c *Config) Validate() error {
	if c.PathNodes < 1 {
		return fmt.Errorf("path_nodes = %d, must be at least 1", c.PathNodes)
	}
	if c.NodeSpacing <= 0 {
		return fmt.Errorf("node_spacing = %v, must be positive", c.NodeSpacing)
	}
	if c.SurfaceLevel < 0 || c.SurfaceLevel > 1 {
		return fmt.Errorf("surface_level = %v, must be in [0,1]", c.SurfaceLevel)
	}
	if c.FloorFlatness < 0 || c.FloorFlatness > 1 {
		return fmt.Errorf("floor_flatness = %v, must be in [0,1]", c.FloorFlatness)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("resolution = %v, must be positive", c.Resolution)
	}
	if c.PathInfluenceRadius <= 0 {
		return fmt.Errorf("path_influence_radius = %v, must be positive", c.PathInfluenceRadius)
	}
	if c.MaxInfluenceRadius < c.PathInfluenceRadius {
		return fmt.Errorf("max_influence_radius = %v, must be at least path_influence_radius %v",
			c.MaxInfluenceRadius, c.PathInfluenceRadius)
	}
	return nil
}

// LoadFile reads a YAML preset into a fresh Config on top of the
// defaults, so presets may omit fields.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Merge applies file-loaded values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains
// the flag names provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["path-nodes"] {
		cfg.PathNodes = fromFile.PathNodes
	}
	if !explicitFlags["node-spacing"] {
		cfg.NodeSpacing = fromFile.NodeSpacing
	}
	if !explicitFlags["surface-level"] {
		cfg.SurfaceLevel = fromFile.SurfaceLevel
	}
	if !explicitFlags["resolution"] {
		cfg.Resolution = fromFile.Resolution
	}
	if !explicitFlags["floor-flatness"] {
		cfg.FloorFlatness = fromFile.FloorFlatness
	}
	if !explicitFlags["influence-radius"] {
		cfg.PathInfluenceRadius = fromFile.PathInfluenceRadius
	}
	if !explicitFlags["max-influence-radius"] {
		cfg.MaxInfluenceRadius = fromFile.MaxInfluenceRadius
	}
	if !explicitFlags["distortion-weight"] {
		cfg.DistortionWeight = fromFile.DistortionWeight
	}
	if !explicitFlags["distortion-scale"] {
		cfg.DistortionScale = fromFile.DistortionScale
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["probe-limit"] {
		cfg.ProbeLimit = fromFile.ProbeLimit
	}
}
