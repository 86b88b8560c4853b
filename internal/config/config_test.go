package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero path nodes", func(c *Config) { c.PathNodes = 0 }},
		{"negative spacing", func(c *Config) { c.NodeSpacing = -1 }},
		{"surface level above one", func(c *Config) { c.SurfaceLevel = 1.5 }},
		{"negative floor flatness", func(c *Config) { c.FloorFlatness = -0.1 }},
		{"zero resolution", func(c *Config) { c.Resolution = 0 }},
		{"zero influence", func(c *Config) { c.PathInfluenceRadius = 0 }},
		{"max below influence", func(c *Config) { c.MaxInfluenceRadius = 1; c.PathInfluenceRadius = 2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadFileAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.yaml")
	data := []byte("seed: 77\nsurface_level: 0.4\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Seed != 77 {
		t.Errorf("Seed = %d, want 77", cfg.Seed)
	}
	if cfg.SurfaceLevel != 0.4 {
		t.Errorf("SurfaceLevel = %v, want 0.4", cfg.SurfaceLevel)
	}
	def := Default()
	if cfg.Resolution != def.Resolution {
		t.Errorf("Resolution = %v, want default %v", cfg.Resolution, def.Resolution)
	}
	if cfg.ProbeLimit != def.ProbeLimit {
		t.Errorf("ProbeLimit = %d, want default %d", cfg.ProbeLimit, def.ProbeLimit)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadFile() = nil error for missing file")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("seed: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() = nil error for malformed YAML")
	}
}

func TestMergeRespectsExplicitFlags(t *testing.T) {
	cfg := Default()
	cfg.Seed = 999
	cfg.Workers = 4

	fromFile := Default()
	fromFile.Seed = 12
	fromFile.Workers = 8
	fromFile.Resolution = 4

	Merge(cfg, fromFile, map[string]bool{"seed": true})

	if cfg.Seed != 999 {
		t.Errorf("Seed = %d, want explicit flag value 999", cfg.Seed)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want file value 8", cfg.Workers)
	}
	if cfg.Resolution != 4 {
		t.Errorf("Resolution = %v, want file value 4", cfg.Resolution)
	}
}
