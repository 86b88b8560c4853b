package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/veinworks/cavemesh/internal/config"
	"github.com/veinworks/cavemesh/internal/mesh"
	"github.com/veinworks/cavemesh/internal/sample"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Seed = 11
	cfg.PathNodes = 4
	cfg.NodeSpacing = 3
	cfg.Resolution = 1
	cfg.PathInfluenceRadius = 2.5
	cfg.MaxInfluenceRadius = 8
	cfg.FloorFlatness = 0
	return cfg
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Resolution = 0
	if _, err := Build(cfg, testLogger(), nil); err == nil {
		t.Fatal("Build() = nil error for invalid config")
	}
}

func TestRunProducesMesh(t *testing.T) {
	var mu sync.Mutex
	chunks := make(map[sample.ChunkPos]int)

	cfg := smallConfig()
	pl, err := Build(cfg, testLogger(), func(pos sample.ChunkPos, c *sample.Chunk) {
		mu.Lock()
		chunks[pos] = c.VertexCount()
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := pl.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if pl.Generator.State() != mesh.Done {
		t.Errorf("State() = %v, want %v", pl.Generator.State(), mesh.Done)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) == 0 {
		t.Fatal("no chunks delivered")
	}
	total := 0
	for _, n := range chunks {
		total += n
	}
	if total == 0 {
		t.Error("all delivered chunks were empty")
	}
}

func TestHintCellIsInsideCave(t *testing.T) {
	cfg := smallConfig()
	pl, err := Build(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	x, y, z := pl.Hint()
	d := pl.Space.Density(x, y, z)
	if d >= cfg.SurfaceLevel {
		t.Errorf("density at hint = %v, want below surface level %v", d, cfg.SurfaceLevel)
	}
}

func TestDistortionWiredWhenWeightSet(t *testing.T) {
	cfg := smallConfig()
	cfg.DistortionWeight = 0.2
	cfg.DistortionScale = 8

	pl, err := Build(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if pl.Field.Distortion == nil {
		t.Error("Field.Distortion = nil, want noise layer")
	}

	cfg.DistortionWeight = 0
	pl, err = Build(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if pl.Field.Distortion != nil {
		t.Error("Field.Distortion non-nil with zero weight")
	}
}
