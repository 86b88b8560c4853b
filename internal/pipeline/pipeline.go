// Package pipeline wires a path, density field, sample space, and
// mesh generator together from a single Config.
package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/veinworks/cavemesh/internal/config"
	"github.com/veinworks/cavemesh/internal/density"
	"github.com/veinworks/cavemesh/internal/mesh"
	"github.com/veinworks/cavemesh/internal/path"
	"github.com/veinworks/cavemesh/internal/sample"
)

// Pipeline is a fully wired generation run.
type Pipeline struct {
	Path      *path.Path
	Field     *density.Field
	Space     *sample.Space
	Generator *mesh.Generator

	resolution float64
}

// Build constructs the full pipeline from cfg. onChunk may be nil.
func Build(cfg *config.Config, log *slog.Logger, onChunk mesh.ChunkFunc) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := path.Generate(cfg.Seed, cfg.PathNodes, cfg.NodeSpacing, cfg.MaxInfluenceRadius)

	// Query past the influence radius by one edge so no contributing
	// segment is missed near node boundaries.
	queryRadius := cfg.PathInfluenceRadius + cfg.NodeSpacing*1.2
	if queryRadius > cfg.MaxInfluenceRadius {
		queryRadius = cfg.MaxInfluenceRadius
	}
	field := density.NewField(p, cfg.PathInfluenceRadius, queryRadius, cfg.FloorFlatness)
	if cfg.DistortionWeight > 0 {
		field.Distortion = density.NewNoise(cfg.Seed + 1)
		field.DistortionWeight = cfg.DistortionWeight
		field.DistortionScale = cfg.DistortionScale
	}

	space := sample.NewSpace(field.Density, cfg.Resolution, cfg.SurfaceLevel)

	gen := mesh.New(space, mesh.Config{
		SurfaceLevel: cfg.SurfaceLevel,
		Workers:      cfg.Workers,
		ProbeLimit:   cfg.ProbeLimit,
	}, log, onChunk)

	return &Pipeline{
		Path:       p,
		Field:      field,
		Space:      space,
		Generator:  gen,
		resolution: cfg.Resolution,
	}, nil
}

// Hint returns the sample cell covering the first path node, a cell
// guaranteed to be inside the cave volume.
func (pl *Pipeline) Hint() (int, int, int) {
	node := pl.Path.Node(0)
	return int(math.Floor(node[0] * pl.resolution)),
		int(math.Floor(node[1] * pl.resolution)),
		int(math.Floor(node[2] * pl.resolution))
}

// Run executes the generation from the hint cell.
func (pl *Pipeline) Run(ctx context.Context) error {
	x, y, z := pl.Hint()
	return pl.Generator.Generate(ctx, x, y, z)
}
