package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veinworks/cavemesh/internal/config"
	"github.com/veinworks/cavemesh/internal/export"
	"github.com/veinworks/cavemesh/internal/mesh"
	"github.com/veinworks/cavemesh/internal/pipeline"
)

func main() {
	cfg := config.Default()

	configPath := flag.String("config", "", "YAML preset file")
	objPath := flag.String("obj", "cave.obj", "OBJ output path, empty to skip")
	archivePath := flag.String("archive", "", "binary archive output path, empty to skip")

	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "generation seed")
	flag.IntVar(&cfg.PathNodes, "path-nodes", cfg.PathNodes, "number of path nodes")
	flag.Float64Var(&cfg.NodeSpacing, "node-spacing", cfg.NodeSpacing, "target spacing between path nodes")
	flag.Float64Var(&cfg.SurfaceLevel, "surface-level", cfg.SurfaceLevel, "isosurface threshold in [0,1]")
	flag.Float64Var(&cfg.Resolution, "resolution", cfg.Resolution, "samples per world unit")
	flag.Float64Var(&cfg.FloorFlatness, "floor-flatness", cfg.FloorFlatness, "floor flattening in [0,1]")
	flag.Float64Var(&cfg.PathInfluenceRadius, "influence-radius", cfg.PathInfluenceRadius, "path influence radius in world units")
	flag.Float64Var(&cfg.MaxInfluenceRadius, "max-influence-radius", cfg.MaxInfluenceRadius, "spatial index leaf bound")
	flag.Float64Var(&cfg.DistortionWeight, "distortion-weight", cfg.DistortionWeight, "noise layer weight, 0 disables")
	flag.Float64Var(&cfg.DistortionScale, "distortion-scale", cfg.DistortionScale, "noise feature size in world units")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "flood fill worker count, 0 = GOMAXPROCS")
	flag.IntVar(&cfg.ProbeLimit, "probe-limit", cfg.ProbeLimit, "start-cell search bound in cells")
	flag.Parse()

	explicitFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicitFlags[f.Name] = true })

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *configPath != "" {
		fromFile, err := config.LoadFile(*configPath)
		if err != nil {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
		config.Merge(cfg, fromFile, explicitFlags)
		log.Info("loaded config", "path", *configPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	col := export.NewCollector()
	pl, err := pipeline.Build(cfg, log, col.OnChunk)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("generating", "seed", cfg.Seed, "path_nodes", cfg.PathNodes, "resolution", cfg.Resolution)
	start := time.Now()
	if err := pl.Run(ctx); err != nil {
		if errors.Is(err, mesh.ErrInterrupted) {
			log.Warn("generation interrupted", "chunks", col.ChunkCount())
			os.Exit(1)
		}
		log.Error("generation failed", "error", err)
		os.Exit(1)
	}
	log.Info("generation done",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"chunks", col.ChunkCount(),
		"vertices", col.VertexCount())

	if *objPath != "" {
		if err := col.WriteOBJ(*objPath, cfg.Resolution, log); err != nil {
			log.Error("write obj", "error", err)
			os.Exit(1)
		}
	}
	if *archivePath != "" {
		if err := col.WriteArchive(*archivePath, log); err != nil {
			log.Error("write archive", "error", err)
			os.Exit(1)
		}
	}
}
