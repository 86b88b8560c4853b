package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veinworks/cavemesh/internal/config"
	"github.com/veinworks/cavemesh/internal/mesh"
	"github.com/veinworks/cavemesh/internal/pipeline"
	"github.com/veinworks/cavemesh/internal/stream"
)

func main() {
	cfg := config.Default()

	configPath := flag.String("config", "", "YAML preset file")
	addr := flag.String("addr", "127.0.0.1:8765", "listen address for the viewer")
	linger := flag.Bool("linger", true, "keep serving after generation completes")

	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "generation seed")
	flag.Float64Var(&cfg.Resolution, "resolution", cfg.Resolution, "samples per world unit")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "flood fill worker count, 0 = GOMAXPROCS")
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

	srv := stream.NewServer(stream.Bootstrap{
		Seed:         cfg.Seed,
		Resolution:   cfg.Resolution,
		SurfaceLevel: cfg.SurfaceLevel,
	}, log)

	pl, err := pipeline.Build(cfg, log, srv.Publish)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{Addr: *addr, Handler: srv.Handler()}
	go func() {
		log.Info("viewer endpoint up", "addr", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
		}
	}()

	log.Info("generating", "seed", cfg.Seed, "resolution", cfg.Resolution)
	runErr := pl.Run(ctx)
	switch {
	case errors.Is(runErr, mesh.ErrInterrupted):
		log.Warn("generation interrupted")
	case runErr != nil:
		log.Error("generation failed", "error", runErr)
	default:
		log.Info("generation done", "dropped_frames", srv.Dropped())
		if *linger {
			log.Info("serving final mesh, ctrl-c to exit")
			<-ctx.Done()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
