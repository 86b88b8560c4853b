// Package mesh drives isosurface extraction across the sample space:
// a concurrent flood fill that follows free faces from a seed cell,
// triangulating as it goes and handing finished chunks to the caller.
package mesh

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/veinworks/cavemesh/internal/march"
	"github.com/veinworks/cavemesh/internal/sample"
)

// State is the generator lifecycle phase.
type State int32

const (
	NotStarted State = iota
	SearchingStart
	Flooding
	Draining
	Done
	Killed
)

var (
	// ErrNoStartCell is returned when the start probe finds no cell
	// with a non-uniform corner configuration within its bound.
	ErrNoStartCell = errors.New("mesh: no start cell within probe bound")

	// ErrInterrupted is returned when generation was killed before
	// the flood fill drained.
	ErrInterrupted = errors.New("mesh: generation did not finish")
)

// ChunkFunc receives a chunk whose queued cells have all drained.
// Delivery is at-least-once per chunk: a later flood wave can add
// geometry to a chunk already delivered, so implementations must
// treat each call as an upsert. Calls arrive concurrently from
// worker goroutines.
type ChunkFunc func(pos sample.ChunkPos, c *sample.Chunk)

// Config holds generation parameters.
type Config struct {
	// SurfaceLevel is the isosurface threshold in [0,1].
	SurfaceLevel float64

	// Workers is the pool size; 0 means GOMAXPROCS.
	Workers int

	// ProbeLimit bounds the start-cell search in cells.
	ProbeLimit int
}

// Generator runs the flood fill. One Generator serves one run.
type Generator struct {
	space   *sample.Space
	cfg     Config
	log     *slog.Logger
	onChunk ChunkFunc

	state   atomic.Int32
	kill    atomic.Bool
	pending atomic.Int64
	queue   cellQueue
}

type cell struct{ x, y, z int }

// New creates a generator over a sample space. onChunk may be nil.
func New(space *sample.Space, cfg Config, log *slog.Logger, onChunk ChunkFunc) *Generator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = 256
	}
	return &Generator{
		space:   space,
		cfg:     cfg,
		log:     log,
		onChunk: onChunk,
	}
}

// State returns the current lifecycle phase.
func (g *Generator) State() State {
	return State(g.state.Load())
}

// Kill requests cooperative shutdown. Queued cells are abandoned,
// not retracted; workers observe the flag before taking new work.
func (g *Generator) Kill() {
	g.kill.Store(true)
	g.queue.interrupt()
}

// Generate runs the full flood fill from a seed probed near the
// given sample coordinate and blocks until the fill drains, the
// context is canceled, or Kill is called. Cancellation is
// cooperative: in-progress cells finish, nothing is preempted.
func (g *Generator) Generate(ctx context.Context, hintX, hintY, hintZ int) error {
	if ctx.Err() != nil {
		g.kill.Store(true)
	}
	if g.kill.Load() {
		g.state.Store(int32(Killed))
		g.log.Warn("generation did not finish", "reason", "killed before start")
		return ErrInterrupted
	}

	g.state.Store(int32(SearchingStart))
	seed, ok := g.findStart(hintX, hintY, hintZ)
	if !ok {
		g.state.Store(int32(Done))
		g.log.Warn("no start cell found",
			"hint_x", hintX, "hint_y", hintY, "hint_z", hintZ,
			"probe_limit", g.cfg.ProbeLimit)
		return ErrNoStartCell
	}
	g.log.Info("start cell found", "x", seed.x, "y", seed.y, "z", seed.z)

	// The probe may have touched all-air chunks; drop them before
	// the fill starts allocating in earnest.
	if dropped := g.space.Compact(); dropped > 0 {
		g.log.Info("compacted sample space", "chunks_dropped", dropped)
	}

	g.state.Store(int32(Flooding))
	g.space.MarkQueued(seed.x, seed.y, seed.z)
	g.pending.Store(1)
	g.queue.push(seed)

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			g.Kill()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(g.cfg.Workers)
	for i := 0; i < g.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			g.worker()
		}()
	}
	wg.Wait()
	close(stop)

	if g.kill.Load() {
		g.state.Store(int32(Killed))
		g.log.Warn("generation did not finish", "reason", "killed")
		return ErrInterrupted
	}
	g.state.Store(int32(Done))
	g.log.Info("generation finished", "chunks", g.space.ChunkCount())
	return nil
}

func (g *Generator) worker() {
	for {
		c, ok := g.queue.pop(&g.kill)
		if !ok {
			return
		}
		g.process(c)
	}
}

// process triangulates one cell and expands the frontier through its
// free faces. Adjacent cells sharing an edge may be triangulated
// concurrently with no cross-cell lock; the rare seam artifacts that
// allows are an accepted trade-off.
func (g *Generator) process(c cell) {
	free := march.Triangulate(g.space, c.x, c.y, c.z, g.cfg.SurfaceLevel)

	for f := 0; f < 6; f++ {
		if !free.Has(f) {
			continue
		}
		off := march.FaceOffsets[f]
		nx, ny, nz := c.x+off[0], c.y+off[1], c.z+off[2]
		if g.space.MarkQueued(nx, ny, nz) {
			g.pending.Add(1)
			g.queue.push(cell{nx, ny, nz})
		}
	}

	g.space.PopQueued(c.x, c.y, c.z)
	ch := g.space.ChunkFor(c.x, c.y, c.z)
	if g.onChunk != nil && ch.Ready() && ch.VertexCount() > 0 {
		g.onChunk(ch.Pos, ch)
	}

	if g.pending.Add(-1) == 0 {
		// This task drained the fill: release everyone.
		g.state.Store(int32(Draining))
		g.queue.close()
	}
}

// findStart probes upward from the hint for a cell whose corners are
// not uniformly solid.
func (g *Generator) findStart(x, y, z int) (cell, bool) {
	for i := 0; i <= g.cfg.ProbeLimit; i++ {
		if g.kill.Load() {
			return cell{}, false
		}
		c := cell{x, y + i, z}
		if !g.uniformlySolid(c) {
			return c, true
		}
	}
	return cell{}, false
}

func (g *Generator) uniformlySolid(c cell) bool {
	for dz := 0; dz <= 1; dz++ {
		for dy := 0; dy <= 1; dy++ {
			for dx := 0; dx <= 1; dx++ {
				if g.space.Density(c.x+dx, c.y+dy, c.z+dz) >= g.cfg.SurfaceLevel {
					return false
				}
			}
		}
	}
	return true
}

// cellQueue is an unbounded FIFO shared by the worker pool. Closing
// it is the one-shot completion signal; interrupt wakes waiters so
// they can observe the kill flag.
type cellQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []cell
	closed bool
}

func (q *cellQueue) lazyInit() {
	if q.cond == nil {
		q.cond = sync.NewCond(&q.mu)
	}
}

func (q *cellQueue) push(c cell) {
	q.mu.Lock()
	q.lazyInit()
	q.items = append(q.items, c)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks for the next cell. It returns false once the queue is
// closed or the kill flag is set; remaining items are abandoned on
// kill.
func (q *cellQueue) pop(kill *atomic.Bool) (cell, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lazyInit()
	for {
		if kill.Load() || q.closed && len(q.items) == 0 {
			return cell{}, false
		}
		if len(q.items) > 0 {
			c := q.items[0]
			q.items = q.items[1:]
			return c, true
		}
		q.cond.Wait()
	}
}

func (q *cellQueue) close() {
	q.mu.Lock()
	q.lazyInit()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *cellQueue) interrupt() {
	q.mu.Lock()
	q.lazyInit()
	q.mu.Unlock()
	q.cond.Broadcast()
}
