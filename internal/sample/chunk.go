// Package sample provides the sparse, chunked, memoized sampling of
// the density field that triangulation runs against. Chunks are
// created on demand and never see the whole grid materialized.
package sample

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/veinworks/cavemesh/internal/geom"
)

const (
	// ChunkSize is the sample count per chunk edge.
	ChunkSize  = 32
	chunkShift = 5
	chunkMask  = ChunkSize - 1

	samplesPerChunk = ChunkSize * ChunkSize * ChunkSize
)

// sentinelBits marks a sample slot as not yet computed. Densities are
// in [0,1], so -1 can never collide with a real value.
var sentinelBits = math.Float64bits(-1)

// ChunkPos identifies a chunk by its coordinates in chunk space.
type ChunkPos struct{ X, Y, Z int }

// Vertex is one mesh vertex. Every three consecutive vertices in a
// chunk's buffer form a triangle.
type Vertex struct {
	Position geom.Vec3
	Normal   geom.Vec3
}

// Chunk holds the memoized samples, queued flags, and output
// geometry for one ChunkSize³ block of the grid. Sample slots are
// atomic compute-once cells; the queued flags are the only state
// under the chunk lock.
type Chunk struct {
	Pos ChunkPos

	allocOnce sync.Once
	samples   []uint64 // float64 bits, sentinelBits = unevaluated
	queued    []bool

	mu       sync.Mutex // guards queued
	inFlight atomic.Int32
	solid    atomic.Int32

	vmu   sync.Mutex
	verts []Vertex
}

func newChunk(pos ChunkPos) *Chunk {
	return &Chunk{Pos: pos}
}

// ensure allocates the sample and flag arrays exactly once.
func (c *Chunk) ensure() {
	c.allocOnce.Do(func() {
		s := make([]uint64, samplesPerChunk)
		for i := range s {
			s[i] = sentinelBits
		}
		c.samples = s
		c.queued = make([]bool, samplesPerChunk)
	})
}

// density returns the memoized sample at the local index, computing
// it via fn on first access. Concurrent first accesses may both
// evaluate fn; the CAS ensures exactly one result is stored and the
// solid counter moves once.
func (c *Chunk) density(idx int, fn func() float64, surfaceLevel float64) float64 {
	c.ensure()
	if bits := atomic.LoadUint64(&c.samples[idx]); bits != sentinelBits {
		return math.Float64frombits(bits)
	}
	v := fn()
	if atomic.CompareAndSwapUint64(&c.samples[idx], sentinelBits, math.Float64bits(v)) {
		if v < surfaceLevel {
			c.solid.Add(1)
		}
		return v
	}
	return math.Float64frombits(atomic.LoadUint64(&c.samples[idx]))
}

// markQueued flips the queued flag for the local index. The first
// caller for a given index gets true and bumps the in-flight count;
// everyone after gets false. This is the serialization point that
// gives the flood fill at-most-once enqueueing.
func (c *Chunk) markQueued(idx int) bool {
	c.ensure()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queued[idx] {
		return false
	}
	c.queued[idx] = true
	c.inFlight.Add(1)
	return true
}

// popQueued records that a previously queued cell finished
// processing. The flag itself stays set: a cell is never re-queued
// within a run.
func (c *Chunk) popQueued() {
	c.inFlight.Add(-1)
}

// Ready reports whether no queued cells in this chunk are still in
// flight. Readiness is heuristic: later flood waves may queue more
// cells here and deliver the chunk again.
func (c *Chunk) Ready() bool {
	return c.inFlight.Load() == 0
}

// SolidCount returns how many computed samples are below the surface
// level.
func (c *Chunk) SolidCount() int {
	return int(c.solid.Load())
}

// AppendVertices adds triangle vertices to the chunk's buffer.
func (c *Chunk) AppendVertices(vs ...Vertex) {
	c.vmu.Lock()
	c.verts = append(c.verts, vs...)
	c.vmu.Unlock()
}

// Vertices returns a snapshot copy of the chunk's vertex buffer.
func (c *Chunk) Vertices() []Vertex {
	c.vmu.Lock()
	defer c.vmu.Unlock()
	out := make([]Vertex, len(c.verts))
	copy(out, c.verts)
	return out
}

// VertexCount returns the current buffer length.
func (c *Chunk) VertexCount() int {
	c.vmu.Lock()
	defer c.vmu.Unlock()
	return len(c.verts)
}
