package sample

import (
	"sync"

	"github.com/veinworks/cavemesh/internal/geom"
)

const shardCount = 64

// Space is the sparse sample grid: a sharded map from packed chunk
// coordinates to lazily created chunks. World sample coordinates are
// signed and unbounded within ±2^19 chunks per axis.
type Space struct {
	field        func(geom.Vec3) float64
	scale        float64 // world units per sample step
	surfaceLevel float64

	shards [shardCount]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[uint64]*Chunk
}

// NewSpace creates a sample space over a density field. resolution
// is samples per world unit; surfaceLevel is the isosurface
// threshold used for solid-sample accounting.
func NewSpace(field func(geom.Vec3) float64, resolution, surfaceLevel float64) *Space {
	s := &Space{
		field:        field,
		scale:        1 / resolution,
		surfaceLevel: surfaceLevel,
	}
	for i := range s.shards {
		s.shards[i].m = make(map[uint64]*Chunk)
	}
	return s
}

// SurfaceLevel returns the isosurface threshold the space was built
// with.
func (s *Space) SurfaceLevel() float64 { return s.surfaceLevel }

// PackKey packs signed chunk coordinates into a 64-bit map key,
// 20 masked bits per axis. Only equality matters, so the sign bits
// are truncated rather than extended.
func PackKey(p ChunkPos) uint64 {
	const m = (1 << 20) - 1
	return uint64(p.X)&m | (uint64(p.Y)&m)<<20 | (uint64(p.Z)&m)<<40
}

// ChunkPosOf returns the chunk coordinates containing a sample
// coordinate. Arithmetic shift keeps negative coordinates correct.
func ChunkPosOf(x, y, z int) ChunkPos {
	return ChunkPos{x >> chunkShift, y >> chunkShift, z >> chunkShift}
}

func localIndex(x, y, z int) int {
	return (y&chunkMask)<<10 | (z&chunkMask)<<chunkShift | x&chunkMask
}

// chunkFor returns the chunk owning the sample coordinate, creating
// it if needed.
func (s *Space) chunkFor(x, y, z int) *Chunk {
	pos := ChunkPosOf(x, y, z)
	key := PackKey(pos)
	sh := &s.shards[key%shardCount]

	sh.mu.RLock()
	c, ok := sh.m[key]
	sh.mu.RUnlock()
	if ok {
		return c
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	// Double-check after acquiring the write lock.
	if c, ok := sh.m[key]; ok {
		return c
	}
	c = newChunk(pos)
	sh.m[key] = c
	return c
}

// ChunkFor returns the chunk owning a sample coordinate, creating it
// if needed. Triangulation uses this to append geometry to the cell's
// owner.
func (s *Space) ChunkFor(x, y, z int) *Chunk {
	return s.chunkFor(x, y, z)
}

// ChunkAt returns the chunk at the given chunk coordinates, or nil
// if it was never touched.
func (s *Space) ChunkAt(pos ChunkPos) *Chunk {
	key := PackKey(pos)
	sh := &s.shards[key%shardCount]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.m[key]
}

// Density returns the memoized density at an integer sample
// coordinate, evaluating the field on first access.
func (s *Space) Density(x, y, z int) float64 {
	c := s.chunkFor(x, y, z)
	return c.density(localIndex(x, y, z), func() float64 {
		return s.field(geom.V(float64(x)*s.scale, float64(y)*s.scale, float64(z)*s.scale))
	}, s.surfaceLevel)
}

// MarkQueued flips the queued flag at a sample coordinate, returning
// true exactly once per coordinate per run.
func (s *Space) MarkQueued(x, y, z int) bool {
	return s.chunkFor(x, y, z).markQueued(localIndex(x, y, z))
}

// PopQueued records completion of a queued cell for readiness
// bookkeeping.
func (s *Space) PopQueued(x, y, z int) {
	s.chunkFor(x, y, z).popQueued()
}

// IsReady reports whether the chunk owning the coordinate has no
// queued cells in flight.
func (s *Space) IsReady(x, y, z int) bool {
	return s.chunkFor(x, y, z).Ready()
}

// Compact drops chunks with no solid samples. Purely an allocation
// optimization; dropped chunks regenerate on demand.
func (s *Space) Compact() int {
	dropped := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, c := range sh.m {
			if c.SolidCount() == 0 {
				delete(sh.m, key)
				dropped++
			}
		}
		sh.mu.Unlock()
	}
	return dropped
}

// ForEachChunk calls fn for every allocated chunk.
func (s *Space) ForEachChunk(fn func(pos ChunkPos, c *Chunk)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		chunks := make([]*Chunk, 0, len(sh.m))
		for _, c := range sh.m {
			chunks = append(chunks, c)
		}
		sh.mu.RUnlock()
		for _, c := range chunks {
			fn(c.Pos, c)
		}
	}
}

// ChunkCount returns the number of allocated chunks.
func (s *Space) ChunkCount() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}
