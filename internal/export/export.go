// Package export collects finished chunk meshes and writes them to
// disk as Wavefront OBJ or a compressed binary chunk archive.
package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/veinworks/cavemesh/internal/sample"
)

// Collector accumulates per-chunk vertex buffers. A chunk may be
// delivered more than once as later flood waves touch it again; the
// newest buffer replaces the previous one.
type Collector struct {
	mu     sync.Mutex
	chunks map[sample.ChunkPos][]sample.Vertex
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{chunks: make(map[sample.ChunkPos][]sample.Vertex)}
}

// OnChunk records the chunk's current vertex buffer. It matches
// mesh.ChunkFunc and is safe for concurrent use.
func (c *Collector) OnChunk(pos sample.ChunkPos, ch *sample.Chunk) {
	verts := ch.Vertices()
	c.mu.Lock()
	c.chunks[pos] = verts
	c.mu.Unlock()
}

// ChunkCount reports how many distinct chunks were collected.
func (c *Collector) ChunkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

// VertexCount reports the total number of vertices across all chunks.
func (c *Collector) VertexCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.chunks {
		n += len(v)
	}
	return n
}

// sortedPositions returns chunk positions in a stable order so output
// files are byte-identical across runs.
func (c *Collector) sortedPositions() []sample.ChunkPos {
	positions := make([]sample.ChunkPos, 0, len(c.chunks))
	for pos := range c.chunks {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return positions
}

// WriteOBJ writes the collected mesh as a Wavefront OBJ file, one
// group per chunk, atomically via a temp file + rename. Vertex
// positions are in sample-grid coordinates; scale divides them back
// into world units (pass the sample resolution).
func (c *Collector) WriteOBJ(path string, scale float64, log *slog.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scale <= 0 {
		scale = 1
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "# cavemesh surface export")
	base := 1
	for _, pos := range c.sortedPositions() {
		verts := c.chunks[pos]
		fmt.Fprintf(w, "g chunk_%d_%d_%d\n", pos.X, pos.Y, pos.Z)
		for _, v := range verts {
			fmt.Fprintf(w, "v %.6f %.6f %.6f\n", v.Position[0]/scale, v.Position[1]/scale, v.Position[2]/scale)
		}
		for _, v := range verts {
			fmt.Fprintf(w, "vn %.6f %.6f %.6f\n", v.Normal[0], v.Normal[1], v.Normal[2])
		}
		for i := 0; i+2 < len(verts); i += 3 {
			a, b, cc := base+i, base+i+1, base+i+2
			fmt.Fprintf(w, "f %d//%d %d//%d %d//%d\n", a, a, b, b, cc, cc)
		}
		base += len(verts)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write obj: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close obj: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	if log != nil {
		log.Info("wrote obj", "path", path, "chunks", len(c.chunks), "vertices", base-1)
	}
	return nil
}

// Binary chunk archive layout, zstd-compressed:
//
//	magic  [4]byte "CVM1"
//	chunks uint32
//	per chunk:
//	  x, y, z   int32
//	  vertices  uint32
//	  per vertex: px, py, pz, nx, ny, nz  float32
const archiveMagic = "CVM1"

// WriteArchive writes the collected mesh as a zstd-compressed binary
// archive, atomically via a temp file + rename.
func (c *Collector) WriteArchive(path string, log *slog.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("init zstd: %w", err)
	}
	w := bufio.NewWriter(zw)

	w.WriteString(archiveMagic)
	writeU32 := func(v uint32) {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		w.Write(buf[:])
	}
	writeF32 := func(v float64) {
		writeU32(math.Float32bits(float32(v)))
	}

	positions := c.sortedPositions()
	writeU32(uint32(len(positions)))
	for _, pos := range positions {
		verts := c.chunks[pos]
		writeU32(uint32(int32(pos.X)))
		writeU32(uint32(int32(pos.Y)))
		writeU32(uint32(int32(pos.Z)))
		writeU32(uint32(len(verts)))
		for _, v := range verts {
			writeF32(v.Position[0])
			writeF32(v.Position[1])
			writeF32(v.Position[2])
			writeF32(v.Normal[0])
			writeF32(v.Normal[1])
			writeF32(v.Normal[2])
		}
	}

	if err := w.Flush(); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	if log != nil {
		log.Info("wrote archive", "path", path, "chunks", len(positions))
	}
	return nil
}

// ReadArchive loads a binary archive written by WriteArchive.
func ReadArchive(path string) (map[sample.ChunkPos][]sample.Vertex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	defer zr.Close()
	r := bufio.NewReader(zr)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) != archiveMagic {
		return nil, fmt.Errorf("bad magic %q", magic)
	}

	readU32 := func() (uint32, error) {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}
	readF32 := func() (float64, error) {
		bits, err := readU32()
		if err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(bits)), nil
	}

	count, err := readU32()
	if err != nil {
		return nil, fmt.Errorf("read chunk count: %w", err)
	}
	chunks := make(map[sample.ChunkPos][]sample.Vertex, count)
	for i := uint32(0); i < count; i++ {
		var pos sample.ChunkPos
		for _, dst := range []*int{&pos.X, &pos.Y, &pos.Z} {
			v, err := readU32()
			if err != nil {
				return nil, fmt.Errorf("read chunk %d position: %w", i, err)
			}
			*dst = int(int32(v))
		}
		n, err := readU32()
		if err != nil {
			return nil, fmt.Errorf("read chunk %d vertex count: %w", i, err)
		}
		verts := make([]sample.Vertex, n)
		for j := range verts {
			for _, dst := range []*float64{
				&verts[j].Position[0], &verts[j].Position[1], &verts[j].Position[2],
				&verts[j].Normal[0], &verts[j].Normal[1], &verts[j].Normal[2],
			} {
				*dst, err = readF32()
				if err != nil {
					return nil, fmt.Errorf("read chunk %d vertex %d: %w", i, j, err)
				}
			}
		}
		chunks[pos] = verts
	}
	return chunks, nil
}
