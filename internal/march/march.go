// Package march extracts the isosurface one grid cell at a time
// using the classic table-driven marching-cubes construction.
package march

import (
	"math"

	"github.com/veinworks/cavemesh/internal/geom"
	"github.com/veinworks/cavemesh/internal/sample"
)

// snapEpsilon is the density difference below which interpolation
// snaps to a corner instead of dividing by a near-zero span.
const snapEpsilon = 1e-4

// Triangulate samples the cell at (x, y, z), appends the resulting
// triangle vertices to the owning chunk, and returns the faces
// through which the flood fill may continue. Vertex positions are in
// sample-grid coordinates.
func Triangulate(s *sample.Space, x, y, z int, surfaceLevel float64) FaceMask {
	var d [8]float64
	cfg := 0
	for i, off := range cornerOffsets {
		d[i] = s.Density(x+off[0], y+off[1], z+off[2])
		if d[i] < surfaceLevel {
			cfg |= 1 << i
		}
	}

	em := edgeMasks[cfg]
	if em == 0 {
		// Uniform cell: nothing to emit, free faces still decide
		// whether traversal continues (they never do for cfg 0/255).
		return freeFaceMasks[cfg]
	}

	// Corner normals are needed only for corners touching a crossing
	// edge; compute them lazily.
	var normals [8]geom.Vec3
	var haveNormal [8]bool
	cornerNormal := func(i int) geom.Vec3 {
		if !haveNormal[i] {
			off := cornerOffsets[i]
			normals[i] = gradientNormal(s, x+off[0], y+off[1], z+off[2])
			haveNormal[i] = true
		}
		return normals[i]
	}

	var edgeVerts [12]sample.Vertex
	for e := 0; e < 12; e++ {
		if em&(1<<e) == 0 {
			continue
		}
		a, b := edgeCorners[e][0], edgeCorners[e][1]
		t := interpWeight(d[a], d[b], surfaceLevel)

		pa := cornerPos(x, y, z, a)
		pb := cornerPos(x, y, z, b)
		pos := pa.Add(pb.Sub(pa).Mul(t))

		na := cornerNormal(a)
		nb := cornerNormal(b)
		n := geom.SafeNormalize(na.Add(nb.Sub(na).Mul(t)))

		edgeVerts[e] = sample.Vertex{Position: pos, Normal: n}
	}

	chunk := s.ChunkFor(x, y, z)
	tri := &triTable[cfg]
	for i := 0; tri[i] != -1; i += 3 {
		chunk.AppendVertices(
			edgeVerts[tri[i]],
			edgeVerts[tri[i+1]],
			edgeVerts[tri[i+2]],
		)
	}

	return freeFaceMasks[cfg]
}

// interpWeight returns the interpolation parameter along an edge
// from density da to db for the given surface level. Densities
// within snapEpsilon of the level or of each other snap to an
// endpoint.
func interpWeight(da, db, level float64) float64 {
	if math.Abs(level-da) < snapEpsilon {
		return 0
	}
	if math.Abs(level-db) < snapEpsilon {
		return 1
	}
	if math.Abs(da-db) < snapEpsilon {
		return 0
	}
	return (level - da) / (db - da)
}

// gradientNormal estimates the surface normal at a sample coordinate
// from central differences of the density field. The normal points
// toward lower density, into the cave interior. A vanishing gradient
// falls back to the zero vector.
func gradientNormal(s *sample.Space, x, y, z int) geom.Vec3 {
	g := geom.V(
		s.Density(x+1, y, z)-s.Density(x-1, y, z),
		s.Density(x, y+1, z)-s.Density(x, y-1, z),
		s.Density(x, y, z+1)-s.Density(x, y, z-1),
	)
	return geom.SafeNormalize(g.Mul(-1))
}

func cornerPos(x, y, z, corner int) geom.Vec3 {
	off := cornerOffsets[corner]
	return geom.V(float64(x+off[0]), float64(y+off[1]), float64(z+off[2]))
}
