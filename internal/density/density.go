// Package density defines the scalar field the mesh is extracted
// from: 0 on the cave path, rising to 1 with distance, with a
// floor-flattening term that pulls the surface level underneath the
// path.
package density

import (
	"math"

	"github.com/veinworks/cavemesh/internal/geom"
	"github.com/veinworks/cavemesh/internal/path"
)

var worldUp = geom.V(0, 1, 0)

// Field evaluates the cave density at world positions. The field is
// pure: evaluations have no side effects and identical inputs give
// identical results, which is what makes racy memoization of samples
// benign.
type Field struct {
	path *path.Path

	// InfluenceRadius is the distance at which the base density
	// saturates to 1.
	InfluenceRadius float64

	// MaxQueryRadius bounds the spatial index lookup. It should be at
	// least InfluenceRadius plus one path edge so no contributing
	// edge is missed.
	MaxQueryRadius float64

	// FloorFlatness in [0,1] scales the floor-flattening blend.
	FloorFlatness float64

	// Distortion, when non-nil, adds DistortionWeight × noise to the
	// combined density. Left nil in the default configuration.
	Distortion       *Noise
	DistortionWeight float64
	DistortionScale  float64
}

// NewField creates a field over a path with the given radii and
// floor flatness.
func NewField(p *path.Path, influenceRadius, maxQueryRadius, floorFlatness float64) *Field {
	return &Field{
		path:            p,
		InfluenceRadius: influenceRadius,
		MaxQueryRadius:  maxQueryRadius,
		FloorFlatness:   floorFlatness,
	}
}

// Density returns the field value at pos, always in [0, 1].
func (f *Field) Density(pos geom.Vec3) float64 {
	candidates := f.path.NodesNear(pos, f.MaxQueryRadius)
	if len(candidates) == 0 {
		return 1
	}

	dist, closest := f.path.DistanceToPolyline(pos, candidates)
	if math.IsInf(dist, 1) {
		return 1
	}

	base := geom.Clamp01(dist / f.InfluenceRadius)

	// Floor flattening: weight by how directly the path sits above
	// this position. The direction can be zero length when pos lies
	// exactly on the path; SafeNormalize then yields a zero weight.
	toPath := geom.SafeNormalize(closest.Sub(pos))
	floorWeight := toPath.Dot(worldUp)
	if floorWeight < 0 {
		floorWeight = 0
	}

	vertical := math.Abs(closest[1] - pos[1])
	floorDensity := geom.Clamp01(vertical / (f.InfluenceRadius / 2.5))

	d := base + (floorDensity-base)*floorWeight*f.FloorFlatness

	if f.Distortion != nil && f.DistortionWeight != 0 {
		s := f.DistortionScale
		if s == 0 {
			s = 1
		}
		d += f.DistortionWeight * f.Distortion.Sample3D(pos[0]/s, pos[1]/s, pos[2]/s)
	}
	return geom.Clamp01(d)
}
