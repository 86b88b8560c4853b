// Package path models the cave skeleton: an ordered chain of nodes
// produced by a seeded random walk, indexed for radius queries.
package path

import (
	"math"
	"math/rand"

	"github.com/veinworks/cavemesh/internal/geom"
	"github.com/veinworks/cavemesh/internal/spatial"
)

// Path is an immutable node chain plus its spatial index. Nodes are
// identified by their position in the chain; the chain never
// branches.
type Path struct {
	nodes   []geom.Vec3
	index   *spatial.Index
	spacing float64
}

// Generate produces a deterministic random-walk path from a seed.
// spacing is the target edge length, not exact: each step length
// varies around it. maxInfluenceRadius fixes the index leaf size and
// bounds later density queries.
func Generate(seed int64, nodeCount int, spacing, maxInfluenceRadius float64) *Path {
	rng := rand.New(rand.NewSource(seed))

	p := &Path{
		index:   spatial.NewIndex(maxInfluenceRadius),
		spacing: spacing,
	}

	pos := geom.Vec3{}
	dir := randomUnit(rng)
	for i := 0; i < nodeCount; i++ {
		p.append(pos)

		// Perturb the heading rather than resampling it so the walk
		// forms tunnels instead of a point cloud.
		dir = geom.SafeNormalize(dir.Add(randomUnit(rng).Mul(0.6)))
		if dir == (geom.Vec3{}) {
			dir = randomUnit(rng)
		}
		step := spacing * (0.8 + rng.Float64()*0.4)
		pos = pos.Add(dir.Mul(step))
	}
	return p
}

// FromNodes builds a path from explicit node positions. Used for
// fixed test tunnels and externally authored skeletons.
func FromNodes(nodes []geom.Vec3, maxInfluenceRadius float64) *Path {
	p := &Path{index: spatial.NewIndex(maxInfluenceRadius)}
	for _, n := range nodes {
		p.append(n)
	}
	if len(nodes) >= 2 {
		p.spacing = nodes[1].Sub(nodes[0]).Len()
	}
	return p
}

func (p *Path) append(pos geom.Vec3) {
	p.index.Insert(pos, len(p.nodes))
	p.nodes = append(p.nodes, pos)
}

// Len returns the node count.
func (p *Path) Len() int { return len(p.nodes) }

// Node returns the position of node i.
func (p *Path) Node(i int) geom.Vec3 { return p.nodes[i] }

// Spacing returns the target edge length the path was built with.
func (p *Path) Spacing() float64 { return p.spacing }

// NodesNear returns a conservative superset of the node indices
// within radius of pos.
func (p *Path) NodesNear(pos geom.Vec3, radius float64) []int {
	return p.index.WithinRadius(pos, radius)
}

// DistanceToPolyline returns the distance from pos to the nearest
// point on the path, considering only edges touching the candidate
// node indices. Callers pass the result of NodesNear; the superset
// property of the index makes the minimum exact within the query
// radius.
func (p *Path) DistanceToPolyline(pos geom.Vec3, candidates []int) (float64, geom.Vec3) {
	best := math.Inf(1)
	var bestPoint geom.Vec3
	for _, i := range candidates {
		for _, j := range [2]int{i - 1, i + 1} {
			if j < 0 || j >= len(p.nodes) {
				continue
			}
			q := geom.ClosestOnSegment(p.nodes[i], p.nodes[j], pos)
			if d := q.Sub(pos).Len(); d < best {
				best = d
				bestPoint = q
			}
		}
		// Single-node paths have no edges at all.
		if len(p.nodes) == 1 {
			if d := p.nodes[i].Sub(pos).Len(); d < best {
				best = d
				bestPoint = p.nodes[i]
			}
		}
	}
	return best, bestPoint
}

func randomUnit(rng *rand.Rand) geom.Vec3 {
	// Rejection sample inside the unit ball, then normalize.
	for {
		v := geom.V(rng.Float64()*2-1, rng.Float64()*2-1, rng.Float64()*2-1)
		if l := v.Len(); l > 1e-6 && l <= 1 {
			return v.Mul(1 / l)
		}
	}
}
