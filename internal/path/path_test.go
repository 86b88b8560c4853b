package path

import (
	"math"
	"testing"

	"github.com/veinworks/cavemesh/internal/geom"
)

func TestGenerateDeterministic(t *testing.T) {
	p1 := Generate(1234, 100, 4, 12)
	p2 := Generate(1234, 100, 4, 12)

	if p1.Len() != p2.Len() {
		t.Fatalf("node counts differ: %d vs %d", p1.Len(), p2.Len())
	}
	for i := 0; i < p1.Len(); i++ {
		if p1.Node(i) != p2.Node(i) {
			t.Fatalf("node %d differs: %v vs %v", i, p1.Node(i), p2.Node(i))
		}
	}
}

func TestGenerateDifferentSeeds(t *testing.T) {
	p1 := Generate(1, 50, 4, 12)
	p2 := Generate(2, 50, 4, 12)

	same := true
	for i := 1; i < p1.Len(); i++ {
		if p1.Node(i) != p2.Node(i) {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical paths")
	}
}

func TestGenerateSpacing(t *testing.T) {
	const spacing = 5.0
	p := Generate(77, 200, spacing, 15)

	for i := 1; i < p.Len(); i++ {
		d := p.Node(i).Sub(p.Node(i - 1)).Len()
		if d < spacing*0.8-1e-9 || d > spacing*1.2+1e-9 {
			t.Fatalf("edge %d length %v outside [%v, %v]", i, d, spacing*0.8, spacing*1.2)
		}
	}
}

func TestNodesNearFindsNeighbors(t *testing.T) {
	p := Generate(5, 100, 4, 12)

	// Every node must find itself within any positive radius.
	for i := 0; i < p.Len(); i++ {
		found := false
		for _, idx := range p.NodesNear(p.Node(i), 1) {
			if idx == i {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("node %d not returned by NodesNear at its own position", i)
		}
	}
}

func TestDistanceToPolyline(t *testing.T) {
	p := FromNodes([]geom.Vec3{
		geom.V(0, 0, 0),
		geom.V(10, 0, 0),
		geom.V(10, 10, 0),
	}, 20)

	pos := geom.V(5, 3, 0)
	d, q := p.DistanceToPolyline(pos, p.NodesNear(pos, 20))
	if math.Abs(d-3) > 1e-12 {
		t.Errorf("distance = %v, want 3", d)
	}
	if q.Sub(geom.V(5, 0, 0)).Len() > 1e-12 {
		t.Errorf("closest point = %v, want (5,0,0)", q)
	}

	// Beyond the last node the segment end clamps.
	pos = geom.V(10, 15, 0)
	d, q = p.DistanceToPolyline(pos, p.NodesNear(pos, 20))
	if math.Abs(d-5) > 1e-12 || q.Sub(geom.V(10, 10, 0)).Len() > 1e-12 {
		t.Errorf("clamped distance = %v at %v, want 5 at (10,10,0)", d, q)
	}
}

func TestDistanceToPolylineSingleNode(t *testing.T) {
	p := FromNodes([]geom.Vec3{geom.V(1, 1, 1)}, 10)
	pos := geom.V(1, 1, 4)
	d, _ := p.DistanceToPolyline(pos, p.NodesNear(pos, 10))
	if math.Abs(d-3) > 1e-12 {
		t.Errorf("single-node distance = %v, want 3", d)
	}
}
