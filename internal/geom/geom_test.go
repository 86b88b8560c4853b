package geom

import (
	"math"
	"testing"
)

func TestAABBContains(t *testing.T) {
	b := CubeAround(V(0, 0, 0), 2)

	tests := []struct {
		p    Vec3
		want bool
		name string
	}{
		{V(0, 0, 0), true, "center"},
		{V(1.9, -1.9, 0), true, "near corner"},
		{V(-2, -2, -2), true, "min corner included"},
		{V(2, 0, 0), false, "max face excluded"},
		{V(0, 0, 3), false, "outside"},
	}
	for _, tt := range tests {
		if got := b.Contains(tt.p); got != tt.want {
			t.Errorf("%s: Contains(%v) = %v, want %v", tt.name, tt.p, got, tt.want)
		}
	}
}

func TestAABBDistSqToPoint(t *testing.T) {
	b := AABB{Min: V(0, 0, 0), Max: V(1, 1, 1)}

	if d := b.DistSqToPoint(V(0.5, 0.5, 0.5)); d != 0 {
		t.Errorf("inside point dist = %v, want 0", d)
	}
	if d := b.DistSqToPoint(V(2, 0.5, 0.5)); d != 1 {
		t.Errorf("face dist = %v, want 1", d)
	}
	// Corner distance: (1,1,1) offset from the (1,1,1) corner.
	if d := b.DistSqToPoint(V(2, 2, 2)); d != 3 {
		t.Errorf("corner dist = %v, want 3", d)
	}
}

func TestClosestOnSegment(t *testing.T) {
	a, b := V(0, 0, 0), V(10, 0, 0)

	tests := []struct {
		p, want Vec3
	}{
		{V(5, 3, 0), V(5, 0, 0)},
		{V(-4, 1, 0), V(0, 0, 0)},  // clamped to a
		{V(15, -2, 0), V(10, 0, 0)}, // clamped to b
	}
	for _, tt := range tests {
		got := ClosestOnSegment(a, b, tt.p)
		if got.Sub(tt.want).Len() > 1e-12 {
			t.Errorf("ClosestOnSegment(p=%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestClosestOnSegmentDegenerate(t *testing.T) {
	a := V(1, 2, 3)
	got := ClosestOnSegment(a, a, V(9, 9, 9))
	if got != a {
		t.Errorf("degenerate segment closest = %v, want %v", got, a)
	}
}

func TestSafeNormalize(t *testing.T) {
	if got := SafeNormalize(V(0, 0, 0)); got != (Vec3{}) {
		t.Errorf("zero vector normalize = %v, want zero", got)
	}
	got := SafeNormalize(V(3, 0, 4))
	if math.Abs(got.Len()-1) > 1e-12 {
		t.Errorf("normalized length = %v, want 1", got.Len())
	}
	if math.Abs(got[0]-0.6) > 1e-12 || math.Abs(got[2]-0.8) > 1e-12 {
		t.Errorf("normalized = %v, want (0.6, 0, 0.8)", got)
	}
}
