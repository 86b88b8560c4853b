package march

import (
	"math"
	"testing"

	"github.com/veinworks/cavemesh/internal/geom"
	"github.com/veinworks/cavemesh/internal/sample"
)

func TestTriTableVertexCountsDivisibleByThree(t *testing.T) {
	for cfg := 0; cfg < 256; cfg++ {
		n := 0
		for _, e := range triTable[cfg] {
			if e == -1 {
				break
			}
			n++
		}
		if n%3 != 0 {
			t.Errorf("config %d emits %d vertices, not divisible by 3", cfg, n)
		}
	}
}

func TestTriTableReferencesOnlyCrossingEdges(t *testing.T) {
	for cfg := 0; cfg < 256; cfg++ {
		for _, e := range triTable[cfg] {
			if e == -1 {
				break
			}
			if e < 0 || e > 11 {
				t.Fatalf("config %d references invalid edge %d", cfg, e)
			}
			if edgeMasks[cfg]&(1<<e) == 0 {
				t.Errorf("config %d references edge %d absent from its edge mask", cfg, e)
			}
		}
	}
}

func TestEdgeMaskMatchesCornerSolidity(t *testing.T) {
	for cfg := 0; cfg < 256; cfg++ {
		for e, c := range edgeCorners {
			want := (cfg>>c[0]&1 != 0) != (cfg>>c[1]&1 != 0)
			got := edgeMasks[cfg]&(1<<e) != 0
			if got != want {
				t.Fatalf("config %d edge %d: mask %v, want %v", cfg, e, got, want)
			}
		}
	}
}

func TestFreeFacesUniformCells(t *testing.T) {
	if freeFaceMasks[0] != 0 {
		t.Errorf("fully empty cell has free faces %06b", freeFaceMasks[0])
	}
	if freeFaceMasks[255] != 0 {
		t.Errorf("fully solid cell has free faces %06b", freeFaceMasks[255])
	}
}

func TestFreeFacesNeverThroughSolidFace(t *testing.T) {
	for cfg := 1; cfg < 256; cfg++ {
		for f, corners := range faceCorners {
			allSolid := true
			for _, c := range corners {
				if cfg>>c&1 == 0 {
					allSolid = false
					break
				}
			}
			if allSolid && freeFaceMasks[cfg].Has(f) {
				t.Errorf("config %d face %d is free despite four solid corners", cfg, f)
			}
			if !allSolid && !freeFaceMasks[cfg].Has(f) {
				t.Errorf("config %d face %d touches non-solid space but is not free", cfg, f)
			}
		}
	}
}

func sphereSpace(radius float64) *sample.Space {
	return sample.NewSpace(func(p geom.Vec3) float64 {
		return geom.Clamp01(p.Len() / radius)
	}, 1, 0.5)
}

func TestTriangulateSphereCell(t *testing.T) {
	// Iso level 0.5 of |p|/5 puts the surface at radius 2.5.
	s := sphereSpace(5)

	free := Triangulate(s, 2, 0, 0, 0.5)
	if free == 0 {
		t.Fatal("surface cell reported no free faces")
	}

	verts := s.ChunkFor(2, 0, 0).Vertices()
	if len(verts) == 0 || len(verts)%3 != 0 {
		t.Fatalf("vertex count = %d, want positive multiple of 3", len(verts))
	}

	for _, v := range verts {
		r := v.Position.Len()
		if math.Abs(r-2.5) > 0.2 {
			t.Errorf("vertex at radius %v, want 2.5 ± 0.2", r)
		}
		if math.Abs(v.Normal.Len()-1) > 1e-9 {
			t.Errorf("normal length %v, want 1", v.Normal.Len())
		}
		// Density grows outward, so normals face the sphere center.
		if v.Normal.Dot(v.Position) > 0 {
			t.Errorf("normal %v points away from interior at %v", v.Normal, v.Position)
		}
	}
}

func TestTriangulateUniformCellsEmitNothing(t *testing.T) {
	s := sphereSpace(5)

	// Deep inside: all corners solid.
	if free := Triangulate(s, 0, 0, 0, 0.5); free != 0 {
		t.Errorf("interior cell free faces = %06b, want none", free)
	}
	// Far outside: all corners non-solid.
	if free := Triangulate(s, 40, 40, 40, 0.5); free != 0 {
		t.Errorf("exterior cell free faces = %06b, want none", free)
	}
	if n := s.ChunkFor(0, 0, 0).VertexCount(); n != 0 {
		t.Errorf("uniform cell appended %d vertices", n)
	}
}

func TestTriangulateDeterministic(t *testing.T) {
	s1 := sphereSpace(5)
	s2 := sphereSpace(5)
	Triangulate(s1, 2, 0, 0, 0.5)
	Triangulate(s2, 2, 0, 0, 0.5)

	v1 := s1.ChunkFor(2, 0, 0).Vertices()
	v2 := s2.ChunkFor(2, 0, 0).Vertices()
	if len(v1) != len(v2) {
		t.Fatalf("vertex counts differ: %d vs %d", len(v1), len(v2))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("vertex %d differs: %v vs %v", i, v1[i], v2[i])
		}
	}
}

func TestInterpWeightSnapping(t *testing.T) {
	tests := []struct {
		da, db, level, want float64
		name                string
	}{
		{0.5, 0.9, 0.5, 0, "level at a"},
		{0.1, 0.5, 0.5, 1, "level at b"},
		{0.3, 0.3 + 1e-5, 0.5, 0, "near-equal densities"},
		{0, 1, 0.5, 0.5, "midpoint"},
		{0.2, 0.6, 0.3, 0.25, "quarter"},
	}
	for _, tt := range tests {
		if got := interpWeight(tt.da, tt.db, tt.level); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: interpWeight(%v,%v,%v) = %v, want %v",
				tt.name, tt.da, tt.db, tt.level, got, tt.want)
		}
	}
}

func TestGradientNormalZeroFallback(t *testing.T) {
	s := sample.NewSpace(func(geom.Vec3) float64 { return 0.5 }, 1, 0.5)
	if n := gradientNormal(s, 0, 0, 0); n != (geom.Vec3{}) {
		t.Errorf("flat field normal = %v, want zero vector", n)
	}
}
