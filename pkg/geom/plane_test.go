package geom

import (
	"context"
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const tol = 1e-9

func near(a, b v3.Vec) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

// ground is the y=0 plane facing up, as built from a transform's up vector
// and position.
var ground = MakePlane(v3.Vec{Y: 1}, v3.Vec{})

// ---------------------------------------------------------------------------
// Plane construction
// ---------------------------------------------------------------------------

func TestMakePlaneNormalizes(t *testing.T) {
	p := MakePlane(v3.Vec{Y: 5}, v3.Vec{X: 1, Y: 2, Z: 3})
	if !near(p.Normal, v3.Vec{Y: 1}) {
		t.Errorf("Normal = %v, want (0,1,0)", p.Normal)
	}
	if p.Point != (v3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Point = %v, want (1,2,3)", p.Point)
	}
}

func TestMakePlaneZeroNormal(t *testing.T) {
	p := MakePlane(v3.Vec{}, v3.Vec{})
	if p.Normal != (v3.Vec{}) {
		t.Fatalf("Normal = %v, want zero", p.Normal)
	}
	if _, ok := ProjectFromLight(p, v3.Vec{Y: 10}, v3.Vec{Y: 1}); ok {
		t.Error("ProjectFromLight on a degenerate plane reported a hit")
	}
}

func TestSignedDistance(t *testing.T) {
	p := MakePlane(v3.Vec{Y: 1}, v3.Vec{Y: 2})
	if d := p.SignedDistance(v3.Vec{X: 7, Y: 5}); math.Abs(d-3) > tol {
		t.Errorf("SignedDistance above = %f, want 3", d)
	}
	if d := p.SignedDistance(v3.Vec{Y: -1}); math.Abs(d+3) > tol {
		t.Errorf("SignedDistance below = %f, want -3", d)
	}
}

// ---------------------------------------------------------------------------
// Orthogonal projection
// ---------------------------------------------------------------------------

func TestProjectOntoPlane(t *testing.T) {
	tilted := MakePlane(v3.Vec{X: 1, Y: 1}, v3.Vec{X: 1})
	tests := []struct {
		name  string
		plane Plane
		point v3.Vec
		want  v3.Vec
	}{
		{"above ground", ground, v3.Vec{X: 1, Y: 4, Z: -2}, v3.Vec{X: 1, Z: -2}},
		{"below ground", ground, v3.Vec{X: -3, Y: -1, Z: 0.5}, v3.Vec{X: -3, Z: 0.5}},
		{"tilted", tilted, v3.Vec{X: 2, Y: 1}, v3.Vec{X: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProjectOntoPlane(tt.plane, tt.point); !near(got, tt.want) {
				t.Errorf("ProjectOntoPlane(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestProjectOntoPlaneIdempotent(t *testing.T) {
	planes := []Plane{
		ground,
		MakePlane(v3.Vec{X: 1, Y: 2, Z: 3}, v3.Vec{X: -4, Y: 0.5, Z: 9}),
		MakePlane(v3.Vec{Z: -1}, v3.Vec{Z: 100}),
	}
	points := []v3.Vec{{X: 1, Y: 2, Z: 3}, {X: -10, Y: 0.25, Z: 7}, {}}
	for _, p := range planes {
		for _, pt := range points {
			once := ProjectOntoPlane(p, pt)
			twice := ProjectOntoPlane(p, once)
			if !near(once, twice) {
				t.Errorf("plane %v: projecting %v again moved it to %v", p, once, twice)
			}
			if d := p.SignedDistance(once); math.Abs(d) > tol {
				t.Errorf("plane %v: projection %v is %g off the plane", p, once, d)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Projection from the light
// ---------------------------------------------------------------------------

func TestProjectFromLight(t *testing.T) {
	tests := []struct {
		name   string
		light  v3.Vec
		vertex v3.Vec
		want   v3.Vec
		ok     bool
	}{
		{"straight down", v3.Vec{Y: 10}, v3.Vec{Y: 5}, v3.Vec{}, true},
		{"slanted", v3.Vec{Y: 4}, v3.Vec{X: 1, Y: 2}, v3.Vec{X: 2}, true},
		{"vertex below plane", v3.Vec{Y: 2}, v3.Vec{X: 2, Y: -2}, v3.Vec{X: 1}, true},
		{"parallel ray", v3.Vec{Y: 1}, v3.Vec{X: 5, Y: 1}, v3.Vec{}, false},
		{"vertex at light", v3.Vec{X: 3, Y: 3, Z: 3}, v3.Vec{X: 3, Y: 3, Z: 3}, v3.Vec{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProjectFromLight(ground, tt.light, tt.vertex)
			if ok != tt.ok {
				t.Fatalf("ProjectFromLight ok = %v, want %v", ok, tt.ok)
			}
			if !near(got, tt.want) {
				t.Errorf("ProjectFromLight = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProjectFromLightMissesOnlyWhenParallel(t *testing.T) {
	light := v3.Vec{X: 1, Y: 3, Z: -2}
	vertices := []v3.Vec{
		{X: 5, Y: 3, Z: 0},   // parallel
		{X: -2, Y: 3, Z: 9},  // parallel
		{X: 5, Y: 2.5, Z: 0}, // descending
		{X: 0, Y: 8, Z: 1},   // ascending, hits behind the light
	}
	for _, v := range vertices {
		dir := v.Sub(light)
		parallel := math.Abs(dir.Dot(ground.Normal)) < tol
		hit, ok := ProjectFromLight(ground, light, v)
		if ok == parallel {
			t.Errorf("vertex %v: ok = %v, parallel = %v", v, ok, parallel)
		}
		if !ok && hit != (v3.Vec{}) {
			t.Errorf("vertex %v: missed but returned %v", v, hit)
		}
		if ok && math.Abs(hit.Y) > tol {
			t.Errorf("vertex %v: hit %v is not on the plane", v, hit)
		}
	}
}

func TestProjectFromLightOrZero(t *testing.T) {
	if got := ProjectFromLightOrZero(ground, v3.Vec{Y: 1}, v3.Vec{X: 1, Y: 1}); got != (v3.Vec{}) {
		t.Errorf("parallel fallback = %v, want zero vector", got)
	}
	if got := ProjectFromLightOrZero(ground, v3.Vec{Y: 4}, v3.Vec{X: 1, Y: 2}); !near(got, v3.Vec{X: 2}) {
		t.Errorf("hit = %v, want (2,0,0)", got)
	}
}

func TestIntersectBehindOrigin(t *testing.T) {
	tm, ok := ground.Intersect(Ray{Origin: v3.Vec{Y: 1}, Direction: v3.Vec{Y: 1}})
	if !ok {
		t.Fatal("Intersect reported parallel for a perpendicular ray")
	}
	if math.Abs(tm+1) > tol {
		t.Errorf("t = %f, want -1", tm)
	}
}

// ---------------------------------------------------------------------------
// Facing
// ---------------------------------------------------------------------------

func TestIsFacing(t *testing.T) {
	tests := []struct {
		name   string
		light  v3.Vec
		vertex v3.Vec
		normal v3.Vec
		want   bool
	}{
		{"light in front", v3.Vec{Y: 10}, v3.Vec{}, v3.Vec{Y: 1}, true},
		{"light behind", v3.Vec{Y: -10}, v3.Vec{}, v3.Vec{Y: 1}, false},
		{"grazing light", v3.Vec{X: 10}, v3.Vec{}, v3.Vec{Y: 1}, false},
		{"oblique", v3.Vec{X: 1, Y: 1, Z: 1}, v3.Vec{X: 0.5}, v3.Vec{X: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFacing(tt.light, tt.vertex, tt.normal); got != tt.want {
				t.Errorf("IsFacing = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFacingAntisymmetric(t *testing.T) {
	vertices := []v3.Vec{{}, {X: 1, Y: -2, Z: 3}, {X: 0.5, Y: 0.5, Z: 0.5}}
	normals := []v3.Vec{{Y: 1}, {X: 1, Y: 1}, {X: -0.3, Y: 0.2, Z: 0.9}}
	offsets := []v3.Vec{{X: 1, Y: 2, Z: 3}, {Y: -5}, {X: 0.1, Y: 0.1, Z: -4}}
	for _, v := range vertices {
		for _, n := range normals {
			for _, d := range offsets {
				if d.Dot(n) == 0 {
					continue
				}
				forward := IsFacing(v.Add(d), v, n)
				reversed := IsFacing(v.Sub(d), v, n)
				if forward == reversed {
					t.Errorf("vertex %v normal %v offset %v: facing not flipped by reversal", v, n, d)
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Bulk projection
// ---------------------------------------------------------------------------

func grid(n int) []v3.Vec {
	pts := make([]v3.Vec, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, v3.Vec{X: float64(i), Y: float64(i+j) * 0.5, Z: float64(j)})
		}
	}
	return pts
}

func TestProjectPointsParallelMatchesSerial(t *testing.T) {
	pts := grid(17)
	light := v3.Vec{X: 3, Y: 40, Z: -2}
	serial := ProjectPoints(ground, pts)
	serialHits, serialMask := ProjectPointsFromLight(ground, light, pts)

	for _, workers := range []int{0, 1, 2, 3, 8, 1000} {
		got, err := ProjectPointsParallel(context.Background(), ground, pts, workers)
		if err != nil {
			t.Fatalf("workers=%d: ProjectPointsParallel error = %v", workers, err)
		}
		hits, mask, err := ProjectPointsFromLightParallel(context.Background(), ground, light, pts, workers)
		if err != nil {
			t.Fatalf("workers=%d: ProjectPointsFromLightParallel error = %v", workers, err)
		}
		for i := range pts {
			if got[i] != serial[i] {
				t.Fatalf("workers=%d: point %d = %v, want %v", workers, i, got[i], serial[i])
			}
			if hits[i] != serialHits[i] || mask[i] != serialMask[i] {
				t.Fatalf("workers=%d: light hit %d = %v/%v, want %v/%v", workers, i, hits[i], mask[i], serialHits[i], serialMask[i])
			}
		}
	}
}

func TestProjectLitPoints(t *testing.T) {
	positions := []v3.Vec{{X: 1, Y: 1}, {X: -1, Y: 1}}
	normals := []v3.Vec{{Y: 1}, {Y: -1}}
	light := v3.Vec{Y: 2}

	lit, err := ProjectLitPoints(ground, light, positions, normals)
	if err != nil {
		t.Fatalf("ProjectLitPoints error = %v", err)
	}
	if !lit[0].Lit || !near(lit[0].Point, v3.Vec{X: 2}) {
		t.Errorf("lit[0] = %+v, want lit at (2,0,0)", lit[0])
	}
	if lit[1].Lit {
		t.Errorf("lit[1] = %+v, want unlit for a vertex facing away", lit[1])
	}

	par, err := ProjectLitPointsParallel(context.Background(), ground, light, positions, normals, 2)
	if err != nil {
		t.Fatalf("ProjectLitPointsParallel error = %v", err)
	}
	for i := range lit {
		if par[i] != lit[i] {
			t.Errorf("parallel[%d] = %+v, want %+v", i, par[i], lit[i])
		}
	}

	if _, err := ProjectLitPoints(ground, light, positions, normals[:1]); err == nil {
		t.Error("ProjectLitPoints accepted mismatched normals")
	}
}

func TestForChunksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		err := ForChunks(ctx, 100, workers, func(lo, hi int) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: ForChunks error = %v, want context.Canceled", workers, err)
		}
	}
}

func TestForChunksCoversRange(t *testing.T) {
	seen := make([]int, 101)
	err := ForChunks(context.Background(), len(seen), 7, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			seen[i]++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForChunks error = %v", err)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, c)
		}
	}
}
