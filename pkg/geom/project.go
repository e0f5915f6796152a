package geom

import (
	"context"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// LitPoint is the shadow of a vertex that faces the light.
type LitPoint struct {
	Point v3.Vec
	Lit   bool // vertex faces the light and its ray meets the plane
}

// ProjectPoints projects every point orthogonally onto p.
func ProjectPoints(p Plane, points []v3.Vec) []v3.Vec {
	out := make([]v3.Vec, len(points))
	for i, pt := range points {
		out[i] = ProjectOntoPlane(p, pt)
	}
	return out
}

// ProjectPointsFromLight projects every point onto p along the ray from the
// light. Points whose ray misses the plane are reported in the returned
// mask as false and left zero.
func ProjectPointsFromLight(p Plane, light v3.Vec, points []v3.Vec) ([]v3.Vec, []bool) {
	out := make([]v3.Vec, len(points))
	hit := make([]bool, len(points))
	for i, pt := range points {
		out[i], hit[i] = ProjectFromLight(p, light, pt)
	}
	return out, hit
}

// ProjectLitPoints projects, from the light, only the vertices that face it.
func ProjectLitPoints(p Plane, light v3.Vec, positions, normals []v3.Vec) ([]LitPoint, error) {
	if len(normals) != len(positions) {
		return nil, fmt.Errorf("geom: %d normals for %d positions", len(normals), len(positions))
	}
	out := make([]LitPoint, len(positions))
	for i := range positions {
		out[i] = litPoint(p, light, positions[i], normals[i])
	}
	return out, nil
}

func litPoint(p Plane, light, pos, normal v3.Vec) LitPoint {
	if !IsFacing(light, pos, normal) {
		return LitPoint{}
	}
	pt, ok := ProjectFromLight(p, light, pos)
	return LitPoint{Point: pt, Lit: ok}
}

// ---------------------------------------------------------------------------
// Parallel variants
// ---------------------------------------------------------------------------

// ForChunks calls fn over [0, n) split into contiguous chunks, running at
// most workers chunks at once. Each call owns its half-open range, so fn may
// write to disjoint slots of shared slices without locking. With workers
// below 2, fn runs once over the whole range on the calling goroutine.
func ForChunks(ctx context.Context, n, workers int, fn func(lo, hi int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}

	size := (n + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// ProjectPointsParallel is ProjectPoints spread over workers goroutines.
func ProjectPointsParallel(ctx context.Context, p Plane, points []v3.Vec, workers int) ([]v3.Vec, error) {
	out := make([]v3.Vec, len(points))
	err := ForChunks(ctx, len(points), workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			out[i] = ProjectOntoPlane(p, points[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectPointsFromLightParallel is ProjectPointsFromLight spread over
// workers goroutines.
func ProjectPointsFromLightParallel(ctx context.Context, p Plane, light v3.Vec, points []v3.Vec, workers int) ([]v3.Vec, []bool, error) {
	out := make([]v3.Vec, len(points))
	hit := make([]bool, len(points))
	err := ForChunks(ctx, len(points), workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			out[i], hit[i] = ProjectFromLight(p, light, points[i])
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, hit, nil
}

// ProjectLitPointsParallel is ProjectLitPoints spread over workers goroutines.
func ProjectLitPointsParallel(ctx context.Context, p Plane, light v3.Vec, positions, normals []v3.Vec, workers int) ([]LitPoint, error) {
	if len(normals) != len(positions) {
		return nil, fmt.Errorf("geom: %d normals for %d positions", len(normals), len(positions))
	}
	out := make([]LitPoint, len(positions))
	err := ForChunks(ctx, len(positions), workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			out[i] = litPoint(p, light, positions[i], normals[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
