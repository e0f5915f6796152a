// Package shadow projects the silhouette of a mesh from a point light onto
// a receiving plane, giving the outline of the shadow the mesh casts.
package shadow

import (
	"context"
	"fmt"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/kernel"
	"github.com/chazu/umbra/pkg/silhouette"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// Segment is one projected silhouette edge.
type Segment struct {
	Edge silhouette.Edge `json:"edge"`
	A    v3.Vec          `json:"a"`
	B    v3.Vec          `json:"b"`
}

// Length returns the length of the projected segment.
func (s Segment) Length() float64 {
	return s.B.Sub(s.A).Length()
}

// Outline is the projected silhouette of one mesh for one light.
type Outline struct {
	PartName string     `json:"partName"`
	Light    v3.Vec     `json:"light"`
	Plane    geom.Plane `json:"plane"`
	// Edges counts silhouette edges before deduplication.
	Edges    int       `json:"edges"`
	Segments []Segment `json:"segments"`
	// Skipped counts deduplicated edges with an endpoint whose light ray
	// runs parallel to the plane.
	Skipped int `json:"skipped"`
}

// Perimeter returns the summed length of all segments.
func (o *Outline) Perimeter() float64 {
	var sum float64
	for _, s := range o.Segments {
		sum += s.Length()
	}
	return sum
}

// Compute extracts the silhouette of m seen from light, drops duplicate
// edges and projects each remaining edge onto plane.
func Compute(m *kernel.Mesh, light v3.Vec, plane geom.Plane) (*Outline, error) {
	edges, err := silhouette.ExtractMesh(m, light)
	if err != nil {
		return nil, fmt.Errorf("shadow: %s: %w", m.PartName, err)
	}
	return project(m, edges, light, plane), nil
}

// ComputeParallel is Compute with silhouette extraction spread over up to
// workers goroutines.
func ComputeParallel(ctx context.Context, m *kernel.Mesh, light v3.Vec, plane geom.Plane, workers int) (*Outline, error) {
	edges, err := silhouette.ExtractMeshParallel(ctx, m, light, workers)
	if err != nil {
		return nil, fmt.Errorf("shadow: %s: %w", m.PartName, err)
	}
	return project(m, edges, light, plane), nil
}

func project(m *kernel.Mesh, edges []silhouette.Edge, light v3.Vec, plane geom.Plane) *Outline {
	o := &Outline{
		PartName: m.PartName,
		Light:    light,
		Plane:    plane,
		Edges:    len(edges),
		Segments: []Segment{},
	}
	for _, e := range silhouette.Dedupe(edges, m.Positions) {
		a, okA := geom.ProjectFromLight(plane, light, m.Positions[e.A])
		b, okB := geom.ProjectFromLight(plane, light, m.Positions[e.B])
		if !okA || !okB {
			o.Skipped++
			continue
		}
		o.Segments = append(o.Segments, Segment{Edge: e, A: a, B: b})
	}
	return o
}

// ComputeAll computes one outline per mesh and light, mesh-major, running up
// to workers outlines at once.
func ComputeAll(ctx context.Context, meshes []*kernel.Mesh, lights []v3.Vec, plane geom.Plane, workers int) ([]*Outline, error) {
	out := make([]*Outline, len(meshes)*len(lights))
	g, ctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for mi, m := range meshes {
		for li, light := range lights {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				o, err := Compute(m, light, plane)
				if err != nil {
					return err
				}
				out[mi*len(lights)+li] = o
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
