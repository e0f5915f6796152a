package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/kernel"
	"github.com/chazu/umbra/pkg/meshio"
	"github.com/chazu/umbra/pkg/silhouette"
	"github.com/chazu/umbra/pkg/tessellate"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// stage is one timed action of the harness.
type stage struct {
	name   string
	action func(m *kernel.Mesh) error
}

// timeStage runs action over every mesh iterations times and logs the total
// wall time.
func timeStage(s stage, meshes []*kernel.Mesh, iterations int) (time.Duration, error) {
	start := time.Now()
	for i := 0; i < iterations; i++ {
		for _, m := range meshes {
			if err := s.action(m); err != nil {
				return 0, fmt.Errorf("%s: %w", s.name, err)
			}
		}
	}
	elapsed := time.Since(start)
	log.Printf("%s: %d ms", s.name, elapsed.Milliseconds())
	return elapsed, nil
}

func stages(ctx context.Context, light v3.Vec, plane geom.Plane, workers int) []stage {
	return []stage{
		{"project on plane", func(m *kernel.Mesh) error {
			geom.ProjectPoints(plane, m.Positions)
			return nil
		}},
		{"project on plane parallel", func(m *kernel.Mesh) error {
			_, err := geom.ProjectPointsParallel(ctx, plane, m.Positions, workers)
			return err
		}},
		{"facing and project", func(m *kernel.Mesh) error {
			_, err := geom.ProjectLitPoints(plane, light, m.Positions, m.Normals)
			return err
		}},
		{"facing and project parallel", func(m *kernel.Mesh) error {
			_, err := geom.ProjectLitPointsParallel(ctx, plane, light, m.Positions, m.Normals, workers)
			return err
		}},
		{"silhouette", func(m *kernel.Mesh) error {
			_, err := silhouette.ExtractMesh(m, light)
			return err
		}},
		{"silhouette parallel", func(m *kernel.Mesh) error {
			_, err := silhouette.ExtractMeshParallel(ctx, m, light, workers)
			return err
		}},
	}
}

// benchmark loads the meshes behind path and times every stage against the
// first light.
func (a *App) benchmark(path string, lights []v3.Vec, plane geom.Plane, iterations int) error {
	ctx := context.Background()
	meshes, lights, plane, err := a.load(ctx, path, lights, plane)
	if err != nil {
		return err
	}
	if len(lights) == 0 {
		return errors.New("no light to time against")
	}

	var verts, tris int
	for _, m := range meshes {
		verts += m.VertexCount()
		tris += m.TriangleCount()
	}
	log.Printf("timing %d meshes, %d vertices, %d triangles, %d iterations", len(meshes), verts, tris, iterations)

	for _, s := range stages(ctx, lights[0], plane, a.workers) {
		if _, err := timeStage(s, meshes, iterations); err != nil {
			return err
		}
	}
	return nil
}

// load returns the meshes for path with the lights and plane that apply to
// them. Scene scripts carry their own; mesh files use the given ones.
func (a *App) load(ctx context.Context, path string, lights []v3.Vec, plane geom.Plane) ([]*kernel.Mesh, []v3.Vec, geom.Plane, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		meshes, err := meshio.Load(path)
		return meshes, lights, plane, err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, plane, err
	}
	s, evalErrs, err := a.engine.Evaluate(string(source))
	if err != nil {
		return nil, nil, plane, err
	}
	if len(evalErrs) > 0 {
		return nil, nil, plane, evalErrs[0]
	}
	meshes, err := tessellate.TessellateContext(ctx, s, a.kernel, a.workers)
	if err != nil {
		return nil, nil, plane, err
	}
	return meshes, s.Lights, s.ShadowPlane(), nil
}
