// Package tessellate walks a scene and produces triangle meshes using a
// geometry kernel. One mesh is produced per placed part.
package tessellate

import (
	"context"
	"fmt"

	"github.com/chazu/umbra/pkg/kernel"
	"github.com/chazu/umbra/pkg/scene"
	"golang.org/x/sync/errgroup"
)

// cylinderSegments is passed to kernels that facet cylinders.
const cylinderSegments = 32

// transformStack holds the placements enclosing the node being visited,
// outermost first.
type transformStack struct {
	frames []scene.TransformData
}

func (ts *transformStack) push(td scene.TransformData) {
	ts.frames = append(ts.frames, td)
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 0 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

// apply places s by every frame on the stack, innermost first. Within a
// frame rotation comes before translation.
func (ts *transformStack) apply(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	for i := len(ts.frames) - 1; i >= 0; i-- {
		f := ts.frames[i]
		if r := f.Rotation; r != nil && (r.X != 0 || r.Y != 0 || r.Z != 0) {
			s = k.Rotate(s, r.X, r.Y, r.Z)
		}
		if t := f.Translation; t != nil && (t.X != 0 || t.Y != 0 || t.Z != 0) {
			s = k.Translate(s, t.X, t.Y, t.Z)
		}
	}
	return s
}

// job is a placed solid waiting to be meshed.
type job struct {
	solid kernel.Solid
	node  *scene.Node
}

// Tessellate walks the scene and produces one triangle mesh per placed
// part, in traversal order. It never mutates the scene.
func Tessellate(s *scene.Scene, k kernel.Kernel) ([]*kernel.Mesh, error) {
	return TessellateContext(context.Background(), s, k, 1)
}

// TessellateContext is Tessellate with the meshing of parts spread over up
// to workers goroutines. The output order does not depend on workers.
func TessellateContext(ctx context.Context, s *scene.Scene, k kernel.Kernel, workers int) ([]*kernel.Mesh, error) {
	if s == nil {
		return nil, nil
	}

	var jobs []job
	ts := &transformStack{}
	for _, rootID := range s.Roots {
		root := s.Get(rootID)
		if root == nil {
			continue
		}
		collected, err := walkNode(s, k, root, ts, map[scene.NodeID]bool{})
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", rootID, err)
		}
		jobs = append(jobs, collected...)
	}

	meshes := make([]*kernel.Mesh, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mesh, err := k.ToMesh(j.solid)
			if err != nil {
				return fmt.Errorf("tessellate: ToMesh failed for node %s: %w", j.node.ID, err)
			}
			mesh.PartName = j.node.Name
			if mesh.PartName == "" {
				mesh.PartName = string(j.node.ID)
			}
			meshes[i] = mesh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// walkNode recursively traverses a node and its children, collecting placed
// solids. path holds the nodes on the current branch so cycles fail instead
// of recursing forever.
func walkNode(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack, path map[scene.NodeID]bool) ([]job, error) {
	if path[n.ID] {
		return nil, fmt.Errorf("cycle through node %s", n.ID)
	}
	path[n.ID] = true
	defer delete(path, n.ID)

	switch n.Kind {
	case scene.NodePrimitive:
		return handlePrimitive(k, n, ts)
	case scene.NodeTransform:
		return handleTransform(s, k, n, ts, path)
	case scene.NodeGroup:
		return walkChildren(s, k, n, ts, path)
	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

func handlePrimitive(k kernel.Kernel, n *scene.Node, ts *transformStack) ([]job, error) {
	var solid kernel.Solid
	switch d := n.Data.(type) {
	case scene.BoxData:
		solid = k.Box(d.Size.X, d.Size.Y, d.Size.Z)
	case scene.CylinderData:
		solid = k.Cylinder(d.Height, d.Radius, cylinderSegments)
	case scene.SphereData:
		solid = k.Sphere(d.Radius)
	default:
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID, n.Data)
	}
	return []job{{solid: ts.apply(k, solid), node: n}}, nil
}

// handleTransform pushes the placement, recurses into children, then pops.
func handleTransform(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack, path map[scene.NodeID]bool) ([]job, error) {
	td, ok := n.Data.(scene.TransformData)
	if !ok {
		return nil, fmt.Errorf("transform node %s has unexpected data type %T", n.ID, n.Data)
	}
	ts.push(td)
	defer ts.pop()
	return walkChildren(s, k, n, ts, path)
}

func walkChildren(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack, path map[scene.NodeID]bool) ([]job, error) {
	var jobs []job
	for _, child := range s.Children(n) {
		collected, err := walkNode(s, k, child, ts, path)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, collected...)
	}
	return jobs, nil
}
