// Package scene defines the scene model produced by evaluating an umbra
// script: a DAG of primitive parts, placements and groups, plus the lights
// and the receiving plane used for outline projection.
package scene

import (
	"fmt"
	"sort"

	"github.com/chazu/umbra/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// NodeID identifies a node within one scene. IDs are derived from the
// script (part names, placement order) so the same source yields the same
// IDs on every evaluation.
type NodeID string

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool { return id == "" }

// NodeKind enumerates the types of nodes in the scene.
type NodeKind int

const (
	NodePrimitive NodeKind = iota // box, cylinder or sphere
	NodeTransform                 // placement (place)
	NodeGroup                     // logical grouping (group)
)

func (k NodeKind) String() string {
	switch k {
	case NodePrimitive:
		return "primitive"
	case NodeTransform:
		return "transform"
	case NodeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Node is a single element of the scene graph.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData()
}

// BoxData is an axis-aligned box with its minimum corner at the origin.
type BoxData struct {
	Size v3.Vec `json:"size"`
}

func (BoxData) nodeData() {}

// CylinderData is a cylinder centered on the origin along Z.
type CylinderData struct {
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

func (CylinderData) nodeData() {}

// SphereData is a sphere centered on the origin.
type SphereData struct {
	Radius float64 `json:"radius"`
}

func (SphereData) nodeData() {}

// TransformData places its children. Rotation holds Euler angles in degrees
// and is applied before Translation.
type TransformData struct {
	Translation *v3.Vec `json:"translation,omitempty"`
	Rotation    *v3.Vec `json:"rotation,omitempty"`
}

func (TransformData) nodeData() {}

// GroupData is a named collection of placed parts.
type GroupData struct{}

func (GroupData) nodeData() {}

// DefaultPlane is the receiving plane used when a script declares none:
// the ground plane z = 0.
var DefaultPlane = geom.MakePlane(v3.Vec{Z: 1}, v3.Vec{})

// Scene is the result of evaluating a script. It is never mutated after
// evaluation; each evaluation produces a new scene.
type Scene struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Lights    []v3.Vec          `json:"lights,omitempty"`
	Plane     *geom.Plane       `json:"plane,omitempty"`
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the scene. It does not check for duplicates.
func (s *Scene) AddNode(n *Node) {
	s.Nodes[n.ID] = n
	if n.Name != "" && n.Kind == NodePrimitive {
		s.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the scene.
func (s *Scene) AddRoot(id NodeID) {
	s.Roots = append(s.Roots, id)
}

// AddLight appends a point light.
func (s *Scene) AddLight(p v3.Vec) {
	s.Lights = append(s.Lights, p)
}

// Lookup returns the part with the given name, or nil.
func (s *Scene) Lookup(name string) *Node {
	id, ok := s.NameIndex[name]
	if !ok {
		return nil
	}
	return s.Nodes[id]
}

// MustLookup returns the part with the given name, or panics.
func (s *Scene) MustLookup(name string) *Node {
	n := s.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("scene: no part named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (s *Scene) Get(id NodeID) *Node {
	return s.Nodes[id]
}

// Parts returns all primitive nodes sorted by ID.
func (s *Scene) Parts() []*Node {
	var parts []*Node
	for _, n := range s.Nodes {
		if n.Kind == NodePrimitive {
			parts = append(parts, n)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].ID < parts[j].ID })
	return parts
}

// Children returns the child nodes of n that exist in the scene.
func (s *Scene) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := s.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (s *Scene) NodeCount() int {
	return len(s.Nodes)
}

// ShadowPlane returns the declared receiving plane, or DefaultPlane.
func (s *Scene) ShadowPlane() geom.Plane {
	if s.Plane != nil {
		return *s.Plane
	}
	return DefaultPlane
}
