package kernel

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Precondition failures reported by Mesh.Validate. Consumers of a mesh
// (silhouette extraction, projection) fail fast with one of these wrapped
// rather than reading out of bounds.
var (
	ErrIndexCount  = errors.New("index count is not a multiple of 3")
	ErrNormalCount = errors.New("normal count does not match position count")
	ErrIndexRange  = errors.New("triangle index out of range")
)

// Mesh is an indexed triangle mesh. Positions and Normals are index-aligned,
// Indices has 3 entries per triangle. Vertices are not required to be
// welded: two corners may sit at the same position under different indices.
type Mesh struct {
	Positions []v3.Vec `json:"positions"`
	Normals   []v3.Vec `json:"normals"`
	Indices   []uint32 `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName  string   `json:"partName"` // which scene part this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Positions) == 0
}

// Triangle returns the vertex indices of triangle t.
func (m *Mesh) Triangle(t int) [3]uint32 {
	return [3]uint32{m.Indices[3*t], m.Indices[3*t+1], m.Indices[3*t+2]}
}

// Validate checks the structural preconditions of the mesh.
func (m *Mesh) Validate() error {
	return ValidateArrays(m.Positions, m.Normals, m.Indices)
}

// ValidateArrays checks that indices form whole triangles, that normals are
// index-aligned with positions and that every index names a vertex.
func ValidateArrays(positions, normals []v3.Vec, indices []uint32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrIndexCount, len(indices))
	}
	if len(normals) != len(positions) {
		return fmt.Errorf("%w: %d normals, %d positions", ErrNormalCount, len(normals), len(positions))
	}
	for i, idx := range indices {
		if int(idx) >= len(positions) {
			return fmt.Errorf("%w: index %d at corner %d, %d vertices", ErrIndexRange, idx, i, len(positions))
		}
	}
	return nil
}

// RecomputeNormals replaces Normals with per-vertex normals accumulated from
// the unit normals of the triangles touching each vertex. Degenerate
// triangles contribute nothing; a vertex touched only by degenerate
// triangles keeps a zero normal.
func (m *Mesh) RecomputeNormals() {
	normals := make([]v3.Vec, len(m.Positions))
	for t := 0; t < m.TriangleCount(); t++ {
		tri := m.Triangle(t)
		p0 := m.Positions[tri[0]]
		p1 := m.Positions[tri[1]]
		p2 := m.Positions[tri[2]]

		cro := p1.Sub(p0).Cross(p2.Sub(p0))
		l := cro.Length()
		if l == 0 {
			continue
		}
		n := cro.MulScalar(1 / l)
		for _, idx := range tri {
			normals[idx] = normals[idx].Add(n)
		}
	}

	for i, n := range normals {
		if l := n.Length(); l > 0 {
			normals[i] = n.MulScalar(1 / l)
		}
	}
	m.Normals = normals
}
