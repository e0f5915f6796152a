// Package silhouette finds the edges of a triangle mesh that outline it as
// seen from a point light: edges between a triangle that faces the light and
// one that does not, and boundary edges with no opposing triangle.
//
// Adjacency is established by vertex position, not vertex index, so meshes
// that duplicate vertices along seams (flat shading, UV seams, marching
// cubes soup) still find their neighbours.
package silhouette

import (
	"fmt"

	"github.com/chazu/umbra/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Edge is a pair of mesh vertex indices, in the winding order of the
// triangle that produced it.
type Edge struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Extract returns the silhouette edges of the mesh described by positions,
// normals and indices as seen from light.
//
// Edges are emitted in triangle order, and within a triangle in the order
// ab, bc, ca. A boundary edge is emitted once. An interior edge is emitted
// once for every opposing triangle that disagrees with this one about facing
// the light, so the same edge may appear several times, and a silhouette
// edge shared by two triangles appears from both sides. Use Dedupe for a
// single edge per outline segment.
func Extract(positions, normals []v3.Vec, indices []uint32, light v3.Vec) ([]Edge, error) {
	if err := kernel.ValidateArrays(positions, normals, indices); err != nil {
		return nil, fmt.Errorf("silhouette: %w", err)
	}

	facing := ClassifyCorners(positions, normals, indices, light)
	index := BuildPositionIndex(positions, indices)
	return appendEdges(nil, positions, indices, facing, index, 0, len(indices)/3), nil
}

// ExtractMesh is Extract over a kernel mesh.
func ExtractMesh(m *kernel.Mesh, light v3.Vec) ([]Edge, error) {
	return Extract(m.Positions, m.Normals, m.Indices, light)
}

// appendEdges classifies the edges of triangles [lo, hi) and appends the
// silhouette edges to dst.
func appendEdges(dst []Edge, positions []v3.Vec, indices []uint32, facing []bool, index PositionIndex, lo, hi int) []Edge {
	for t := lo; t < hi; t++ {
		base := 3 * t
		for k := 0; k < 3; k++ {
			cu, cv := base+k, base+(k+1)%3
			u, v := int(indices[cu]), int(indices[cv])

			groupU := index[positions[u]]
			groupV := index[positions[v]]
			if len(groupU) < 2 || len(groupV) < 2 {
				dst = append(dst, Edge{A: u, B: v})
				continue
			}

			neighbors, disagree := classifyEdge(cu, cv, groupU, groupV, facing)
			if neighbors == 0 {
				dst = append(dst, Edge{A: u, B: v})
				continue
			}
			for i := 0; i < disagree; i++ {
				dst = append(dst, Edge{A: u, B: v})
			}
		}
	}
	return dst
}

// classifyEdge looks for triangles opposing the edge between corners cu and
// cv. groupU and groupV are the corners sharing the positions of cu and cv.
// An opposing triangle owns one corner from each group and is not the
// triangle of cu and cv. It disagrees when the facing flags of the four
// corners meeting at the edge are not all equal.
func classifyEdge(cu, cv int, groupU, groupV []int, facing []bool) (neighbors, disagree int) {
	own := cu / 3
	for _, ca := range groupU {
		if ca/3 == own {
			continue
		}
		for _, cb := range groupV {
			if cb/3 != ca/3 {
				continue
			}
			neighbors++
			if !unanimous(facing[cu], facing[cv], facing[ca], facing[cb]) {
				disagree++
			}
		}
	}
	return neighbors, disagree
}

func unanimous(first bool, rest ...bool) bool {
	for _, f := range rest {
		if f != first {
			return false
		}
	}
	return true
}

// Dedupe drops edges whose endpoint positions, taken as an unordered pair,
// were already seen, keeping the first occurrence of each. Edges reported
// from both sides of a seam collapse into one even when their vertex indices
// differ.
func Dedupe(edges []Edge, positions []v3.Vec) []Edge {
	type key struct{ a, b v3.Vec }
	seen := make(map[key]bool, len(edges))
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		pa, pb := positions[e.A], positions[e.B]
		if seen[key{pa, pb}] || seen[key{pb, pa}] {
			continue
		}
		seen[key{pa, pb}] = true
		out = append(out, e)
	}
	return out
}
