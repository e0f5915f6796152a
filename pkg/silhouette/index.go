package silhouette

import (
	"github.com/chazu/umbra/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// PositionIndex maps a vertex position to the triangle corners sitting at
// it, in ascending corner order. Keys compare with exact float equality:
// corners are grouped only when the mesh produced bit-identical coordinates
// (up to -0 == +0).
type PositionIndex map[v3.Vec][]int

// BuildPositionIndex groups every corner of indices by the position of the
// vertex it names. indices must already be validated against positions.
func BuildPositionIndex(positions []v3.Vec, indices []uint32) PositionIndex {
	idx := make(PositionIndex, len(positions))
	for c, vi := range indices {
		p := positions[vi]
		idx[p] = append(idx[p], c)
	}
	return idx
}

// merge appends the groups of other after those of idx. Corners in other
// must all be greater than those in idx for groups to stay ascending.
func (idx PositionIndex) merge(other PositionIndex) {
	for p, corners := range other {
		idx[p] = append(idx[p], corners...)
	}
}

// ClassifyCorners reports, for every corner, whether its vertex faces the
// light according to its normal.
func ClassifyCorners(positions, normals []v3.Vec, indices []uint32, light v3.Vec) []bool {
	facing := make([]bool, len(indices))
	classifyRange(positions, normals, indices, light, facing, 0, len(indices))
	return facing
}

func classifyRange(positions, normals []v3.Vec, indices []uint32, light v3.Vec, facing []bool, lo, hi int) {
	for c := lo; c < hi; c++ {
		vi := indices[c]
		facing[c] = geom.IsFacing(light, positions[vi], normals[vi])
	}
}
