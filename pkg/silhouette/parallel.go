package silhouette

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ExtractParallel computes the same edges, in the same order, as Extract,
// spreading the work over up to workers goroutines. A non-positive workers
// value uses GOMAXPROCS.
//
// Corner facing is computed over disjoint corner ranges. The position index
// is built per triangle range and merged in range order, which keeps every
// corner group ascending. Edge classification runs over disjoint triangle
// ranges whose results are concatenated in range order.
func ExtractParallel(ctx context.Context, positions, normals []v3.Vec, indices []uint32, light v3.Vec, workers int) ([]Edge, error) {
	if err := kernel.ValidateArrays(positions, normals, indices); err != nil {
		return nil, fmt.Errorf("silhouette: %w", err)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	triangles := len(indices) / 3
	chunks := chunkCount(triangles, workers)
	size := chunkSize(triangles, workers)

	facing := make([]bool, len(indices))
	partial := make([]PositionIndex, chunks)
	err := geom.ForChunks(ctx, triangles, workers, func(lo, hi int) error {
		classifyRange(positions, normals, indices, light, facing, 3*lo, 3*hi)
		partial[lo/size] = BuildPositionIndex(positions, indices[3*lo:3*hi]).offset(3 * lo)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("silhouette: classify: %w", err)
	}

	index := make(PositionIndex, len(positions))
	for _, p := range partial {
		index.merge(p)
	}

	found := make([][]Edge, chunks)
	err = geom.ForChunks(ctx, triangles, workers, func(lo, hi int) error {
		found[lo/size] = appendEdges(nil, positions, indices, facing, index, lo, hi)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("silhouette: edges: %w", err)
	}

	var edges []Edge
	for _, f := range found {
		edges = append(edges, f...)
	}
	return edges, nil
}

// ExtractMeshParallel is ExtractParallel over a kernel mesh.
func ExtractMeshParallel(ctx context.Context, m *kernel.Mesh, light v3.Vec, workers int) ([]Edge, error) {
	return ExtractParallel(ctx, m.Positions, m.Normals, m.Indices, light, workers)
}

// offset shifts every corner in idx by delta, for indices built from a
// sub-slice of the full corner list.
func (idx PositionIndex) offset(delta int) PositionIndex {
	if delta == 0 {
		return idx
	}
	for _, corners := range idx {
		for i := range corners {
			corners[i] += delta
		}
	}
	return idx
}

// chunkCount and chunkSize mirror the split geom.ForChunks makes of n items.
func chunkCount(n, workers int) int {
	if n == 0 {
		return 0
	}
	if workers <= 1 {
		return 1
	}
	size := chunkSize(n, workers)
	return (n + size - 1) / size
}

func chunkSize(n, workers int) int {
	if workers <= 1 {
		return n
	}
	return (n + workers - 1) / workers
}
