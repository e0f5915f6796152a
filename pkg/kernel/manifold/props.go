package manifold

import v3 "github.com/deadsy/sdfx/vec/v3"

// splitProperties separates MeshGL's interleaved per-vertex properties into
// positions and, when there are at least six properties per vertex, normals.
// Properties past the sixth are ignored.
func splitProperties(props []float32, numProp int) (positions, normals []v3.Vec) {
	if numProp < 3 {
		return nil, nil
	}
	numVert := len(props) / numProp
	positions = make([]v3.Vec, numVert)
	if numProp >= 6 {
		normals = make([]v3.Vec, numVert)
	}
	for i := 0; i < numVert; i++ {
		p := props[i*numProp:]
		positions[i] = v3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
		if normals != nil {
			normals[i] = v3.Vec{X: float64(p[3]), Y: float64(p[4]), Z: float64(p[5])}
		}
	}
	return positions, normals
}
