// Package meshio reads triangle meshes from glTF 2.0 files (.gltf and .glb)
// into kernel meshes.
//
// Each triangle primitive becomes one mesh in mesh-local coordinates; node
// transforms are not applied. Primitives without indices are read as
// sequential triangle lists, and primitives without normals get per-vertex
// normals recomputed from their faces.
package meshio

import (
	"errors"
	"fmt"
	"io"

	"github.com/chazu/umbra/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var (
	// ErrNotTriangles is returned for primitives drawn as points, lines,
	// strips or fans.
	ErrNotTriangles = errors.New("primitive is not a triangle list")
	// ErrNoPosition is returned for primitives without a POSITION attribute.
	ErrNoPosition = errors.New("primitive has no POSITION attribute")
	// ErrAccessor is returned when a primitive names an accessor the
	// document does not have.
	ErrAccessor = errors.New("accessor index out of range")
)

// Load opens a .gltf or .glb file and returns its triangle meshes.
func Load(path string) ([]*kernel.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}
	return FromDocument(doc)
}

// Decode reads a glTF document from r. Buffers must be embedded, either in
// the GLB binary chunk or as data URIs.
func Decode(r io.Reader) ([]*kernel.Mesh, error) {
	doc := gltf.NewDocument()
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("meshio: decode: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument converts every primitive of every mesh in doc, in document
// order.
func FromDocument(doc *gltf.Document) ([]*kernel.Mesh, error) {
	var meshes []*kernel.Mesh
	for mi, gm := range doc.Meshes {
		name := gm.Name
		if name == "" {
			name = fmt.Sprintf("mesh%d", mi)
		}
		for pi, p := range gm.Primitives {
			partName := name
			if len(gm.Primitives) > 1 {
				partName = fmt.Sprintf("%s/%d", name, pi)
			}
			m, err := readPrimitive(doc, p)
			if err != nil {
				return nil, fmt.Errorf("meshio: mesh %q primitive %d: %w", name, pi, err)
			}
			m.PartName = partName
			meshes = append(meshes, m)
		}
	}
	return meshes, nil
}

func readPrimitive(doc *gltf.Document, p *gltf.Primitive) (*kernel.Mesh, error) {
	if p.Mode != gltf.PrimitiveTriangles {
		return nil, ErrNotTriangles
	}

	posIdx, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, ErrNoPosition
	}
	posAcc, err := accessor(doc, int(posIdx))
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	raw, err := modeler.ReadPosition(doc, posAcc, [][3]float32{})
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}

	m := &kernel.Mesh{Positions: toVecs(raw)}

	if p.Indices != nil {
		idxAcc, err := accessor(doc, int(*p.Indices))
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		m.Indices, err = modeler.ReadIndices(doc, idxAcc, []uint32{})
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		m.Indices = make([]uint32, len(m.Positions))
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}

	if nIdx, ok := p.Attributes[gltf.NORMAL]; ok {
		nAcc, err := accessor(doc, int(nIdx))
		if err != nil {
			return nil, fmt.Errorf("normal: %w", err)
		}
		raw, err := modeler.ReadNormal(doc, nAcc, [][3]float32{})
		if err != nil {
			return nil, fmt.Errorf("normal: %w", err)
		}
		m.Normals = toVecs(raw)
	}

	// Indices are checked before normals are recomputed from them.
	if len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices", kernel.ErrIndexCount, len(m.Indices))
	}
	if m.Normals == nil {
		for i, idx := range m.Indices {
			if int(idx) >= len(m.Positions) {
				return nil, fmt.Errorf("%w: index %d at corner %d, %d vertices", kernel.ErrIndexRange, idx, i, len(m.Positions))
			}
		}
		m.RecomputeNormals()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func accessor(doc *gltf.Document, i int) (*gltf.Accessor, error) {
	if i < 0 || i >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: %d of %d", ErrAccessor, i, len(doc.Accessors))
	}
	return doc.Accessors[i], nil
}

func toVecs(raw [][3]float32) []v3.Vec {
	out := make([]v3.Vec, len(raw))
	for i, p := range raw {
		out[i] = v3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
	}
	return out
}
