// Package geom holds the geometric primitives used to relate a mesh to a
// light: planes, ray/plane intersection, projection and the facing test.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ParallelEpsilon is the largest |cos| between a unit ray direction and a
// plane normal that still counts as parallel.
const ParallelEpsilon = 1e-9

// Plane is an infinite plane through Point with unit Normal.
type Plane struct {
	Normal v3.Vec `json:"normal"`
	Point  v3.Vec `json:"point"`
}

// Ray is a half-line from Origin along Direction. Direction need not be unit.
type Ray struct {
	Origin    v3.Vec
	Direction v3.Vec
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) v3.Vec {
	return r.Origin.Add(r.Direction.MulScalar(t))
}

// MakePlane builds a plane from a normal direction and a point on it. The
// normal is normalized; a zero normal yields a degenerate plane that every
// projection from a light treats as parallel.
func MakePlane(normal, point v3.Vec) Plane {
	return Plane{Normal: unit(normal), Point: point}
}

// SignedDistance returns the distance from the plane to point, positive on
// the side the normal points to.
func (p Plane) SignedDistance(point v3.Vec) float64 {
	return p.Normal.Dot(point.Sub(p.Point))
}

// Intersect returns the parameter t at which the line through r crosses the
// plane. t may be negative when the plane lies behind the origin. ok is false
// when the ray is parallel to the plane or has no direction.
func (p Plane) Intersect(r Ray) (t float64, ok bool) {
	l := r.Direction.Length()
	if l == 0 {
		return 0, false
	}
	denom := p.Normal.Dot(r.Direction)
	if math.Abs(denom/l) < ParallelEpsilon {
		return 0, false
	}
	return p.Normal.Dot(p.Point.Sub(r.Origin)) / denom, true
}

// ProjectOntoPlane returns the point on p closest to point.
func ProjectOntoPlane(p Plane, point v3.Vec) v3.Vec {
	return point.Sub(p.Normal.MulScalar(p.SignedDistance(point)))
}

// ProjectFromLight casts a ray from light through vertex and returns where
// it meets p. ok is false when the ray runs parallel to the plane, which
// includes a vertex coinciding with the light.
func ProjectFromLight(p Plane, light, vertex v3.Vec) (v3.Vec, bool) {
	r := Ray{Origin: light, Direction: vertex.Sub(light)}
	t, ok := p.Intersect(r)
	if !ok {
		return v3.Vec{}, false
	}
	return r.At(t), true
}

// ProjectFromLightOrZero is ProjectFromLight with the zero vector standing in
// for a missed plane. The zero vector is ambiguous with a real hit at the
// origin; prefer ProjectFromLight.
func ProjectFromLightOrZero(p Plane, light, vertex v3.Vec) v3.Vec {
	hit, _ := ProjectFromLight(p, light, vertex)
	return hit
}

// IsFacing reports whether a vertex with the given normal faces the light.
// A dot product of exactly zero is not facing.
func IsFacing(light, vertex, normal v3.Vec) bool {
	return light.Sub(vertex).Dot(normal) > 0
}

func unit(v v3.Vec) v3.Vec {
	l := v.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return v.MulScalar(1 / l)
}
