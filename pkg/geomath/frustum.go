package geomath

import "math"

// Plane is a plane in Hessian normal form: Normal·p + D = 0.
type Plane struct {
	Normal Vec3
	D      float64
}

// DistanceTo returns the signed distance from the plane to a point.
// Positive means the point is on the side the normal faces.
func (p Plane) DistanceTo(point Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum is a view frustum as six inward-facing planes.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the six frustum planes from a combined
// view-projection matrix (Gribb/Hartmann method, column-major input).
func FrustumFromMatrix(m Mat4) Frustum {
	var f Frustum

	// Rows of the matrix in row-major terms.
	row := func(i int) Vec4 {
		return Vec4{m[i], m[4+i], m[8+i], m[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(idx int, v Vec4) {
		n := Vec3{v[0], v[1], v[2]}
		l := n.Length()
		if l == 0 {
			f.Planes[idx] = Plane{Normal: Vec3{0, 0, 1}}
			return
		}
		f.Planes[idx] = Plane{Normal: n.Scale(1 / l), D: v[3] / l}
	}

	add := func(a, b Vec4) Vec4 { return Vec4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]} }
	sub := func(a, b Vec4) Vec4 { return Vec4{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]} }

	set(0, add(r3, r0)) // left
	set(1, sub(r3, r0)) // right
	set(2, add(r3, r1)) // bottom
	set(3, sub(r3, r1)) // top
	set(4, add(r3, r2)) // near
	set(5, sub(r3, r2)) // far

	return f
}

// IntersectsSphere reports whether a sphere touches the frustum.
func (f Frustum) IntersectsSphere(center Vec3, radius float64) bool {
	for _, p := range f.Planes {
		if p.DistanceTo(center) < -radius {
			return false
		}
	}
	return true
}

// Ray is a ray with an origin and a normalized direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// IntersectSphere intersects the ray with a sphere centered at the origin.
// Returns the nearest hit point and whether the ray hits at all.
func (r Ray) IntersectSphere(center Vec3, radius float64) (Vec3, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return Vec3{}, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		t = -b + math.Sqrt(disc)
		if t < 0 {
			return Vec3{}, false
		}
	}
	return r.Origin.Add(r.Direction.Scale(t)), true
}
