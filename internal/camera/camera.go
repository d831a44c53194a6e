// Package camera provides the orbit camera used to view the globe.
package camera

import (
	"math"

	"github.com/handaome/three-earth/pkg/geomath"
)

// GlobeCamera orbits the globe center at the origin. Angles are radians;
// yaw runs east around the spin axis, pitch is elevation from the equator
// plane.
type GlobeCamera struct {
	GlobeRadius float64

	Distance float64 // from globe center
	Yaw      float64
	Pitch    float64

	MinAltitude float64 // above the surface
	MaxDistance float64
	MaxPitch    float64

	DragSensitivity float64
	ZoomSensitivity float64

	FovY float64

	// Orientation is the globe's model rotation, handed through to tile
	// culling so spinning the globe instead of the camera still works.
	Orientation geomath.Quat
}

// NewGlobeCamera creates a camera at a comfortable viewing distance for a
// globe of the given radius.
func NewGlobeCamera(globeRadius float64) *GlobeCamera {
	return &GlobeCamera{
		GlobeRadius:     globeRadius,
		Distance:        globeRadius * 3,
		MinAltitude:     globeRadius * 0.002,
		MaxDistance:     globeRadius * 10,
		MaxPitch:        math.Pi/2 - 0.01,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		FovY:            math.Pi / 3,
		Orientation:     geomath.QuatIdentity(),
	}
}

// Position returns the camera position in world space.
func (c *GlobeCamera) Position() geomath.Vec3 {
	cosP := math.Cos(c.Pitch)
	return geomath.Vec3{
		X: c.Distance * cosP * math.Cos(c.Yaw),
		Y: c.Distance * math.Sin(c.Pitch),
		Z: -c.Distance * cosP * math.Sin(c.Yaw),
	}
}

// Gaze returns the unit view direction, toward the globe center.
func (c *GlobeCamera) Gaze() geomath.Vec3 {
	return c.Position().Scale(-1).Normalize()
}

// ViewProjection returns the combined projection-view matrix. Near and far
// planes track the camera's altitude so depth precision stays usable from
// orbit down to the surface.
func (c *GlobeCamera) ViewProjection(aspect float64) geomath.Mat4 {
	altitude := c.Distance - c.GlobeRadius
	near := altitude * 0.1
	if min := c.GlobeRadius * 1e-5; near < min {
		near = min
	}
	far := c.Distance + c.GlobeRadius*3

	proj := geomath.Perspective(c.FovY, aspect, near, far)
	view := geomath.LookAt(c.Position(), geomath.Vec3{}, geomath.Vec3{Y: 1})
	return proj.Mul(view)
}

// PickCenter intersects the gaze ray with the globe surface. It is the
// anchor point the LOD walk refines around; ok is false only if the camera
// somehow faces away from the globe.
func (c *GlobeCamera) PickCenter() (geomath.Vec3, bool) {
	ray := geomath.Ray{Origin: c.Position(), Direction: c.Gaze()}
	return ray.IntersectSphere(geomath.Vec3{}, c.GlobeRadius)
}

// HandleDrag updates yaw and pitch from a pointer drag. Sensitivity scales
// with altitude so surface-level drags stay fine-grained.
func (c *GlobeCamera) HandleDrag(deltaX, deltaY float64) {
	scale := c.DragSensitivity * (c.Distance - c.GlobeRadius) / c.GlobeRadius
	c.Yaw += deltaX * scale
	c.Pitch += deltaY * scale

	if c.Pitch > c.MaxPitch {
		c.Pitch = c.MaxPitch
	}
	if c.Pitch < -c.MaxPitch {
		c.Pitch = -c.MaxPitch
	}
}

// HandleZoom moves the camera along the gaze ray. Zoom speed is
// proportional to altitude, so approach slows near the surface.
func (c *GlobeCamera) HandleZoom(delta float64) {
	altitude := c.Distance - c.GlobeRadius
	c.Distance -= delta * altitude * c.ZoomSensitivity

	if c.Distance < c.GlobeRadius+c.MinAltitude {
		c.Distance = c.GlobeRadius + c.MinAltitude
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// LookAtLonLat points the camera at a lon/lat on the globe (degrees).
func (c *GlobeCamera) LookAtLonLat(lonDeg, latDeg float64) {
	c.Yaw = lonDeg * math.Pi / 180
	c.Pitch = latDeg * math.Pi / 180
	if c.Pitch > c.MaxPitch {
		c.Pitch = c.MaxPitch
	}
	if c.Pitch < -c.MaxPitch {
		c.Pitch = -c.MaxPitch
	}
}
