// Package slippy implements Web-Mercator slippy-map tile arithmetic:
// conversions between lon/lat, tile grid coordinates, projected Mercator Y,
// and Cartesian points on a reference sphere.
package slippy

import (
	"fmt"
	"math"

	"github.com/handaome/three-earth/pkg/geomath"
)

const (
	// MaxMercatorLat is the latitude limit of the Web-Mercator projection.
	MaxMercatorLat = 85.0511287798
	// MaxVertexLat bounds latitudes used for mesh vertex generation. Surface
	// tiles near the poles still need plausible geometry, so this is looser
	// than the Mercator tiling limit.
	MaxVertexLat = 89.999
)

// TileCoord addresses a tile in the slippy-map quadtree.
// Invariant: 0 <= X < 2^Z and 0 <= Y < 2^Z.
type TileCoord struct {
	Z, X, Y int
}

// Key returns the canonical "z/x/y" cache key.
func (c TileCoord) Key() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// ParseKey parses a "z/x/y" key back into a coordinate.
func ParseKey(key string) (TileCoord, error) {
	var c TileCoord
	if _, err := fmt.Sscanf(key, "%d/%d/%d", &c.Z, &c.X, &c.Y); err != nil {
		return TileCoord{}, fmt.Errorf("bad tile key %q: %w", key, err)
	}
	if !c.Valid() {
		return TileCoord{}, fmt.Errorf("bad tile key %q: outside grid", key)
	}
	return c, nil
}

// Valid reports whether the coordinate satisfies the grid invariant.
func (c TileCoord) Valid() bool {
	if c.Z < 0 {
		return false
	}
	n := 1 << c.Z
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// Children returns the four child tiles one level deeper.
// Order: NW, NE, SW, SE.
func (c TileCoord) Children() [4]TileCoord {
	z, x, y := c.Z+1, c.X*2, c.Y*2
	return [4]TileCoord{
		{z, x, y},
		{z, x + 1, y},
		{z, x, y + 1},
		{z, x + 1, y + 1},
	}
}

// Parent returns the enclosing tile one level up. The root is its own parent.
func (c TileCoord) Parent() TileCoord {
	if c.Z == 0 {
		return c
	}
	return TileCoord{c.Z - 1, c.X / 2, c.Y / 2}
}

// IsAncestorOf reports whether c strictly contains other in the quadtree.
func (c TileCoord) IsAncestorOf(other TileCoord) bool {
	if other.Z <= c.Z {
		return false
	}
	shift := other.Z - c.Z
	return other.X>>shift == c.X && other.Y>>shift == c.Y
}

// TileBounds is a tile's geographic extent in degrees.
type TileBounds struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
}

// LonLatToTile returns the tile containing (lon, lat) at the given zoom,
// plus n = 2^zoom. Latitude is clamped to the Mercator-valid range before
// projecting.
func LonLatToTile(lon, lat float64, zoom int) (x, y, n int) {
	n = 1 << zoom
	lat = clampLat(lat, MaxMercatorLat)

	x = int((lon + 180.0) / 360.0 * float64(n))
	latRad := lat * math.Pi / 180.0
	y = int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * float64(n))

	x = clampInt(x, 0, n-1)
	y = clampInt(y, 0, n-1)
	return x, y, n
}

// TileToBounds returns the geographic bounds of a tile. Columns are uniform
// in longitude; rows are uniform in projected Mercator Y, so the latitude
// edges come from the inverse projection.
func TileToBounds(c TileCoord) TileBounds {
	n := float64(int(1) << c.Z)
	return TileBounds{
		LonMin: float64(c.X)/n*360.0 - 180.0,
		LonMax: float64(c.X+1)/n*360.0 - 180.0,
		LatMax: math.Atan(math.Sinh(math.Pi*(1-2*float64(c.Y)/n))) * 180.0 / math.Pi,
		LatMin: math.Atan(math.Sinh(math.Pi*(1-2*float64(c.Y+1)/n))) * 180.0 / math.Pi,
	}
}

// MercatorY projects a latitude (degrees) to the unbounded Mercator Y value
// ln(tan(pi/4 + lat/2)).
func MercatorY(latDeg float64) float64 {
	latRad := clampLat(latDeg, MaxVertexLat) * math.Pi / 180.0
	return math.Log(math.Tan(math.Pi/4 + latRad/2))
}

// LatFromMercatorY is the inverse of MercatorY, in degrees.
func LatFromMercatorY(y float64) float64 {
	return math.Atan(math.Sinh(y)) * 180.0 / math.Pi
}

// CartesianFromLonLat places a lon/lat point (degrees) on a sphere of the
// given radius. The sphere is Y-up with lon 0 on the +X axis and east
// toward -Z.
func CartesianFromLonLat(lonDeg, latDeg, radius float64) geomath.Vec3 {
	lat := clampLat(latDeg, MaxVertexLat) * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	cosLat := math.Cos(lat)
	return geomath.Vec3{
		X: radius * cosLat * math.Cos(lon),
		Y: radius * math.Sin(lat),
		Z: -radius * cosLat * math.Sin(lon),
	}
}

// TileCenter returns the tile's surface center point on a sphere of the
// given radius. The center latitude is taken at the midpoint of the tile's
// Mercator-Y strip, not of its latitude range: mesh vertex rows are spaced
// uniformly in Mercator Y, so this midpoint matches the geometry the
// bounding sphere has to enclose.
func TileCenter(c TileCoord, radius float64) geomath.Vec3 {
	b := TileToBounds(c)
	lonMid := (b.LonMin + b.LonMax) / 2
	yMid := (MercatorY(b.LatMin) + MercatorY(b.LatMax)) / 2
	return CartesianFromLonLat(lonMid, LatFromMercatorY(yMid), radius)
}

func clampLat(lat, limit float64) float64 {
	if lat > limit {
		return limit
	}
	if lat < -limit {
		return -limit
	}
	return lat
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
