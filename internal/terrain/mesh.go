// Package terrain builds and decodes tile surface geometry: synthesized
// Mercator-corrected grids for imagery tiles and quantized-mesh elevation
// payloads for terrain tiles.
package terrain

import "github.com/handaome/three-earth/pkg/geomath"

// EarthRadiusMeters is the mean radius used to scale terrain heights into
// scene units.
const EarthRadiusMeters = 6371010.0

// Mesh is renderable tile geometry: positions on (or above) the reference
// sphere, texture coordinates, and a triangle index buffer.
type Mesh struct {
	Positions []geomath.Vec3
	UVs       []geomath.Vec2
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// EstimatedSize returns an approximate in-memory footprint in bytes, used
// for cache byte accounting.
func (m *Mesh) EstimatedSize() int64 {
	return int64(len(m.Positions)*24 + len(m.UVs)*16 + len(m.Indices)*4)
}
