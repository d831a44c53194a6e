package terrain

import (
	"github.com/handaome/three-earth/pkg/geomath"
	"github.com/handaome/three-earth/pkg/slippy"
)

// SurfaceOptions tunes synthesized surface meshes.
type SurfaceOptions struct {
	Radius float64
	// Skirts duplicates edge vertices pulled radially inward to mask cracks
	// between neighboring tiles at different levels.
	Skirts bool
	// SkirtMinZoom suppresses skirts below this zoom, where tile edges are
	// so long that skirt walls become huge degenerate-looking triangles.
	SkirtMinZoom int
	// SkirtDepth is the inward pull as a fraction of the radius.
	SkirtDepth float64
}

// DefaultSurfaceOptions returns the options used by the LOD engine.
func DefaultSurfaceOptions(radius float64) SurfaceOptions {
	return SurfaceOptions{
		Radius:       radius,
		Skirts:       true,
		SkirtMinZoom: 6,
		SkirtDepth:   0.0005,
	}
}

// SegmentsForZoom returns the grid resolution for a tile at the given zoom.
// Coarse tiles span large arcs and need more subdivision; deep tiles are
// nearly flat and get by with less.
func SegmentsForZoom(zoom int) int {
	switch {
	case zoom <= 5:
		return 12
	case zoom <= 9:
		return 8
	default:
		return 6
	}
}

// BuildSurface synthesizes a regular-grid mesh for a tile. Rows are spaced
// linearly in Mercator Y between the tile's north and south edges and then
// inverse-projected to latitude, so the mesh lines up pixel-accurately with
// a Web-Mercator texture. UV.Y comes from the same Mercator fraction, never
// from the latitude fraction.
func BuildSurface(coord slippy.TileCoord, opts SurfaceOptions) *Mesh {
	bounds := slippy.TileToBounds(coord)
	seg := SegmentsForZoom(coord.Z)

	yNorth := slippy.MercatorY(bounds.LatMax)
	ySouth := slippy.MercatorY(bounds.LatMin)

	mesh := &Mesh{}
	for i := 0; i <= seg; i++ {
		f := float64(i) / float64(seg) // 0 at north edge
		lat := slippy.LatFromMercatorY(yNorth + (ySouth-yNorth)*f)
		for j := 0; j <= seg; j++ {
			g := float64(j) / float64(seg)
			lon := bounds.LonMin + (bounds.LonMax-bounds.LonMin)*g
			mesh.Positions = append(mesh.Positions, slippy.CartesianFromLonLat(lon, lat, opts.Radius))
			// Texture row 0 is the north edge.
			mesh.UVs = append(mesh.UVs, geomath.Vec2{X: g, Y: 1 - f})
		}
	}

	stride := uint32(seg + 1)
	for i := 0; i < seg; i++ {
		for j := 0; j < seg; j++ {
			a := uint32(i)*stride + uint32(j)
			b := a + 1
			c := a + stride
			d := c + 1
			mesh.Indices = append(mesh.Indices, a, c, b, b, c, d)
		}
	}

	if opts.Skirts && coord.Z >= opts.SkirtMinZoom {
		addSkirts(mesh, seg, opts)
	}

	return mesh
}

// addSkirts walls off the four edges of the grid with duplicated vertices
// pulled toward the sphere center.
func addSkirts(mesh *Mesh, seg int, opts SurfaceOptions) {
	stride := seg + 1
	edges := [4][]int{
		make([]int, 0, stride), // north (row 0, west to east)
		make([]int, 0, stride), // south
		make([]int, 0, stride), // west
		make([]int, 0, stride), // east
	}
	for j := 0; j <= seg; j++ {
		edges[0] = append(edges[0], j)
		edges[1] = append(edges[1], seg*stride+j)
	}
	for i := 0; i <= seg; i++ {
		edges[2] = append(edges[2], i*stride)
		edges[3] = append(edges[3], i*stride+seg)
	}

	shrink := 1 - opts.SkirtDepth
	for _, edge := range edges {
		base := uint32(len(mesh.Positions))
		for _, idx := range edge {
			mesh.Positions = append(mesh.Positions, mesh.Positions[idx].Scale(shrink))
			mesh.UVs = append(mesh.UVs, mesh.UVs[idx])
		}
		for k := 0; k+1 < len(edge); k++ {
			a := uint32(edge[k])
			b := uint32(edge[k+1])
			al := base + uint32(k)
			bl := base + uint32(k+1)
			mesh.Indices = append(mesh.Indices, a, al, b, b, al, bl)
		}
	}
}
