package terrain

import (
	"math"
	"testing"

	"github.com/handaome/three-earth/pkg/slippy"
)

func TestBuildSurfaceGrid(t *testing.T) {
	const radius = 5.0
	coord := slippy.TileCoord{Z: 2, X: 1, Y: 1}
	opts := SurfaceOptions{Radius: radius} // no skirts

	mesh := BuildSurface(coord, opts)
	seg := SegmentsForZoom(coord.Z)

	wantVerts := (seg + 1) * (seg + 1)
	if mesh.VertexCount() != wantVerts {
		t.Fatalf("vertex count = %d; want %d", mesh.VertexCount(), wantVerts)
	}
	if mesh.TriangleCount() != 2*seg*seg {
		t.Errorf("triangle count = %d; want %d", mesh.TriangleCount(), 2*seg*seg)
	}

	for i, p := range mesh.Positions {
		if math.Abs(p.Length()-radius) > 1e-9 {
			t.Fatalf("vertex %d off sphere: |p| = %v", i, p.Length())
		}
	}
	for _, idx := range mesh.Indices {
		if int(idx) >= mesh.VertexCount() {
			t.Fatalf("index %d out of range", idx)
		}
	}
}

func TestBuildSurfaceCorners(t *testing.T) {
	const radius = 1.0
	coord := slippy.TileCoord{Z: 3, X: 4, Y: 3}
	bounds := slippy.TileToBounds(coord)
	mesh := BuildSurface(coord, SurfaceOptions{Radius: radius})
	seg := SegmentsForZoom(coord.Z)

	// Vertex 0 is the northwest corner; texture row 0 is the north edge.
	nw := slippy.CartesianFromLonLat(bounds.LonMin, bounds.LatMax, radius)
	if mesh.Positions[0].Distance(nw) > 1e-9 {
		t.Errorf("vertex 0 = %v; want NW corner %v", mesh.Positions[0], nw)
	}
	if uv := mesh.UVs[0]; uv.X != 0 || uv.Y != 1 {
		t.Errorf("NW uv = %v; want (0,1)", uv)
	}

	last := (seg+1)*(seg+1) - 1
	se := slippy.CartesianFromLonLat(bounds.LonMax, bounds.LatMin, radius)
	if mesh.Positions[last].Distance(se) > 1e-9 {
		t.Errorf("last vertex = %v; want SE corner %v", mesh.Positions[last], se)
	}
	if uv := mesh.UVs[last]; uv.X != 1 || uv.Y != 0 {
		t.Errorf("SE uv = %v; want (1,0)", uv)
	}
}

func TestBuildSurfaceRowsUniformInMercator(t *testing.T) {
	coord := slippy.TileCoord{Z: 2, X: 0, Y: 0} // high-latitude tile
	mesh := BuildSurface(coord, SurfaceOptions{Radius: 1})
	seg := SegmentsForZoom(coord.Z)
	stride := seg + 1

	// Row latitudes must be uniform in Mercator Y, not in latitude.
	var ys []float64
	for i := 0; i <= seg; i++ {
		p := mesh.Positions[i*stride]
		lat := math.Asin(p.Y) * 180 / math.Pi
		ys = append(ys, slippy.MercatorY(lat))
	}
	step := ys[1] - ys[0]
	for i := 2; i < len(ys); i++ {
		if math.Abs((ys[i]-ys[i-1])-step) > 1e-6 {
			t.Fatalf("row %d Mercator step %v; want %v", i, ys[i]-ys[i-1], step)
		}
	}
}

func TestBuildSurfaceSkirts(t *testing.T) {
	const radius = 3.0
	opts := DefaultSurfaceOptions(radius)
	coord := slippy.TileCoord{Z: opts.SkirtMinZoom, X: 0, Y: 0}

	plain := BuildSurface(coord, SurfaceOptions{Radius: radius})
	skirted := BuildSurface(coord, opts)
	seg := SegmentsForZoom(coord.Z)

	wantExtra := 4 * (seg + 1)
	if got := skirted.VertexCount() - plain.VertexCount(); got != wantExtra {
		t.Errorf("skirt added %d vertices; want %d", got, wantExtra)
	}
	if got := skirted.TriangleCount() - plain.TriangleCount(); got != 4*seg*2 {
		t.Errorf("skirt added %d triangles; want %d", got, 4*seg*2)
	}

	// Skirt vertices sit below the surface.
	shrunk := radius * (1 - opts.SkirtDepth)
	for _, p := range skirted.Positions[plain.VertexCount():] {
		if math.Abs(p.Length()-shrunk) > 1e-9 {
			t.Fatalf("skirt vertex length = %v; want %v", p.Length(), shrunk)
		}
	}
}

func TestBuildSurfaceNoSkirtsAtLowZoom(t *testing.T) {
	opts := DefaultSurfaceOptions(1)
	coord := slippy.TileCoord{Z: opts.SkirtMinZoom - 1, X: 0, Y: 0}

	mesh := BuildSurface(coord, opts)
	seg := SegmentsForZoom(coord.Z)
	if mesh.VertexCount() != (seg+1)*(seg+1) {
		t.Errorf("low-zoom tile grew skirts: %d vertices", mesh.VertexCount())
	}
}

func TestSegmentsForZoom(t *testing.T) {
	tests := []struct{ zoom, want int }{
		{0, 12}, {5, 12}, {6, 8}, {9, 8}, {10, 6}, {18, 6},
	}
	for _, tt := range tests {
		if got := SegmentsForZoom(tt.zoom); got != tt.want {
			t.Errorf("SegmentsForZoom(%d) = %d; want %d", tt.zoom, got, tt.want)
		}
	}
}
