package terrain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/handaome/three-earth/pkg/geomath"
	"github.com/handaome/three-earth/pkg/slippy"
)

// Quantized-mesh format errors.
var (
	ErrTruncatedQuantizedMesh = errors.New("truncated quantized-mesh data")
	ErrBadIndexStream         = errors.New("quantized-mesh index out of range")
)

// quantized-mesh header layout (little-endian):
//
//	24 bytes  center (3 x float64)
//	 4 bytes  minimum height (float32)
//	 4 bytes  maximum height (float32)
//	32 bytes  bounding sphere (4 x float64)
//	24 bytes  horizon occlusion point (3 x float64)
const quantizedHeaderSize = 88

// quantizedMax is the quantization range of u/v/height values.
const quantizedMax = 32767.0

// TerrainData is a decoded quantized-mesh tile. U, V are normalized tile
// coordinates in [0,1] (0 = west/south edge), Heights are in meters.
type TerrainData struct {
	MinHeight float32
	MaxHeight float32
	U         []float64
	V         []float64
	Heights   []float64
	Indices   []uint32
}

// DecodeQuantizedMesh parses a quantized-mesh tile payload. The header's
// center, bounding sphere, and horizon occlusion point are consumed but not
// used; the engine derives its own bounding volumes from tile coordinates.
func DecodeQuantizedMesh(data []byte) (*TerrainData, error) {
	if len(data) < quantizedHeaderSize+4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedQuantizedMesh, len(data))
	}

	td := &TerrainData{}
	off := 24 // skip center
	td.MinHeight = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	td.MaxHeight = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))
	off += 8
	off += 32 // skip bounding sphere
	off += 24 // skip horizon occlusion point

	vertexCount := binary.LittleEndian.Uint32(data[off:])
	off += 4

	need := int(vertexCount) * 6
	if len(data) < off+need+4 {
		return nil, fmt.Errorf("%w: vertex data for %d vertices", ErrTruncatedQuantizedMesh, vertexCount)
	}

	readEncoded := func() []uint16 {
		vals := make([]uint16, vertexCount)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint16(data[off+2*i:])
		}
		off += 2 * int(vertexCount)
		return vals
	}

	u := ZigZagDecode(readEncoded())
	v := ZigZagDecode(readEncoded())
	h := ZigZagDecode(readEncoded())

	td.U = make([]float64, vertexCount)
	td.V = make([]float64, vertexCount)
	td.Heights = make([]float64, vertexCount)
	heightRange := float64(td.MaxHeight - td.MinHeight)
	for i := uint32(0); i < vertexCount; i++ {
		td.U[i] = float64(u[i]) / quantizedMax
		td.V[i] = float64(v[i]) / quantizedMax
		td.Heights[i] = float64(td.MinHeight) + float64(h[i])/quantizedMax*heightRange
	}

	triangleCount := binary.LittleEndian.Uint32(data[off:])
	off += 4

	indexCount := int(triangleCount) * 3
	wide := vertexCount > 65535
	indexBytes := 2
	if wide {
		indexBytes = 4
	}
	if len(data) < off+indexCount*indexBytes {
		return nil, fmt.Errorf("%w: index data for %d triangles", ErrTruncatedQuantizedMesh, triangleCount)
	}

	codes := make([]uint32, indexCount)
	for i := range codes {
		if wide {
			codes[i] = binary.LittleEndian.Uint32(data[off+4*i:])
		} else {
			codes[i] = uint32(binary.LittleEndian.Uint16(data[off+2*i:]))
		}
	}

	indices, err := DecodeIndices(codes, vertexCount)
	if err != nil {
		return nil, err
	}
	td.Indices = indices

	return td, nil
}

// ZigZagDecode reverses the delta + zig-zag coding of a vertex attribute
// stream: each encoded value is a zig-zagged delta from a running
// accumulator.
func ZigZagDecode(encoded []uint16) []uint16 {
	out := make([]uint16, len(encoded))
	var acc uint16
	for i, e := range encoded {
		delta := (e >> 1) ^ (-(e & 1))
		acc += delta
		out[i] = acc
	}
	return out
}

// ZigZagEncode is the exact inverse of ZigZagDecode. It exists for tests
// and for synthesizing tile payloads.
func ZigZagEncode(values []uint16) []uint16 {
	out := make([]uint16, len(values))
	var prev uint16
	for i, v := range values {
		delta := v - prev
		prev = v
		out[i] = (delta << 1) ^ -(delta >> 15)
	}
	return out
}

// DecodeIndices reverses high-water-mark index coding: each code c emits
// highest - c, and a code of 0 introduces a new vertex by incrementing the
// high-water mark. Decoded indices never reference a vertex that has not
// yet been introduced.
func DecodeIndices(codes []uint32, vertexCount uint32) ([]uint32, error) {
	out := make([]uint32, len(codes))
	var highest uint32
	for i, c := range codes {
		if c > highest {
			return nil, fmt.Errorf("%w: code %d above high-water mark %d", ErrBadIndexStream, c, highest)
		}
		out[i] = highest - c
		if c == 0 {
			highest++
		}
		if out[i] >= vertexCount {
			return nil, fmt.Errorf("%w: index %d with %d vertices", ErrBadIndexStream, out[i], vertexCount)
		}
	}
	return out, nil
}

// EncodeIndices applies high-water-mark coding. Indices must reference only
// previously-introduced or next-in-sequence vertices, which holds for any
// stream produced by DecodeIndices.
func EncodeIndices(indices []uint32) []uint32 {
	out := make([]uint32, len(indices))
	var highest uint32
	for i, idx := range indices {
		out[i] = highest - idx
		if idx == highest {
			highest++
		}
	}
	return out
}

// MeshFromTerrain lifts a decoded terrain tile onto the reference sphere.
// U interpolates the tile's west/east longitudes, V its south/north
// latitudes (v=0 is the southern edge per the quantized-mesh convention),
// and heights displace vertices radially, scaled from meters to scene
// units.
func MeshFromTerrain(td *TerrainData, coord slippy.TileCoord, radius float64) *Mesh {
	bounds := slippy.TileToBounds(coord)
	heightScale := radius / EarthRadiusMeters

	mesh := &Mesh{
		Positions: make([]geomath.Vec3, len(td.U)),
		UVs:       make([]geomath.Vec2, len(td.U)),
		Indices:   td.Indices,
	}
	for i := range td.U {
		lon := bounds.LonMin + (bounds.LonMax-bounds.LonMin)*td.U[i]
		lat := bounds.LatMin + (bounds.LatMax-bounds.LatMin)*td.V[i]
		r := radius + td.Heights[i]*heightScale
		mesh.Positions[i] = slippy.CartesianFromLonLat(lon, lat, r)
		mesh.UVs[i] = geomath.Vec2{X: td.U[i], Y: td.V[i]}
	}
	return mesh
}
