package terrain

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/handaome/three-earth/pkg/slippy"
)

// buildPayload synthesizes a quantized-mesh tile from raw (un-encoded)
// vertex attributes and a plain index list.
func buildPayload(t *testing.T, minH, maxH float32, u, v, h []uint16, indices []uint32) []byte {
	t.Helper()
	if len(u) != len(v) || len(u) != len(h) {
		t.Fatal("attribute streams must have equal length")
	}

	buf := make([]byte, quantizedHeaderSize)
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(minH))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(maxH))

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(u)))
	for _, stream := range [][]uint16{ZigZagEncode(u), ZigZagEncode(v), ZigZagEncode(h)} {
		for _, e := range stream {
			buf = binary.LittleEndian.AppendUint16(buf, e)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(indices)/3))
	for _, c := range EncodeIndices(indices) {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(c))
	}
	return buf
}

func TestZigZagRoundTrip(t *testing.T) {
	streams := [][]uint16{
		{0, 0, 0, 0},
		{0, 32767, 0, 32767},
		{5, 3, 9, 9, 1, 32000},
		{32767},
	}
	for _, values := range streams {
		got := ZigZagDecode(ZigZagEncode(values))
		for i := range values {
			if got[i] != values[i] {
				t.Fatalf("round trip %v -> %v", values, got)
			}
		}
	}
}

func TestZigZagDecodeKnownDeltas(t *testing.T) {
	// Encoded 2 is delta +1, encoded 1 is delta -1.
	got := ZigZagDecode([]uint16{0, 2, 2, 1})
	want := []uint16{0, 1, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("decoded %v; want %v", got, want)
		}
	}
}

func TestHighWaterMarkRoundTrip(t *testing.T) {
	indices := []uint32{0, 1, 2, 2, 1, 3, 0, 2, 4, 4, 2, 5}
	codes := EncodeIndices(indices)
	got, err := DecodeIndices(codes, 6)
	if err != nil {
		t.Fatalf("DecodeIndices: %v", err)
	}
	for i := range indices {
		if got[i] != indices[i] {
			t.Fatalf("round trip %v -> %v", indices, got)
		}
	}
}

func TestDecodeIndicesRejectsCodeAboveMark(t *testing.T) {
	// The first code introduces vertex 0 (mark 0); code 5 then claims an
	// index five below a mark of 1.
	_, err := DecodeIndices([]uint32{0, 5, 0}, 10)
	if !errors.Is(err, ErrBadIndexStream) {
		t.Fatalf("err = %v; want ErrBadIndexStream", err)
	}
}

func TestDecodeIndicesRejectsOutOfRangeVertex(t *testing.T) {
	// Codes introducing vertices 0,1,2 with only 2 vertices declared.
	_, err := DecodeIndices([]uint32{0, 0, 0}, 2)
	if !errors.Is(err, ErrBadIndexStream) {
		t.Fatalf("err = %v; want ErrBadIndexStream", err)
	}
}

func TestDecodeQuantizedMesh(t *testing.T) {
	u := []uint16{0, 32767, 0, 32767}
	v := []uint16{0, 0, 32767, 32767}
	h := []uint16{0, 16384, 16384, 32767}
	payload := buildPayload(t, 100, 300, u, v, h, []uint32{0, 1, 2, 2, 1, 3})

	td, err := DecodeQuantizedMesh(payload)
	if err != nil {
		t.Fatalf("DecodeQuantizedMesh: %v", err)
	}

	if td.MinHeight != 100 || td.MaxHeight != 300 {
		t.Errorf("height range = [%v,%v]; want [100,300]", td.MinHeight, td.MaxHeight)
	}
	if len(td.U) != 4 {
		t.Fatalf("vertex count = %d; want 4", len(td.U))
	}
	if td.U[1] != 1 || td.V[2] != 1 || td.U[0] != 0 {
		t.Errorf("u/v not normalized: u=%v v=%v", td.U, td.V)
	}
	if math.Abs(td.Heights[0]-100) > 1e-9 || math.Abs(td.Heights[3]-300) > 1e-9 {
		t.Errorf("heights = %v; want min/max at ends", td.Heights)
	}
	if math.Abs(td.Heights[1]-200) > 0.01 {
		t.Errorf("mid height = %v; want ~200", td.Heights[1])
	}
	want := []uint32{0, 1, 2, 2, 1, 3}
	for i := range want {
		if td.Indices[i] != want[i] {
			t.Fatalf("indices = %v; want %v", td.Indices, want)
		}
	}
}

func TestDecodeQuantizedMeshAllZeros(t *testing.T) {
	zeros := []uint16{0, 0, 0, 0}
	payload := buildPayload(t, 0, 0, zeros, zeros, zeros, []uint32{0, 1, 2, 2, 1, 3})

	td, err := DecodeQuantizedMesh(payload)
	if err != nil {
		t.Fatalf("DecodeQuantizedMesh: %v", err)
	}
	for i := 0; i < 4; i++ {
		if td.U[i] != 0 || td.V[i] != 0 || td.Heights[i] != 0 {
			t.Errorf("vertex %d = (%v,%v,%v); want zeros", i, td.U[i], td.V[i], td.Heights[i])
		}
	}
}

func TestDecodeQuantizedMeshTruncated(t *testing.T) {
	u := []uint16{0, 1}
	payload := buildPayload(t, 0, 10, u, u, u, []uint32{0, 1, 0})

	for _, cut := range []int{0, 40, quantizedHeaderSize, quantizedHeaderSize + 5, len(payload) - 2} {
		if _, err := DecodeQuantizedMesh(payload[:cut]); !errors.Is(err, ErrTruncatedQuantizedMesh) {
			t.Errorf("cut at %d: err = %v; want ErrTruncatedQuantizedMesh", cut, err)
		}
	}
}

func TestMeshFromTerrain(t *testing.T) {
	const radius = 10.0
	coord := slippy.TileCoord{Z: 3, X: 4, Y: 3}
	bounds := slippy.TileToBounds(coord)

	td := &TerrainData{
		MinHeight: 0,
		MaxHeight: 1000,
		U:         []float64{0, 1, 0, 1},
		V:         []float64{0, 0, 1, 1},
		Heights:   []float64{0, 0, 0, EarthRadiusMeters / 10}, // huge, to be visible
		Indices:   []uint32{0, 1, 2, 2, 1, 3},
	}

	mesh := MeshFromTerrain(td, coord, radius)
	if mesh.VertexCount() != 4 || mesh.TriangleCount() != 2 {
		t.Fatalf("counts = %d verts, %d tris", mesh.VertexCount(), mesh.TriangleCount())
	}

	// v=0 is the southern edge: vertex 0 sits at the southwest corner.
	sw := slippy.CartesianFromLonLat(bounds.LonMin, bounds.LatMin, radius)
	if mesh.Positions[0].Distance(sw) > 1e-9 {
		t.Errorf("vertex 0 = %v; want %v", mesh.Positions[0], sw)
	}

	// Heights displace radially, scene-scaled from meters.
	if got := mesh.Positions[3].Length(); math.Abs(got-(radius+1)) > 1e-9 {
		t.Errorf("displaced vertex length = %v; want %v", got, radius+1.0)
	}
	for _, i := range []int{0, 1, 2} {
		if got := mesh.Positions[i].Length(); math.Abs(got-radius) > 1e-9 {
			t.Errorf("vertex %d length = %v; want %v", i, got, radius)
		}
	}
}
