package archive

import (
	"testing"

	"github.com/google/hilbert"
)

func TestZXYToTileIDKnownValues(t *testing.T) {
	tests := []struct {
		z, x, y  uint64
		expected uint64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{1, 0, 1, 2},
		{1, 1, 1, 3},
		{1, 1, 0, 4},
		{2, 0, 0, 5},
		{12, 3423, 1763, 19078479},
	}
	for _, tt := range tests {
		got, err := ZXYToTileID(tt.z, tt.x, tt.y)
		if err != nil {
			t.Fatalf("ZXYToTileID(%d, %d, %d): %v", tt.z, tt.x, tt.y, err)
		}
		if got != tt.expected {
			t.Errorf("ZXYToTileID(%d, %d, %d) = %d, expected %d", tt.z, tt.x, tt.y, got, tt.expected)
		}
	}
}

func TestTileIDMatchesHilbertCurve(t *testing.T) {
	for z := uint64(1); z <= 6; z++ {
		n := uint64(1) << z
		h, err := hilbert.NewHilbert(int(n))
		if err != nil {
			t.Fatalf("hilbert curve of size %d: %v", n, err)
		}
		for x := range n {
			for y := range n {
				code, err := h.MapInverse(int(x), int(y))
				if err != nil {
					t.Fatalf("MapInverse(%d, %d): %v", x, y, err)
				}
				expected := zoomPrefix(z) + uint64(code)

				id, err := ZXYToTileID(z, x, y)
				if err != nil {
					t.Fatalf("ZXYToTileID(%d, %d, %d): %v", z, x, y, err)
				}
				if id != expected {
					t.Fatalf("ZXYToTileID(%d, %d, %d) = %d, curve gives %d", z, x, y, id, expected)
				}

				gz, gx, gy, err := TileIDToZXY(id)
				if err != nil {
					t.Fatalf("TileIDToZXY(%d): %v", id, err)
				}
				if gz != z || gx != x || gy != y {
					t.Fatalf("TileIDToZXY(%d) = %d/%d/%d, expected %d/%d/%d", id, gz, gx, gy, z, x, y)
				}
			}
		}
	}
}

func TestZXYToTileIDBounds(t *testing.T) {
	if _, err := ZXYToTileID(3, 8, 0); err == nil {
		t.Error("expected error for x outside of zoom 3")
	}
	if _, err := ZXYToTileID(MaxZoom+1, 0, 0); err == nil {
		t.Error("expected error past the max zoom")
	}
	if _, _, _, err := TileIDToZXY(invalidTileID); err == nil {
		t.Error("expected error for an overflowing tile id")
	}
}

func BenchmarkZXYToTileID(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_, _ = ZXYToTileID(10, 205, 342)
	}
}

func BenchmarkTileIDToZXY(b *testing.B) {
	id, _ := ZXYToTileID(10, 205, 342)
	b.ReportAllocs()
	for b.Loop() {
		_, _, _, _ = TileIDToZXY(id)
	}
}
