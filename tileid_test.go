package mosaic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTileIDPacking(t *testing.T) {
	tests := []struct {
		col, row int32
		packed   uint32
		str      string
	}{
		{0, 0, 0, "0-0"},
		{3, 1, 1<<16 | 3, "1-3"},
		{0xffff, 0xffff, 0xffffffff, "65535-65535"},
	}
	for _, tt := range tests {
		id := NewTileID(tt.col, tt.row)
		if uint32(id) != tt.packed {
			t.Errorf("NewTileID(%d, %d) = %#x, expected %#x", tt.col, tt.row, uint32(id), tt.packed)
		}
		if id.Col() != tt.col || id.Row() != tt.row {
			t.Errorf("unpacked (%d, %d), expected (%d, %d)", id.Col(), id.Row(), tt.col, tt.row)
		}
		if id.String() != tt.str {
			t.Errorf("String() = %q, expected %q", id.String(), tt.str)
		}
	}
}

func TestRangeTilesOrder(t *testing.T) {
	r := Range{MinCol: 1, MaxCol: 2, MinRow: 5, MaxRow: 6}

	expected := []TileID{
		NewTileID(1, 6), NewTileID(2, 6),
		NewTileID(1, 5), NewTileID(2, 5),
	}
	if diff := cmp.Diff(expected, r.Tiles()); diff != "" {
		t.Errorf("Tiles() mismatch (-want+got):\n%v", diff)
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, expected 4", r.Len())
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{MinCol: 1, MaxCol: 3, MinRow: 1, MaxRow: 3}

	if !r.Contains(NewTileID(3, 1)) {
		t.Error("expected corner tile to be contained")
	}
	if r.Contains(NewTileID(4, 1)) {
		t.Error("expected tile right of the range to be outside")
	}
	if !r.ContainsRange(Range{MinCol: 2, MaxCol: 3, MinRow: 1, MaxRow: 2}) {
		t.Error("expected inner range to be contained")
	}
	if r.ContainsRange(Range{MinCol: 0, MaxCol: 3, MinRow: 1, MaxRow: 3}) {
		t.Error("expected range reaching col 0 to be outside")
	}
	if !r.ContainsRange(Range{MinCol: 5, MaxCol: 4}) {
		t.Error("expected empty range to be contained")
	}
}

func TestRangeClamp(t *testing.T) {
	d := ScaleDescriptor{ScaleFactor: 1, MaxTileCol: 7, MaxTileRow: 3}
	got := Range{MinCol: -2, MaxCol: 9, MinRow: -1, MaxRow: 2}.Clamp(d)

	expected := Range{MinCol: 0, MaxCol: 7, MinRow: 0, MaxRow: 2}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("Clamp() mismatch (-want+got):\n%v", diff)
	}
}
