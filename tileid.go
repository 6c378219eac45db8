package mosaic

import (
	"fmt"
)

// TileID packs a tile column and row into one key: row in the high 16
// bits, column in the low 16 bits. Row 0 is the southernmost row.
type TileID uint32

// NewTileID packs col and row. Both must lie in 0..65535.
func NewTileID(col, row int32) TileID {
	return TileID(uint32(row)<<16 | uint32(col)&maxTileIndex) //nolint:gosec
}

func (t TileID) Col() int32 {
	return int32(t & maxTileIndex)
}

func (t TileID) Row() int32 {
	return int32(t >> 16)
}

func (t TileID) String() string {
	return fmt.Sprintf("%d-%d", t.Row(), t.Col())
}

// Range is an inclusive span of tile columns and rows.
type Range struct {
	MinCol int32 `json:"min_col"`
	MaxCol int32 `json:"max_col"`
	MinRow int32 `json:"min_row"`
	MaxRow int32 `json:"max_row"`
}

func (r Range) Empty() bool {
	return r.MinCol > r.MaxCol || r.MinRow > r.MaxRow
}

func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return int(r.MaxCol-r.MinCol+1) * int(r.MaxRow-r.MinRow+1)
}

func (r Range) Contains(t TileID) bool {
	col, row := t.Col(), t.Row()
	return col >= r.MinCol && col <= r.MaxCol && row >= r.MinRow && row <= r.MaxRow
}

// ContainsRange reports whether o lies entirely inside r. An empty o is
// always contained.
func (r Range) ContainsRange(o Range) bool {
	if o.Empty() {
		return true
	}
	return o.MinCol >= r.MinCol && o.MaxCol <= r.MaxCol && o.MinRow >= r.MinRow && o.MaxRow <= r.MaxRow
}

// Clamp limits r to the tile grid of d.
func (r Range) Clamp(d ScaleDescriptor) Range {
	return Range{
		MinCol: max(r.MinCol, 0),
		MaxCol: min(r.MaxCol, d.MaxTileCol),
		MinRow: max(r.MinRow, 0),
		MaxRow: min(r.MaxRow, d.MaxTileRow),
	}
}

// Tiles lists the ids in r with rows descending and columns ascending, so
// the top of the map is emitted first.
func (r Range) Tiles() []TileID {
	tiles := make([]TileID, 0, r.Len())
	for row := r.MaxRow; row >= r.MinRow; row-- {
		for col := r.MinCol; col <= r.MaxCol; col++ {
			tiles = append(tiles, NewTileID(col, row))
		}
	}
	return tiles
}

func (r Range) String() string {
	return fmt.Sprintf("cols %d..%d rows %d..%d", r.MinCol, r.MaxCol, r.MinRow, r.MaxRow)
}
