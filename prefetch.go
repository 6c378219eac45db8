package mosaic

import (
	"math"
)

// Direction is the sign of a scroll movement along each axis. DY is
// positive when moving north.
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

func (d Direction) Zero() bool {
	return d.DX == 0 && d.DY == 0
}

// ScrollDirection turns a center movement in map pixels into a Direction.
// It reports false when the movement is no more than one pixel on both
// axes.
func ScrollDirection(dx, dy float64) (Direction, bool) {
	ix, iy := int(math.Trunc(dx)), int(math.Trunc(dy))
	if ix >= -1 && ix <= 1 && iy >= -1 && iy <= 1 {
		return Direction{}, false
	}
	return Direction{DX: sign(ix), DY: sign(iy)}, true
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// PrefetchQuery asks for the ring of tiles just outside Edges, the
// unclamped span of the last visible request. Contour asks for the whole
// ring regardless of Direction.
type PrefetchQuery struct {
	Scale     int       `json:"scale"`
	Edges     Range     `json:"edges"`
	Direction Direction `json:"direction"`
	Contour   bool      `json:"contour"`
}

// PlanPrefetch lists the tiles of the strips bordering q.Edges in the
// direction of movement: left strip, right strip, top strip, bottom strip.
// Tiles outside the grid of d are skipped.
func PlanPrefetch(q PrefetchQuery, d ScaleDescriptor) []TileID {
	if !q.Contour && q.Direction.Zero() {
		return nil
	}
	e := q.Edges

	// -1 marks an absent strip
	left, right := int32(-1), int32(-1)
	switch {
	case q.Contour:
		left, right = e.MinCol-1, e.MaxCol+1
	case q.Direction.DX > 0:
		right = e.MaxCol + 1
	case q.Direction.DX < 0:
		left = e.MinCol - 1
	}

	vTop, vBottom := e.MaxRow, e.MinRow
	top, bottom := int32(-1), int32(-1)
	switch {
	case q.Contour:
		vTop++
		vBottom--
		top, bottom = e.MaxRow+1, e.MinRow-1
	case q.Direction.DY > 0:
		vTop++
		top = e.MaxRow + 1
	case q.Direction.DY < 0:
		vBottom--
		bottom = e.MinRow - 1
	}

	var tiles []TileID
	vertical := func(col int32) {
		if col < 0 || col > d.MaxTileCol {
			return
		}
		for row := vTop; row >= vBottom; row-- {
			if row < 0 || row > d.MaxTileRow {
				continue
			}
			tiles = append(tiles, NewTileID(col, row))
		}
	}
	horizontal := func(row int32) {
		if row < 0 || row > d.MaxTileRow {
			return
		}
		for col := e.MinCol; col <= e.MaxCol; col++ {
			if col < 0 || col > d.MaxTileCol {
				continue
			}
			tiles = append(tiles, NewTileID(col, row))
		}
	}
	vertical(left)
	vertical(right)
	horizontal(top)
	horizontal(bottom)
	return tiles
}
