package mosaic

import (
	"math"
)

const (
	// screenInflation widens the screen before counting tiles so that a
	// center exactly on a tile edge does not lose a column to rounding.
	screenInflation = 1.01
	// abortInflation is used when checking whether the outgoing scale can
	// still fill the screen during a cross-fade.
	abortInflation = 1.05
)

// Size is a screen size in points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Geometry is the fixed screen and tile geometry of a map view.
type Geometry struct {
	Screen   Size
	TileSize float64
}

// VisibleQuery asks for the tiles on screen at a center position given in
// map pixels of Scale. Sync requests block until the tiles are rendered.
type VisibleQuery struct {
	Scale   int     `json:"scale"`
	Zoom    float64 `json:"zoom"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Sync    bool    `json:"sync"`
}

// Span is the result of a visible range calculation. Left, Right, Top and
// Bottom count the tiles needed on each side of the center tile. Range is
// the span clamped to the scale's tile grid.
type Span struct {
	CenterCol int32 `json:"center_col"`
	CenterRow int32 `json:"center_row"`
	Left      int32 `json:"left"`
	Right     int32 `json:"right"`
	Top       int32 `json:"top"`
	Bottom    int32 `json:"bottom"`
	Range     Range `json:"range"`
}

// Edges returns the span before clamping.
func (s Span) Edges() Range {
	return Range{
		MinCol: s.CenterCol - s.Left,
		MaxCol: s.CenterCol + s.Right,
		MinRow: s.CenterRow - s.Bottom,
		MaxRow: s.CenterRow + s.Top,
	}
}

// VisibleSpan computes the tile span covering the screen for q.
func VisibleSpan(q VisibleQuery, g Geometry, d ScaleDescriptor) Span {
	return visibleSpan(q.CenterX, q.CenterY, q.Zoom, g, d, screenInflation)
}

func visibleSpan(cx, cy, zoom float64, g Geometry, d ScaleDescriptor, inflation float64) Span {
	t := g.TileSize
	disp := t * zoom
	sw := g.Screen.Width * inflation
	sh := g.Screen.Height * inflation

	xOffset := math.Mod(cx, t) * zoom
	left, right := countTiles(sw, xOffset, disp)

	// rows grow northwards, the offset is measured from the tile's top edge
	yOffset := (t - math.Mod(cy, t)) * zoom
	top, bottom := countTiles(sh, yOffset, disp)

	s := Span{
		CenterCol: int32(cx / t),
		CenterRow: int32(cy / t),
		Left:      left,
		Right:     right,
		Top:       top,
		Bottom:    bottom,
	}
	s.Range = s.Edges().Clamp(d)
	return s
}

// countTiles returns how many whole or partial tiles of size disp are
// needed before and after the center tile along an axis of length extent,
// given the center's offset from the leading edge of its tile.
func countTiles(extent, offset, disp float64) (before, after int32) {
	if disp <= 0 {
		return 0, 0
	}
	x0 := extent*0.5 - offset
	if x0 > 0 {
		before = ceilDiv(x0, disp)
	}
	x0 += disp
	if x0 < extent {
		after = ceilDiv(extent-x0, disp)
	}
	return before, after
}

func ceilDiv(a, b float64) int32 {
	n := int32(a / b)
	if math.Mod(a, b) != 0 {
		n++
	}
	return n
}

// Capacity returns the number of tile handles a cache needs to cover the
// screen twice over at the smallest zoom, plus half again as margin.
func Capacity(g Geometry, minZoom float64) int {
	d := g.TileSize * minZoom
	if d <= 0 {
		return 0
	}
	axis := func(extent float64) int {
		n := int(extent/d) + 1
		if math.Mod(extent, d) != 0 {
			n++
		}
		return n
	}
	nx := axis(g.Screen.Width * screenInflation)
	ny := axis(g.Screen.Height * screenInflation)
	return 2*nx*ny + nx*ny/2
}
