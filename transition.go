package mosaic

const (
	// adjacentZoomInBand starts prefetching the next detailed scale at this
	// fraction of the zoom-in swap threshold.
	adjacentZoomInBand = 0.8
	// adjacentZoomOutBand prefetches the next coarser scale while the zoom
	// is within this multiple of the zoom-out swap threshold.
	adjacentZoomOutBand = 1.25
)

// ZoomState is the state of the scale transition state machine.
type ZoomState int32

const (
	// NotReady is the state before the first layout.
	NotReady ZoomState = iota
	Ready
	MapChangeOngoing
	// BusyNow is held while a gesture is finalised. Events are
	// serialised, so only observers such as Stats can see it.
	BusyNow
)

func (s ZoomState) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	case MapChangeOngoing:
		return "map_change_ongoing"
	case BusyNow:
		return "busy_now"
	default:
		return "unknown"
	}
}

func (s ZoomState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transform is a scale and translate applied to the surface of the new
// scale so that it lines up with the surface of the gesture's start scale:
// p_start = Scale * (p_new + T).
type Transform struct {
	Scale float64 `json:"a"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
}

// Identity is the transform of a surface already at the start scale.
var Identity = Transform{Scale: 1}

func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.Scale * (x + t.TX), t.Scale * (y + t.TY)
}

// Projector converts map pixel coordinates between scales.
type Projector interface {
	Convert(x, y float64, from, to int) (float64, float64)
}

// LinearProjector converts coordinates of scales that share an origin and
// differ only by their scale factor.
type LinearProjector struct {
	Catalog ScaleCatalog
}

func (p LinearProjector) Convert(x, y float64, from, to int) (float64, float64) {
	r := Ratio(p.Catalog, from, to)
	return x * r, y * r
}

// focalTransform keeps the focal point (fx, fy), given in map pixels of
// scale start, at the same spot on screen once scale to is displayed.
func focalTransform(p Projector, c ScaleCatalog, start, to int, fx, fy float64) Transform {
	a := Ratio(c, to, start)
	nx, ny := p.Convert(fx, fy, start, to)
	return Transform{Scale: a, TX: fx/a - nx, TY: fy/a - ny}
}

// TransitionState describes a running cross-fade. While Active the tiles
// of scale From inside FromRange stay protected from eviction.
type TransitionState struct {
	From      int   `json:"from"`
	To        int   `json:"to"`
	FromRange Range `json:"from_range"`
	Active    bool  `json:"active"`
}

func (ts TransitionState) protects(scale int, t TileID) bool {
	return ts.Active && scale == ts.From && ts.FromRange.Contains(t)
}

// zoomStep is what a pinch zoom update asks the engine to do.
type zoomStep struct {
	// swap is -1 to swap to the next detailed scale, +1 for the next
	// coarser one
	swap int
	// contour asks for the ring around the current scale
	contour bool
	// adjacent names the neighbour scale to prefetch, relative to the
	// current one, at adjacentZoom
	adjacent     int
	adjacentZoom float64
}

// zoomTracker decides scale swaps for a pinch gesture. Zoom values are
// relative to the scale the gesture started on.
type zoomTracker struct {
	catalog    ScaleCatalog
	minZoom    float64
	hysteresis float64

	start int
	ref   float64
	// boundary is the lower scale index of the last pair swapped across,
	// -1 if none
	boundary int
}

func newZoomTracker(c ScaleCatalog, minZoom, hysteresis float64) *zoomTracker {
	return &zoomTracker{catalog: c, minZoom: minZoom, hysteresis: hysteresis, boundary: -1}
}

func (z *zoomTracker) begin(scale int, zoom float64) {
	z.start = scale
	z.ref = zoom
	z.boundary = -1
}

// threshold is the gesture zoom at which the boundary between scale lo
// and lo+1 is crossed.
func (z *zoomTracker) threshold(lo int) float64 {
	return z.minZoom * Ratio(z.catalog, z.start, lo)
}

func (z *zoomTracker) step(cur int, zoom float64) zoomStep {
	var s zoomStep
	zoomIn := zoom > z.ref
	z.ref = zoom

	if zoomIn {
		if cur == 0 {
			return s
		}
		thr := z.threshold(cur - 1)
		eff := thr
		if z.boundary == cur-1 {
			eff = thr * (1 + z.hysteresis)
		}
		if zoom < eff {
			if zoom >= thr*adjacentZoomInBand {
				s.adjacent, s.adjacentZoom = -1, z.minZoom
			}
			return s
		}
		z.boundary = cur - 1
		s.swap = -1
		return s
	}

	if cur == z.catalog.Len()-1 {
		s.contour = true
		return s
	}
	thr := z.threshold(cur)
	eff := thr
	if z.boundary == cur {
		eff = thr * (1 - z.hysteresis)
	}
	if zoom > eff {
		s.contour = true
		if zoom <= thr*adjacentZoomOutBand {
			s.adjacent = 1
			s.adjacentZoom = z.minZoom * Ratio(z.catalog, cur+1, cur)
		}
		return s
	}
	z.boundary = cur
	s.swap = 1
	return s
}
