// Package mosaic keeps the rendered tiles of a zoomable multi-scale map
// view. It deduplicates render requests, prefetches in the scroll
// direction and swaps scales while the user pinches.
package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNotReady is returned for viewport and gesture events that arrive
// before the first layout.
var ErrNotReady = errors.New("engine not ready")

var errNoPixels = errors.New("renderer returned no pixels")

// viewport is the interaction thread's view of the map, in map pixels of
// the current scale.
type viewport struct {
	centerX float64
	centerY float64
	zoom    float64
	span    Span
	// prefetch direction reference
	refX float64
	refY float64
}

// gesture is a running pinch. Coordinates are map pixels of the scale the
// pinch started on.
type gesture struct {
	active bool
	start  int
	focalX float64
	focalY float64
	zoom   float64
}

// Stats is a point in time summary of the engine.
type Stats struct {
	State       ZoomState       `json:"state"`
	Scale       int             `json:"scale"`
	Cached      int             `json:"cached"`
	Capacity    int             `json:"capacity"`
	Visible     int             `json:"visible"`
	Outstanding int             `json:"outstanding"`
	Queued      int             `json:"queued"`
	Backlog     int             `json:"backlog"`
	Failures    int64           `json:"failures"`
	Transition  TransitionState `json:"transition"`
}

// Engine owns the tile cache, the request ledger, the render worker and
// the scale transition state machine of one map view.
//
// Handle, RequestVisible and Prefetch are meant to be called from one
// interaction goroutine; concurrent calls are serialised. Stats, Handles,
// Surface and TakeBacklog may be called from anywhere, including a
// SignalHandler.
type Engine struct {
	catalog   ScaleCatalog
	renderer  Renderer
	fallback  *PlaceholderRenderer
	projector Projector
	geom      Geometry
	cfg       *config
	logger    *slog.Logger
	metrics   *metrics
	sched     *scheduler

	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	once     sync.Once
	failures atomic.Int64

	scale        atomic.Int64
	state        atomic.Int32
	gestureStart atomic.Int64

	// pool lock: cache, ledger and the transition protecting tiles
	mu      sync.Mutex
	cache   *tileCache
	ledger  *ledger
	protect TransitionState

	backlogMu  sync.Mutex
	backlog    []RenderResult
	backlogCap int

	// eventMu serialises the interaction thread. The worker never takes it.
	eventMu sync.Mutex
	view    viewport
	gesture gesture
	zoom    *zoomTracker
	outbox  []Signal
}

// New builds an engine for the scales of catalog. A nil renderer draws
// placeholder tiles.
func New(catalog ScaleCatalog, renderer Renderer, opts ...Option) (*Engine, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, fmt.Errorf("%w: no scales", ErrInvalidCatalog)
	}

	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.tileSize <= 0 {
		return nil, fmt.Errorf("invalid tile size %d", cfg.tileSize)
	}
	if cfg.minZoom <= 0 || cfg.maxZoom < cfg.minZoom {
		return nil, fmt.Errorf("invalid zoom limits %v..%v", cfg.minZoom, cfg.maxZoom)
	}

	geom := Geometry{Screen: cfg.screen, TileSize: float64(cfg.tileSize)}
	capacity := cfg.capacity
	if capacity <= 0 {
		capacity = Capacity(geom, cfg.minZoom)
	}
	backlogCap := cfg.backlog
	if backlogCap <= 0 {
		backlogCap = capacity * defaultBacklogPerSlot
	}

	fallback := NewPlaceholderRenderer(cfg.tileSize, cfg.tileSize)
	if renderer == nil {
		renderer = fallback
	}
	projector := cfg.projector
	if projector == nil {
		projector = LinearProjector{Catalog: catalog}
	}

	m := newMetrics()
	if cfg.registerer != nil {
		if err := m.register(cfg.registerer); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		catalog:    catalog,
		renderer:   renderer,
		fallback:   fallback,
		projector:  projector,
		geom:       geom,
		cfg:        cfg,
		logger:     cfg.logger,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		cache:      newTileCache(capacity, cfg.tileSize, cfg.tileSize),
		ledger:     newLedger(),
		backlogCap: backlogCap,
		zoom:       newZoomTracker(catalog, cfg.minZoom, cfg.hysteresis),
		view:       viewport{zoom: 1},
	}
	e.scale.Store(int64(clampScale(catalog, cfg.initialScale)))
	e.state.Store(int32(NotReady))
	e.gestureStart.Store(-1)
	e.sched = newScheduler(e.runBatch)

	e.logger.Debug("engine created",
		slog.Int("scales", catalog.Len()),
		slog.Int("capacity", capacity),
		slog.Int("tile_size", cfg.tileSize),
	)
	return e, nil
}

func (e *Engine) State() ZoomState {
	return ZoomState(e.state.Load())
}

// Scale is the index of the scale currently displayed.
func (e *Engine) Scale() int {
	return int(e.scale.Load())
}

func (e *Engine) Catalog() ScaleCatalog {
	return e.catalog
}

func (e *Engine) Geometry() Geometry {
	return e.geom
}

// Capacity is the bound on cached and reserved tile handles.
func (e *Engine) Capacity() int {
	return e.cache.capacity
}

func (e *Engine) setState(s ZoomState) {
	e.state.Store(int32(s))
}

func (e *Engine) emit(s Signal) {
	e.outbox = append(e.outbox, s)
}

// Handle feeds one UI event into the engine. Viewport events render the
// visible tiles before returning.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.eventMu.Lock()
	err := e.handle(ctx, ev)
	out := e.outbox
	e.outbox = nil
	e.eventMu.Unlock()

	for _, s := range out {
		e.cfg.onSignal(s)
	}
	if err != nil {
		return fmt.Errorf("handling %s: %w", ev.Kind, err)
	}
	return nil
}

func (e *Engine) handle(ctx context.Context, ev Event) error {
	if ev.Kind != EventLayout && e.State() == NotReady {
		return ErrNotReady
	}

	switch ev.Kind {
	case EventLayout:
		return e.layout(ctx, ev)
	case EventViewportChanged:
		return e.viewportChanged(ctx, ev)
	case EventGestureBegin:
		e.gestureBegin(ev)
		return nil
	case EventGestureChange:
		return e.gestureChange(ctx, ev)
	case EventGestureEnd:
		e.gestureEnd()
		return nil
	case EventFadeComplete:
		e.endTransition(false)
		return nil
	case EventScaleSwap:
		return e.scaleSwap(ctx, ev)
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

func (e *Engine) layout(ctx context.Context, ev Event) error {
	if ev.Zoom > 0 {
		e.view.zoom = ev.Zoom
	}
	e.view.centerX, e.view.centerY = ev.CenterX, ev.CenterY
	e.view.refX, e.view.refY = ev.CenterX, ev.CenterY
	e.state.CompareAndSwap(int32(NotReady), int32(Ready))
	return e.refresh(ctx)
}

func (e *Engine) viewportChanged(ctx context.Context, ev Event) error {
	if ev.Scale != nil && *ev.Scale != e.Scale() {
		e.logger.Debug("stale viewport change dropped",
			slog.Int("scale", *ev.Scale),
			slog.Int("current", e.Scale()),
		)
		return nil
	}
	e.view.centerX, e.view.centerY = ev.CenterX, ev.CenterY
	if ev.Zoom > 0 {
		e.view.zoom = ev.Zoom
	}
	e.checkAbort()
	return e.refresh(ctx)
}

func (e *Engine) gestureBegin(ev Event) {
	cur := e.Scale()
	zoom := ev.Zoom
	if zoom <= 0 {
		zoom = e.view.zoom
	}
	e.gesture = gesture{active: true, start: cur, focalX: ev.FocalX, focalY: ev.FocalY, zoom: zoom}
	e.gestureStart.Store(int64(cur))
	e.zoom.begin(cur, zoom)
	if e.State() == MapChangeOngoing {
		// a new pinch takes over; the fade keeps its protection
		e.setState(Ready)
	}
}

// toCurrent converts a center given in map pixels of the gesture's start
// scale into the current scale, keeping the focal point fixed.
func (e *Engine) toCurrent(x, y float64) (float64, float64) {
	g := e.gesture
	cur := e.Scale()
	r := Ratio(e.catalog, g.start, cur)
	fx, fy := e.projector.Convert(g.focalX, g.focalY, g.start, cur)
	return fx + (x-g.focalX)*r, fy + (y-g.focalY)*r
}

func (e *Engine) gestureChange(ctx context.Context, ev Event) error {
	if !e.gesture.active {
		return nil
	}
	if ev.Zoom > 0 {
		e.gesture.zoom = ev.Zoom
	}
	cur := e.Scale()
	step := e.zoom.step(cur, e.gesture.zoom)
	if step.swap != 0 {
		return e.performSwap(ctx, cur+step.swap, ev.CenterX, ev.CenterY)
	}

	e.view.centerX, e.view.centerY = e.toCurrent(ev.CenterX, ev.CenterY)
	e.view.zoom = e.gesture.zoom / Ratio(e.catalog, e.gesture.start, cur)
	e.checkAbort()
	if err := e.refresh(ctx); err != nil {
		return err
	}

	if step.contour {
		if _, err := e.prefetch(PrefetchQuery{Scale: cur, Edges: e.view.span.Edges(), Contour: true}); err != nil {
			return err
		}
	}
	if step.adjacent != 0 {
		next := cur + step.adjacent
		cx, cy := e.projector.Convert(e.view.centerX, e.view.centerY, cur, next)
		q := VisibleQuery{Scale: next, Zoom: step.adjacentZoom, CenterX: cx, CenterY: cy}
		if _, _, err := e.requestVisible(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// gestureEnd folds the transform of a swapped scale back into the zoom
// factor and reports the settled viewport.
func (e *Engine) gestureEnd() {
	if !e.gesture.active {
		return
	}
	e.setState(BusyNow)
	cur := e.Scale()
	e.view.zoom = e.gesture.zoom / Ratio(e.catalog, e.gesture.start, cur)
	e.gesture = gesture{}
	e.gestureStart.Store(-1)

	e.emit(Signal{
		Kind:    SignalGestureSettled,
		Scale:   cur,
		Zoom:    e.view.zoom,
		CenterX: e.view.centerX,
		CenterY: e.view.centerY,
	})

	e.mu.Lock()
	fading := e.protect.Active
	e.mu.Unlock()
	if fading {
		e.setState(MapChangeOngoing)
		return
	}
	e.setState(Ready)
}

func (e *Engine) scaleSwap(ctx context.Context, ev Event) error {
	if e.gesture.active {
		return nil
	}
	cur := e.Scale()
	dir := sign(ev.Direction)
	to := clampScale(e.catalog, cur+dir)
	if dir == 0 || to == cur {
		if dir > 0 {
			_, err := e.prefetch(PrefetchQuery{Scale: cur, Edges: e.view.span.Edges(), Contour: true})
			return err
		}
		return nil
	}

	e.gesture = gesture{start: cur, focalX: e.view.centerX, focalY: e.view.centerY, zoom: e.view.zoom}
	if err := e.performSwap(ctx, to, e.view.centerX, e.view.centerY); err != nil {
		return err
	}
	if ev.Zoom > 0 {
		e.view.zoom = ev.Zoom
		return e.refresh(ctx)
	}
	return nil
}

// performSwap makes to the current scale and starts the cross-fade. The
// center is in map pixels of the gesture's start scale.
func (e *Engine) performSwap(ctx context.Context, to int, centerX, centerY float64) error {
	from := e.Scale()

	e.mu.Lock()
	cut := e.protect.Active
	e.protect = TransitionState{From: from, To: to, FromRange: e.view.span.Range, Active: true}
	e.mu.Unlock()
	if cut {
		e.metrics.transitions.WithLabelValues("cut").Inc()
		e.emit(Signal{Kind: SignalTransitionEnded, Aborted: true})
	}

	e.scale.Store(int64(to))
	e.setState(MapChangeOngoing)

	g := e.gesture
	t := focalTransform(e.projector, e.catalog, g.start, to, g.focalX, g.focalY)
	e.view.centerX, e.view.centerY = e.toCurrent(centerX, centerY)
	e.view.zoom = g.zoom / Ratio(e.catalog, g.start, to)
	e.view.refX, e.view.refY = e.view.centerX, e.view.centerY

	e.logger.Debug("scale swap",
		slog.Int("from", from),
		slog.Int("to", to),
		slog.Float64("zoom", e.view.zoom),
	)
	e.metrics.transitions.WithLabelValues("started").Inc()

	err := e.refresh(ctx)
	e.emit(Signal{
		Kind:      SignalTransitionStarted,
		From:      from,
		To:        to,
		Transform: t,
		Duration:  e.cfg.fade,
	})
	return err
}

// checkAbort cuts the cross-fade when the outgoing scale, placed at the
// current viewport, would need tiles outside the protected rectangle.
func (e *Engine) checkAbort() {
	if !e.cfg.abortTransition || e.State() != MapChangeOngoing {
		return
	}
	e.mu.Lock()
	ts := e.protect
	e.mu.Unlock()
	if !ts.Active {
		return
	}

	cur := e.Scale()
	fx, fy := e.projector.Convert(e.view.centerX, e.view.centerY, cur, ts.From)
	zoom := e.view.zoom * Ratio(e.catalog, ts.From, cur)
	need := visibleSpan(fx, fy, zoom, e.geom, e.catalog.Describe(ts.From), abortInflation)
	if ts.FromRange.ContainsRange(need.Range) {
		return
	}
	e.logger.Debug("transition aborted",
		slog.String("protected", ts.FromRange.String()),
		slog.String("needed", need.Range.String()),
	)
	e.endTransition(true)
}

func (e *Engine) endTransition(aborted bool) {
	e.mu.Lock()
	active := e.protect.Active
	e.protect.Active = false
	e.mu.Unlock()
	if !active {
		return
	}

	e.state.CompareAndSwap(int32(MapChangeOngoing), int32(Ready))
	outcome := "completed"
	if aborted {
		outcome = "aborted"
	}
	e.metrics.transitions.WithLabelValues(outcome).Inc()
	e.emit(Signal{Kind: SignalTransitionEnded, Aborted: aborted})
}

// Transition returns the current cross-fade, if any.
func (e *Engine) Transition() TransitionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.protect
}

// refresh renders the visible tiles of the current viewport and, outside
// of a scale change, prefetches the strip the viewport is moving towards.
func (e *Engine) refresh(ctx context.Context) error {
	cur := e.Scale()
	span, _, err := e.requestVisible(ctx, VisibleQuery{
		Scale:   cur,
		Zoom:    e.view.zoom,
		CenterX: e.view.centerX,
		CenterY: e.view.centerY,
		Sync:    true,
	})
	if err != nil {
		return err
	}
	e.view.span = span

	dir, moved := ScrollDirection(e.view.centerX-e.view.refX, e.view.centerY-e.view.refY)
	e.view.refX, e.view.refY = e.view.centerX, e.view.centerY
	if e.State() == MapChangeOngoing || !moved {
		return nil
	}
	_, err = e.prefetch(PrefetchQuery{Scale: cur, Edges: span.Edges(), Direction: dir})
	return err
}

// RequestVisible deduplicates the tiles on screen for q and renders the
// missing ones. With q.Sync it blocks until they are in the cache, or
// until ctx is done, and marks them visible.
func (e *Engine) RequestVisible(ctx context.Context, q VisibleQuery) (Span, DedupStatus, error) {
	if e.closed.Load() {
		return Span{}, NothingToDo, ErrClosed
	}
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	return e.requestVisible(ctx, q)
}

func (e *Engine) requestVisible(ctx context.Context, q VisibleQuery) (Span, DedupStatus, error) {
	q.Scale = clampScale(e.catalog, q.Scale)
	span := VisibleSpan(q, e.geom, e.catalog.Describe(q.Scale))
	tiles := span.Range.Tiles()

	e.mu.Lock()
	if q.Sync {
		e.cache.clearVisible(e.protect)
	}
	p := createNewTileList(e.cache, e.ledger, q.Scale, tiles, !q.Sync)
	if q.Sync {
		e.cache.markVisible(q.Scale, p.hits)
	}
	size := e.cache.Len()
	e.mu.Unlock()

	e.observePlan(p, size)
	if err := e.submit(p.batch); err != nil {
		return span, p.status, err
	}
	if !q.Sync {
		return span, p.status, nil
	}

	wait := p.waitOn
	if p.batch != nil {
		wait = append(wait, p.batch)
	}
	for _, b := range wait {
		select {
		case <-b.done:
		case <-ctx.Done():
			return span, p.status, fmt.Errorf("waiting for batch %s: %w", b.ID, ctx.Err())
		}
	}

	e.mu.Lock()
	e.cache.markVisible(q.Scale, tiles)
	e.mu.Unlock()
	return span, p.status, nil
}

// Prefetch plans the ring around q.Edges and renders it in the
// background.
func (e *Engine) Prefetch(_ context.Context, q PrefetchQuery) (DedupStatus, error) {
	if e.closed.Load() {
		return NothingToDo, ErrClosed
	}
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	return e.prefetch(q)
}

func (e *Engine) prefetch(q PrefetchQuery) (DedupStatus, error) {
	q.Scale = clampScale(e.catalog, q.Scale)
	tiles := PlanPrefetch(q, e.catalog.Describe(q.Scale))
	if len(tiles) == 0 {
		return NothingToDo, nil
	}

	e.mu.Lock()
	p := createNewTileList(e.cache, e.ledger, q.Scale, tiles, true)
	size := e.cache.Len()
	e.mu.Unlock()

	e.observePlan(p, size)
	return p.status, e.submit(p.batch)
}

func (e *Engine) observePlan(p plan, size int) {
	e.metrics.dedup.WithLabelValues(p.status.String()).Inc()
	e.metrics.tilesEvicted.Add(float64(p.evicted))
	e.metrics.cacheSize.Set(float64(size))
	if p.batch == nil {
		return
	}
	e.logger.Debug("batch enqueued",
		slog.String("batch", p.batch.ID),
		slog.Int("scale", p.batch.Scale),
		slog.Int("tiles", len(p.batch.Tiles)),
		slog.Int("reused", len(p.batch.Reused)),
		slog.Bool("async", p.batch.Flush),
	)
	if size > e.cache.capacity {
		e.logger.Warn("tile cache over capacity until batch settles",
			slog.Int("size", size),
			slog.Int("capacity", e.cache.capacity),
		)
	}
}

func (e *Engine) submit(b *PendingBatch) error {
	if b == nil {
		return nil
	}
	if err := e.sched.submit(b); err != nil {
		e.abandon(b)
		return err
	}
	return nil
}

// abandon gives the reservations of a batch that will never run back.
func (e *Engine) abandon(b *PendingBatch) {
	e.mu.Lock()
	for _, id := range b.slots {
		e.cache.releaseSlot(id)
	}
	e.ledger.remove(b)
	e.mu.Unlock()
	close(b.done)
}

// runBatch is executed by the scheduler goroutine.
func (e *Engine) runBatch(b *PendingBatch) {
	e.mu.Lock()
	surfaces := make([]*image.RGBA, len(b.slots))
	for i, id := range b.slots {
		surfaces[i] = e.cache.surface(id)
	}
	e.mu.Unlock()

	pixels := make([]*image.RGBA, len(b.Tiles))
	for i, t := range b.Tiles {
		pixels[i] = e.render(t, b.Scale)
		fill(surfaces[i], pixels[i])
	}

	e.mu.Lock()
	for i, t := range b.Tiles {
		e.cache.commit(b.slots[i], tileKey{b.Scale, t}, b.visibleOnCommit(t))
	}
	e.ledger.remove(b)
	trimmed := e.cache.trim()
	size := e.cache.Len()
	e.mu.Unlock()

	results := make([]RenderResult, len(b.Tiles))
	for i, t := range b.Tiles {
		results[i] = RenderResult{Handle: b.slots[i], Tile: t, Scale: b.Scale, Batch: b.ID, Pixels: pixels[i]}
	}
	e.pushBacklog(results)
	close(b.done)

	e.metrics.batches.WithLabelValues(batchMode(b.Flush)).Inc()
	e.metrics.tilesRendered.Add(float64(len(b.Tiles)))
	e.metrics.tilesEvicted.Add(float64(trimmed))
	e.metrics.cacheSize.Set(float64(size))
	e.logger.Debug("batch rendered",
		slog.String("batch", b.ID),
		slog.Int("scale", b.Scale),
		slog.Int("tiles", len(b.Tiles)),
		slog.Int("trimmed", trimmed),
	)
	e.cfg.onSignal(Signal{Kind: SignalBatchReady, Batch: b.ID, Scale: b.Scale})
}

// render asks the renderer for a tile, retrying a bounded number of times
// before drawing a placeholder. It never returns nil.
func (e *Engine) render(t TileID, scale int) *image.RGBA {
	var err error
	for attempt := 0; attempt <= e.cfg.renderRetries; attempt++ {
		var img *image.RGBA
		img, err = e.renderer.Render(e.ctx, t, scale)
		if err == nil && img != nil {
			return img
		}
		if err == nil {
			err = errNoPixels
		}
		if e.ctx.Err() != nil {
			break
		}
	}
	e.failures.Add(1)
	e.metrics.renderFailures.Inc()
	e.logger.Warn("render failed, using placeholder",
		slog.String("tile", t.String()),
		slog.Int("scale", scale),
		slog.Any("error", err),
	)
	return e.fallback.failed(t, scale)
}

func (e *Engine) pushBacklog(results []RenderResult) {
	e.backlogMu.Lock()
	defer e.backlogMu.Unlock()
	e.backlog = append(e.backlog, results...)
	if over := len(e.backlog) - e.backlogCap; over > 0 {
		for i := range over {
			e.backlog[i].Release()
		}
		e.backlog = append(e.backlog[:0], e.backlog[over:]...)
	}
}

// TakeBacklog returns the rendered results not yet attached to a display
// surface and empties the backlog.
func (e *Engine) TakeBacklog() []RenderResult {
	e.backlogMu.Lock()
	defer e.backlogMu.Unlock()
	out := e.backlog
	e.backlog = nil
	return out
}

// Handles returns a snapshot of the ready tile handles, oldest first.
func (e *Engine) Handles() []TileHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.handles()
}

// Lookup returns the handle of a cached tile.
func (e *Engine) Lookup(scale int, t TileID) (TileHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.cache.lookup(scale, t)
	if !ok {
		return TileHandle{}, false
	}
	return e.cache.handle(id), true
}

// Surface returns a copy of the pixels of a cached tile. The copy comes
// from the shared pool; hand it back with PutRGBA.
func (e *Engine) Surface(scale int, t TileID) (*image.RGBA, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.cache.lookup(scale, t)
	if !ok {
		return nil, false
	}
	return e.cache.copySurface(id), true
}

// ZoomBounds returns the zoom range the UI should allow. During a pinch
// the bounds are relative to the scale the pinch started on.
func (e *Engine) ZoomBounds() (minZoom, maxZoom float64) {
	cur := e.Scale()
	upper := e.cfg.maxZoom
	if cur > 0 {
		upper = Ratio(e.catalog, cur, cur-1) * 1.02
	}
	base := e.cfg.minZoom
	if start := int(e.gestureStart.Load()); start >= 0 {
		base /= Ratio(e.catalog, cur, start)
	}
	return base * 0.98, base * upper
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		State:       e.State(),
		Scale:       e.Scale(),
		Cached:      e.cache.Len(),
		Capacity:    e.cache.capacity,
		Outstanding: e.ledger.batches,
		Failures:    e.failures.Load(),
		Transition:  e.protect,
	}
	for id := e.cache.head; id != noHandle; id = e.cache.slots[id].next {
		if e.cache.slots[id].visible {
			s.Visible++
		}
	}
	e.mu.Unlock()

	s.Queued = e.sched.pending()
	e.backlogMu.Lock()
	s.Backlog = len(e.backlog)
	e.backlogMu.Unlock()
	return s
}

// Close waits for queued batches to finish and stops the render worker.
// Later calls fail with ErrClosed.
func (e *Engine) Close() {
	e.once.Do(func() {
		e.closed.Store(true)
		e.sched.close()
		e.cancel()

		e.backlogMu.Lock()
		for i := range e.backlog {
			e.backlog[i].Release()
		}
		e.backlog = nil
		e.backlogMu.Unlock()
		e.logger.Debug("engine closed")
	})
}
