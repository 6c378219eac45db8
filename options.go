package mosaic

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultTileSize       = 256
	DefaultMinZoom        = 0.35
	DefaultMaxZoom        = 3.0
	DefaultFadeDuration   = 250 * time.Millisecond
	DefaultHysteresis     = 0.01
	DefaultRenderRetries  = 2
	defaultBacklogPerSlot = 4
)

// DefaultScreen is the point size of the screen when none is configured.
var DefaultScreen = Size{Width: 375, Height: 667}

type config struct {
	screen          Size
	tileSize        int
	minZoom         float64
	maxZoom         float64
	capacity        int
	backlog         int
	logger          *slog.Logger
	registerer      prometheus.Registerer
	onSignal        SignalHandler
	projector       Projector
	abortTransition bool
	fade            time.Duration
	hysteresis      float64
	renderRetries   int
	initialScale    int
}

func defaultConfig() *config {
	return &config{
		screen:        DefaultScreen,
		tileSize:      DefaultTileSize,
		minZoom:       DefaultMinZoom,
		maxZoom:       DefaultMaxZoom,
		logger:        slog.New(slog.DiscardHandler),
		onSignal:      func(Signal) {},
		fade:          DefaultFadeDuration,
		hysteresis:    DefaultHysteresis,
		renderRetries: DefaultRenderRetries,
	}
}

// Option configures an Engine.
type Option = func(cfg *config)

// WithScreen sets the screen size in points.
func WithScreen(w, h float64) Option {
	return func(cfg *config) {
		cfg.screen = Size{Width: w, Height: h}
	}
}

// WithTileSize sets the edge length of a square tile in pixels.
func WithTileSize(px int) Option {
	return func(cfg *config) {
		cfg.tileSize = px
	}
}

// WithZoomLimits sets the smallest and largest zoom factor of a scale.
func WithZoomLimits(minZoom, maxZoom float64) Option {
	return func(cfg *config) {
		cfg.minZoom = minZoom
		cfg.maxZoom = maxZoom
	}
}

// WithCapacity overrides the cache capacity derived from the screen.
func WithCapacity(n int) Option {
	return func(cfg *config) {
		cfg.capacity = n
	}
}

// WithBacklog caps the number of rendered results waiting to be taken.
// The oldest results are dropped first.
func WithBacklog(n int) Option {
	return func(cfg *config) {
		cfg.backlog = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithRegisterer exports the engine metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.registerer = reg
	}
}

func WithSignalHandler(h SignalHandler) Option {
	return func(cfg *config) {
		if h != nil {
			cfg.onSignal = h
		}
	}
}

// WithProjector sets how focal points are carried across scales. The
// default is a LinearProjector over the engine's catalog.
func WithProjector(p Projector) Option {
	return func(cfg *config) {
		cfg.projector = p
	}
}

// WithTransitionAbort cuts a cross-fade short when the outgoing scale can
// no longer fill the screen.
func WithTransitionAbort(enabled bool) Option {
	return func(cfg *config) {
		cfg.abortTransition = enabled
	}
}

func WithFadeDuration(d time.Duration) Option {
	return func(cfg *config) {
		cfg.fade = d
	}
}

// WithHysteresis sets the relative band a zoom factor has to move past a
// swap threshold before the swap it just caused is reversed.
func WithHysteresis(h float64) Option {
	return func(cfg *config) {
		cfg.hysteresis = h
	}
}

// WithRenderRetries sets how often a failed render is retried before the
// tile is replaced by a placeholder.
func WithRenderRetries(n int) Option {
	return func(cfg *config) {
		cfg.renderRetries = max(0, n)
	}
}

func WithInitialScale(idx int) Option {
	return func(cfg *config) {
		cfg.initialScale = idx
	}
}
