package mosaic

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mosaic"

// metrics are always populated so the engine never checks for nil; they
// are only exported when a registerer is configured.
type metrics struct {
	batches        *prometheus.CounterVec
	dedup          *prometheus.CounterVec
	tilesRendered  prometheus.Counter
	tilesEvicted   prometheus.Counter
	renderFailures prometheus.Counter
	transitions    *prometheus.CounterVec
	cacheSize      prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batches_total",
			Help:      "Render batches executed by the worker, by issuing mode.",
		}, []string{"mode"}),
		dedup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dedup_total",
			Help:      "Outcomes of tile list deduplication.",
		}, []string{"status"}),
		tilesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tiles_rendered_total",
			Help:      "Tiles rendered into the cache.",
		}),
		tilesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tiles_evicted_total",
			Help:      "Tile handles evicted or trimmed from the cache.",
		}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "render_failures_total",
			Help:      "Tiles replaced by a placeholder after exhausting render retries.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "Scale transitions, by outcome.",
		}, []string{"outcome"}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cache_tiles",
			Help:      "Tile handles held by the cache, including reserved ones.",
		}),
	}
}

// register exports the metrics on reg. Engines sharing a registerer share
// the collectors registered first.
func (m *metrics) register(reg prometheus.Registerer) error {
	var err error
	if m.batches, err = registerOrReuse(reg, m.batches); err != nil {
		return err
	}
	if m.dedup, err = registerOrReuse(reg, m.dedup); err != nil {
		return err
	}
	if m.tilesRendered, err = registerOrReuse(reg, m.tilesRendered); err != nil {
		return err
	}
	if m.tilesEvicted, err = registerOrReuse(reg, m.tilesEvicted); err != nil {
		return err
	}
	if m.renderFailures, err = registerOrReuse(reg, m.renderFailures); err != nil {
		return err
	}
	if m.transitions, err = registerOrReuse(reg, m.transitions); err != nil {
		return err
	}
	if m.cacheSize, err = registerOrReuse(reg, m.cacheSize); err != nil {
		return err
	}
	return nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("registering metrics: %w", err)
}

func batchMode(flush bool) string {
	if flush {
		return "async"
	}
	return "sync"
}
