package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"

	"github.com/iwpnd/mosaic"
)

type simulateCmd struct {
	inputPath string
	steps     int
	width     float64
	height    float64
	tileSize  int
	abort     bool
	verbose   bool
}

func (c *simulateCmd) Name() string     { return "simulate" }
func (c *simulateCmd) Synopsis() string { return "drive the engine through a scripted pan and pinch" }
func (c *simulateCmd) Usage() string {
	return "mosaic simulate [-i <path>] [-steps <n>] [-w <points> -h <points>]\n"
}
func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input archive path, placeholder tiles if empty")
	f.IntVar(&c.steps, "steps", 20, "Events per pan and pinch phase")
	f.Float64Var(&c.width, "w", mosaic.DefaultScreen.Width, "Screen width in points")
	f.Float64Var(&c.height, "h", mosaic.DefaultScreen.Height, "Screen height in points")
	f.IntVar(&c.tileSize, "tile", mosaic.DefaultTileSize, "Tile edge length in pixels")
	f.BoolVar(&c.abort, "abort", false, "Abort cross-fades once the view leaves the outgoing tiles")
	f.BoolVar(&c.verbose, "v", false, "Log engine internals")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	v, err := openView(ctx, c.inputPath, c.tileSize)
	if err != nil {
		log.Printf("opening view: %v", err)
		return subcommands.ExitFailure
	}
	defer v.Close()

	d := newDriver()
	e, err := mosaic.New(v.catalog, v.renderer,
		mosaic.WithScreen(c.width, c.height),
		mosaic.WithTileSize(c.tileSize),
		mosaic.WithInitialScale(1),
		mosaic.WithTransitionAbort(c.abort),
		mosaic.WithLogger(newLogger(c.verbose, false)),
		mosaic.WithSignalHandler(d.onSignal),
	)
	if err != nil {
		log.Printf("creating engine: %v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()
	d.engine = e

	cx, cy := v.center(e.Scale(), c.tileSize)
	script := d.script(cx, cy, c.steps)
	bar := progressbar.New(len(script))
	for _, step := range script {
		if err := step(ctx); err != nil {
			log.Printf("simulation failed: %v", err)
			return subcommands.ExitFailure
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.report()); err != nil {
		log.Printf("writing report: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// driver plays the UI side of the engine: it feeds events, follows the
// settled viewport after each pinch, completes fades and attaches the
// rendered backlog.
type driver struct {
	engine *mosaic.Engine

	mu       sync.Mutex
	signals  map[mosaic.SignalKind]int
	fading   bool
	settled  *mosaic.Signal
	attached int

	scale                  int
	centerX, centerY, zoom float64
}

func newDriver() *driver {
	return &driver{signals: make(map[mosaic.SignalKind]int)}
}

func (d *driver) onSignal(s mosaic.Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signals[s.Kind]++
	switch s.Kind {
	case mosaic.SignalTransitionStarted:
		d.fading = true
	case mosaic.SignalTransitionEnded:
		d.fading = false
	case mosaic.SignalGestureSettled:
		d.settled = &s
	}
}

type step func(ctx context.Context) error

// script pans east, pinches into the next detailed scale, pans north and
// pinches back out. It starts at cx, cy on the current scale.
func (d *driver) script(cx, cy float64, n int) []step {
	n = max(n, 1)
	d.scale = d.engine.Scale()
	d.centerX, d.centerY, d.zoom = cx, cy, 0.6

	out := []step{func(ctx context.Context) error {
		return d.send(ctx, mosaic.Event{Kind: mosaic.EventLayout, CenterX: d.centerX, CenterY: d.centerY, Zoom: d.zoom})
	}}
	out = append(out, d.pan(n, 32, 0)...)
	out = append(out, d.pinch(n, 1.0)...)
	out = append(out, d.pan(n, 0, -32)...)
	out = append(out, d.pinch(n, 0.3)...)
	return out
}

func (d *driver) pan(n int, dx, dy float64) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = func(ctx context.Context) error {
			d.centerX += dx
			d.centerY += dy
			ev := mosaic.Event{Kind: mosaic.EventViewportChanged, CenterX: d.centerX, CenterY: d.centerY, Zoom: d.zoom}
			return d.send(ctx, ev.OnScale(d.scale))
		}
	}
	return out
}

// pinch zooms around the view center from the current zoom to target in
// n updates, then ends the gesture.
func (d *driver) pinch(n int, target float64) []step {
	var from float64
	out := []step{func(ctx context.Context) error {
		from = d.zoom
		return d.send(ctx, mosaic.Event{Kind: mosaic.EventGestureBegin, FocalX: d.centerX, FocalY: d.centerY, Zoom: from})
	}}
	for i := 1; i <= n; i++ {
		out = append(out, func(ctx context.Context) error {
			z := from + (target-from)*float64(i)/float64(n)
			return d.send(ctx, mosaic.Event{Kind: mosaic.EventGestureChange, CenterX: d.centerX, CenterY: d.centerY, Zoom: z})
		})
	}
	return append(out, d.settle)
}

func (d *driver) settle(ctx context.Context) error {
	if err := d.send(ctx, mosaic.Event{Kind: mosaic.EventGestureEnd}); err != nil {
		return err
	}

	d.mu.Lock()
	if s := d.settled; s != nil {
		d.scale = s.Scale
		d.centerX, d.centerY, d.zoom = s.CenterX, s.CenterY, s.Zoom
		d.settled = nil
	}
	fading := d.fading
	d.mu.Unlock()

	if !fading {
		return nil
	}
	return d.send(ctx, mosaic.Event{Kind: mosaic.EventFadeComplete})
}

func (d *driver) send(ctx context.Context, ev mosaic.Event) error {
	if err := d.engine.Handle(ctx, ev); err != nil {
		return err
	}
	d.attach()
	return nil
}

// attach takes the rendered backlog as a display surface would.
func (d *driver) attach() {
	results := d.engine.TakeBacklog()
	for i := range results {
		results[i].Release()
	}
	d.mu.Lock()
	d.attached += len(results)
	d.mu.Unlock()
}

type report struct {
	Stats    mosaic.Stats   `json:"stats"`
	Signals  map[string]int `json:"signals"`
	Attached int            `json:"attached"`
}

func (d *driver) report() report {
	d.attach()
	d.mu.Lock()
	defer d.mu.Unlock()
	signals := make(map[string]int, len(d.signals))
	for k, n := range d.signals {
		signals[k.String()] = n
	}
	return report{Stats: d.engine.Stats(), Signals: signals, Attached: d.attached}
}
