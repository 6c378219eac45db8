package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iwpnd/mosaic"
	"github.com/iwpnd/mosaic/archive"
)

type serveCmd struct {
	inputPath string
	addr      string
	width     float64
	height    float64
	tileSize  int
	abort     bool
	verbose   bool
}

func (c *serveCmd) Name() string     { return "serve" }
func (c *serveCmd) Synopsis() string { return "run a headless engine behind an HTTP API" }
func (c *serveCmd) Usage() string {
	return "mosaic serve [-i <path>] [-addr <host:port>] [-w <points> -h <points>]\n"
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input archive path, placeholder tiles if empty")
	f.StringVar(&c.addr, "addr", ":8080", "Listen address")
	f.Float64Var(&c.width, "w", mosaic.DefaultScreen.Width, "Screen width in points")
	f.Float64Var(&c.height, "h", mosaic.DefaultScreen.Height, "Screen height in points")
	f.IntVar(&c.tileSize, "tile", mosaic.DefaultTileSize, "Tile edge length in pixels")
	f.BoolVar(&c.abort, "abort", false, "Abort cross-fades once the view leaves the outgoing tiles")
	f.BoolVar(&c.verbose, "v", false, "Log engine internals")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	logger := newLogger(c.verbose, true)

	v, err := openView(ctx, c.inputPath, c.tileSize)
	if err != nil {
		log.Printf("opening view: %v", err)
		return subcommands.ExitFailure
	}
	defer v.Close()

	signals := newSignalLog(defaultSignalLogSize)
	e, err := mosaic.New(v.catalog, v.renderer,
		mosaic.WithScreen(c.width, c.height),
		mosaic.WithTileSize(c.tileSize),
		mosaic.WithTransitionAbort(c.abort),
		mosaic.WithLogger(logger),
		mosaic.WithRegisterer(prometheus.DefaultRegisterer),
		mosaic.WithSignalHandler(signals.add),
	)
	if err != nil {
		log.Printf("creating engine: %v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	app := newServer(&server{engine: e, src: v.src, signals: signals}, fiberprometheus.New("mosaic"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.Error("shutting down", slog.Any("error", err))
		}
	}()

	logger.Info("listening", slog.String("addr", c.addr), slog.Int("scales", v.catalog.Len()))
	if err := app.Listen(c.addr); err != nil {
		logger.Error("serving", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

const defaultSignalLogSize = 1024

// signalLog buffers engine signals until a client polls them. The oldest
// signals are dropped once it is full.
type signalLog struct {
	mu      sync.Mutex
	size    int
	signals []mosaic.Signal
	dropped int
}

func newSignalLog(size int) *signalLog {
	return &signalLog{size: size}
}

func (l *signalLog) add(s mosaic.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.signals) == l.size {
		l.signals = l.signals[1:]
		l.dropped++
	}
	l.signals = append(l.signals, s)
}

func (l *signalLog) take() ([]mosaic.Signal, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out, dropped := l.signals, l.dropped
	l.signals, l.dropped = nil, 0
	return out, dropped
}

type server struct {
	engine  *mosaic.Engine
	src     *archive.Source
	signals *signalLog
}

// placement is a rendered tile taken off the backlog, positioned inside
// the display surface of its scale.
type placement struct {
	Handle mosaic.HandleID `json:"handle"`
	Tile   mosaic.TileID   `json:"tile"`
	Scale  int             `json:"scale"`
	Batch  string          `json:"batch"`
	X      int             `json:"x"`
	Y      int             `json:"y"`
}

func newServer(s *server, prom *fiberprometheus.FiberPrometheus) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	if prom != nil {
		prom.RegisterAt(app, "/metrics")
		app.Use(prom.Middleware)
	}

	app.Post("/events", s.postEvent)
	app.Get("/stats", s.getStats)
	app.Get("/handles", s.getHandles)
	app.Get("/signals", s.getSignals)
	app.Get("/backlog", s.getBacklog)
	app.Get("/tiles/:scale/:col/:row", s.getTile)
	app.Get("/raw/:z/:x/:y", s.getRaw)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, mosaic.ErrNotReady):
		code = fiber.StatusConflict
	case errors.Is(err, mosaic.ErrClosed):
		code = fiber.StatusServiceUnavailable
	case errors.Is(err, archive.ErrTileNotFound):
		code = fiber.StatusNotFound
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *server) postEvent(c *fiber.Ctx) error {
	var ev mosaic.Event
	if err := c.BodyParser(&ev); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.engine.Handle(c.UserContext(), ev); err != nil {
		return err
	}
	return c.JSON(s.engine.Stats())
}

func (s *server) getStats(c *fiber.Ctx) error {
	return c.JSON(s.engine.Stats())
}

func (s *server) getHandles(c *fiber.Ctx) error {
	return c.JSON(s.engine.Handles())
}

func (s *server) getSignals(c *fiber.Ctx) error {
	signals, dropped := s.signals.take()
	if signals == nil {
		signals = []mosaic.Signal{}
	}
	return c.JSON(fiber.Map{"signals": signals, "dropped": dropped})
}

// getBacklog hands the positions of freshly rendered tiles to the client.
// The pixels are served by getTile.
func (s *server) getBacklog(c *fiber.Ctx) error {
	size := int(s.engine.Geometry().TileSize)
	catalog := s.engine.Catalog()

	results := s.engine.TakeBacklog()
	out := make([]placement, 0, len(results))
	for i := range results {
		r := &results[i]
		pos := r.Position(size, size, catalog.Describe(r.Scale).MaxTileRow)
		out = append(out, placement{
			Handle: r.Handle,
			Tile:   r.Tile,
			Scale:  r.Scale,
			Batch:  r.Batch,
			X:      pos.X,
			Y:      pos.Y,
		})
		r.Release()
	}
	return c.JSON(out)
}

func (s *server) getTile(c *fiber.Ctx) error {
	scale, err := c.ParamsInt("scale")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid scale")
	}
	col, err := c.ParamsInt("col")
	if err != nil || col < 0 || col > 0xFFFF {
		return fiber.NewError(fiber.StatusBadRequest, "invalid column")
	}
	row, err := c.ParamsInt("row")
	if err != nil || row < 0 || row > 0xFFFF {
		return fiber.NewError(fiber.StatusBadRequest, "invalid row")
	}

	img, ok := s.engine.Surface(scale, mosaic.NewTileID(int32(col), int32(row)))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "tile not cached")
	}
	defer mosaic.PutRGBA(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}

func (s *server) getRaw(c *fiber.Ctx) error {
	if s.src == nil {
		return fiber.NewError(fiber.StatusNotFound, "no archive loaded")
	}
	z, err := c.ParamsInt("z")
	if err != nil || z < 0 || z > archive.MaxZoom {
		return fiber.NewError(fiber.StatusBadRequest, "invalid zoom")
	}
	x, err := c.ParamsInt("x")
	if err != nil || x < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid x")
	}
	y, err := c.ParamsInt("y")
	if err != nil || y < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid y")
	}

	data, err := s.src.Tile(c.UserContext(), uint8(z), uint64(x), uint64(y))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, s.src.Header().TileType.ContentType())
	return c.Send(data)
}
