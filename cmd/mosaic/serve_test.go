package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/iwpnd/mosaic"
)

func newTestServer(t *testing.T) (*fiber.App, *mosaic.Engine) {
	t.Helper()
	v, err := openView(t.Context(), "", mosaic.DefaultTileSize)
	if err != nil {
		t.Fatalf("opening view: %v", err)
	}
	signals := newSignalLog(defaultSignalLogSize)
	e, err := mosaic.New(v.catalog, v.renderer, mosaic.WithSignalHandler(signals.add))
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	t.Cleanup(e.Close)
	return newServer(&server{engine: e, signals: signals}, nil), e
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, b
}

func TestServerEvents(t *testing.T) {
	app, _ := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "before layout", body: `{"kind":"viewport_changed","center_x":10,"center_y":10}`, expected: fiber.StatusConflict},
		{name: "unknown kind", body: `{"kind":"spin"}`, expected: fiber.StatusBadRequest},
		{name: "layout", body: `{"kind":"layout","center_x":8192,"center_y":8192,"zoom":1}`, expected: fiber.StatusOK},
		{name: "stale scale", body: `{"kind":"viewport_changed","scale":3,"center_x":10,"center_y":10,"zoom":1}`, expected: fiber.StatusOK},
		{name: "pan", body: `{"kind":"viewport_changed","center_x":8400,"center_y":8192,"zoom":1}`, expected: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/events", tt.body)
			if resp.StatusCode != tt.expected {
				t.Fatalf("status %d, expected %d: %s", resp.StatusCode, tt.expected, body)
			}
		})
	}

	_, body := do(t, app, http.MethodGet, "/stats", "")
	var stats struct {
		State  string `json:"state"`
		Cached int    `json:"cached"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.State != mosaic.Ready.String() || stats.Cached == 0 {
		t.Errorf("unexpected stats %s", body)
	}
}

func TestServerTiles(t *testing.T) {
	app, e := newTestServer(t)
	if resp, body := do(t, app, http.MethodPost, "/events", `{"kind":"layout","center_x":8192,"center_y":8192,"zoom":1}`); resp.StatusCode != fiber.StatusOK {
		t.Fatalf("layout: %d %s", resp.StatusCode, body)
	}

	handles := e.Handles()
	if len(handles) == 0 {
		t.Fatal("expected cached tiles after layout")
	}
	h := handles[0]

	resp, body := do(t, app, http.MethodGet, fmt.Sprintf("/tiles/%d/%d/%d", h.Scale, h.Tile.Col(), h.Tile.Row()), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	img, err := png.Decode(strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("decoding tile: %v", err)
	}
	if got := img.Bounds().Dx(); got != mosaic.DefaultTileSize {
		t.Errorf("tile width %d, expected %d", got, mosaic.DefaultTileSize)
	}

	notFound := []string{
		"/tiles/0/0/0",
		"/raw/0/0/0",
	}
	for _, target := range notFound {
		if resp, _ := do(t, app, http.MethodGet, target, ""); resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("GET %s: status %d, expected 404", target, resp.StatusCode)
		}
	}
	if resp, _ := do(t, app, http.MethodGet, "/tiles/0/x/0", ""); resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status %d for an invalid column, expected 400", resp.StatusCode)
	}
}

func TestServerBacklogAndSignals(t *testing.T) {
	app, _ := newTestServer(t)
	do(t, app, http.MethodPost, "/events", `{"kind":"layout","center_x":8192,"center_y":8192,"zoom":1}`)

	var placements []placement
	deadline := time.Now().Add(5 * time.Second)
	for len(placements) == 0 && time.Now().Before(deadline) {
		_, body := do(t, app, http.MethodGet, "/backlog", "")
		if err := json.Unmarshal(body, &placements); err != nil {
			t.Fatalf("decoding backlog: %v", err)
		}
	}
	if len(placements) == 0 {
		t.Fatal("backlog stayed empty")
	}
	for _, p := range placements {
		if p.X%mosaic.DefaultTileSize != 0 || p.Y%mosaic.DefaultTileSize != 0 {
			t.Errorf("placement %+v off the tile grid", p)
		}
		if p.X != int(p.Tile.Col())*mosaic.DefaultTileSize {
			t.Errorf("placement %+v x does not match its column", p)
		}
	}

	var got struct {
		Signals []struct {
			Kind string `json:"kind"`
		} `json:"signals"`
	}
	for len(got.Signals) == 0 && time.Now().Before(deadline) {
		_, body := do(t, app, http.MethodGet, "/signals", "")
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("decoding signals: %v", err)
		}
	}
	if len(got.Signals) == 0 || got.Signals[0].Kind != "batch_ready" {
		t.Errorf("expected a batch_ready signal, got %+v", got.Signals)
	}
}

func TestSignalLogDropsOldest(t *testing.T) {
	l := newSignalLog(2)
	for i := range 3 {
		l.add(mosaic.Signal{Kind: mosaic.SignalBatchReady, Scale: i})
	}
	signals, dropped := l.take()
	if dropped != 1 || len(signals) != 2 || signals[0].Scale != 1 {
		t.Errorf("got %+v dropped %d", signals, dropped)
	}
	if signals, _ := l.take(); signals != nil {
		t.Errorf("expected an empty log after take, got %+v", signals)
	}
}
