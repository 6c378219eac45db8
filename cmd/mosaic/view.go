package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/iwpnd/mosaic"
	"github.com/iwpnd/mosaic/archive"
)

// syntheticCatalog stands in for an archive: four scales, each half the
// resolution of the one before.
func syntheticCatalog() (mosaic.StaticCatalog, error) {
	return mosaic.NewStaticCatalog(
		mosaic.ScaleDescriptor{ScaleFactor: 1, MaxTileCol: 63, MaxTileRow: 63},
		mosaic.ScaleDescriptor{ScaleFactor: 2, MaxTileCol: 31, MaxTileRow: 31},
		mosaic.ScaleDescriptor{ScaleFactor: 4, MaxTileCol: 15, MaxTileRow: 15},
		mosaic.ScaleDescriptor{ScaleFactor: 8, MaxTileCol: 7, MaxTileRow: 7},
	)
}

// view bundles the scale catalog and renderer an engine is built from.
// Without an archive the engine draws placeholder tiles.
type view struct {
	catalog  mosaic.ScaleCatalog
	renderer mosaic.Renderer
	src      *archive.Source
}

func openView(ctx context.Context, input string, tileSize int) (*view, error) {
	if input == "" {
		catalog, err := syntheticCatalog()
		if err != nil {
			return nil, err
		}
		return &view{catalog: catalog}, nil
	}

	src, err := archive.Open(ctx, input)
	if err != nil {
		return nil, err
	}
	catalog, err := archive.Catalog(src.Header())
	if err != nil {
		return nil, errors.Join(err, src.Close())
	}
	r, err := archive.NewRenderer(src, archive.WithTileSize(tileSize))
	if err != nil {
		return nil, errors.Join(err, src.Close())
	}
	return &view{catalog: catalog, renderer: r, src: src}, nil
}

// center is the middle of the map at scale, in map pixels.
func (v *view) center(scale, tileSize int) (float64, float64) {
	d := v.catalog.Describe(scale)
	return float64(d.MaxTileCol+1) * float64(tileSize) / 2, float64(d.MaxTileRow+1) * float64(tileSize) / 2
}

func (v *view) Close() error {
	if v.src == nil {
		return nil
	}
	return v.src.Close()
}

func newLogger(verbose, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
