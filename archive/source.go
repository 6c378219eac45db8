// Package archive reads tiles from PMTiles v3 archives and renders raster
// tiles for the mosaic engine.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/brunomvsouza/singleflight"
)

// ZoomRange is an inclusive range of zoom levels.
type ZoomRange [2]uint8

func NewZoomRange(minZoom, maxZoom uint8) ZoomRange {
	return ZoomRange{minZoom, maxZoom}
}

func (zr ZoomRange) MinZoom() uint8 {
	return zr[0]
}

func (zr ZoomRange) MaxZoom() uint8 {
	return zr[1]
}

func (zr ZoomRange) Contains(z uint8) bool {
	return z >= zr[0] && z <= zr[1]
}

func (zr ZoomRange) Validate() error {
	if zr[0] > zr[1] {
		return fmt.Errorf("min zoom %d cannot be bigger than max zoom %d", zr[0], zr[1])
	}
	return nil
}

// SourceConfig holds customization options for a Source.
type SourceConfig struct {
	decompress DecompressFunc
	repoOpts   []RistrettoCacheOption
	// zooms whose concurrent tile reads are collapsed
	singleflight ZoomRange
}

type SourceConfigOption = func(config *SourceConfig)

// WithCustomDecompressFunc replaces the decompression of directories,
// metadata and tiles.
func WithCustomDecompressFunc(fn DecompressFunc) SourceConfigOption {
	return func(config *SourceConfig) {
		config.decompress = fn
	}
}

// WithSingleflightZooms sets the zoom levels whose concurrent reads of the
// same tile share one read.
func WithSingleflightZooms(zr ZoomRange) SourceConfigOption {
	return func(config *SourceConfig) {
		config.singleflight = zr
	}
}

func WithRepositoryOptions(opts ...RistrettoCacheOption) SourceConfigOption {
	return func(config *SourceConfig) {
		config.repoOpts = append(config.repoOpts, opts...)
	}
}

// Source reads tiles from one archive.
type Source struct {
	reader     RangeReader
	header     HeaderV3
	meta       Metadata
	config     *SourceConfig
	repository *Repository
	group      singleflight.Group[string, []byte]
}

// Open opens the archive at uri.
func Open(ctx context.Context, uri string, options ...SourceConfigOption) (*Source, error) {
	reader, err := NewRangeReader(uri)
	if err != nil {
		return nil, err
	}
	s, err := NewSource(ctx, reader, options...)
	if err != nil {
		if c, ok := reader.(io.Closer); ok {
			err = errors.Join(err, c.Close())
		}
		return nil, err
	}
	return s, nil
}

// NewSource reads the header and metadata through reader.
func NewSource(ctx context.Context, reader RangeReader, options ...SourceConfigOption) (*Source, error) {
	config := &SourceConfig{
		decompress:   Decompress,
		singleflight: NewZoomRange(0, MaxZoom),
	}
	for _, o := range options {
		o(config)
	}
	if err := config.singleflight.Validate(); err != nil {
		return nil, fmt.Errorf("singleflight zooms: %w", err)
	}

	header, err := ReadHeader(ctx, reader)
	if err != nil {
		return nil, err
	}
	meta, err := ReadMetadata(ctx, header, reader, config.decompress)
	if err != nil {
		return nil, err
	}
	repo, err := NewRepository(config.repoOpts...)
	if err != nil {
		return nil, err
	}

	return &Source{
		reader:     reader,
		header:     header,
		meta:       meta,
		config:     config,
		repository: repo,
	}, nil
}

// Tile returns the decompressed bytes of tile z/x/y in XYZ order. Tiles
// the archive does not hold fail with ErrTileNotFound.
func (s *Source) Tile(ctx context.Context, z uint8, x, y uint64) ([]byte, error) {
	if z < s.header.MinZoom || z > s.header.MaxZoom {
		return nil, fmt.Errorf(
			"invalid zoom: %d for allowed range of %d to %d",
			z, s.header.MinZoom, s.header.MaxZoom,
		)
	}
	if !s.config.singleflight.Contains(z) {
		return s.readTile(ctx, z, x, y)
	}

	key := buildKey(s.header.Etag, uint64(z), x, y)
	data, err, _ := s.group.Do(key, func() ([]byte, error) {
		return s.readTile(ctx, z, x, y)
	})
	return data, err
}

func (s *Source) readTile(ctx context.Context, z uint8, x, y uint64) ([]byte, error) {
	id, err := ZXYToTileID(uint64(z), x, y)
	if err != nil {
		return nil, err
	}
	e, err := s.repository.Locate(ctx, s.header, s.reader, s.config.decompress, id)
	if err != nil {
		return nil, fmt.Errorf("tile %d/%d/%d: %w", z, x, y, err)
	}
	data, err := readAll(ctx, s.reader, NewRange(s.header.TileDataOffset+e.Offset, e.Length))
	if err != nil {
		return nil, fmt.Errorf("tile %d/%d/%d: %w", z, x, y, err)
	}
	out, err := decompressAll(data, s.header.TileCompression, s.config.decompress)
	if err != nil {
		return nil, fmt.Errorf("decompressing tile %d/%d/%d: %w", z, x, y, err)
	}
	return out, nil
}

func (s *Source) Header() HeaderV3 {
	return s.header
}

func (s *Source) Meta() Metadata {
	return s.meta
}

// Close releases the directory cache and the underlying reader.
func (s *Source) Close() error {
	s.repository.Close()
	if c, ok := s.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
