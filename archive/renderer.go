package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/iwpnd/mosaic"
)

// ErrNotRaster is returned for archives whose tiles cannot be decoded
// into pixels, such as vector tiles.
var ErrNotRaster = errors.New("archive does not hold raster tiles")

var decoders = map[TileType]func(io.Reader) (image.Image, error){
	TileTypePNG:  png.Decode,
	TileTypeJPEG: jpeg.Decode,
	TileTypeWebp: webp.Decode,
}

// Renderer renders engine tiles from the raster tiles of an archive.
type Renderer struct {
	src    *Source
	size   int
	empty  color.RGBA
	scaler draw.Scaler
	decode func(io.Reader) (image.Image, error)
}

type RendererOption = func(r *Renderer)

// WithTileSize sets the edge length of rendered tiles. Archive tiles of a
// different size are rescaled.
func WithTileSize(px int) RendererOption {
	return func(r *Renderer) {
		r.size = px
	}
}

// WithEmptyColor sets the fill of tiles missing from the archive.
func WithEmptyColor(c color.RGBA) RendererOption {
	return func(r *Renderer) {
		r.empty = c
	}
}

func WithScaler(s draw.Scaler) RendererOption {
	return func(r *Renderer) {
		r.scaler = s
	}
}

func NewRenderer(src *Source, opts ...RendererOption) (*Renderer, error) {
	tt := src.Header().TileType
	decode, ok := decoders[tt]
	if !ok {
		return nil, fmt.Errorf("%w: tile type %s", ErrNotRaster, tt)
	}
	r := &Renderer{
		src:    src,
		size:   mosaic.DefaultTileSize,
		scaler: draw.ApproxBiLinear,
		decode: decode,
	}
	for _, o := range opts {
		o(r)
	}
	if r.size <= 0 {
		return nil, fmt.Errorf("invalid tile size %d", r.size)
	}
	return r, nil
}

// Render reads the archive tile behind an engine tile. Engine rows grow
// northwards, archive rows southwards.
func (r *Renderer) Render(ctx context.Context, tile mosaic.TileID, scale int) (*image.RGBA, error) {
	h := r.src.Header()
	z := ZoomOf(h, scale)
	if z < int(h.MinZoom) || z > int(h.MaxZoom) {
		return nil, fmt.Errorf("scale %d has no zoom level in the archive", scale)
	}
	n := uint64(1) << z
	x, row := uint64(tile.Col()), uint64(tile.Row()) //nolint:gosec
	if x >= n || row >= n {
		return nil, fmt.Errorf("tile %s outside of zoom %d", tile, z)
	}

	data, err := r.src.Tile(ctx, uint8(z), x, n-1-row) //nolint:gosec
	if errors.Is(err, ErrTileNotFound) {
		return r.blank(), nil
	}
	if err != nil {
		return nil, err
	}

	img, err := r.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding tile %d/%d/%d: %w", z, x, n-1-row, err)
	}

	dst := mosaic.GetRGBA(r.size, r.size)
	b := img.Bounds()
	if b.Dx() == r.size && b.Dy() == r.size {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		r.scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst, nil
}

func (r *Renderer) blank() *image.RGBA {
	dst := mosaic.GetRGBA(r.size, r.size)
	draw.Draw(dst, dst.Bounds(), &image.Uniform{r.empty}, image.Point{}, draw.Src)
	return dst
}
