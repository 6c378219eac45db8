package mosaic

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Renderer produces the pixels of one tile. The engine takes ownership of
// the returned buffer; renderers should allocate it with GetRGBA.
type Renderer interface {
	Render(ctx context.Context, tile TileID, scale int) (*image.RGBA, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, tile TileID, scale int) (*image.RGBA, error)

func (f RendererFunc) Render(ctx context.Context, tile TileID, scale int) (*image.RGBA, error) {
	return f(ctx, tile, scale)
}

// RenderResult is a rendered tile waiting to be attached to the display
// surface of its scale. Pixels belongs to the receiver, who hands it back
// with Release.
type RenderResult struct {
	Handle HandleID
	Tile   TileID
	Scale  int
	Batch  string
	Pixels *image.RGBA
}

// Position returns the top left corner of the tile inside the surface of
// its scale. Row 0 is at the bottom.
func (r RenderResult) Position(tileW, tileH int, maxRow int32) image.Point {
	return image.Pt(int(r.Tile.Col())*tileW, int(maxRow-r.Tile.Row())*tileH)
}

// Release returns the pixel buffer to the shared pool.
func (r *RenderResult) Release() {
	PutRGBA(r.Pixels)
	r.Pixels = nil
}

var (
	placeholderBackground = color.RGBA{200, 220, 255, 255}
	placeholderBorder     = color.RGBA{100, 100, 100, 255}
	placeholderLabel      = color.RGBA{255, 255, 255, 220}
)

// PlaceholderRenderer draws a labelled tile of the given size. It stands in
// for a real renderer and for tiles a renderer failed to produce.
type PlaceholderRenderer struct {
	Width  int
	Height int
}

func NewPlaceholderRenderer(w, h int) *PlaceholderRenderer {
	return &PlaceholderRenderer{Width: w, Height: h}
}

func (p *PlaceholderRenderer) Render(_ context.Context, tile TileID, scale int) (*image.RGBA, error) {
	return p.draw(fmt.Sprintf("%d/%s", scale, tile), placeholderBackground), nil
}

func (p *PlaceholderRenderer) failed(tile TileID, scale int) *image.RGBA {
	return p.draw(fmt.Sprintf("%d/%s !", scale, tile), color.RGBA{240, 200, 200, 255})
}

func (p *PlaceholderRenderer) draw(text string, bg color.RGBA) *image.RGBA {
	w, h := p.Width, p.Height
	img := GetRGBA(w, h)
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	for _, r := range []image.Rectangle{
		image.Rect(0, 0, w, 1),
		image.Rect(0, h-1, w, h),
		image.Rect(0, 0, 1, h),
		image.Rect(w-1, 0, w, h),
	} {
		draw.Draw(img, r, &image.Uniform{placeholderBorder}, image.Point{}, draw.Src)
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	tw := d.MeasureString(text).Round()
	th := face.Metrics().Height.Round()
	pad := 6
	label := image.Rect((w-tw)/2-pad, (h-th)/2-pad, (w+tw)/2+pad, (h+th)/2+pad)
	draw.Draw(img, label, &image.Uniform{placeholderLabel}, image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{
		X: fixed.I((w - tw) / 2),
		Y: fixed.I((h+th)/2 - face.Metrics().Descent.Round()),
	}
	d.DrawString(text)
	return img
}
