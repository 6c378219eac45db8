package archive

import (
	"fmt"

	"github.com/iwpnd/mosaic"
)

// maxCatalogZoom is the deepest zoom whose tile grid fits a mosaic.TileID.
const maxCatalogZoom = 16

// Catalog derives one scale per zoom level of the archive. Scale 0 is the
// archive's max zoom; each following scale halves the resolution.
func Catalog(h HeaderV3) (mosaic.StaticCatalog, error) {
	if h.MaxZoom > maxCatalogZoom {
		return nil, fmt.Errorf("%w: max zoom %d exceeds %d", mosaic.ErrInvalidCatalog, h.MaxZoom, maxCatalogZoom)
	}
	descs := make([]mosaic.ScaleDescriptor, 0, h.Zooms())
	for z := int(h.MaxZoom); z >= int(h.MinZoom); z-- {
		last := int32(1)<<z - 1
		descs = append(descs, mosaic.ScaleDescriptor{
			ScaleFactor: float64(uint64(1) << (int(h.MaxZoom) - z)),
			MaxTileCol:  last,
			MaxTileRow:  last,
		})
	}
	return mosaic.NewStaticCatalog(descs...)
}

// ZoomOf returns the archive zoom level shown at scale.
func ZoomOf(h HeaderV3, scale int) int {
	return int(h.MaxZoom) - scale
}
