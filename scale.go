package mosaic

import (
	"encoding/json"
	"errors"
	"fmt"
)

// maxTileIndex is the largest column or row a TileID can carry.
const maxTileIndex = 0xffff

// ErrInvalidCatalog is returned when scale descriptors cannot form a catalog.
var ErrInvalidCatalog = errors.New("invalid scale catalog")

// ScaleDescriptor describes the tile grid of one discrete scale.
type ScaleDescriptor struct {
	ScaleFactor float64 `json:"scale_factor"`
	MaxTileCol  int32   `json:"max_tile_col"`
	MaxTileRow  int32   `json:"max_tile_row"`
}

// Bounds returns the full tile range of the scale.
func (d ScaleDescriptor) Bounds() Range {
	return Range{MinCol: 0, MaxCol: d.MaxTileCol, MinRow: 0, MaxRow: d.MaxTileRow}
}

func (d ScaleDescriptor) String() string {
	jsonBytes, err := json.Marshal(d)
	if err != nil {
		return `{"error": "failed to marshal ScaleDescriptor"}`
	}
	return string(jsonBytes)
}

// ScaleCatalog is the read-only set of scales a map is available at.
// Index 0 is the most detailed scale.
type ScaleCatalog interface {
	Len() int
	Describe(idx int) ScaleDescriptor
}

// StaticCatalog is a slice backed ScaleCatalog.
type StaticCatalog []ScaleDescriptor

// NewStaticCatalog validates descs and returns them as a catalog. Scale
// factors must be positive and strictly increasing from the most detailed
// scale to the least detailed one.
func NewStaticCatalog(descs ...ScaleDescriptor) (StaticCatalog, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: no scales", ErrInvalidCatalog)
	}
	for i, d := range descs {
		if d.ScaleFactor <= 0 {
			return nil, fmt.Errorf("%w: scale %d has non-positive factor %v", ErrInvalidCatalog, i, d.ScaleFactor)
		}
		if d.MaxTileCol < 0 || d.MaxTileRow < 0 || d.MaxTileCol > maxTileIndex || d.MaxTileRow > maxTileIndex {
			return nil, fmt.Errorf(
				"%w: scale %d tile grid %dx%d outside of 0..%d",
				ErrInvalidCatalog, i, d.MaxTileCol, d.MaxTileRow, maxTileIndex,
			)
		}
		if i > 0 && d.ScaleFactor <= descs[i-1].ScaleFactor {
			return nil, fmt.Errorf(
				"%w: scale %d factor %v must be larger than scale %d factor %v",
				ErrInvalidCatalog, i, d.ScaleFactor, i-1, descs[i-1].ScaleFactor,
			)
		}
	}
	c := make(StaticCatalog, len(descs))
	copy(c, descs)
	return c, nil
}

func (c StaticCatalog) Len() int {
	return len(c)
}

// Describe returns the descriptor at idx, clamping idx into the catalog.
func (c StaticCatalog) Describe(idx int) ScaleDescriptor {
	return c[clampScale(c, idx)]
}

// Ratio returns scale[from] / scale[to]. Multiplying a map coordinate of
// scale from by the ratio yields the same point in scale to.
func Ratio(c ScaleCatalog, from, to int) float64 {
	return c.Describe(from).ScaleFactor / c.Describe(to).ScaleFactor
}

func clampScale(c ScaleCatalog, idx int) int {
	return max(0, min(idx, c.Len()-1))
}
