package archive

import (
	"errors"
	"fmt"
	"math/bits"
)

// MaxZoom is the deepest zoom a 64 bit tile id can address.
const MaxZoom = 31

// ids at or above this value would need a zoom past MaxZoom
const invalidTileID uint64 = 0x5555555555555555

var errTileIDOverflow = errors.New("tile id exceeds 64-bit limit")

// lookup tables for the hilbert state machine, two bits per entry
const (
	encodeQuadrant = 0x361E9CB4
	encodeState    = 0x8FE65831
	decodeX        = 0x936C
	decodeY        = 0x39C6
	decodeState    = 0x3E6B94C1
)

// zoomPrefix counts the tiles of all zooms below z.
func zoomPrefix(z uint64) uint64 {
	return ((uint64(1) << (2 * z)) - 1) / 3
}

// ZXYToTileID maps tile coordinates onto their position along the
// hilbert curve of all zoom levels.
func ZXYToTileID(z, x, y uint64) (uint64, error) {
	if z > MaxZoom {
		return 0, fmt.Errorf("zoom %d exceeds limit of %d: %w", z, MaxZoom, errTileIDOverflow)
	}
	if x >= 1<<z || y >= 1<<z {
		return 0, fmt.Errorf("tile x/y (%d/%d) outside of bounds for zoom %d", x, y, z)
	}

	var state, code uint64
	for i := z; i > 0; i-- {
		shift := i - 1
		row := state<<3 | ((x>>shift)&1)<<2 | ((y>>shift)&1)<<1
		code = code<<2 | (encodeQuadrant>>row)&3
		state = (encodeState >> row) & 3
	}
	return zoomPrefix(z) + code, nil
}

// TileIDToZXY is the inverse of ZXYToTileID.
func TileIDToZXY(id uint64) (z, x, y uint64, err error) {
	if id >= invalidTileID {
		return 0, 0, 0, errTileIDOverflow
	}
	z = uint64((bits.Len64(3*id+1) - 1) / 2) //nolint:gosec
	code := id - zoomPrefix(z)

	var state uint64
	for i := 2 * z; i > 0; i -= 2 {
		row := state<<2 | (code>>(i-2))&3
		x = x<<1 | (decodeX>>row)&1
		y = y<<1 | (decodeY>>row)&1
		state = (decodeState >> (2 * row)) & 3
	}
	return z, x, y, nil
}
