package archive

import (
	"encoding/json"
)

type TileType uint8

const (
	TileTypeUnknown TileType = iota
	TileTypeMVT
	TileTypePNG
	TileTypeJPEG
	TileTypeWebp
	TileTypeAvif
)

var tileTypeOptions = map[TileType]struct {
	name        string
	contentType string
}{
	TileTypeUnknown: {"unknown", "application/octet-stream"},
	TileTypeMVT:     {"mvt", "application/vnd.mapbox-vector-tile"},
	TileTypePNG:     {"png", "image/png"},
	TileTypeJPEG:    {"jpeg", "image/jpeg"},
	TileTypeWebp:    {"webp", "image/webp"},
	TileTypeAvif:    {"avif", "image/avif"},
}

func (t TileType) String() string {
	if o, ok := tileTypeOptions[t]; ok {
		return o.name
	}
	return tileTypeOptions[TileTypeUnknown].name
}

func (t TileType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// ContentType is the MIME type of the raw tile bytes.
func (t TileType) ContentType() string {
	if o, ok := tileTypeOptions[t]; ok {
		return o.contentType
	}
	return tileTypeOptions[TileTypeUnknown].contentType
}

// Raster reports whether tiles of this type decode into pixels.
func (t TileType) Raster() bool {
	switch t {
	case TileTypePNG, TileTypeJPEG, TileTypeWebp:
		return true
	default:
		return false
	}
}
