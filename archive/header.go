package archive

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"
)

const (
	HeaderOffset    = 0
	HeaderSizeBytes = 127

	headerMagic   = "PMTiles"
	headerVersion = 3
)

// ErrNotArchive is returned when the header magic is missing.
var ErrNotArchive = errors.New("not a PMTiles archive")

// HeaderV3 is the fixed size header of a version 3 archive.
type HeaderV3 struct {
	Etag                string      `json:"etag"`
	SpecVersion         uint8       `json:"spec_version"`
	RootOffset          uint64      `json:"root_offset"`
	RootLength          uint64      `json:"root_length"`
	MetadataOffset      uint64      `json:"metadata_offset"`
	MetadataLength      uint64      `json:"metadata_length"`
	LeafDirectoryOffset uint64      `json:"leaf_directory_offset"`
	LeafDirectoryLength uint64      `json:"leaf_directory_length"`
	TileDataOffset      uint64      `json:"tile_data_offset"`
	TileDataLength      uint64      `json:"tile_data_length"`
	AddressedTilesCount uint64      `json:"addressed_tiles_count"`
	TileEntriesCount    uint64      `json:"tile_entries_count"`
	TileContentsCount   uint64      `json:"tile_contents_count"`
	Clustered           bool        `json:"clustered"`
	InternalCompression Compression `json:"internal_compression"`
	TileCompression     Compression `json:"tile_compression"`
	TileType            TileType    `json:"tile_type"`
	MinZoom             uint8       `json:"min_zoom"`
	MaxZoom             uint8       `json:"max_zoom"`
	MinLonE7            int32       `json:"min_lon_e7"`
	MinLatE7            int32       `json:"min_lat_e7"`
	MaxLonE7            int32       `json:"max_lon_e7"`
	MaxLatE7            int32       `json:"max_lat_e7"`
	CenterZoom          uint8       `json:"center_zoom"`
	CenterLonE7         int32       `json:"center_lon_e7"`
	CenterLatE7         int32       `json:"center_lat_e7"`
}

// ReadHeader reads and decodes the header. Archives carry no etag, so
// every opened archive gets a fresh one to key its cached directories.
func ReadHeader(ctx context.Context, r RangeReader) (HeaderV3, error) {
	b, err := readAll(ctx, r, NewRange(HeaderOffset, HeaderSizeBytes))
	if err != nil {
		return HeaderV3{}, fmt.Errorf("reading header: %w", err)
	}
	h, err := DecodeHeader(b)
	if err != nil {
		return HeaderV3{}, err
	}
	h.Etag = ksuid.New().String()
	return h, nil
}

// DecodeHeader decodes the 127 header bytes.
func DecodeHeader(b []byte) (HeaderV3, error) {
	var h HeaderV3
	if len(b) < HeaderSizeBytes {
		return h, fmt.Errorf("decoding header: got %d bytes, need %d", len(b), HeaderSizeBytes)
	}
	if string(b[0:7]) != headerMagic {
		return h, ErrNotArchive
	}
	if b[7] != headerVersion {
		return h, fmt.Errorf("decoding header: unsupported version %d", b[7])
	}
	h.SpecVersion = b[7]

	le := binary.LittleEndian
	for i, f := range []*uint64{
		&h.RootOffset, &h.RootLength,
		&h.MetadataOffset, &h.MetadataLength,
		&h.LeafDirectoryOffset, &h.LeafDirectoryLength,
		&h.TileDataOffset, &h.TileDataLength,
		&h.AddressedTilesCount, &h.TileEntriesCount, &h.TileContentsCount,
	} {
		*f = le.Uint64(b[8+i*8:])
	}

	h.Clustered = b[96] == 0x1
	h.InternalCompression = Compression(b[97])
	h.TileCompression = Compression(b[98])
	h.TileType = TileType(b[99])
	h.MinZoom = b[100]
	h.MaxZoom = b[101]
	h.MinLonE7 = int32(le.Uint32(b[102:])) //nolint:gosec
	h.MinLatE7 = int32(le.Uint32(b[106:])) //nolint:gosec
	h.MaxLonE7 = int32(le.Uint32(b[110:])) //nolint:gosec
	h.MaxLatE7 = int32(le.Uint32(b[114:])) //nolint:gosec
	h.CenterZoom = b[118]
	h.CenterLonE7 = int32(le.Uint32(b[119:])) //nolint:gosec
	h.CenterLatE7 = int32(le.Uint32(b[123:])) //nolint:gosec

	if h.MinZoom > h.MaxZoom {
		return h, fmt.Errorf("decoding header: min zoom %d above max zoom %d", h.MinZoom, h.MaxZoom)
	}
	return h, nil
}

// Zooms is the number of zoom levels in the archive.
func (h HeaderV3) Zooms() int {
	return int(h.MaxZoom) - int(h.MinZoom) + 1
}

func (h HeaderV3) String() string {
	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return `{"error": "failed to marshal HeaderV3"}`
	}
	return string(b)
}
