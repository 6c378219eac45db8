package archive

import (
	"bytes"
	"cmp"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"slices"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type zxy struct {
	z    uint8
	x, y uint64
}

// testArchive describes an archive to build in memory.
type testArchive struct {
	tileType    TileType
	internal    Compression
	tileComp    Compression
	minZoom     uint8
	maxZoom     uint8
	metadata    map[string]any
	tiles       map[zxy][]byte
	leafEntries int // split the directory into leaves of this many entries
}

func compress(t *testing.T, data []byte, c Compression) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch c {
	case CompressionGZIP:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("gzip: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("gzip: %v", err)
		}
	case CompressionBrotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("brotli: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("brotli: %v", err)
		}
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	default:
		return data
	}
	return buf.Bytes()
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func encodeEntries(entries []Entry) []byte {
	var buf bytes.Buffer
	putUvarint(&buf, uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		putUvarint(&buf, e.TileID-last)
		last = e.TileID
	}
	for _, e := range entries {
		putUvarint(&buf, uint64(e.RunLength))
	}
	for _, e := range entries {
		putUvarint(&buf, e.Length)
	}
	for i, e := range entries {
		if i > 0 && e.Offset == entries[i-1].Offset+entries[i-1].Length {
			putUvarint(&buf, 0)
			continue
		}
		putUvarint(&buf, e.Offset+1)
	}
	return buf.Bytes()
}

func encodeHeader(h HeaderV3) []byte {
	b := make([]byte, HeaderSizeBytes)
	copy(b, headerMagic)
	b[7] = h.SpecVersion
	le := binary.LittleEndian
	for i, v := range []uint64{
		h.RootOffset, h.RootLength,
		h.MetadataOffset, h.MetadataLength,
		h.LeafDirectoryOffset, h.LeafDirectoryLength,
		h.TileDataOffset, h.TileDataLength,
		h.AddressedTilesCount, h.TileEntriesCount, h.TileContentsCount,
	} {
		le.PutUint64(b[8+i*8:], v)
	}
	if h.Clustered {
		b[96] = 1
	}
	b[97] = byte(h.InternalCompression)
	b[98] = byte(h.TileCompression)
	b[99] = byte(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	le.PutUint32(b[102:], uint32(h.MinLonE7))
	le.PutUint32(b[106:], uint32(h.MinLatE7))
	le.PutUint32(b[110:], uint32(h.MaxLonE7))
	le.PutUint32(b[114:], uint32(h.MaxLatE7))
	b[118] = h.CenterZoom
	le.PutUint32(b[119:], uint32(h.CenterLonE7))
	le.PutUint32(b[123:], uint32(h.CenterLatE7))
	return b
}

// build lays the archive out as header, root directory, metadata, leaf
// directories and tile data.
func (a testArchive) build(t *testing.T) []byte {
	t.Helper()

	var data bytes.Buffer
	entries := make([]Entry, 0, len(a.tiles))
	for k := range a.tiles {
		id, err := ZXYToTileID(uint64(k.z), k.x, k.y)
		if err != nil {
			t.Fatalf("tile id of %v: %v", k, err)
		}
		entries = append(entries, Entry{TileID: id, RunLength: 1})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.TileID, b.TileID) })
	for i := range entries {
		z, x, y, _ := TileIDToZXY(entries[i].TileID)
		body := compress(t, a.tiles[zxy{uint8(z), x, y}], a.tileComp)
		entries[i].Offset = uint64(data.Len())
		entries[i].Length = uint64(len(body))
		data.Write(body)
	}

	root := entries
	var leaves bytes.Buffer
	if a.leafEntries > 0 {
		root = nil
		for chunk := range slices.Chunk(entries, a.leafEntries) {
			leaf := compress(t, encodeEntries(chunk), a.internal)
			root = append(root, Entry{TileID: chunk[0].TileID, Offset: uint64(leaves.Len()), Length: uint64(len(leaf))})
			leaves.Write(leaf)
		}
	}
	rootBytes := compress(t, encodeEntries(root), a.internal)

	meta := []byte("{}")
	if a.metadata != nil {
		var err error
		if meta, err = json.Marshal(a.metadata); err != nil {
			t.Fatalf("metadata: %v", err)
		}
	}
	meta = compress(t, meta, a.internal)

	h := HeaderV3{
		SpecVersion:         headerVersion,
		RootOffset:          HeaderSizeBytes,
		RootLength:          uint64(len(rootBytes)),
		InternalCompression: a.internal,
		TileCompression:     a.tileComp,
		TileType:            a.tileType,
		MinZoom:             a.minZoom,
		MaxZoom:             a.maxZoom,
		AddressedTilesCount: uint64(len(entries)),
		TileEntriesCount:    uint64(len(entries)),
		TileContentsCount:   uint64(len(entries)),
		Clustered:           true,
	}
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(meta))
	h.LeafDirectoryOffset = h.MetadataOffset + h.MetadataLength
	h.LeafDirectoryLength = uint64(leaves.Len())
	h.TileDataOffset = h.LeafDirectoryOffset + h.LeafDirectoryLength
	h.TileDataLength = uint64(data.Len())

	var out bytes.Buffer
	out.Write(encodeHeader(h))
	out.Write(rootBytes)
	out.Write(meta)
	out.Write(leaves.Bytes())
	out.Write(data.Bytes())
	return out.Bytes()
}

func solidPNG(t *testing.T, size int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func openTestSource(t *testing.T, a testArchive, opts ...SourceConfigOption) *Source {
	t.Helper()
	src, err := NewSource(t.Context(), BytesRangeReader(a.build(t)), opts...)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}
