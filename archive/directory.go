package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/brunomvsouza/singleflight"
	"github.com/dgraph-io/ristretto/v2"
)

const (
	DefaultRistrettoNumCounters = 10 * 500 * 1024
	// cost is counted in directory entries
	DefaultRistrettoMaxCost     = 1 << 20
	DefaultRistrettoBufferItems = 64

	// root, leaf, and one more level of leaves
	maxDirectoryDepth = 3
)

// ErrTileNotFound is returned for tiles the archive does not address.
var ErrTileNotFound = errors.New("tile not found")

// Entry addresses a run of tiles, or a leaf directory when RunLength is 0.
type Entry struct {
	TileID    uint64 `json:"tile_id"`
	Offset    uint64 `json:"offset"`
	Length    uint64 `json:"length"`
	RunLength uint32 `json:"run_length"`
}

// readEntries decodes the column oriented varint encoding of a directory.
func readEntries(br io.ByteReader) ([]Entry, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("reading entry count: %w", err)
	}
	entries := make([]Entry, n)

	var last uint64
	for i := range entries {
		delta, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading tile id delta at %d: %w", i, err)
		}
		last += delta
		entries[i].TileID = last
	}
	for i := range entries {
		rl, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading run length at %d: %w", i, err)
		}
		entries[i].RunLength = uint32(rl) //nolint:gosec
	}
	for i := range entries {
		length, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading length at %d: %w", i, err)
		}
		entries[i].Length = length
	}
	for i := range entries {
		offset, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("reading offset at %d: %w", i, err)
		}
		// 0 continues the previous entry, anything else is stored +1
		if offset == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + entries[i-1].Length
		} else {
			entries[i].Offset = offset - 1
		}
	}
	return entries, nil
}

// Directory is a decoded root or leaf directory.
type Directory struct {
	key     string
	entries []Entry
}

func (d *Directory) Key() string {
	return d.key
}

func (d *Directory) Len() int {
	return len(d.entries)
}

// FindTile returns the entry covering id: either the run holding the tile
// or the leaf directory to descend into.
func (d *Directory) FindTile(id uint64) (Entry, bool) {
	i := sort.Search(len(d.entries), func(i int) bool {
		return d.entries[i].TileID > id
	})
	if i == 0 {
		return Entry{}, false
	}
	e := d.entries[i-1]
	if e.RunLength == 0 || id < e.TileID+uint64(e.RunLength) {
		return e, true
	}
	return Entry{}, false
}

var keyBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 64)
		return &buf
	},
}

// buildKey joins an etag and numbers with colons.
func buildKey(etag string, nums ...uint64) string {
	bufPtr, _ := keyBufPool.Get().(*[]byte) //nolint:errcheck
	buf := (*bufPtr)[:0]
	defer func() {
		*bufPtr = buf
		keyBufPool.Put(bufPtr)
	}()

	buf = append(buf, etag...)
	for _, n := range nums {
		buf = append(buf, ':')
		buf = strconv.AppendUint(buf, n, 10)
	}
	return string(buf)
}

type RistrettoCacheOption = func(cfg *ristretto.Config[string, *Directory])

// WithMaxCachedEntries bounds the directory cache by the total number of
// entries held.
func WithMaxCachedEntries(n int64) RistrettoCacheOption {
	return func(cfg *ristretto.Config[string, *Directory]) {
		cfg.MaxCost = n
	}
}

// Repository caches decoded directories and collapses concurrent loads of
// the same directory into one read.
type Repository struct {
	cache *ristretto.Cache[string, *Directory]
	group singleflight.Group[string, *Directory]
}

func NewRepository(opts ...RistrettoCacheOption) (*Repository, error) {
	cfg := &ristretto.Config[string, *Directory]{
		NumCounters: DefaultRistrettoNumCounters,
		MaxCost:     DefaultRistrettoMaxCost,
		BufferItems: DefaultRistrettoBufferItems,
	}
	for _, o := range opts {
		o(cfg)
	}
	cache, err := ristretto.NewCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating directory cache: %w", err)
	}
	return &Repository{cache: cache}, nil
}

// DirectoryAt returns the directory stored at r.
func (d *Repository) DirectoryAt(
	ctx context.Context,
	h HeaderV3,
	reader RangeReader,
	r Ranger,
	decompress DecompressFunc,
) (*Directory, error) {
	key := buildKey(h.Etag, r.Offset(), r.Length())
	if dir, ok := d.cache.Get(key); ok {
		return dir, nil
	}

	dir, err, _ := d.group.Do(key, func() (*Directory, error) {
		data, err := readAll(ctx, reader, r)
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		raw, err := decompressAll(data, h.InternalCompression, decompress)
		if err != nil {
			return nil, fmt.Errorf("decompressing directory: %w", err)
		}
		entries, err := readEntries(bufio.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("decoding directory: %w", err)
		}
		dir := &Directory{key: key, entries: entries}
		// ristretto may drop the set; the next miss reloads
		d.cache.Set(key, dir, int64(max(1, len(entries))))
		return dir, nil
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// Locate walks from the root directory to the entry holding tile id.
func (d *Repository) Locate(
	ctx context.Context,
	h HeaderV3,
	reader RangeReader,
	decompress DecompressFunc,
	id uint64,
) (Entry, error) {
	r := NewRange(h.RootOffset, h.RootLength)
	for range maxDirectoryDepth {
		dir, err := d.DirectoryAt(ctx, h, reader, r, decompress)
		if err != nil {
			return Entry{}, err
		}
		e, ok := dir.FindTile(id)
		if !ok {
			return Entry{}, ErrTileNotFound
		}
		if e.RunLength > 0 {
			return e, nil
		}
		r = NewRange(h.LeafDirectoryOffset+e.Offset, e.Length)
	}
	return Entry{}, fmt.Errorf("locating tile %d: maximum directory depth exceeded", id)
}

func (d *Repository) Flush() {
	d.cache.Clear()
}

func (d *Repository) Close() {
	d.cache.Close()
}
