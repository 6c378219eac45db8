package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadEntries(t *testing.T) {
	tests := []struct {
		name     string
		data     func() []byte
		expected []Entry
		wantErr  bool
	}{
		{
			name: "offsets continue the previous entry",
			data: func() []byte {
				var buf bytes.Buffer
				putUvarint(&buf, 2)
				putUvarint(&buf, 3)
				putUvarint(&buf, 1)
				putUvarint(&buf, 2)
				putUvarint(&buf, 1)
				putUvarint(&buf, 100)
				putUvarint(&buf, 50)
				putUvarint(&buf, 500)
				putUvarint(&buf, 0)
				return buf.Bytes()
			},
			expected: []Entry{
				{TileID: 3, RunLength: 2, Length: 100, Offset: 499},
				{TileID: 4, RunLength: 1, Length: 50, Offset: 599},
			},
		},
		{
			name: "round trip",
			data: func() []byte {
				return encodeEntries([]Entry{
					{TileID: 1, RunLength: 1, Length: 10, Offset: 0},
					{TileID: 7, RunLength: 0, Length: 30, Offset: 90},
				})
			},
			expected: []Entry{
				{TileID: 1, RunLength: 1, Length: 10, Offset: 0},
				{TileID: 7, RunLength: 0, Length: 30, Offset: 90},
			},
		},
		{
			name: "truncated",
			data: func() []byte {
				var buf bytes.Buffer
				putUvarint(&buf, 2)
				putUvarint(&buf, 1)
				return buf.Bytes()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readEntries(bufio.NewReader(bytes.NewReader(tt.data())))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("entries mismatch (-want+got):\n%v", diff)
			}
		})
	}
}

func TestDirectoryFindTile(t *testing.T) {
	d := &Directory{entries: []Entry{
		{TileID: 5, RunLength: 3},
		{TileID: 10, RunLength: 0, Offset: 7},
		{TileID: 40, RunLength: 1},
	}}

	tests := []struct {
		id       uint64
		expected uint64
		found    bool
	}{
		{id: 4},
		{id: 5, expected: 5, found: true},
		{id: 7, expected: 5, found: true},
		{id: 8},
		{id: 25, expected: 10, found: true},
		{id: 40, expected: 40, found: true},
		{id: 41},
	}
	for _, tt := range tests {
		e, ok := d.FindTile(tt.id)
		if ok != tt.found || (ok && e.TileID != tt.expected) {
			t.Errorf("FindTile(%d) = %+v, %v; expected entry %d, %v", tt.id, e, ok, tt.expected, tt.found)
		}
	}
}

type countingReader struct {
	RangeReader
	reads atomic.Int64
}

func (c *countingReader) ReadRange(ctx context.Context, r Ranger) (io.ReadCloser, error) {
	c.reads.Add(1)
	return c.RangeReader.ReadRange(ctx, r)
}

type failingReader struct{}

func (failingReader) ReadRange(context.Context, Ranger) (io.ReadCloser, error) {
	return nil, errors.New("read failed")
}

func TestRepositoryDirectoryAt(t *testing.T) {
	dir := encodeEntries([]Entry{{TileID: 1, RunLength: 2, Length: 100, Offset: 0}})
	r := NewRange(0, uint64(len(dir)))
	h := HeaderV3{Etag: "etag1337", InternalCompression: CompressionNone}

	repo, err := NewRepository()
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	defer repo.Close()

	reader := &countingReader{RangeReader: BytesRangeReader(dir)}
	got, err := repo.DirectoryAt(t.Context(), h, reader, r, Decompress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 1 || got.Key() != "etag1337:0:"+strconv.Itoa(len(dir)) {
		t.Fatalf("unexpected directory %q with %d entries", got.Key(), got.Len())
	}

	// sets are applied asynchronously
	repo.cache.Wait()
	if _, err := repo.DirectoryAt(t.Context(), h, reader, r, Decompress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := reader.reads.Load(); n != 1 {
		t.Errorf("directory read %d times, expected 1", n)
	}

	other := h
	other.Etag = "another-archive"
	if _, err := repo.DirectoryAt(t.Context(), other, reader, r, Decompress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := reader.reads.Load(); n != 2 {
		t.Errorf("directory of another archive served from cache")
	}
}

func TestRepositoryErrors(t *testing.T) {
	repo, err := NewRepository()
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	defer repo.Close()

	h := HeaderV3{Etag: "etag", InternalCompression: CompressionNone}
	if _, err := repo.DirectoryAt(t.Context(), h, failingReader{}, NewRange(0, 10), Decompress); err == nil {
		t.Error("expected read error")
	}

	badDecompress := func(io.Reader, Compression) (io.ReadCloser, error) {
		return nil, errors.New("failed to decompress")
	}
	dir := BytesRangeReader(encodeEntries(nil))
	if _, err := repo.DirectoryAt(t.Context(), h, dir, NewRange(0, 1), badDecompress); err == nil {
		t.Error("expected decompression error")
	}
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		etag     string
		nums     []uint64
		expected string
	}{
		{etag: "abc123", nums: []uint64{10, 512, 1024}, expected: "abc123:10:512:1024"},
		{etag: "test", nums: []uint64{0, 0, 0}, expected: "test:0:0:0"},
		{etag: "", nums: []uint64{5, 10}, expected: ":5:10"},
		{etag: "etag-with-dashes_and_underscores.123", nums: []uint64{15}, expected: "etag-with-dashes_and_underscores.123:15"},
	}
	for _, tt := range tests {
		if got := buildKey(tt.etag, tt.nums...); got != tt.expected {
			t.Errorf("buildKey(%q, %v) = %q, expected %q", tt.etag, tt.nums, got, tt.expected)
		}
	}
}

func BenchmarkReadEntries(b *testing.B) {
	entries := make([]Entry, 10_000)
	var offset uint64
	for i := range entries {
		entries[i] = Entry{TileID: uint64(i * 3), RunLength: 1, Length: 512, Offset: offset}
		offset += 512
	}
	data := encodeEntries(entries)

	b.ResetTimer()
	for b.Loop() {
		_, _ = readEntries(bytes.NewReader(data))
	}
}
