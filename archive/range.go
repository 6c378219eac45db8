package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInvalidRange is returned for byte ranges of zero length.
var ErrInvalidRange = errors.New("invalid range")

// Ranger is a byte range inside an archive.
type Ranger interface {
	Offset() uint64
	Length() uint64
	Validate() error
}

// Range is an offset and length pair.
type Range [2]uint64

func NewRange(offset, length uint64) Range {
	return Range{offset, length}
}

func (r Range) Offset() uint64 {
	return r[0]
}

func (r Range) Length() uint64 {
	return r[1]
}

func (r Range) Validate() error {
	if r.Length() == 0 {
		return fmt.Errorf("%w: length must be a positive integer", ErrInvalidRange)
	}
	return nil
}

// RangeReader reads byte ranges of an archive. The caller closes the
// returned reader.
type RangeReader interface {
	ReadRange(ctx context.Context, r Ranger) (io.ReadCloser, error)
}

// NewRangeReader opens the archive the URI points at.
func NewRangeReader(uri string) (RangeReader, error) {
	u, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	switch u.scheme {
	case FileScheme:
		return NewFileRangeReader(u.FullPath())
	default:
		return nil, fmt.Errorf("no range reader for scheme %q", u.Scheme())
	}
}

// FileRangeReader reads ranges from a local file.
type FileRangeReader struct {
	file *os.File
}

func NewFileRangeReader(path string) (*FileRangeReader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening file at path %s: %w", path, err)
	}
	return &FileRangeReader{file: f}, nil
}

// ReadRange returns a reader over the range. A range running past the end
// of the file is cut short.
func (f *FileRangeReader) ReadRange(ctx context.Context, r Ranger) (io.ReadCloser, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sr := io.NewSectionReader(f.file, int64(r.Offset()), int64(r.Length())) //nolint:gosec
	return io.NopCloser(sr), nil
}

func (f *FileRangeReader) Close() error {
	return f.file.Close()
}

// BytesRangeReader serves ranges from an archive held in memory.
type BytesRangeReader []byte

func (b BytesRangeReader) ReadRange(ctx context.Context, r Ranger) (io.ReadCloser, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := uint64(len(b))
	start := min(r.Offset(), size)
	end := min(r.Offset()+r.Length(), size)
	return io.NopCloser(bytes.NewReader(b[start:end])), nil
}

// readAll reads a whole range into memory.
func readAll(ctx context.Context, rr RangeReader, r Ranger) ([]byte, error) {
	rc, err := rr.ReadRange(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("reading range %d+%d: %w", r.Offset(), r.Length(), err)
	}
	data, err := io.ReadAll(rc)
	return data, errors.Join(err, rc.Close())
}
