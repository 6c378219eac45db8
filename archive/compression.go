package archive

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Compression is the codec of archive directories, metadata or tiles.
type Compression uint8

const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionGZIP
	CompressionBrotli
	CompressionZstd
)

var compressionOptions = map[Compression]string{
	CompressionUnknown: "unknown",
	CompressionNone:    "none",
	CompressionGZIP:    "gzip",
	CompressionBrotli:  "brotli",
	CompressionZstd:    "zstd",
}

func (c Compression) String() string {
	if s, ok := compressionOptions[c]; ok {
		return s
	}
	return compressionOptions[CompressionUnknown]
}

func (c Compression) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// DecompressFunc wraps r with the decoder for compression. The caller
// closes the returned reader.
type DecompressFunc = func(r io.Reader, compression Compression) (io.ReadCloser, error)

var gzPool = sync.Pool{New: func() any { return new(gzip.Reader) }}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error {
	return rc.close()
}

func newGZIPReader(r io.Reader) (io.ReadCloser, error) {
	zr, _ := gzPool.Get().(*gzip.Reader) //nolint:errcheck
	if err := zr.Reset(r); err != nil {
		gzPool.Put(zr)
		return nil, err
	}
	return readCloser{Reader: zr, close: func() error {
		err := zr.Close()
		gzPool.Put(zr)
		return err
	}}, nil
}

// Decompress is the default DecompressFunc. Unknown codecs pass the data
// through unchanged.
func Decompress(r io.Reader, compression Compression) (io.ReadCloser, error) {
	switch compression {
	case CompressionNone, CompressionUnknown:
		return io.NopCloser(r), nil
	case CompressionGZIP:
		rc, err := newGZIPReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return rc, nil
	case CompressionBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %v", compression)
	}
}

// decompressAll reads data through decompress and returns the decoded
// bytes.
func decompressAll(data []byte, compression Compression, decompress DecompressFunc) ([]byte, error) {
	rc, err := decompress(bytes.NewReader(data), compression)
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(rc)
	return out, errors.Join(err, rc.Close())
}
