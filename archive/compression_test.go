package archive

import (
	"bytes"
	"io"
	"testing"
)

func TestDecompress(t *testing.T) {
	input := []byte("tile bytes, tile bytes, tile bytes")

	tests := []struct {
		name        string
		compression Compression
		expectError bool
	}{
		{name: "none", compression: CompressionNone},
		{name: "unknown", compression: CompressionUnknown},
		{name: "gzip", compression: CompressionGZIP},
		{name: "brotli", compression: CompressionBrotli},
		{name: "zstd", compression: CompressionZstd},
		{name: "unsupported", compression: Compression(42), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := Decompress(bytes.NewReader(compress(t, input, tt.compression)), tt.compression)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("reading decompressed data: %v", err)
			}
			if err := rc.Close(); err != nil {
				t.Fatalf("closing: %v", err)
			}
			if !bytes.Equal(out, input) {
				t.Errorf("got %q, expected %q", out, input)
			}
		})
	}
}

func TestDecompressInvalidGZIP(t *testing.T) {
	if _, err := Decompress(bytes.NewReader([]byte("not gzip")), CompressionGZIP); err == nil {
		t.Fatal("expected error for invalid gzip stream")
	}
}

func TestCompressionString(t *testing.T) {
	if got := CompressionZstd.String(); got != "zstd" {
		t.Errorf("String() = %q, expected zstd", got)
	}
	if got := Compression(42).String(); got != "unknown" {
		t.Errorf("String() = %q, expected unknown", got)
	}
}
