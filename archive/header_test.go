package archive

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeHeader(t *testing.T) {
	valid := HeaderV3{
		SpecVersion:     3,
		RootOffset:      127,
		RootLength:      42,
		TileDataOffset:  4096,
		TileType:        TileTypePNG,
		TileCompression: CompressionNone,
		MinZoom:         2,
		MaxZoom:         12,
		MinLonE7:        -1800000000,
		CenterLatE7:     525000000,
	}

	tests := []struct {
		name    string
		modify  func([]byte) []byte
		wantErr bool
	}{
		{name: "valid header"},
		{
			name: "invalid magic",
			modify: func(b []byte) []byte {
				copy(b, "Invalid")
				return b
			},
			wantErr: true,
		},
		{
			name: "unsupported version",
			modify: func(b []byte) []byte {
				b[7] = 2
				return b
			},
			wantErr: true,
		},
		{
			name:    "truncated",
			modify:  func(b []byte) []byte { return b[:10] },
			wantErr: true,
		},
		{
			name: "min zoom above max zoom",
			modify: func(b []byte) []byte {
				b[100] = 13
				return b
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := encodeHeader(valid)
			if tt.modify != nil {
				b = tt.modify(b)
			}
			h, err := DecodeHeader(b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error: %v, got: %v", tt.wantErr, err)
			}
			if err == nil && h != valid {
				t.Errorf("decoded %+v, expected %+v", h, valid)
			}
		})
	}
}

func TestDecodeHeaderMagic(t *testing.T) {
	b := encodeHeader(HeaderV3{SpecVersion: 3})
	copy(b, "MBTiles")
	if _, err := DecodeHeader(b); !errors.Is(err, ErrNotArchive) {
		t.Fatalf("expected ErrNotArchive, got %v", err)
	}
}

func TestReadHeaderAssignsEtag(t *testing.T) {
	data := testArchive{tileType: TileTypePNG, maxZoom: 1}.build(t)

	a, err := ReadHeader(t.Context(), BytesRangeReader(data))
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	b, err := ReadHeader(t.Context(), BytesRangeReader(data))
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	if a.Etag == "" || a.Etag == b.Etag {
		t.Errorf("expected distinct etags per opened archive, got %q and %q", a.Etag, b.Etag)
	}
	if a.Zooms() != 2 {
		t.Errorf("Zooms() = %d, expected 2", a.Zooms())
	}
}

func TestHeaderString(t *testing.T) {
	h := HeaderV3{
		SpecVersion:     3,
		TileCompression: CompressionGZIP,
		TileType:        TileTypeMVT,
	}
	out := h.String()
	for _, want := range []string{`"spec_version": 3`, `"tile_compression": "gzip"`, `"tile_type": "mvt"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}
