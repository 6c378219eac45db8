package archive

import (
	"context"
	"encoding/json"
	"fmt"
)

// Metadata is the JSON document stored next to the header. Keys beyond
// the common ones are kept in Extra.
type Metadata struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Attribution string         `json:"attribution,omitempty"`
	Type        string         `json:"type,omitempty"`
	Version     string         `json:"version,omitempty"`
	Format      string         `json:"format,omitempty"`
	Extra       map[string]any `json:"-"`
}

// ReadMetadata reads and decodes the metadata section. An archive without
// metadata yields the zero value.
func ReadMetadata(ctx context.Context, h HeaderV3, r RangeReader, decompress DecompressFunc) (Metadata, error) {
	var m Metadata
	if h.MetadataLength == 0 {
		return m, nil
	}
	data, err := readAll(ctx, r, NewRange(h.MetadataOffset, h.MetadataLength))
	if err != nil {
		return m, fmt.Errorf("reading metadata: %w", err)
	}
	raw, err := decompressAll(data, h.InternalCompression, decompress)
	if err != nil {
		return m, fmt.Errorf("decompressing metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &m.Extra); err != nil {
		return m, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	for _, k := range []string{"name", "description", "attribution", "type", "version", "format"} {
		delete(m.Extra, k)
	}
	return m, nil
}

func (m Metadata) String() string {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return `{"error": "failed to marshal Metadata"}`
	}
	return string(b)
}
