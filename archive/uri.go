package archive

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

type Scheme uint8

const (
	UnknownScheme Scheme = iota
	FileScheme
)

var _ fmt.Stringer = UnknownScheme

var schemeStrings = map[Scheme]string{
	FileScheme:    "file",
	UnknownScheme: "unknown",
}

func (s Scheme) String() string {
	return schemeStrings[s]
}

// URI is a parsed archive location.
type URI struct {
	host     string
	path     string
	fullPath string
	scheme   Scheme
}

func (u *URI) Host() string {
	return u.host
}

func (u *URI) Path() string {
	return u.path
}

// FullPath joins host and path into a local file path.
func (u *URI) FullPath() string {
	return u.fullPath
}

func (u *URI) Scheme() string {
	return u.scheme.String()
}

// ParseURI parses a local path or file URI. Remote schemes are rejected;
// archives are read from local storage only.
func ParseURI(raw string) (*URI, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("parsing URI: empty location")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing URI %q: %w", raw, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "", "file":
		return &URI{
			host:     u.Host,
			path:     u.Path,
			fullPath: filepath.FromSlash(filepath.Join(u.Host, u.Path)),
			scheme:   FileScheme,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported URI scheme %q", u.Scheme)
	}
}
