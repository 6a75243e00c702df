package document

import (
	"strings"

	"github.com/yndnr/filekv/internal/kverr"
)

// Separator delimits path segments in a key.
const Separator = "."

// Path is a key split into its segments. It always has at least one segment.
type Path []string

// ParsePath splits a dot-delimited key into a Path.
//
// Empty keys and keys with empty segments ("a..b", ".a", "a.") are rejected
// with kverr.ErrInvalidKey.
func ParsePath(key string) (Path, error) {
	if key == "" {
		return nil, kverr.ErrInvalidKey.WithDetails("key is empty")
	}
	segments := strings.Split(key, Separator)
	for _, seg := range segments {
		if seg == "" {
			return nil, kverr.ErrInvalidKey.WithDetails("empty segment in " + key)
		}
	}
	return Path(segments), nil
}

// String joins the path back into its dot-delimited form.
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Prefix returns the dot-joined first n segments.
func (p Path) Prefix(n int) string {
	return strings.Join(p[:n], Separator)
}

// Parent returns all segments but the last.
func (p Path) Parent() Path {
	return p[:len(p)-1]
}

// Last returns the final segment.
func (p Path) Last() string {
	return p[len(p)-1]
}
