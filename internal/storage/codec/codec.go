// Package codec encodes filekv documents to bytes and back.
//
// A codec is the only component that knows the on-disk representation of a
// document. JSON is the default; YAML and the encrypting Sealed wrapper are
// interchangeable with it as long as the same codec reads what it wrote.
package codec

import (
	"fmt"
	"strings"
)

// Codec converts a document tree to its encoded form and back.
type Codec interface {
	// Name identifies the codec ("json", "yaml", "sealed+json", ...).
	Name() string

	// Encode serializes the whole document.
	Encode(doc map[string]any) ([]byte, error)

	// Decode parses an encoded document. The root must be a mapping.
	Decode(data []byte) (map[string]any, error)
}

// Codec names accepted by ByName.
const (
	NameJSON = "json"
	NameYAML = "yaml"
)

// Default returns the codec used when none is configured.
func Default() Codec {
	return JSON{}
}

// ByName returns the plain codec with the given name.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", NameJSON:
		return JSON{}, nil
	case NameYAML, "yml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// rootMapping checks that a decoded value is a document root.
func rootMapping(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("codec: document root is %T, want a mapping", v)
	}
}
