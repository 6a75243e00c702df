package codec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML encodes documents as YAML mappings.
type YAML struct{}

// Name returns "yaml".
func (YAML) Name() string { return NameYAML }

// Encode serializes doc.
func (YAML) Encode(doc map[string]any) ([]byte, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	return yaml.Marshal(doc)
}

// Decode parses a YAML mapping. An empty input decodes to an empty document.
func (YAML) Decode(data []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("codec: yaml: %w", err)
	}
	return rootMapping(v)
}
