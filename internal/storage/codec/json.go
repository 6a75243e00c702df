package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON encodes documents as JSON objects.
type JSON struct {
	// Indent, when set, pretty-prints the document with this indent string.
	Indent string
}

// Name returns "json".
func (JSON) Name() string { return NameJSON }

// Encode serializes doc. Map keys are written in sorted order.
func (c JSON) Encode(doc map[string]any) ([]byte, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	if c.Indent != "" {
		return json.MarshalIndent(doc, "", c.Indent)
	}
	return json.Marshal(doc)
}

// Decode parses a JSON object. Numbers are returned as json.Number so that
// no precision is lost before the document validates them.
func (JSON) Decode(data []byte) (map[string]any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("codec: json: trailing data after document")
	}
	if v == nil {
		return nil, fmt.Errorf("codec: json: document is null")
	}
	return rootMapping(v)
}
