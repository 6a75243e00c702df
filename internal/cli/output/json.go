package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as JSON. HTML characters in values are written
// as is.
type JSONFormatter struct {
	// Compact writes each value on a single line, as in JSON Lines.
	Compact bool
}

// Format writes data followed by a newline.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if !f.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}
