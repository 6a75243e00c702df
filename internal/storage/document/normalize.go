package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yndnr/filekv/internal/kverr"
)

// Normalize converts v into the generic tree used by Document:
// map[string]any, []any, string, float64, bool and nil.
//
// Values of other types are converted through their JSON representation, so
// structs, typed maps and integers are stored the same way they are read back
// after a reload. Integers that a float64 cannot hold exactly fail with
// ErrUnsupportedValue.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case json.Number:
		return number(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, kverr.ErrUnsupportedValue.WithDetails(fmt.Sprintf("non-finite number %v", t))
		}
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, kverr.ErrUnsupportedValue.Wrapf(err, "%T", v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, kverr.ErrUnsupportedValue.Wrapf(err, "%T", v)
	}
	return Normalize(out)
}

// number converts a JSON number literal to float64.
func number(n json.Number) (float64, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, kverr.ErrUnsupportedValue.Wrapf(err, "number %s", n)
	}
	lit := n.String()
	if !strings.ContainsAny(lit, ".eE") && strconv.FormatFloat(f, 'f', -1, 64) != lit {
		return 0, kverr.ErrUnsupportedValue.WithDetails(fmt.Sprintf("integer %s is not exactly representable", lit))
	}
	return f, nil
}

// clone deep-copies a normalized value.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = clone(child)
		}
		return out
	default:
		return t
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}
