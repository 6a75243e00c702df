package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/yndnr/filekv/pkg/filekv"
)

// docSizes are the leaf counts benchmarked for whole-document operations.
var docSizes = []int{10, 1000, 10000}

// quietLogger drops store logs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleDoc builds a document with n leaves spread over n/10 sections.
func sampleDoc(n int) map[string]any {
	doc := make(map[string]any)
	for i := 0; i < n; i++ {
		section := fmt.Sprintf("section%d", i/10)
		m, ok := doc[section].(map[string]any)
		if !ok {
			m = make(map[string]any)
			doc[section] = m
		}
		m[fmt.Sprintf("key%d", i%10)] = map[string]any{
			"name":    fmt.Sprintf("value-%d", i),
			"count":   float64(i),
			"enabled": i%2 == 0,
		}
	}
	return doc
}

// openStore opens a store in a fresh directory.
func openStore(b *testing.B) *filekv.Store {
	b.Helper()
	cfg := filekv.DefaultConfig(filepath.Join(b.TempDir(), "bench.json"))
	cfg.Logger = quietLogger()
	s, err := filekv.New(cfg)
	if err != nil {
		b.Fatalf("filekv.New() error = %v", err)
	}
	b.Cleanup(func() { s.Close() })
	return s
}
