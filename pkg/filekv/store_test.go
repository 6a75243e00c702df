package filekv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/filekv/internal/kverr"
	"github.com/yndnr/filekv/internal/storage/codec"
	"github.com/yndnr/filekv/internal/storage/persist"
)

func testConfig(path string) Config {
	cfg := DefaultConfig(path)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func drain(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func fileContent(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/tmp/db.json")

	if cfg.Path != "/tmp/db.json" {
		t.Errorf("Path = %s", cfg.Path)
	}
	if cfg.Codec.Name() != codec.NameJSON {
		t.Errorf("Codec = %s, want json", cfg.Codec.Name())
	}
	if cfg.FileMode != 0600 || cfg.DirMode != 0750 {
		t.Errorf("modes = %v/%v", cfg.FileMode, cfg.DirMode)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, kverr.ErrConfig) {
		t.Fatalf("New() error = %v, want ErrConfig", err)
	}

	_, err = Load("", nil)
	if !errors.Is(err, kverr.ErrConfig) {
		t.Fatalf("Load() error = %v, want ErrConfig", err)
	}
}

func TestNew_RejectsNegativeInterval(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "db"))
	cfg.MinFlushInterval = -time.Second
	if _, err := New(cfg); !errors.Is(err, kverr.ErrConfig) {
		t.Fatalf("New() error = %v, want ErrConfig", err)
	}
}

func TestStore_PutRemoveMirroredOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "db.json")
	s := openStore(t, testConfig(path))

	if err := s.Put("x.y", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	drain(t, s)
	if got := fileContent(t, path); got != `{"x":{"y":1}}` {
		t.Errorf("file = %s, want {\"x\":{\"y\":1}}", got)
	}

	if err := s.Remove("x.y"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	drain(t, s)
	if got := fileContent(t, path); got != `{"x":{}}` {
		t.Errorf("file = %s, want {\"x\":{}}", got)
	}

	for _, suffix := range []string{persist.TempSuffix, persist.BackupSuffix} {
		if _, err := os.Stat(path + suffix); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s left behind (err = %v)", suffix, err)
		}
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("Stat(dir): %v", err)
	}
	if !info.IsDir() {
		t.Error("parent is not a directory")
	}
}

func TestStore_ReopenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	values := map[string]any{
		"a":         "text",
		"b.c":       2.5,
		"b.d":       true,
		"list":      []any{1, "two", nil},
		"deep.er.x": nil,
	}

	s, err := New(testConfig(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for k, v := range values {
		if err := s.Put(k, v); err != nil {
			t.Fatalf("Put(%s) error = %v", k, err)
		}
	}
	want := s.Snapshot()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := openStore(t, testConfig(path))
	if got := reopened.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("reopened = %v, want %v", got, want)
	}
	v, ok, err := reopened.Get("b.c")
	if err != nil || !ok || v != 2.5 {
		t.Errorf("Get(b.c) = (%v, %v, %v)", v, ok, err)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, want) {
		t.Errorf("Load() = %v, want %v", loaded, want)
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := New(testConfig(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 100; i++ {
		if err := s.Put("counter", i); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded["counter"] != float64(99) {
		t.Errorf("counter = %v, want 99", loaded["counter"])
	}
	if st := s.Stats(); st.Pending() != 0 || st.Scheduled != 100 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := openStore(t, testConfig(path))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				key := string(rune('a'+g)) + "." + string(rune('a'+i))
				if err := s.Put(key, i); err != nil {
					t.Errorf("Put(%s) error = %v", key, err)
				}
			}
		}(g)
	}
	wg.Wait()
	drain(t, s)

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, s.Snapshot()) {
		t.Error("file does not match the in-memory document")
	}
	if got := len(s.Keys()); got != 100 {
		t.Errorf("len(Keys()) = %d, want 100", got)
	}
}

func TestStore_PathConflict(t *testing.T) {
	s := openStore(t, testConfig(filepath.Join(t.TempDir(), "db.json")))

	if err := s.Put("very.nested", 10); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, _, err := s.Get("very.nested.object.key"); !errors.Is(err, kverr.ErrPathConflict) {
		t.Errorf("Get() error = %v, want ErrPathConflict", err)
	}
	if v, ok := s.Lookup("very.nested.object.key"); ok || v != nil {
		t.Errorf("Lookup() = (%v, %v), want absent", v, ok)
	}
	if err := s.Put("very.nested.object.key", 1); !errors.Is(err, kverr.ErrPathConflict) {
		t.Errorf("Put() error = %v, want ErrPathConflict", err)
	}
	if err := s.Put("", 1); !errors.Is(err, kverr.ErrInvalidKey) {
		t.Errorf("Put(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestNew_DecodeError(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not json"},
		{"empty", ""},
		{"array root", "[1,2]"},
		{"scalar root", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "db.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := New(testConfig(path)); !errors.Is(err, kverr.ErrDecode) {
				t.Errorf("New() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestNew_RecoversFromBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	backup := persist.BackupPath(path)
	if err := os.WriteFile(backup, []byte(`{"a":{"b":1}}`), 0600); err != nil {
		t.Fatal(err)
	}
	// A half-written temp file from the same interrupted cycle.
	if err := os.WriteFile(persist.TempPath(path), []byte(`{"a":`), 0600); err != nil {
		t.Fatal(err)
	}

	s := openStore(t, testConfig(path))
	v, ok, err := s.Get("a.b")
	if err != nil || !ok || v != float64(1) {
		t.Fatalf("Get(a.b) = (%v, %v, %v)", v, ok, err)
	}

	// The backup is back under the committed name before any cycle runs.
	if got := fileContent(t, path); got != `{"a":{"b":1}}` {
		t.Errorf("file = %s", got)
	}
	if _, err := os.Stat(backup); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("backup still present (err = %v)", err)
	}

	if err := s.Put("a.c", 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	drain(t, s)
	report, err := persist.Inspect(nil, path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !report.Clean() {
		t.Errorf("report = %+v, want clean", report)
	}
}

func TestNew_RecoveredDocumentSurvivesFailedCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(persist.BackupPath(path), []byte(`{"keep":"me"}`), 0600); err != nil {
		t.Fatal(err)
	}

	ffs := &failingFS{}
	ffs.arm()
	cfg := testConfig(path)
	cfg.FS = ffs
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Put("other", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); !kverr.IsFatal(err) {
		t.Fatalf("Close() error = %v, want persistence failure", err)
	}

	reopened := openStore(t, testConfig(path))
	if v, ok := reopened.Lookup("keep"); !ok || v != "me" {
		t.Errorf("Lookup(keep) = (%v, %v), want me", v, ok)
	}
}

func TestNew_InexactIntegerInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte(`{"id":9007199254740993}`), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := New(testConfig(path))
	if !errors.Is(err, kverr.ErrDecode) || !errors.Is(err, kverr.ErrUnsupportedValue) {
		t.Errorf("New() error = %v, want ErrDecode caused by ErrUnsupportedValue", err)
	}
}

func TestNew_CommittedFileWinsOverLeftovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	for name, content := range map[string]string{
		path:                     `{"v":"committed"}`,
		persist.TempPath(path):   `{"v":"temp"}`,
		persist.BackupPath(path): `{"v":"backup"}`,
	} {
		if err := os.WriteFile(name, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	s := openStore(t, testConfig(path))
	if v, _ := s.Lookup("v"); v != "committed" {
		t.Errorf("v = %v, want committed", v)
	}
}

// failingFS fails every file creation once armed.
type failingFS struct {
	persist.OS
	armed bool
	mu    sync.Mutex
}

func (f *failingFS) arm() {
	f.mu.Lock()
	f.armed = true
	f.mu.Unlock()
}

func (f *failingFS) OpenFile(name string, flag int, perm fs.FileMode) (persist.File, error) {
	f.mu.Lock()
	armed := f.armed
	f.mu.Unlock()
	if armed {
		return nil, &fs.PathError{Op: "open", Path: name, Err: errors.New("disk full")}
	}
	return f.OS.OpenFile(name, flag, perm)
}

func TestStore_PersistenceFailureHaltsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	ffs := &failingFS{}
	fatal := make(chan error, 1)

	cfg := testConfig(path)
	cfg.FS = ffs
	cfg.OnFatal = func(err error) { fatal <- err }
	s := openStore(t, cfg)

	if err := s.Put("a", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	drain(t, s)

	ffs.arm()
	if err := s.Put("a", 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Drain(context.Background()); !kverr.IsFatal(err) {
		t.Fatalf("Drain() error = %v, want persistence failure", err)
	}

	select {
	case err := <-fatal:
		if !kverr.IsFatal(err) {
			t.Errorf("OnFatal(%v)", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnFatal not called")
	}
	select {
	case err := <-s.Errors():
		if !kverr.IsFatal(err) {
			t.Errorf("Errors() delivered %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error on Errors()")
	}

	if err := s.Put("a", 3); !kverr.IsFatal(err) {
		t.Errorf("Put() after failure = %v, want persistence failure", err)
	}
	if err := s.Remove("a"); !kverr.IsFatal(err) {
		t.Errorf("Remove() after failure = %v, want persistence failure", err)
	}
	if s.Err() == nil {
		t.Error("Err() = nil")
	}

	// Reads keep working on the last accepted state.
	if v, _ := s.Lookup("a"); v != float64(2) {
		t.Errorf("a = %v, want 2", v)
	}
	// The previous commit survives as the backup.
	if got := fileContent(t, persist.BackupPath(path)); got != `{"a":1}` {
		t.Errorf("backup = %s", got)
	}
}

func TestStore_CloseFromOnFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	ffs := &failingFS{}
	ffs.arm()
	closed := make(chan error, 1)

	var s *Store
	cfg := testConfig(path)
	cfg.FS = ffs
	cfg.OnFatal = func(error) { closed <- s.Close() }
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Put("a", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	select {
	case err := <-closed:
		if !kverr.IsFatal(err) {
			t.Errorf("Close() = %v, want persistence failure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close from OnFatal did not return")
	}
}

func TestStore_RemoveMissingSchedulesCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := openStore(t, testConfig(path))

	if err := s.Put("a.b", 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	drain(t, s)
	before := s.Stats()

	if err := s.Remove("missing.key"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := s.Stats().Scheduled; got != before.Scheduled+1 {
		t.Errorf("Scheduled = %d, want %d", got, before.Scheduled+1)
	}
	drain(t, s)

	if got := fileContent(t, path); got != `{"a":{"b":1}}` {
		t.Errorf("file = %s, want unchanged", got)
	}
	if st := s.Stats(); st.Completed != st.Scheduled {
		t.Errorf("stats = %+v", st)
	}
}

func TestStore_CloseDuringWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := New(testConfig(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const writers, perWriter = 4, 500
	accepted := make([][]bool, writers)
	var wg sync.WaitGroup
	for g := 0; g < writers; g++ {
		accepted[g] = make([]bool, perWriter)
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := s.Put(fmt.Sprintf("w%d.k%d", g, i), i)
				if errors.Is(err, kverr.ErrClosed) {
					continue
				}
				if err != nil {
					t.Errorf("Put() error = %v", err)
					return
				}
				accepted[g][i] = true
			}
		}(g)
	}

	time.Sleep(time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for g := 0; g < writers; g++ {
		group, _ := loaded[fmt.Sprintf("w%d", g)].(map[string]any)
		for i, ok := range accepted[g] {
			key := fmt.Sprintf("w%d.k%d", g, i)
			_, onDisk := group[fmt.Sprintf("k%d", i)]
			if ok && !onDisk {
				t.Errorf("%s accepted but not persisted", key)
			}
			if _, inMemory := s.Lookup(key); !ok && inMemory {
				t.Errorf("%s refused but applied in memory", key)
			}
		}
	}
}

func TestStore_Closed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := New(testConfig(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Put("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := s.Put("k", "w"); !errors.Is(err, kverr.ErrClosed) {
		t.Errorf("Put() after Close = %v, want ErrClosed", err)
	}
	if v, ok := s.Lookup("k"); !ok || v != "v" {
		t.Errorf("Lookup() after Close = (%v, %v)", v, ok)
	}
}

func TestStore_YAMLCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.yaml")
	cfg := testConfig(path)
	cfg.Codec = codec.YAML{}
	s := openStore(t, cfg)

	if err := s.Put("server.port", 8080); err != nil {
		t.Fatal(err)
	}
	drain(t, s)

	var got map[string]any
	if err := yaml.Unmarshal([]byte(fileContent(t, path)), &got); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	server, _ := got["server"].(map[string]any)
	if server["port"] != 8080 {
		t.Errorf("server.port = %v (%T)", server["port"], server["port"])
	}

	loaded, err := Load(path, codec.YAML{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, s.Snapshot()) {
		t.Errorf("Load() = %v, want %v", loaded, s.Snapshot())
	}
}

func TestStore_SealedCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sealed")
	sealed, err := codec.NewSealed(codec.JSON{}, "correct horse battery staple")
	if err != nil {
		t.Fatalf("NewSealed() error = %v", err)
	}
	cfg := testConfig(path)
	cfg.Codec = sealed
	s := openStore(t, cfg)

	if err := s.Put("secret.token", "hunter2"); err != nil {
		t.Fatal(err)
	}
	drain(t, s)

	if raw := fileContent(t, path); bytes.Contains([]byte(raw), []byte("hunter2")) {
		t.Error("sealed file contains plaintext")
	}

	loaded, err := Load(path, sealed)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	secret, _ := loaded["secret"].(map[string]any)
	if secret["token"] != "hunter2" {
		t.Errorf("secret.token = %v", secret["token"])
	}

	other, _ := codec.NewSealed(codec.JSON{}, "wrong")
	if _, err := Load(path, other); !errors.Is(err, kverr.ErrDecode) {
		t.Errorf("Load() with wrong passphrase = %v, want ErrDecode", err)
	}
}

func TestStore_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig(filepath.Join(t.TempDir(), "db.json"))
	cfg.Registerer = reg
	s := openStore(t, cfg)

	if err := s.Put("a", 1); err != nil {
		t.Fatal(err)
	}
	drain(t, s)

	n, err := testutil.GatherAndCount(reg, "filekv_persist_cycles_total", "filekv_persist_scheduled_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("series = %d, want 2", n)
	}

	// A second store on the same registry and path collides.
	if _, err := New(cfg); err == nil {
		t.Error("New() with duplicate metrics succeeded")
	}
}
