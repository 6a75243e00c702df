package filekv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/filekv/internal/kverr"
	"github.com/yndnr/filekv/internal/storage/codec"
	"github.com/yndnr/filekv/internal/storage/document"
	"github.com/yndnr/filekv/internal/storage/persist"
	"github.com/yndnr/filekv/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultFileMode fs.FileMode = persist.DefaultFilePerm
	DefaultDirMode  fs.FileMode = 0750
)

// Config configures a Store.
type Config struct {
	// Path is the document file. Required.
	Path string

	// Codec encodes the document on disk. Defaults to compact JSON.
	Codec Codec

	// FileMode and DirMode are used when creating the document and its
	// parent directory.
	FileMode fs.FileMode
	DirMode  fs.FileMode

	// MinFlushInterval throttles persistence cycles. Zero writes as soon as
	// the worker is free.
	MinFlushInterval time.Duration

	// Logger is the structured logger.
	Logger *slog.Logger

	// Registerer receives the persistence metrics. Nil disables them.
	Registerer prometheus.Registerer

	// OnFatal is called once when a persistence cycle fails.
	OnFatal func(error)

	// FS overrides the filesystem, for tests.
	FS FS
}

// DefaultConfig returns the default configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		Codec:    codec.Default(),
		FileMode: DefaultFileMode,
		DirMode:  DefaultDirMode,
		Logger:   slog.Default(),
	}
}

// Store is a nested key/value document persisted to a single file.
type Store struct {
	cfg     Config
	doc     *document.Document
	flusher *persist.Flusher
	logger  *slog.Logger

	// mu orders mutations against Close: a mutation is either scheduled
	// before the flusher stops or refused without touching the document.
	mu     sync.RWMutex
	closed bool
}

// New opens the store at cfg.Path, loading the existing document if there
// is one. The parent directory is created when missing.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, kverr.ErrConfig.WithDetails("path is required")
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Default()
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultFileMode
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = DefaultDirMode
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FS == nil {
		cfg.FS = persist.OS{}
	}
	if cfg.MinFlushInterval < 0 {
		return nil, kverr.ErrConfig.WithDetails("min flush interval must not be negative")
	}

	logger := cfg.Logger.With("path", cfg.Path, "codec", cfg.Codec.Name())

	if err := cfg.FS.MkdirAll(filepath.Dir(cfg.Path), cfg.DirMode); err != nil {
		return nil, kverr.ErrPersistenceFailure.Wrapf(err, "create directory %s", filepath.Dir(cfg.Path))
	}

	root, recovered, err := load(cfg.FS, cfg.Path, cfg.Codec)
	if err != nil {
		return nil, err
	}
	doc, err := document.FromMap(root)
	if err != nil {
		return nil, kverr.ErrDecode.Wrapf(err, "%s", cfg.Path)
	}

	if recovered {
		// Put the backup back under the committed name before any cycle can
		// remove it.
		backup := persist.BackupPath(cfg.Path)
		if err := cfg.FS.Rename(backup, cfg.Path); err != nil {
			return nil, kverr.ErrPersistenceFailure.Wrapf(err, "restore %s", backup)
		}
		logger.Warn("document missing, restored from backup",
			"backup", backup,
			"keys", doc.Len())
	}

	var metrics *metric.PersistMetrics
	if cfg.Registerer != nil {
		metrics, err = metric.NewPersistMetrics(cfg.Registerer, prometheus.Labels{"path": cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("filekv: register metrics: %w", err)
		}
	}

	s := &Store{
		cfg:    cfg,
		doc:    doc,
		logger: logger,
	}
	s.flusher = persist.NewFlusher(
		persist.NewWriter(cfg.FS, cfg.Path, cfg.FileMode),
		func() ([]byte, error) { return doc.Encode(cfg.Codec.Encode) },
		persist.FlusherConfig{
			MinInterval: cfg.MinFlushInterval,
			OnFatal:     cfg.OnFatal,
			Metrics:     metrics,
			Logger:      logger,
		},
	)

	logger.Info("store opened", "keys", doc.Len())
	return s, nil
}

// load reads and decodes path. A missing file yields an empty document,
// unless a backup from an interrupted cycle exists, in which case the
// backup is decoded and recovered is true.
func load(fsys FS, path string, c Codec) (root map[string]any, recovered bool, err error) {
	data, err := fsys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		backup := persist.BackupPath(path)
		data, err = fsys.ReadFile(backup)
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, false, nil
		}
		if err != nil {
			return nil, false, kverr.ErrPersistenceFailure.Wrapf(err, "read %s", backup)
		}
		root, err = c.Decode(data)
		if err != nil {
			return nil, false, kverr.ErrDecode.Wrapf(err, "%s", backup)
		}
		return root, true, nil
	}
	if err != nil {
		return nil, false, kverr.ErrPersistenceFailure.Wrapf(err, "read %s", path)
	}

	root, err = c.Decode(data)
	if err != nil {
		return nil, false, kverr.ErrDecode.Wrapf(err, "%s", path)
	}
	return root, false, nil
}

// Load decodes the document at path without opening a store. A missing
// file yields an empty document.
func Load(path string, c Codec) (map[string]any, error) {
	if path == "" {
		return nil, kverr.ErrConfig.WithDetails("path is required")
	}
	if c == nil {
		c = codec.Default()
	}
	root, _, err := load(persist.OS{}, path, c)
	if err != nil {
		return nil, err
	}
	doc, err := document.FromMap(root)
	if err != nil {
		return nil, kverr.ErrDecode.Wrapf(err, "%s", path)
	}
	return doc.Snapshot(), nil
}

// Get returns the value at key. It fails with kverr.ErrPathConflict when an
// intermediate segment holds a non-mapping value.
func (s *Store) Get(key string) (any, bool, error) {
	return s.doc.Get(key)
}

// Lookup returns the value at key, treating conflicts as absence.
func (s *Store) Lookup(key string) (any, bool) {
	return s.doc.Lookup(key)
}

// Put sets key to value and schedules a persistence cycle.
func (s *Store) Put(key string, value any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.doc.Put(key, value); err != nil {
		return err
	}
	return s.flusher.Schedule()
}

// Remove deletes key, if present, and schedules a persistence cycle. A
// cycle is scheduled even when the key is absent.
func (s *Store) Remove(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.doc.Remove(key); err != nil {
		return err
	}
	return s.flusher.Schedule()
}

// writable is called with mu held.
func (s *Store) writable() error {
	if err := s.flusher.Err(); err != nil {
		return err
	}
	if s.closed {
		return kverr.ErrClosed
	}
	return nil
}

// Drain waits until every mutation made before the call is on disk.
func (s *Store) Drain(ctx context.Context) error {
	return s.flusher.Drain(ctx)
}

// Close persists outstanding mutations and stops the worker. The store
// stays readable. Close may be called from Config.OnFatal.
func (s *Store) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()

	if already {
		return s.flusher.Close()
	}
	err := s.flusher.Close()
	if err != nil {
		s.logger.Warn("store closed with persistence failure", "error", err)
		return err
	}
	s.logger.Info("store closed", "cycles", s.flusher.Stats().Cycles)
	return nil
}

// Err returns the fatal persistence error, or nil.
func (s *Store) Err() error { return s.flusher.Err() }

// Errors delivers the fatal persistence error once.
func (s *Store) Errors() <-chan error { return s.flusher.Errors() }

// Stats returns persistence statistics.
func (s *Store) Stats() Stats { return s.flusher.Stats() }

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() map[string]any { return s.doc.Snapshot() }

// Keys returns the dot paths of all leaves, sorted.
func (s *Store) Keys() []string { return s.doc.Keys() }

// Len returns the number of top-level keys.
func (s *Store) Len() int { return s.doc.Len() }

// Path returns the document file.
func (s *Store) Path() string { return s.cfg.Path }

// Codec returns the codec in use.
func (s *Store) Codec() Codec { return s.cfg.Codec }
