package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
)

var errInjected = errors.New("injected failure")

// faultFS wraps the OS filesystem, records operations and fails the
// operation named by failOp on a file whose base name is failName.
type faultFS struct {
	OS

	mu       sync.Mutex
	ops      []string
	failOp   string
	failName string
	shortN   bool

	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (f *faultFS) record(op, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := filepath.Base(name)
	f.ops = append(f.ops, op+" "+base)
	if op == f.failOp && (f.failName == "" || f.failName == base) {
		return fmt.Errorf("%s %s: %w", op, base, errInjected)
	}
	return nil
}

func (f *faultFS) setFault(op, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOp = op
	f.failName = name
}

func (f *faultFS) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *faultFS) Stat(name string) (fs.FileInfo, error) {
	if err := f.record("stat", name); err != nil {
		return nil, err
	}
	return f.OS.Stat(name)
}

func (f *faultFS) Remove(name string) error {
	if err := f.record("remove", name); err != nil {
		return err
	}
	return f.OS.Remove(name)
}

func (f *faultFS) Rename(oldpath, newpath string) error {
	if err := f.record("rename", oldpath); err != nil {
		return err
	}
	return f.OS.Rename(oldpath, newpath)
}

func (f *faultFS) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	if err := f.record("open", name); err != nil {
		return nil, err
	}
	file, err := f.OS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	return &faultFile{File: file, fs: f, name: name}, nil
}

type faultFile struct {
	File
	fs   *faultFS
	name string
}

func (ff *faultFile) Write(p []byte) (int, error) {
	if err := ff.fs.record("write", ff.name); err != nil {
		return 0, err
	}
	if ff.fs.shortN && len(p) > 1 {
		return ff.File.Write(p[:len(p)/2])
	}
	return ff.File.Write(p)
}

func (ff *faultFile) Sync() error {
	if err := ff.fs.record("sync", ff.name); err != nil {
		return err
	}
	return ff.File.Sync()
}

func (ff *faultFile) Close() error {
	ff.fs.inFlight.Add(-1)
	if err := ff.fs.record("close", ff.name); err != nil {
		ff.File.Close()
		return err
	}
	return ff.File.Close()
}
