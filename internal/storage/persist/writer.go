// Package persist implements the durability engine of filekv.
//
// A Writer commits one encoded document with a crash-safe sequence:
//
//  1. remove a leftover temp file  (<name>~)
//  2. remove a leftover backup     (<name>~~)
//  3. rename <name> to <name>~~    (backup of the committed state)
//  4. write, fsync and close <name>~
//  5. rename <name>~ to <name>     (commit point)
//  6. remove <name>~~
//
// Steps 1 and 2 make the sequence restartable after a crash at any point.
// Until step 5 the previous document survives as <name> or <name>~~.
//
// A Flusher runs commits on a single worker goroutine, one at a time and in
// scheduling order, re-encoding the live document for every cycle.
package persist

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/yndnr/filekv/internal/kverr"
)

// File name suffixes.
const (
	TempSuffix   = "~"
	BackupSuffix = "~~"
)

// DefaultFilePerm is the mode of committed documents.
const DefaultFilePerm fs.FileMode = 0600

// TempPath returns the temp file used while writing path.
func TempPath(path string) string { return path + TempSuffix }

// BackupPath returns the backup of path held during a commit.
func BackupPath(path string) string { return path + BackupSuffix }

// Writer performs the commit protocol for one document path.
type Writer struct {
	fs         FS
	path       string
	tempPath   string
	backupPath string
	perm       fs.FileMode
}

// NewWriter creates a writer for path. A nil fsys uses the OS.
func NewWriter(fsys FS, path string, perm fs.FileMode) *Writer {
	if fsys == nil {
		fsys = OS{}
	}
	if perm == 0 {
		perm = DefaultFilePerm
	}
	return &Writer{
		fs:         fsys,
		path:       path,
		tempPath:   TempPath(path),
		backupPath: BackupPath(path),
		perm:       perm,
	}
}

// Path returns the committed document path.
func (w *Writer) Path() string { return w.path }

// Commit durably replaces the committed document with data.
//
// Any failure is returned as kverr.ErrPersistenceFailure naming the step.
// A failure before the commit point leaves the previous document in place
// or under the backup name.
func (w *Writer) Commit(data []byte) error {
	if err := w.removeIfExists(w.tempPath, "remove stale temp"); err != nil {
		return err
	}
	if err := w.removeIfExists(w.backupPath, "remove stale backup"); err != nil {
		return err
	}

	exists, err := w.exists(w.path, "stat committed")
	if err != nil {
		return err
	}
	if exists {
		if err := w.fs.Rename(w.path, w.backupPath); err != nil {
			return kverr.ErrPersistenceFailure.Wrapf(err, "backup %s", w.path)
		}
	}

	if err := w.writeTemp(data); err != nil {
		return err
	}

	if err := w.fs.Rename(w.tempPath, w.path); err != nil {
		return kverr.ErrPersistenceFailure.Wrapf(err, "commit %s", w.path)
	}

	return w.removeIfExists(w.backupPath, "remove backup")
}

// writeTemp writes data to the temp file and forces it to stable storage.
func (w *Writer) writeTemp(data []byte) error {
	f, err := w.fs.OpenFile(w.tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, w.perm)
	if err != nil {
		return kverr.ErrPersistenceFailure.Wrapf(err, "open temp %s", w.tempPath)
	}

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		f.Close()
		return kverr.ErrPersistenceFailure.Wrapf(err, "write temp %s", w.tempPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return kverr.ErrPersistenceFailure.Wrapf(err, "sync temp %s", w.tempPath)
	}
	if err := f.Close(); err != nil {
		return kverr.ErrPersistenceFailure.Wrapf(err, "close temp %s", w.tempPath)
	}
	return nil
}

func (w *Writer) exists(name, step string) (bool, error) {
	_, err := w.fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, kverr.ErrPersistenceFailure.Wrapf(err, "%s %s", step, name)
}

func (w *Writer) removeIfExists(name, step string) error {
	exists, err := w.exists(name, step)
	if err != nil || !exists {
		return err
	}
	if err := w.fs.Remove(name); err != nil {
		return kverr.ErrPersistenceFailure.Wrapf(err, "%s %s", step, name)
	}
	return nil
}
