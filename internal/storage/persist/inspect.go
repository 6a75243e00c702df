package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spaolacci/murmur3"
)

// Checksum returns the 128-bit murmur3 digest of data in hex.
func Checksum(data []byte) string {
	h1, h2 := murmur3.Sum128(data)
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// FileState describes one of the files owned by a store.
type FileState struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// Report describes the on-disk state of a store.
type Report struct {
	Committed FileState `json:"committed"`
	Temp      FileState `json:"temp"`
	Backup    FileState `json:"backup"`

	// Checksum of the committed document, empty if it does not exist.
	Checksum string `json:"checksum,omitempty"`
}

// Clean reports whether no temp or backup file is left over.
func (r Report) Clean() bool {
	return !r.Temp.Exists && !r.Backup.Exists
}

// Inspect reports which of path, its temp and its backup exist.
func Inspect(fsys FS, path string) (*Report, error) {
	if fsys == nil {
		fsys = OS{}
	}

	r := &Report{}
	for _, fst := range []struct {
		state *FileState
		name  string
	}{
		{&r.Committed, path},
		{&r.Temp, TempPath(path)},
		{&r.Backup, BackupPath(path)},
	} {
		fst.state.Path = fst.name
		info, err := fsys.Stat(fst.name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("persist: stat %s: %w", fst.name, err)
		}
		fst.state.Exists = true
		fst.state.Size = info.Size()
		fst.state.ModTime = info.ModTime()
	}

	if r.Committed.Exists {
		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("persist: read %s: %w", path, err)
		}
		r.Checksum = Checksum(data)
	}
	return r, nil
}
