package persist

import (
	"io"
	"io/fs"
	"os"
)

// File is the subset of *os.File the commit protocol writes through.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// FS is the filesystem the durability engine operates on.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
	MkdirAll(path string, perm fs.FileMode) error
	ReadFile(name string) ([]byte, error)
}

// OS is the FS backed by the operating system.
type OS struct{}

func (OS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (OS) Remove(name string) error              { return os.Remove(name) }
func (OS) Rename(oldpath, newpath string) error  { return os.Rename(oldpath, newpath) }
func (OS) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OS) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}
