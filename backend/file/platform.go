package file

import (
	"io"
	"os"
)

// File is the handle a Platform opens. *os.File satisfies it.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	io.WriterAt
	io.Closer
	Stat() (os.FileInfo, error)
}

// Platform isolates the operating system calls made by a file stream.
type Platform interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
	Rename(oldpath, newpath string) error
	Chmod(name string, mode os.FileMode) error
	Remove(name string) error
}

// OSPlatform implements Platform with the os package.
type OSPlatform struct{}

// OpenFile opens a file with os.OpenFile.
func (OSPlatform) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm) //nolint:gosec // G304: opening caller-supplied paths is the point
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat returns file info with os.Stat.
func (OSPlatform) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Rename renames with os.Rename, which replaces newpath if it exists.
func (OSPlatform) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Chmod changes permission bits with os.Chmod.
func (OSPlatform) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}

// Remove removes a file with os.Remove.
func (OSPlatform) Remove(name string) error {
	return os.Remove(name)
}

// Ensure OSPlatform implements Platform
var _ Platform = OSPlatform{}
