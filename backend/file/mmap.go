package file

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/grokify/seekio"
)

// mapping is the single live view of a file stream.
type mapping struct {
	data     []byte
	writable bool
	emulated bool

	// release ends the mapping. f is the handle current at release time,
	// which may differ from the one the mapping was made with.
	release func(f File) error
}

// Mmap maps the whole file. Any previous mapping is released first. A
// writable mapping needs a read-write handle that is not in append mode,
// so other handles are reopened as "r+b" at the current offset.
func (s *Stream) Mmap(writable bool) ([]byte, error) {
	if s.released {
		return nil, seekio.NewError("mmap", s.path, seekio.ErrReleased)
	}
	if s.f == nil {
		return nil, seekio.NewError("mmap", s.path, seekio.ErrNotOpen)
	}
	if err := s.Munmap(); err != nil {
		return nil, err
	}

	if err := s.prepareMapping(writable); err != nil {
		return nil, seekio.NewError("mmap", s.path, err)
	}

	size := s.Size()
	if size < 0 {
		return nil, seekio.NewError("mmap", s.path, errors.New("cannot determine file size"))
	}
	if int64(int(size)) != size {
		return nil, seekio.NewError("mmap", s.path, fmt.Errorf("file too large to map: %d bytes", size))
	}

	var (
		m   *mapping
		err error
	)
	switch {
	case size == 0:
		m = &mapping{data: []byte{}, writable: writable, release: func(File) error { return nil }}
	default:
		if osf, ok := s.f.(*os.File); ok && nativeMmap {
			m, err = mapNative(osf, int(size), writable)
		} else {
			m, err = emulateMapping(s.f, int(size), writable)
		}
	}
	if err != nil {
		return nil, seekio.NewError("mmap", s.path, err)
	}

	s.mapping = m
	s.logger.Debug("file mapped",
		"size", size,
		"writable", writable,
		"emulated", m.emulated)
	return m.data, nil
}

// Munmap releases the live mapping, writing it back if it is writable.
func (s *Stream) Munmap() error {
	if s.mapping == nil {
		return nil
	}
	m := s.mapping
	s.mapping = nil
	if err := m.release(s.f); err != nil {
		return seekio.NewError("munmap", s.path, err)
	}
	return nil
}

// IsMapped reports whether a mapping is live.
func (s *Stream) IsMapped() bool {
	return s.mapping != nil
}

// prepareMapping makes the handle suitable for the requested mapping.
func (s *Stream) prepareMapping(writable bool) error {
	_, readable, canWrite, _ := openFlags(s.openMode)
	appending := len(s.openMode) > 0 && s.openMode[0] == 'a'
	if !writable {
		if readable {
			return nil
		}
		return s.reopen()
	}

	if readable && canWrite && !appending {
		return s.switchMode(opWrite)
	}
	s.opMode = opWrite
	return s.reopen()
}

// emulateMapping reads the file into a heap buffer. Releasing a writable
// emulated mapping writes the buffer back at offset 0.
func emulateMapping(f File, size int, writable bool) (*mapping, error) {
	data := make([]byte, size)
	n, err := f.ReadAt(data, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == size) {
		return nil, err
	}
	m := &mapping{
		data:     data,
		writable: writable,
		emulated: true,
	}
	m.release = func(cur File) error {
		if !m.writable {
			return nil
		}
		if cur == nil {
			return seekio.ErrNotOpen
		}
		_, err := cur.WriteAt(m.data, 0)
		return err
	}
	return m, nil
}
