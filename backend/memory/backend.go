// Package memory provides an in-memory stream for seekio.
//
// The memory stream is useful for:
//   - Building output in a scratch buffer before transferring it to a file
//   - Parsing data that is already in memory without copying it
//   - Unit testing without filesystem access
//
// A stream created from an existing byte slice borrows it read-only; the
// first write copies it into a privately owned buffer.
package memory

import (
	"io"
	"log/slog"

	"github.com/grokify/seekio"
)

const (
	// blockUnit is the allocation unit of the first private buffer.
	blockUnit = 32 * 1024

	// maxGrowStep caps a single growth step.
	maxGrowStep = 4 * 1024 * 1024
)

// Stream implements seekio.Stream over a byte buffer.
//
// len(buf) is the allocated capacity; only buf[:size] holds valid data.
type Stream struct {
	buf      []byte
	size     int64
	pos      int64
	owned    bool
	eof      bool
	err      error
	released bool
	allocs   int
	logger   *slog.Logger
}

// New creates an empty memory stream.
func New(opts ...seekio.Option) *Stream {
	o := seekio.ApplyOptions(opts...)
	return &Stream{logger: o.Logger}
}

// NewFromBytes creates a memory stream that reads data without copying it.
// data is never modified; the first write switches to a private copy.
func NewFromBytes(data []byte, opts ...seekio.Option) *Stream {
	s := New(opts...)
	s.buf = data
	s.size = int64(len(data))
	return s
}

// Open resets the position to 0. A memory stream is always open until released.
func (s *Stream) Open() error {
	if s.released {
		return seekio.ErrReleased
	}
	s.pos = 0
	s.eof = false
	s.err = nil
	return nil
}

// Close is a no-op; the content is kept.
func (s *Stream) Close() error {
	return nil
}

// Release drops the buffer. The stream cannot be used afterwards.
func (s *Stream) Release() error {
	s.released = true
	s.buf = nil
	s.size = 0
	s.pos = 0
	s.owned = false
	return nil
}

// Read reads up to len(p) bytes from the current position.
func (s *Stream) Read(p []byte) (int, error) {
	if s.released {
		s.err = seekio.ErrReleased
		return 0, seekio.ErrReleased
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.size {
		s.eof = true
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:s.size])
	s.pos += int64(n)
	if n < len(p) {
		s.eof = true
		return n, io.EOF
	}
	return n, nil
}

// ReadByte reads one byte.
func (s *Stream) ReadByte() (byte, error) {
	if s.released {
		s.err = seekio.ErrReleased
		return 0, seekio.ErrReleased
	}
	if s.pos >= s.size {
		s.eof = true
		return 0, io.EOF
	}
	c := s.buf[s.pos]
	s.pos++
	return c, nil
}

// Write writes p at the current position, growing the buffer as needed.
func (s *Stream) Write(p []byte) (int, error) {
	if s.released {
		s.err = seekio.ErrReleased
		return 0, seekio.ErrReleased
	}
	if len(p) == 0 {
		return 0, nil
	}
	s.reserve(int64(len(p)))
	n := copy(s.buf[s.pos:], p)
	s.pos += int64(n)
	return n, nil
}

// WriteByte writes one byte.
func (s *Stream) WriteByte(c byte) error {
	_, err := s.Write([]byte{c})
	return err
}

// WriteFrom copies the remaining content of src into this stream.
func (s *Stream) WriteFrom(src seekio.Stream) (int64, error) {
	if s.released {
		return 0, seekio.ErrReleased
	}
	n, err := seekio.CopyFrom(s, src)
	if err != nil {
		s.err = err
	}
	return n, err
}

// Seek sets the position. Seeking past the end is allowed.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.released {
		s.err = seekio.ErrReleased
		return 0, seekio.ErrReleased
	}
	target, err := seekio.ResolveSeek(s.pos, s.size, offset, whence)
	if err != nil {
		s.err = err
		return s.pos, err
	}
	s.pos = target
	s.eof = false
	return s.pos, nil
}

// Tell returns the current position.
func (s *Stream) Tell() int64 {
	return s.pos
}

// Size returns the number of valid bytes.
func (s *Stream) Size() int64 {
	return s.size
}

// IsOpen reports whether the stream has not been released.
func (s *Stream) IsOpen() bool {
	return !s.released
}

// Err returns the sticky error.
func (s *Stream) Err() error {
	return s.err
}

// EOF reports whether a read hit the end.
func (s *Stream) EOF() bool {
	return s.eof
}

// Path returns a fixed identifier.
func (s *Stream) Path() string {
	return "memory"
}

// Mmap returns the valid bytes of the buffer. A writable view forces a
// private copy first. Any write that grows the buffer invalidates the view.
func (s *Stream) Mmap(writable bool) ([]byte, error) {
	if s.released {
		return nil, seekio.NewError("mmap", s.Path(), seekio.ErrReleased)
	}
	if writable && !s.owned {
		s.materialize(s.size)
	}
	return s.buf[:s.size:s.size], nil
}

// Munmap is a no-op; edits made through the view are already in place.
func (s *Stream) Munmap() error {
	return nil
}

// PopulateFakeData is a no-op for memory streams.
func (s *Stream) PopulateFakeData() {}

// Transfer replaces the content of this stream with that of src and
// releases src. Another memory stream hands over its buffer without copying.
func (s *Stream) Transfer(src seekio.Stream) error {
	if s.released {
		return seekio.NewError("transfer", s.Path(), seekio.ErrReleased)
	}
	if src == nil {
		return seekio.NewError("transfer", s.Path(), seekio.ErrNotOpen)
	}
	if ms, ok := src.(*Stream); ok {
		if ms == s {
			return nil
		}
		if ms.released {
			return seekio.NewError("transfer", s.Path(), seekio.ErrReleased)
		}
		s.buf, s.size, s.owned = ms.buf, ms.size, ms.owned
		ms.buf, ms.size, ms.owned = nil, 0, false
		s.pos, s.eof, s.err = 0, false, nil
		return ms.Release()
	}

	if err := src.Open(); err != nil {
		return seekio.NewError("transfer", src.Path(), err)
	}
	s.buf, s.size, s.owned = nil, 0, false
	s.pos, s.eof, s.err = 0, false, nil
	if _, err := s.WriteFrom(src); err != nil {
		return seekio.NewError("transfer", src.Path(), err)
	}
	s.pos = 0
	if err := src.Release(); err != nil {
		return seekio.NewError("transfer", src.Path(), err)
	}
	return nil
}

// Bytes returns the valid bytes without copying.
func (s *Stream) Bytes() []byte {
	return s.buf[:s.size:s.size]
}

// reserve makes room for wcount bytes at the current position and extends
// the logical size to cover them.
func (s *Stream) reserve(wcount int64) {
	need := s.pos + wcount
	if !s.owned {
		s.materialize(need)
	}
	if need <= s.size {
		return
	}
	if need > int64(len(s.buf)) {
		step := 2 * int64(len(s.buf))
		if step > maxGrowStep {
			step = maxGrowStep
		}
		want := step * (1 + need/step)
		s.realloc(want)
	}
	if s.pos > s.size {
		clear(s.buf[s.size:s.pos])
	}
	s.size = need
}

// materialize switches to a private buffer large enough for need bytes.
func (s *Stream) materialize(need int64) {
	want := blockUnit * (1 + need/blockUnit)
	if want < s.size {
		want = s.size
	}
	s.realloc(want)
	s.owned = true
}

func (s *Stream) realloc(capacity int64) {
	buf := make([]byte, capacity)
	copy(buf, s.buf[:s.size])
	s.buf = buf
	s.allocs++
	s.logger.Debug("memory buffer allocated",
		"capacity", capacity,
		"size", s.size,
		"allocations", s.allocs)
}

// Ensure Stream implements seekio.Stream
var _ seekio.Stream = (*Stream)(nil)
