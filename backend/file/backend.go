// Package file provides a local file stream for seekio.
//
// A file stream tracks whether it is currently reading, writing or only
// seeking, and reopens the OS handle only when the handle's open mode does
// not permit the next operation:
//
//	s := file.New("photo.jpg")
//	if err := s.OpenMode("rb"); err != nil {
//	    return err
//	}
//	defer func() { _ = s.Close() }()
//	_, _ = s.Write(patch) // reopens as "r+b" at the current offset
package file

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/grokify/seekio"
)

// opMode is the operation a file stream last performed.
type opMode int

const (
	opSeek opMode = iota
	opRead
	opWrite
)

func (m opMode) String() string {
	switch m {
	case opRead:
		return "read"
	case opWrite:
		return "write"
	default:
		return "seek"
	}
}

// reopenMode is the mode used when a handle must be reopened for an
// operation its original mode does not permit.
const reopenMode = "r+b"

// Stream implements seekio.Stream over a local file.
type Stream struct {
	path      string
	config    Config
	logger    *slog.Logger
	f         File
	openMode  string
	opMode    opMode
	mapping   *mapping
	eof       bool
	err       error
	temporary bool
	released  bool
	reopens   int
}

// New creates an unopened file stream for path with the default configuration.
func New(path string, opts ...seekio.Option) *Stream {
	return NewWithConfig(path, DefaultConfig(), opts...)
}

// NewWithConfig creates an unopened file stream for path.
func NewWithConfig(path string, config Config, opts ...seekio.Option) *Stream {
	if config.Platform == nil {
		config.Platform = OSPlatform{}
	}
	if config.FilePermissions == 0 {
		config.FilePermissions = 0644
	}
	o := seekio.ApplyOptions(opts...)
	return &Stream{
		path:   path,
		config: config,
		logger: o.Logger.With("path", path),
	}
}

// Open opens the file read-only ("rb").
func (s *Stream) Open() error {
	return s.OpenMode("rb")
}

// OpenMode opens the file with an fopen-style mode: "r", "r+", "w", "w+",
// "a" or "a+", each optionally with "b". An open stream is closed first.
func (s *Stream) OpenMode(mode string) error {
	if s.released {
		return seekio.ErrReleased
	}
	flag, _, _, ok := openFlags(mode)
	if !ok {
		s.err = fmt.Errorf("%w: %q", seekio.ErrInvalidMode, mode)
		return s.err
	}
	if err := s.closeHandle(); err != nil {
		s.err = err
		return err
	}

	f, err := s.config.Platform.OpenFile(s.path, flag, s.config.FilePermissions)
	if err != nil {
		s.err = s.translateError("open", err)
		return s.err
	}
	s.f = f
	s.openMode = mode
	s.opMode = opSeek
	s.eof = false
	s.err = nil
	return nil
}

// Close releases any mapping and closes the handle.
func (s *Stream) Close() error {
	if s.f == nil {
		return nil
	}
	return s.closeHandle()
}

// Release closes the stream for good. A temporary file that was not
// promoted by a Transfer is removed.
func (s *Stream) Release() error {
	if s.released {
		return nil
	}
	err := s.Close()
	s.released = true
	if s.temporary {
		s.temporary = false
		if rerr := s.config.Platform.Remove(s.path); rerr != nil && !os.IsNotExist(rerr) {
			err = errors.Join(err, s.translateError("remove", rerr))
		}
	}
	return err
}

// Read reads up to len(p) bytes. A short count means the end was reached,
// in which case io.EOF is returned and EOF() reports true.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if err := s.switchMode(opRead); err != nil {
		s.err = err
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := io.ReadFull(s.f, p)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.eof = true
			return n, io.EOF
		}
		s.err = err
		return n, err
	}
	return n, nil
}

// ReadByte reads one byte.
func (s *Stream) ReadByte() (byte, error) {
	var b [1]byte
	n, err := s.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

// Write writes p at the current position.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if err := s.switchMode(opWrite); err != nil {
		s.err = err
		return 0, err
	}
	n, err := s.f.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

// WriteByte writes one byte.
func (s *Stream) WriteByte(c byte) error {
	_, err := s.Write([]byte{c})
	return err
}

// WriteFrom copies the remaining content of src into this file.
func (s *Stream) WriteFrom(src seekio.Stream) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n, err := seekio.CopyFrom(s, src)
	if err != nil {
		s.err = err
	}
	return n, err
}

// Seek sets the position. Seeking past the end is allowed.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if whence == io.SeekStart && offset < 0 {
		s.err = fmt.Errorf("%w: offset %d", seekio.ErrInvalidSeek, offset)
		return s.Tell(), s.err
	}
	if err := s.switchMode(opSeek); err != nil {
		s.err = err
		return 0, err
	}
	pos, err := s.f.Seek(offset, whence)
	if err != nil {
		s.err = fmt.Errorf("%w: %w", seekio.ErrInvalidSeek, err)
		return pos, s.err
	}
	s.eof = false
	return pos, nil
}

// Tell returns the current position, or -1 if the stream is not open.
func (s *Stream) Tell() int64 {
	if s.f == nil {
		return -1
	}
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	return pos
}

// Size returns the file size, or -1 if it cannot be determined.
func (s *Stream) Size() int64 {
	if s.released {
		return -1
	}
	if s.f != nil {
		if s.opMode == opWrite {
			_ = s.flush()
		}
		fi, err := s.f.Stat()
		if err != nil {
			return -1
		}
		return fi.Size()
	}
	fi, err := s.config.Platform.Stat(s.path)
	if err != nil {
		return -1
	}
	return fi.Size()
}

// IsOpen reports whether the file is open.
func (s *Stream) IsOpen() bool {
	return s.f != nil
}

// Err returns the sticky error.
func (s *Stream) Err() error {
	return s.err
}

// EOF reports whether a read hit the end of the file.
func (s *Stream) EOF() bool {
	return s.eof
}

// Path returns the file path.
func (s *Stream) Path() string {
	return s.path
}

// OpenModeString returns the mode of the current handle, or "" if closed.
func (s *Stream) OpenModeString() string {
	return s.openMode
}

// IsTemporary reports whether the file is removed on Release.
func (s *Stream) IsTemporary() bool {
	return s.temporary
}

// PopulateFakeData is a no-op for local files.
func (s *Stream) PopulateFakeData() {}

// ready checks that the stream is usable.
func (s *Stream) ready() error {
	if s.released {
		s.err = seekio.ErrReleased
		return s.err
	}
	if s.f == nil {
		s.err = seekio.ErrNotOpen
		return s.err
	}
	return nil
}

// switchMode moves the stream into op. Moving into opSeek only flushes.
// Moving into opRead or opWrite is free when the handle permits it;
// otherwise the file is reopened in reopenMode at the current offset.
func (s *Stream) switchMode(op opMode) error {
	if s.opMode == op {
		return nil
	}
	prev := s.opMode
	s.opMode = op

	if op == opSeek {
		return s.flush()
	}

	_, readable, writable, _ := openFlags(s.openMode)
	if (op == opRead && readable) || (op == opWrite && writable) {
		if prev == opSeek {
			return nil
		}
		return s.flush()
	}
	return s.reopen()
}

// reopen closes and reopens the handle in reopenMode, keeping the offset.
// An active mapping is left in place.
func (s *Stream) reopen() error {
	offset, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return s.translateError("reopen", err)
	}
	if err := s.flush(); err != nil {
		return s.translateError("reopen", err)
	}
	if err := s.f.Close(); err != nil {
		s.f = nil
		s.openMode = ""
		return s.translateError("reopen", err)
	}
	s.f = nil

	flag, _, _, _ := openFlags(reopenMode)
	f, err := s.config.Platform.OpenFile(s.path, flag, s.config.FilePermissions)
	if err != nil {
		s.openMode = ""
		return s.translateError("reopen", err)
	}
	s.f = f
	s.openMode = reopenMode
	if _, err := s.f.Seek(offset, io.SeekStart); err != nil {
		return s.translateError("reopen", err)
	}
	s.reopens++
	s.logger.Debug("file reopened",
		"mode", reopenMode,
		"op", s.opMode.String(),
		"offset", offset,
		"reopens", s.reopens)
	return nil
}

// flush pushes buffered writes to the OS. *os.File is unbuffered, so only
// handles that buffer internally have anything to do.
func (s *Stream) flush() error {
	if fl, ok := s.f.(interface{ Flush() error }); ok {
		return fl.Flush()
	}
	return nil
}

// closeHandle releases the mapping and closes the handle, keeping the
// stream reusable.
func (s *Stream) closeHandle() error {
	var errs []error
	if err := s.Munmap(); err != nil {
		errs = append(errs, err)
	}
	if s.f != nil {
		if err := s.flush(); err != nil {
			errs = append(errs, err)
		}
		if err := s.f.Close(); err != nil {
			errs = append(errs, s.translateError("close", err))
		}
		s.f = nil
	}
	s.openMode = ""
	s.opMode = opSeek
	s.eof = false
	return errors.Join(errs...)
}

// translateError converts OS errors to seekio errors, keeping the cause.
func (s *Stream) translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		err = fmt.Errorf("%w: %w", seekio.ErrNotFound, err)
	case os.IsPermission(err):
		err = fmt.Errorf("%w: %w", seekio.ErrPermissionDenied, err)
	}
	return seekio.NewError(op, s.path, err)
}

// restoreMode turns the mode a stream was open in into a mode that can be
// used to open it again without truncating.
func restoreMode(mode string) string {
	if strings.HasPrefix(mode, "w") {
		return reopenMode
	}
	return mode
}

// Ensure Stream implements seekio.Stream
var _ seekio.Stream = (*Stream)(nil)
