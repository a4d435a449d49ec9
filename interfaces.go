// Package seekio provides a unified, seekable byte-stream abstraction for Go.
//
// Every resource kind (local files, memory buffers, remote HTTP/FTP/SFTP/S3
// objects) implements the same Stream contract, so format parsers can read,
// write, seek and memory-map without knowing where the bytes live.
//
// Basic usage:
//
//	s, _ := seekio.Open("https://example.com/photo.jpg", nil)
//	if err := s.Open(); err != nil {
//	    return err
//	}
//	c := seekio.NewCloser(s)
//	defer c.Close()
//	header, err := seekio.ReadOrError(s, 16)
//
// Backends register themselves for the protocols they serve; import them
// for their side effects:
//
//	import _ "github.com/grokify/seekio/backend/file"
package seekio

import "io"

// Stream is a seekable, byte-addressable resource.
//
// Construction is cheap; the underlying resource is acquired by Open.
// A Stream has exactly one owner and is not safe for concurrent use.
//
// Soft failures (Open, Close, Read, Write, Seek, ReadByte, WriteByte) are
// reported through the returned error and also recorded in the sticky
// Err and EOF flags, so callers may poll after a sequence of calls.
// Mmap and Transfer return a *Error when they fail.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ByteReader
	io.ByteWriter

	// Open acquires the underlying resource. Opening an already open stream
	// flushes pending writes and resets the position to 0.
	Open() error

	// Close releases the handle and any active mapping. Closing a closed
	// stream is a no-op. A closed stream may be opened again.
	Close() error

	// WriteFrom writes the remaining content of src, from its current
	// position, into this stream. src advances as it is consumed; if this
	// stream accepts fewer bytes than were read, src is rewound by the
	// shortfall and copying stops.
	WriteFrom(src Stream) (int64, error)

	// Tell returns the current position.
	Tell() int64

	// Size returns the current size in bytes, or -1 if it cannot be
	// determined. Pending writes are flushed first.
	Size() int64

	// IsOpen reports whether the stream is open.
	IsOpen() bool

	// Err returns the sticky error recorded by the last failed soft operation.
	Err() error

	// EOF reports whether a read hit the end of the stream.
	EOF() bool

	// Mmap returns a view of the whole resource. The view is valid until the
	// next Mmap, Munmap or Close. Edits to a writable view are guaranteed to
	// reach the resource only after Munmap.
	Mmap(writable bool) ([]byte, error)

	// Munmap releases the active view, writing it back if it was writable.
	Munmap() error

	// Transfer replaces the entire content of this stream with the entire
	// content of src and releases src. src must not be used afterwards.
	Transfer(src Stream) error

	// PopulateFakeData marks unfetched regions as resolved with placeholder
	// bytes. It is a no-op for backends where it has no meaning.
	PopulateFakeData()

	// Path returns the identifier of the resource, for diagnostics only.
	Path() string

	// Release closes the stream for good and frees everything it owns.
	// Every later operation fails with ErrReleased.
	Release() error
}
