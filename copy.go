package seekio

import (
	"errors"
	"fmt"
	"io"
)

// copyBufferSize is the chunk size used when copying between streams.
const copyBufferSize = 4096

// CopyFrom writes the remaining content of src, starting at its current
// position, into dst. It is the shared implementation of Stream.WriteFrom.
//
// src advances as it is consumed. When dst accepts fewer bytes than were
// read, src is rewound by the difference and CopyFrom stops, returning the
// number of bytes written and io.ErrShortWrite (or the write error).
func CopyFrom(dst io.Writer, src Stream) (int64, error) {
	if src == nil || !src.IsOpen() {
		return 0, ErrNotOpen
	}

	buf := make([]byte, copyBufferSize)
	var total int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw < 0 {
				nw = 0
			}
			total += int64(nw)
			if nw < nr {
				if _, err := src.Seek(int64(nw-nr), io.SeekCurrent); err != nil {
					return total, fmt.Errorf("rewinding source: %w", err)
				}
				if werr == nil {
					werr = io.ErrShortWrite
				}
				return total, werr
			}
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, rerr
		}
		if nr == 0 {
			return total, nil
		}
	}
}

// ReadOrError reads exactly n bytes from s. Unlike Stream.Read it treats a
// short read as a hard failure and returns a *Error wrapping ErrShortRead.
func ReadOrError(s Stream, n int) ([]byte, error) {
	if n < 0 {
		return nil, NewError("read", s.Path(), fmt.Errorf("negative count %d", n))
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(s, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return buf[:got], NewError("read", s.Path(), fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, got, n))
		}
		return buf[:got], NewError("read", s.Path(), err)
	}
	return buf, nil
}

// SeekOrError seeks s and returns a *Error if the seek fails.
func SeekOrError(s Stream, offset int64, whence int) (int64, error) {
	pos, err := s.Seek(offset, whence)
	if err != nil {
		return pos, NewError("seek", s.Path(), err)
	}
	return pos, nil
}

// ResolveSeek computes the target of a seek for a stream at position pos
// with the given size. It is shared by backends that track their own
// position. Seeking past the end is allowed.
func ResolveSeek(pos, size, offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = pos + offset
	case io.SeekEnd:
		target = size + offset
	default:
		return pos, fmt.Errorf("%w: whence %d", ErrInvalidSeek, whence)
	}
	if target < 0 {
		return pos, fmt.Errorf("%w: offset %d", ErrInvalidSeek, target)
	}
	return target, nil
}
