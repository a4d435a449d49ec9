package file

import (
	"errors"
	"os"

	"github.com/grokify/seekio"
)

// Transfer replaces the content of this file with the content of src and
// releases src.
//
// When src is another file stream its file is renamed onto this path and
// this path's permission bits are kept. If the rename fails, or src is any
// other kind of stream, the bytes are copied. If this stream was open
// before the call it is reopened afterwards, positioned at 0; a truncating
// open mode is reopened as "r+b".
func (s *Stream) Transfer(src seekio.Stream) error {
	if s.released {
		return seekio.NewError("transfer", s.path, seekio.ErrReleased)
	}
	if src == nil {
		return seekio.NewError("transfer", s.path, seekio.ErrNotOpen)
	}
	if fs, ok := src.(*Stream); ok && fs == s {
		return nil
	}

	wasOpen := s.f != nil
	mode := s.openMode

	renamed := false
	if fs, ok := src.(*Stream); ok {
		if fs.released {
			return seekio.NewError("transfer", fs.path, seekio.ErrReleased)
		}
		err := s.renameFrom(fs)
		if err == nil {
			renamed = true
		} else {
			s.logger.Debug("rename failed, copying instead",
				"source", fs.path,
				"error", err)
		}
	}

	if !renamed {
		if err := s.copyFrom(src); err != nil {
			return seekio.NewError("transfer", s.path, err)
		}
	}

	if err := src.Release(); err != nil {
		s.logger.Warn("releasing transfer source failed",
			"source", src.Path(),
			"error", err)
	}

	if wasOpen {
		if err := s.OpenMode(restoreMode(mode)); err != nil {
			return seekio.NewError("transfer", s.path, err)
		}
	}
	return nil
}

// renameFrom moves the file of src onto this path. Both handles are closed
// first. The source is no longer temporary once its file has been moved.
func (s *Stream) renameFrom(src *Stream) error {
	if err := s.closeHandle(); err != nil {
		return err
	}
	if err := src.Close(); err != nil {
		return err
	}

	fi, statErr := s.config.Platform.Stat(s.path)
	if err := s.config.Platform.Rename(src.path, s.path); err != nil {
		return s.translateError("rename", err)
	}
	src.temporary = false

	switch {
	case statErr == nil:
		if err := s.config.Platform.Chmod(s.path, fi.Mode().Perm()); err != nil {
			s.logger.Warn("could not restore permissions",
				"mode", fi.Mode().Perm().String(),
				"error", err)
		}
	case !os.IsNotExist(statErr):
		s.logger.Warn("could not read permissions before rename",
			"error", statErr)
	}
	return nil
}

// copyFrom truncates this file and copies the entire content of src into
// it. A destination that denies writing is made owner-writable for the
// copy and its permission bits are put back afterwards.
func (s *Stream) copyFrom(src seekio.Stream) error {
	if err := src.Open(); err != nil {
		return err
	}

	err := s.OpenMode("w+b")
	if errors.Is(err, seekio.ErrPermissionDenied) {
		fi, statErr := s.config.Platform.Stat(s.path)
		if statErr != nil {
			return err
		}
		orig := fi.Mode().Perm()
		if cerr := s.config.Platform.Chmod(s.path, orig|0200); cerr != nil {
			return err
		}
		defer func() {
			if cerr := s.config.Platform.Chmod(s.path, orig); cerr != nil {
				s.logger.Warn("could not restore permissions",
					"mode", orig.String(),
					"error", cerr)
			}
		}()
		err = s.OpenMode("w+b")
	}
	if err != nil {
		return err
	}

	if _, err := s.WriteFrom(src); err != nil {
		_ = s.closeHandle()
		return err
	}
	return s.closeHandle()
}
