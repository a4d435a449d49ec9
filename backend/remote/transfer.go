package remote

import (
	"bytes"
	"fmt"

	"github.com/grokify/seekio"
)

// span is a byte range [off, off+n) of the new content to push.
type span struct {
	off int64
	n   int64
}

// writePlan is the set of fetcher calls that turns the remote content into
// the new content.
type writePlan struct {
	spans    []span
	truncate bool
	replace  bool

	// keep marks blocks of the new content whose remote bytes are left
	// alone because they are placeholders the caller did not change.
	keep []bool
}

// Transfer replaces the remote content with the content of src and
// releases src. Only blocks whose bytes differ from the mirror are pushed,
// with adjacent changed blocks sent as one range. A fetcher without range
// writes receives one Replace.
//
// Placeholder blocks are compared against zeros: an unchanged placeholder
// keeps its remote bytes. Transfer fails with ErrPlaceholderData instead of
// writing when placeholder bytes would have to be treated as real content,
// which is the case for a Replace, or for a size change with a placeholder
// block at or after the first changed byte.
//
// A resource that does not exist yet is created with Replace when the
// fetcher supports it.
func (s *Stream) Transfer(src seekio.Stream) error {
	if s.released {
		return seekio.NewError("transfer", s.path, seekio.ErrReleased)
	}
	if src == nil {
		return seekio.NewError("transfer", s.path, seekio.ErrNotOpen)
	}
	if rs, ok := src.(*Stream); ok && rs == s {
		return nil
	}
	if !s.fetcher.Features().CanWrite() {
		return seekio.NewError("transfer", s.path, seekio.ErrNotSupported)
	}
	created := false
	if !s.initialized {
		if err := s.initialize(); err != nil {
			if !seekio.IsNotFound(err) || !s.fetcher.Features().Replace {
				return seekio.NewError("transfer", s.path, err)
			}
			// The resource does not exist yet and is created whole.
			s.setContent(nil)
			s.initialized = true
			created = true
		}
	}

	if err := src.Open(); err != nil {
		return seekio.NewError("transfer", src.Path(), err)
	}
	var buf bytes.Buffer
	if _, err := seekio.CopyFrom(&buf, src); err != nil {
		return seekio.NewError("transfer", src.Path(), err)
	}
	data := buf.Bytes()

	plan, err := s.plan(data)
	if err != nil {
		return seekio.NewError("transfer", s.path, err)
	}
	if created {
		plan.replace = true
		plan.spans = nil
		plan.truncate = false
	}
	if err := s.apply(plan, data); err != nil {
		return seekio.NewError("transfer", s.path, err)
	}

	s.commit(data, plan.keep)
	s.pos = 0
	s.eof = false
	s.err = nil

	if err := src.Release(); err != nil {
		s.logger.Warn("releasing transfer source failed",
			"source", src.Path(),
			"error", err)
	}
	return nil
}

// plan diffs data against the mirror.
func (s *Stream) plan(data []byte) (*writePlan, error) {
	oldSize := s.size
	newSize := int64(len(data))
	features := s.fetcher.Features()

	nb := s.blockCount(newSize)
	p := &writePlan{keep: make([]bool, nb)}
	firstDiff := int64(-1)

	for i := 0; i < nb; i++ {
		start, stop := s.blockRange(i, newSize)
		changed := true
		if i < len(s.blocks) {
			_, oldStop := s.blockRange(i, oldSize)
			if stop == oldStop {
				b := s.blocks[i]
				switch b.state {
				case blockKnown:
					changed = !bytes.Equal(b.data, data[start:stop])
				case blockPlaceholder:
					changed = !isZero(data[start:stop])
					p.keep[i] = !changed
				}
			}
		}
		if !changed {
			continue
		}
		if firstDiff < 0 {
			firstDiff = start
		}
		if n := len(p.spans); n > 0 && p.spans[n-1].off+p.spans[n-1].n == start {
			p.spans[n-1].n += stop - start
		} else {
			p.spans = append(p.spans, span{off: start, n: stop - start})
		}
	}

	if newSize < oldSize {
		p.truncate = true
		if firstDiff < 0 || firstDiff > newSize {
			firstDiff = newSize
		}
	}
	if len(p.spans) == 0 && !p.truncate && newSize == oldSize {
		return p, nil
	}

	if !features.PutRange || (p.truncate && !features.Truncate) {
		if !features.Replace {
			return nil, fmt.Errorf("%w: fetcher cannot write this change", seekio.ErrNotSupported)
		}
		p.replace = true
		p.spans = nil
		p.truncate = false
	}

	if p.replace || newSize != oldSize {
		from := firstDiff
		if p.replace {
			from = 0
		}
		for i, b := range s.blocks {
			if b.state != blockPlaceholder {
				continue
			}
			if _, stop := s.blockRange(i, oldSize); stop > from {
				return nil, seekio.ErrPlaceholderData
			}
		}
	}
	return p, nil
}

// apply performs the planned fetcher calls.
func (s *Stream) apply(p *writePlan, data []byte) error {
	if p.replace {
		if err := s.fetcher.Replace(s.ctx, data); err != nil {
			return err
		}
		s.pushes++
		s.bytesPushed += int64(len(data))
		s.logger.Debug("remote content replaced", "bytes", len(data))
		return nil
	}

	for _, sp := range p.spans {
		if err := s.fetcher.PutRange(s.ctx, sp.off, data[sp.off:sp.off+sp.n]); err != nil {
			return err
		}
		s.pushes++
		s.bytesPushed += sp.n
		s.logger.Debug("range pushed", "offset", sp.off, "bytes", sp.n)
	}
	if p.truncate {
		if err := s.fetcher.Truncate(s.ctx, int64(len(data))); err != nil {
			return err
		}
		s.logger.Debug("remote truncated", "size", len(data))
	}
	return nil
}

// commit makes data the new mirror. Kept placeholder blocks stay
// placeholders since their real bytes are still unknown.
func (s *Stream) commit(data []byte, keep []bool) {
	s.setContent(data)
	for i, k := range keep {
		if k {
			s.blocks[i] = block{state: blockPlaceholder}
		}
	}
}

func isZero(p []byte) bool {
	for _, c := range p {
		if c != 0 {
			return false
		}
	}
	return true
}
