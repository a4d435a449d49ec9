package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/grokify/seekio"
)

// blockState records what a block of the mirror holds.
type blockState uint8

const (
	// blockUnknown has never been fetched.
	blockUnknown blockState = iota
	// blockKnown holds the real bytes of the resource.
	blockKnown
	// blockPlaceholder holds zero bytes standing in for unfetched content.
	blockPlaceholder
)

func (b blockState) String() string {
	switch b {
	case blockKnown:
		return "known"
	case blockPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// block is one entry of the block table. data is nil unless the block is
// known; a placeholder block reads as zeros.
type block struct {
	state blockState
	data  []byte
}

// Stats counts the network traffic of a remote stream.
type Stats struct {
	Fetches      int
	BytesFetched int64
	Pushes       int
	BytesPushed  int64

	KnownBlocks       int
	PlaceholderBlocks int
	UnknownBlocks     int
}

// Stream implements seekio.Stream over a Fetcher.
type Stream struct {
	fetcher   Fetcher
	owned     bool
	path      string
	ctx       context.Context
	logger    *slog.Logger
	blockSize int64

	initialized bool
	size        int64
	blocks      []block

	open     bool
	pos      int64
	eof      bool
	err      error
	released bool

	fetches      int
	bytesFetched int64
	pushes       int
	bytesPushed  int64
}

// New creates an unopened remote stream. path identifies the resource in
// errors and logs. The block size comes from seekio.WithBlockSize and the
// context passed to the fetcher from seekio.WithContext.
func New(f Fetcher, path string, opts ...seekio.Option) *Stream {
	o := seekio.ApplyOptions(opts...)
	return &Stream{
		fetcher:   f,
		path:      path,
		ctx:       o.Context,
		logger:    o.Logger.With("path", path),
		blockSize: int64(o.BlockSize),
		size:      -1,
	}
}

// NewOwned is like New, but the stream closes f on Release when f is an
// io.Closer. Protocol factories use it for fetchers nothing else shares.
func NewOwned(f Fetcher, path string, opts ...seekio.Option) *Stream {
	s := New(f, path, opts...)
	s.owned = true
	return s
}

// Open resolves the size and allocates the block table on first use. Later
// calls only reset the position; fetched blocks are kept. A fetcher that
// cannot report the size causes the whole resource to be fetched.
func (s *Stream) Open() error {
	if s.released {
		return seekio.ErrReleased
	}
	if !s.initialized {
		if err := s.initialize(); err != nil {
			s.err = err
			return err
		}
	}
	s.open = true
	s.pos = 0
	s.eof = false
	s.err = nil
	return nil
}

func (s *Stream) initialize() error {
	size, err := s.fetcher.Size(s.ctx)
	if err != nil {
		return s.translateError("size", err)
	}

	if size < 0 {
		data, err := s.fetcher.FetchRange(s.ctx, 0, -1)
		if err != nil {
			return s.translateError("fetch", err)
		}
		s.fetches++
		s.bytesFetched += int64(len(data))
		s.setContent(data)
		s.initialized = true
		s.logger.Debug("remote size unknown, fetched whole resource", "size", s.size)
		return nil
	}

	s.size = size
	s.blocks = make([]block, s.blockCount(size))
	s.initialized = true
	s.logger.Debug("remote stream opened",
		"size", size,
		"block_size", s.blockSize,
		"blocks", len(s.blocks))
	return nil
}

// Close marks the stream closed. The block table is kept so a later Open
// does not fetch again.
func (s *Stream) Close() error {
	s.open = false
	return nil
}

// Release drops the block table. An owned fetcher is closed.
func (s *Stream) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	s.open = false
	s.blocks = nil
	if s.owned {
		return closeFetcher(s.fetcher)
	}
	return nil
}

// Read reads from the mirror, fetching unknown blocks first. Each run of
// adjacent unknown blocks is fetched with a single FetchRange.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.size {
		s.eof = true
		return 0, io.EOF
	}

	end := s.pos + int64(len(p))
	if end > s.size {
		end = s.size
	}
	if err := s.ensure(s.pos, end); err != nil {
		s.err = err
		return 0, err
	}

	n := s.copyOut(p[:end-s.pos], s.pos)
	s.pos += int64(n)
	if n < len(p) {
		s.eof = true
		return n, io.EOF
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

// Write is not supported; remote content changes only through Transfer.
func (s *Stream) Write(p []byte) (int, error) {
	return 0, s.writeUnsupported()
}

// WriteByte is not supported.
func (s *Stream) WriteByte(byte) error {
	return s.writeUnsupported()
}

// WriteFrom is not supported.
func (s *Stream) WriteFrom(seekio.Stream) (int64, error) {
	return 0, s.writeUnsupported()
}

func (s *Stream) writeUnsupported() error {
	if s.released {
		s.err = seekio.ErrReleased
	} else {
		s.err = seekio.ErrNotSupported
	}
	return s.err
}

// Seek sets the position. Seeking past the end is allowed.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
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

// Size returns the resource size, or -1 before the first Open.
func (s *Stream) Size() int64 {
	if !s.initialized || s.released {
		return -1
	}
	return s.size
}

// IsOpen reports whether the stream is open.
func (s *Stream) IsOpen() bool {
	return s.open && !s.released
}

// Err returns the sticky error.
func (s *Stream) Err() error {
	return s.err
}

// EOF reports whether a read hit the end.
func (s *Stream) EOF() bool {
	return s.eof
}

// Path returns the resource identifier.
func (s *Stream) Path() string {
	return s.path
}

// Mmap is not supported.
func (s *Stream) Mmap(bool) ([]byte, error) {
	return nil, seekio.NewError("mmap", s.path, seekio.ErrNotSupported)
}

// Munmap does nothing; there is never a mapping.
func (s *Stream) Munmap() error {
	return nil
}

// PopulateFakeData marks every unknown block as a placeholder so that no
// further reads fetch it. Placeholder blocks read as zeros.
func (s *Stream) PopulateFakeData() {
	n := 0
	for i := range s.blocks {
		if s.blocks[i].state == blockUnknown {
			s.blocks[i].state = blockPlaceholder
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("placeholder blocks populated", "blocks", n)
	}
}

// BlockSize returns the block size.
func (s *Stream) BlockSize() int64 {
	return s.blockSize
}

// Fetcher returns the fetcher.
func (s *Stream) Fetcher() Fetcher {
	return s.fetcher
}

// Stats returns traffic counters and the current block table summary.
func (s *Stream) Stats() Stats {
	st := Stats{
		Fetches:      s.fetches,
		BytesFetched: s.bytesFetched,
		Pushes:       s.pushes,
		BytesPushed:  s.bytesPushed,
	}
	for _, b := range s.blocks {
		switch b.state {
		case blockKnown:
			st.KnownBlocks++
		case blockPlaceholder:
			st.PlaceholderBlocks++
		default:
			st.UnknownBlocks++
		}
	}
	return st
}

func (s *Stream) ready() error {
	if s.released {
		s.err = seekio.ErrReleased
		return s.err
	}
	if !s.open {
		s.err = seekio.ErrNotOpen
		return s.err
	}
	return nil
}

func (s *Stream) blockCount(size int64) int {
	return int((size + s.blockSize - 1) / s.blockSize)
}

// blockRange returns the byte range [start, end) of block i for a resource
// of the given size.
func (s *Stream) blockRange(i int, size int64) (int64, int64) {
	start := int64(i) * s.blockSize
	end := start + s.blockSize
	if end > size {
		end = size
	}
	return start, end
}

// ensure makes every block overlapping [lo, hi) readable.
func (s *Stream) ensure(lo, hi int64) error {
	if hi <= lo {
		return nil
	}
	first := int(lo / s.blockSize)
	last := int((hi - 1) / s.blockSize)
	for i := first; i <= last; i++ {
		if s.blocks[i].state != blockUnknown {
			continue
		}
		j := i
		for j <= last && s.blocks[j].state == blockUnknown {
			j++
		}
		if err := s.fetchBlocks(i, j); err != nil {
			return err
		}
		i = j
	}
	return nil
}

// fetchBlocks fetches blocks [first, end) with one FetchRange.
func (s *Stream) fetchBlocks(first, end int) error {
	off, _ := s.blockRange(first, s.size)
	_, stop := s.blockRange(end-1, s.size)
	n := stop - off

	data, err := s.fetcher.FetchRange(s.ctx, off, n)
	if err != nil {
		return s.translateError("fetch", err)
	}
	if int64(len(data)) < n {
		return seekio.NewError("fetch", s.path,
			fmt.Errorf("%w: got %d of %d bytes at offset %d", io.ErrUnexpectedEOF, len(data), n, off))
	}
	s.fetches++
	s.bytesFetched += n

	for i := first; i < end; i++ {
		start, stop := s.blockRange(i, s.size)
		s.blocks[i] = block{
			state: blockKnown,
			data:  data[start-off : stop-off : stop-off],
		}
	}
	s.logger.Debug("blocks fetched",
		"offset", off,
		"bytes", n,
		"blocks", end-first)
	return nil
}

// copyOut copies mirror bytes starting at off into p. The blocks must
// already be readable.
func (s *Stream) copyOut(p []byte, off int64) int {
	n := 0
	for n < len(p) {
		i := int(off / s.blockSize)
		within := off % s.blockSize
		b := s.blocks[i]
		start, stop := s.blockRange(i, s.size)
		avail := stop - start - within
		want := int64(len(p) - n)
		if want > avail {
			want = avail
		}
		if b.state == blockKnown {
			copy(p[n:n+int(want)], b.data[within:within+want])
		} else {
			clear(p[n : n+int(want)])
		}
		n += int(want)
		off += want
	}
	return n
}

// setContent replaces the mirror with data, every block known.
func (s *Stream) setContent(data []byte) {
	s.size = int64(len(data))
	s.blocks = make([]block, s.blockCount(s.size))
	for i := range s.blocks {
		start, stop := s.blockRange(i, s.size)
		s.blocks[i] = block{state: blockKnown, data: data[start:stop:stop]}
	}
}

func (s *Stream) translateError(op string, err error) error {
	return seekio.NewError(op, s.path, err)
}

// Ensure Stream implements seekio.Stream
var _ seekio.Stream = (*Stream)(nil)
