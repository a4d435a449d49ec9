package remote

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/grokify/seekio"
)

// Codec selects the compression of a mirror snapshot.
type Codec byte

const (
	// CodecZstd compresses snapshots with Zstandard. It is the default.
	CodecZstd Codec = iota
	// CodecGzip compresses snapshots with gzip.
	CodecGzip
)

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecGzip:
		return "gzip"
	default:
		return fmt.Sprintf("codec(%d)", byte(c))
	}
}

const snapshotVersion = 1

var snapshotMagic = []byte("SKIOMIR")

// ErrBadSnapshot is returned by LoadMirror for data that is not a valid
// snapshot for this stream.
var ErrBadSnapshot = errors.New("remote: invalid mirror snapshot")

// SaveMirror writes the block table and the known bytes to w, compressed
// with codec. Placeholder blocks are saved as placeholders.
//
// A snapshot lets an interrupted download resume: LoadMirror on a new
// stream restores the table so that only missing blocks are fetched.
func (s *Stream) SaveMirror(w io.Writer, codec Codec) error {
	if s.released {
		return seekio.NewError("save", s.path, seekio.ErrReleased)
	}
	if !s.initialized {
		return seekio.NewError("save", s.path, seekio.ErrNotOpen)
	}

	header := append(append([]byte{}, snapshotMagic...), snapshotVersion, byte(codec))
	if _, err := w.Write(header); err != nil {
		return seekio.NewError("save", s.path, err)
	}

	cw, err := newCompressor(w, codec)
	if err != nil {
		return seekio.NewError("save", s.path, err)
	}

	bw := bufio.NewWriter(cw)
	var scratch []byte
	scratch = binary.AppendUvarint(scratch, uint64(s.blockSize))
	scratch = binary.AppendUvarint(scratch, uint64(s.size))
	scratch = binary.AppendUvarint(scratch, uint64(len(s.blocks)))
	if _, err := bw.Write(scratch); err != nil {
		_ = cw.Close()
		return seekio.NewError("save", s.path, err)
	}
	for _, b := range s.blocks {
		if err := bw.WriteByte(byte(b.state)); err != nil {
			_ = cw.Close()
			return seekio.NewError("save", s.path, err)
		}
		if b.state == blockKnown {
			if _, err := bw.Write(b.data); err != nil {
				_ = cw.Close()
				return seekio.NewError("save", s.path, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		_ = cw.Close()
		return seekio.NewError("save", s.path, err)
	}
	if err := cw.Close(); err != nil {
		return seekio.NewError("save", s.path, err)
	}

	st := s.Stats()
	s.logger.Debug("mirror saved",
		"codec", codec.String(),
		"known_blocks", st.KnownBlocks,
		"placeholder_blocks", st.PlaceholderBlocks)
	return nil
}

// LoadMirror replaces the block table with a snapshot written by
// SaveMirror. The snapshot must use this stream's block size. The resource
// size is taken from the snapshot, so Open does not ask the fetcher again.
func (s *Stream) LoadMirror(r io.Reader) error {
	if s.released {
		return seekio.NewError("load", s.path, seekio.ErrReleased)
	}

	header := make([]byte, len(snapshotMagic)+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return seekio.NewError("load", s.path, fmt.Errorf("%w: %w", ErrBadSnapshot, err))
	}
	if !bytes.Equal(header[:len(snapshotMagic)], snapshotMagic) {
		return seekio.NewError("load", s.path, fmt.Errorf("%w: bad magic", ErrBadSnapshot))
	}
	if v := header[len(snapshotMagic)]; v != snapshotVersion {
		return seekio.NewError("load", s.path, fmt.Errorf("%w: version %d", ErrBadSnapshot, v))
	}
	codec := Codec(header[len(snapshotMagic)+1])

	cr, err := newDecompressor(r, codec)
	if err != nil {
		return seekio.NewError("load", s.path, fmt.Errorf("%w: %w", ErrBadSnapshot, err))
	}
	defer func() { _ = cr.Close() }()

	size, blocks, err := s.decodeTable(bufio.NewReader(cr))
	if err != nil {
		return seekio.NewError("load", s.path, fmt.Errorf("%w: %w", ErrBadSnapshot, err))
	}

	s.size = size
	s.blocks = blocks
	s.initialized = true
	st := s.Stats()
	s.logger.Debug("mirror loaded",
		"codec", codec.String(),
		"size", size,
		"known_blocks", st.KnownBlocks,
		"placeholder_blocks", st.PlaceholderBlocks)
	return nil
}

func (s *Stream) decodeTable(br *bufio.Reader) (int64, []block, error) {
	bs, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, err
	}
	if int64(bs) != s.blockSize {
		return 0, nil, fmt.Errorf("block size %d, stream uses %d", bs, s.blockSize)
	}
	usize, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, err
	}
	if usize > uint64(math.MaxInt64-s.blockSize) {
		return 0, nil, fmt.Errorf("size %d out of range", usize)
	}
	size := int64(usize)
	nb, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, nil, err
	}
	count := (size + s.blockSize - 1) / s.blockSize
	if count > math.MaxInt || nb != uint64(count) {
		return 0, nil, fmt.Errorf("%d blocks for size %d", nb, size)
	}

	// Blocks are appended as they are read; the announced count is never
	// allocated up front.
	var blocks []block
	for i := 0; i < int(count); i++ {
		state, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, nil, err
		}
		switch blockState(state) {
		case blockUnknown, blockPlaceholder:
			blocks = append(blocks, block{state: blockState(state)})
		case blockKnown:
			start, stop := s.blockRange(i, size)
			data := make([]byte, stop-start)
			if _, err := io.ReadFull(br, data); err != nil {
				return 0, nil, err
			}
			blocks = append(blocks, block{state: blockKnown, data: data})
		default:
			return 0, nil, fmt.Errorf("block %d: state %d", i, state)
		}
	}
	return size, blocks, nil
}

func newCompressor(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecZstd:
		return zstd.NewWriter(w)
	case CodecGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", seekio.ErrNotSupported, codec)
	}
}

func newDecompressor(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CodecGzip:
		return gzip.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: %s", seekio.ErrNotSupported, codec)
	}
}
