package seekio_test

import (
	"testing"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/memory"
)

// trackingStream counts Close calls on top of a memory stream.
type trackingStream struct {
	seekio.Stream
	open   bool
	closes int
}

func (s *trackingStream) IsOpen() bool { return s.open }

func (s *trackingStream) Close() error {
	s.closes++
	s.open = false
	return nil
}

func TestCloserClosesOpenStream(t *testing.T) {
	s := &trackingStream{Stream: memory.New(), open: true}
	c := seekio.NewCloser(s)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if s.closes != 1 {
		t.Errorf("closes = %d, want 1", s.closes)
	}
	if c.Stream() != s {
		t.Error("Stream() should return the guarded stream")
	}
}

func TestCloserSkipsClosedStream(t *testing.T) {
	s := &trackingStream{Stream: memory.New()}
	c := seekio.NewCloser(s)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.closes != 0 {
		t.Errorf("closes = %d, want 0", s.closes)
	}

	var nilCloser *seekio.Closer
	if err := nilCloser.Close(); err != nil {
		t.Errorf("nil Closer Close = %v, want nil", err)
	}
}
