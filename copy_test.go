package seekio_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/memory"
)

// limitedWriter accepts at most limit bytes in total.
type limitedWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if room <= 0 {
		return 0, nil
	}
	if len(p) > room {
		p = p[:room]
	}
	return w.buf.Write(p)
}

func TestCopyFrom(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	src := memory.NewFromBytes(data)
	if _, err := src.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}

	var dst bytes.Buffer
	n, err := seekio.CopyFrom(&dst, src)
	if err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	if n != int64(len(data)-5) {
		t.Errorf("CopyFrom copied %d bytes, want %d", n, len(data)-5)
	}
	if !bytes.Equal(dst.Bytes(), data[5:]) {
		t.Error("CopyFrom copied wrong bytes")
	}
}

func TestCopyFromShortWriteRewindsSource(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 10000)
	src := memory.NewFromBytes(data)
	dst := &limitedWriter{limit: 5000}

	n, err := seekio.CopyFrom(dst, src)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("CopyFrom error = %v, want io.ErrShortWrite", err)
	}
	if n != 5000 {
		t.Errorf("CopyFrom copied %d bytes, want 5000", n)
	}
	if src.Tell() != 5000 {
		t.Errorf("source position = %d, want 5000", src.Tell())
	}
}

func TestCopyFromReleasedSource(t *testing.T) {
	src := memory.NewFromBytes([]byte("x"))
	_ = src.Release()

	if _, err := seekio.CopyFrom(io.Discard, src); !errors.Is(err, seekio.ErrNotOpen) {
		t.Errorf("CopyFrom error = %v, want ErrNotOpen", err)
	}
	if _, err := seekio.CopyFrom(io.Discard, nil); !errors.Is(err, seekio.ErrNotOpen) {
		t.Errorf("CopyFrom(nil) error = %v, want ErrNotOpen", err)
	}
}

func TestReadOrError(t *testing.T) {
	s := memory.NewFromBytes([]byte("abcdef"))

	got, err := seekio.ReadOrError(s, 4)
	if err != nil {
		t.Fatalf("ReadOrError failed: %v", err)
	}
	if string(got) != "abcd" {
		t.Errorf("ReadOrError = %q, want %q", got, "abcd")
	}

	got, err = seekio.ReadOrError(s, 4)
	var se *seekio.Error
	if !errors.As(err, &se) || !errors.Is(err, seekio.ErrShortRead) {
		t.Errorf("short ReadOrError error = %v, want *Error wrapping ErrShortRead", err)
	}
	if string(got) != "ef" {
		t.Errorf("short ReadOrError = %q, want %q", got, "ef")
	}

	if _, err := seekio.ReadOrError(s, -1); !errors.As(err, &se) {
		t.Errorf("negative ReadOrError error = %v, want *Error", err)
	}
}

func TestSeekOrError(t *testing.T) {
	s := memory.NewFromBytes([]byte("abcdef"))

	pos, err := seekio.SeekOrError(s, -2, io.SeekEnd)
	if err != nil {
		t.Fatalf("SeekOrError failed: %v", err)
	}
	if pos != 4 {
		t.Errorf("position = %d, want 4", pos)
	}

	_, err = seekio.SeekOrError(s, -1, io.SeekStart)
	var se *seekio.Error
	if !errors.As(err, &se) || !errors.Is(err, seekio.ErrInvalidSeek) {
		t.Errorf("SeekOrError error = %v, want *Error wrapping ErrInvalidSeek", err)
	}
}

func TestResolveSeek(t *testing.T) {
	tests := []struct {
		name    string
		pos     int64
		size    int64
		offset  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{"start", 5, 100, 10, io.SeekStart, 10, false},
		{"current", 5, 100, 10, io.SeekCurrent, 15, false},
		{"end", 5, 100, -10, io.SeekEnd, 90, false},
		{"past end", 5, 100, 50, io.SeekEnd, 150, false},
		{"before start", 5, 100, -6, io.SeekCurrent, 5, true},
		{"bad whence", 5, 100, 0, 7, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := seekio.ResolveSeek(tt.pos, tt.size, tt.offset, tt.whence)
			if tt.wantErr != (err != nil) {
				t.Fatalf("ResolveSeek error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, seekio.ErrInvalidSeek) {
				t.Errorf("ResolveSeek error = %v, want ErrInvalidSeek", err)
			}
			if got != tt.want {
				t.Errorf("ResolveSeek = %d, want %d", got, tt.want)
			}
		})
	}
}
