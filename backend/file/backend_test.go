package file

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/memory"
)

// countingPlatform counts OpenFile calls made through the OS platform.
type countingPlatform struct {
	OSPlatform
	opens int
	wrap  bool
}

// wrappedFile hides the *os.File so mappings are emulated.
type wrappedFile struct {
	*os.File
}

func (p *countingPlatform) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	p.opens++
	f, err := p.OSPlatform.OpenFile(name, flag, perm)
	if err != nil || !p.wrap {
		return f, err
	}
	return wrappedFile{f.(*os.File)}, nil
}

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bin")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func newCounting(path string) (*Stream, *countingPlatform) {
	p := &countingPlatform{}
	config := DefaultConfig()
	config.Platform = p
	return NewWithConfig(path, config), p
}

func TestOpenRead(t *testing.T) {
	path := writeTestFile(t, "hello world")
	s := New(path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	got, err := seekio.ReadOrError(s, 5)
	if err != nil {
		t.Fatalf("ReadOrError failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read = %q, want %q", got, "hello")
	}
	if s.Tell() != 5 {
		t.Errorf("Tell = %d, want 5", s.Tell())
	}
	if s.Size() != 11 {
		t.Errorf("Size = %d, want 11", s.Size())
	}
}

func TestOpenNotFound(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))
	err := s.Open()
	if !seekio.IsNotFound(err) {
		t.Errorf("Open error = %v, want ErrNotFound", err)
	}
	if s.IsOpen() {
		t.Error("IsOpen after failed Open")
	}
	if s.Err() == nil {
		t.Error("Err() not set after failed Open")
	}
}

func TestOpenInvalidMode(t *testing.T) {
	s := New(writeTestFile(t, "x"))
	if err := s.OpenMode("rw"); !errors.Is(err, seekio.ErrInvalidMode) {
		t.Errorf("OpenMode error = %v, want ErrInvalidMode", err)
	}
}

func TestAppendUpdateOnUnwritablePathFails(t *testing.T) {
	// A directory can never be opened for writing.
	s := New(t.TempDir())
	if err := s.OpenMode("a+b"); err == nil {
		t.Fatal("OpenMode(a+b) on a directory succeeded")
	}
	if s.IsOpen() {
		t.Error("IsOpen = true after failed open")
	}
}

func TestReadOnClosedStream(t *testing.T) {
	s := New(writeTestFile(t, "abc"))
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, seekio.ErrNotOpen) {
		t.Errorf("Read error = %v, want ErrNotOpen", err)
	}
	if s.Tell() != -1 {
		t.Errorf("Tell on closed stream = %d, want -1", s.Tell())
	}
	if s.Size() != 3 {
		t.Errorf("Size on closed stream = %d, want 3", s.Size())
	}
}

func TestDualModeHandleNeverReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.bin")
	s, p := newCounting(path)
	if err := s.OpenMode("w+b"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _ = s.Write([]byte("0123456789"))
	_, _ = s.Seek(2, io.SeekStart)
	buf := make([]byte, 3)
	_, _ = s.Read(buf)
	_, _ = s.Write([]byte("ab"))
	_, _ = s.Read(buf[:1])
	_, _ = s.Seek(0, io.SeekStart)
	_ = s.WriteByte('Z')

	if p.opens != 1 {
		t.Errorf("OpenFile calls = %d, want 1", p.opens)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v, want nil", s.Err())
	}

	_ = s.Close()
	got, _ := os.ReadFile(path)
	if string(got) != "Z1234ab789" {
		t.Errorf("content = %q, want %q", got, "Z1234ab789")
	}
}

func TestIncompatibleModeReopensOnceAtOffset(t *testing.T) {
	path := writeTestFile(t, "abcdef")
	s, p := newCounting(path)
	if err := s.OpenMode("rb"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.Seek(3, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if _, err := s.Write([]byte("XY")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if p.opens != 2 {
		t.Errorf("OpenFile calls = %d, want 2", p.opens)
	}
	if s.Tell() != 5 {
		t.Errorf("Tell = %d, want 5", s.Tell())
	}
	if s.OpenModeString() != "r+b" {
		t.Errorf("open mode = %q, want %q", s.OpenModeString(), "r+b")
	}

	// The reopened handle permits both operations.
	c, err := s.ReadByte()
	if err != nil || c != 'f' {
		t.Errorf("ReadByte = %q, %v; want 'f', nil", c, err)
	}
	if p.opens != 2 {
		t.Errorf("OpenFile calls after read = %d, want 2", p.opens)
	}

	_ = s.Close()
	got, _ := os.ReadFile(path)
	if string(got) != "abcXYf" {
		t.Errorf("content = %q, want %q", got, "abcXYf")
	}
}

func TestWriteOnlyHandleReopensForRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.bin")
	s, p := newCounting(path)
	if err := s.OpenMode("wb"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _ = s.Write([]byte("hello"))
	_, _ = s.Seek(1, io.SeekStart)
	got, err := seekio.ReadOrError(s, 4)
	if err != nil {
		t.Fatalf("ReadOrError failed: %v", err)
	}
	if string(got) != "ello" {
		t.Errorf("Read = %q, want %q", got, "ello")
	}
	if p.opens != 2 {
		t.Errorf("OpenFile calls = %d, want 2", p.opens)
	}
}

func TestPositionInvariant(t *testing.T) {
	s := New(writeTestFile(t, "0123456789"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	for o := int64(0); o <= s.Size(); o++ {
		if _, err := s.Seek(o, io.SeekStart); err != nil {
			t.Fatalf("Seek(%d) failed: %v", o, err)
		}
		if s.Tell() != o {
			t.Errorf("Tell after Seek(%d) = %d", o, s.Tell())
		}
	}
}

func TestSeekPastEnd(t *testing.T) {
	s := New(writeTestFile(t, "abc"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.Seek(10, io.SeekStart); err != nil {
		t.Fatalf("Seek past end failed: %v", err)
	}
	n, err := s.Read(make([]byte, 2))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("Read = %d, %v; want 0, EOF", n, err)
	}
	if !s.EOF() {
		t.Error("EOF flag not set")
	}
	if _, err := s.Seek(-1, io.SeekStart); !errors.Is(err, seekio.ErrInvalidSeek) {
		t.Errorf("Seek(-1) error = %v, want ErrInvalidSeek", err)
	}
}

func TestShortReadSetsEOF(t *testing.T) {
	s := New(writeTestFile(t, "abc"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	buf := make([]byte, 8)
	n, err := s.Read(buf)
	if n != 3 || !errors.Is(err, io.EOF) {
		t.Errorf("Read = %d, %v; want 3, EOF", n, err)
	}
	if _, err := seekio.ReadOrError(s, 1); !errors.Is(err, seekio.ErrShortRead) {
		t.Errorf("ReadOrError error = %v, want ErrShortRead", err)
	}
}

func TestSizeReflectsWrites(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "grow.bin"))
	if err := s.OpenMode("wb"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	_, _ = s.Write(make([]byte, 100))
	if s.Size() != 100 {
		t.Errorf("Size = %d, want 100", s.Size())
	}
}

func TestMmapReadOnly(t *testing.T) {
	s := New(writeTestFile(t, "mapped content"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	data, err := s.Mmap(false)
	if err != nil {
		t.Fatalf("Mmap failed: %v", err)
	}
	if string(data) != "mapped content" {
		t.Errorf("Mmap = %q, want %q", data, "mapped content")
	}
	if !s.IsMapped() {
		t.Error("IsMapped = false after Mmap")
	}
	if err := s.Munmap(); err != nil {
		t.Errorf("Munmap failed: %v", err)
	}
	if s.IsMapped() {
		t.Error("IsMapped = true after Munmap")
	}
}

func TestMmapWriteBack(t *testing.T) {
	tests := []struct {
		name string
		wrap bool
		mode string
	}{
		{"native read-write", false, "r+b"},
		{"native from read-only", false, "rb"},
		{"emulated read-write", true, "r+b"},
		{"emulated from append", true, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestFile(t, "hello")
			s, p := newCounting(path)
			p.wrap = tt.wrap
			if err := s.OpenMode(tt.mode); err != nil {
				t.Fatalf("OpenMode failed: %v", err)
			}

			data, err := s.Mmap(true)
			if err != nil {
				t.Fatalf("Mmap failed: %v", err)
			}
			if tt.wrap && !s.mapping.emulated {
				t.Error("mapping of a wrapped handle is not emulated")
			}
			data[0] = 'J'
			if err := s.Munmap(); err != nil {
				t.Fatalf("Munmap failed: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			got, _ := os.ReadFile(path)
			if string(got) != "Jello" {
				t.Errorf("content = %q, want %q", got, "Jello")
			}
		})
	}
}

func TestMmapReleasedByClose(t *testing.T) {
	path := writeTestFile(t, "abc")
	s := New(path)
	if err := s.OpenMode("r+b"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	data, err := s.Mmap(true)
	if err != nil {
		t.Fatalf("Mmap failed: %v", err)
	}
	data[2] = 'C'
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.IsMapped() {
		t.Error("mapping still live after Close")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "abC" {
		t.Errorf("content = %q, want %q", got, "abC")
	}
}

func TestMmapEmptyFile(t *testing.T) {
	s := New(writeTestFile(t, ""))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	data, err := s.Mmap(false)
	if err != nil {
		t.Fatalf("Mmap failed: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("len(Mmap) = %d, want 0", len(data))
	}
}

func TestMmapClosedStream(t *testing.T) {
	s := New(writeTestFile(t, "abc"))
	_, err := s.Mmap(false)
	var se *seekio.Error
	if !errors.As(err, &se) || !errors.Is(err, seekio.ErrNotOpen) {
		t.Errorf("Mmap error = %v, want *seekio.Error wrapping ErrNotOpen", err)
	}
}

func TestTransferRenamePreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	dstPath := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(dstPath, []byte("old"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	config := DefaultConfig()
	config.TempDir = dir
	src, err := NewFromReader(strings.NewReader("new content"), config)
	if err != nil {
		t.Fatalf("NewFromReader failed: %v", err)
	}
	srcPath := src.Path()
	if err := os.Chmod(srcPath, 0644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	dst := New(dstPath)
	if err := dst.OpenMode("rb"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	if err := dst.Transfer(src); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	defer func() { _ = dst.Close() }()

	got, err := io.ReadAll(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "new content" {
		t.Errorf("content = %q, want %q", got, "new content")
	}
	if !dst.IsOpen() || dst.OpenModeString() != "rb" {
		t.Errorf("dst open state = %v %q, want true %q", dst.IsOpen(), dst.OpenModeString(), "rb")
	}

	fi, err := os.Stat(dstPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want %v", fi.Mode().Perm(), os.FileMode(0600))
	}

	if src.IsOpen() {
		t.Error("source still open after Transfer")
	}
	if src.IsTemporary() {
		t.Error("promoted source still temporary")
	}
	if err := src.Open(); !seekio.IsReleased(err) {
		t.Errorf("Open on transferred source error = %v, want ErrReleased", err)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Errorf("source file still exists: %v", err)
	}
}

func TestTransferFromMemoryCopies(t *testing.T) {
	path := writeTestFile(t, "a longer original body")
	dst := New(path)
	if err := dst.OpenMode("wb"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}

	src := memory.NewFromBytes([]byte("short"))
	_, _ = src.Seek(2, io.SeekStart)

	if err := dst.Transfer(src); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if dst.OpenModeString() != "r+b" {
		t.Errorf("restored mode = %q, want %q", dst.OpenModeString(), "r+b")
	}
	_ = dst.Close()

	got, _ := os.ReadFile(path)
	if string(got) != "short" {
		t.Errorf("content = %q, want %q", got, "short")
	}
	if src.IsOpen() {
		t.Error("source still open after Transfer")
	}
}

func TestTransferKeepsReadOnlyPermissions(t *testing.T) {
	path := writeTestFile(t, "old")
	if err := os.Chmod(path, 0444); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	dst := New(path)
	if err := dst.Transfer(memory.NewFromBytes([]byte("new"))); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
	fi, _ := os.Stat(path)
	if fi.Mode().Perm() != 0444 {
		t.Errorf("permissions = %v, want %v", fi.Mode().Perm(), os.FileMode(0444))
	}
	if dst.IsOpen() {
		t.Error("Transfer opened a stream that was closed")
	}
}

func TestTransferReleasedSource(t *testing.T) {
	src := New(writeTestFile(t, "x"))
	_ = src.Release()
	dst := New(writeTestFile(t, "y"))
	err := dst.Transfer(src)
	var se *seekio.Error
	if !errors.As(err, &se) || !seekio.IsReleased(err) {
		t.Errorf("Transfer error = %v, want *seekio.Error wrapping ErrReleased", err)
	}
}

func TestWriteFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	dst := New(path)
	if err := dst.OpenMode("wb"); err != nil {
		t.Fatalf("OpenMode failed: %v", err)
	}
	src := memory.NewFromBytes([]byte("prefix:body"))
	_, _ = src.Seek(7, io.SeekStart)

	n, err := dst.WriteFrom(src)
	if err != nil {
		t.Fatalf("WriteFrom failed: %v", err)
	}
	if n != 4 {
		t.Errorf("WriteFrom = %d, want 4", n)
	}
	_ = dst.Close()
	got, _ := os.ReadFile(path)
	if string(got) != "body" {
		t.Errorf("content = %q, want %q", got, "body")
	}
}

func TestReleaseRemovesTemporaryFile(t *testing.T) {
	config := DefaultConfig()
	config.TempDir = t.TempDir()
	s, err := NewFromReader(bytes.NewReader([]byte("stdin bytes")), config)
	if err != nil {
		t.Fatalf("NewFromReader failed: %v", err)
	}
	if !s.IsTemporary() {
		t.Error("ingested stream not temporary")
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, _ := io.ReadAll(s)
	if string(got) != "stdin bytes" {
		t.Errorf("content = %q, want %q", got, "stdin bytes")
	}

	path := s.Path()
	if err := s.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("temporary file still exists: %v", err)
	}
	if _, err := s.Read(make([]byte, 1)); !seekio.IsReleased(err) {
		t.Errorf("Read after Release error = %v, want ErrReleased", err)
	}
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"data:,hello%20world", "hello world", false},
		{"data:text/plain;base64,aGVsbG8=", "hello", false},
		{"DATA:;base64,aGVsbG8", "hello", false},
		{"data:image/png;charset=x;base64,aGVs\nbG8=", "hello", false},
		{"data:text/plain,", "", false},
		{"data:no-comma", "", true},
		{"data:;base64,!!!", "", true},
		{"http://example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := DecodeDataURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeDataURI error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("DecodeDataURI = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryFactories(t *testing.T) {
	path := writeTestFile(t, "registered")

	s, err := seekio.Open(path, nil)
	if err != nil {
		t.Fatalf("Open(path) failed: %v", err)
	}
	if _, ok := s.(*Stream); !ok {
		t.Errorf("Open(path) = %T, want *file.Stream", s)
	}

	s, err = seekio.Open("file://"+path, nil)
	if err != nil {
		t.Fatalf("Open(file URI) failed: %v", err)
	}
	if s.Path() != path {
		t.Errorf("Path = %q, want %q", s.Path(), path)
	}

	s, err = seekio.Open("data:,inline", map[string]string{"temp_dir": t.TempDir()})
	if err != nil {
		t.Fatalf("Open(data URI) failed: %v", err)
	}
	defer func() { _ = s.Release() }()
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := seekio.ReadOrError(s, 6)
	if err != nil || string(got) != "inline" {
		t.Errorf("data URI content = %q, %v; want %q", got, err, "inline")
	}
}

func TestConfigFromMap(t *testing.T) {
	config := ConfigFromMap(map[string]string{
		"file_permissions": "0600",
		"temp_dir":         "/var/tmp",
	})
	if config.FilePermissions != 0600 {
		t.Errorf("FilePermissions = %v, want 0600", config.FilePermissions)
	}
	if config.TempDir != "/var/tmp" {
		t.Errorf("TempDir = %q, want %q", config.TempDir, "/var/tmp")
	}

	config = ConfigFromMap(map[string]string{"file_permissions": "rw"})
	if config.FilePermissions != 0644 {
		t.Errorf("FilePermissions = %v, want default 0644", config.FilePermissions)
	}
}

func TestScopedCloser(t *testing.T) {
	s := New(writeTestFile(t, "abc"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	func() {
		c := seekio.NewCloser(s)
		defer func() { _ = c.Close() }()
		_, _ = s.ReadByte()
	}()
	if s.IsOpen() {
		t.Error("stream still open after scoped closer ran")
	}
}
