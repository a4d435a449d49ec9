package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grokify/seekio"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return p
}

func TestCat(t *testing.T) {
	p := writeTemp(t, "a.txt", "hello world")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"whole file", []string{"cat", p}, "hello world"},
		{"offset", []string{"cat", p, "--offset", "6"}, "world"},
		{"offset and length", []string{"cat", p, "--offset", "2", "--length", "3"}, "llo"},
		{"data uri", []string{"cat", "data:text/plain;base64,aGVsbG8="}, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("cat failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("cat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCatShortRead(t *testing.T) {
	p := writeTemp(t, "a.txt", "abc")

	got, err := execute(t, "cat", p, "--length", "10")
	if err == nil {
		t.Fatal("cat past the end should fail")
	}
	if got != "abc" {
		t.Errorf("cat = %q, want the bytes that were available", got)
	}
}

func TestCatMissing(t *testing.T) {
	_, err := execute(t, "cat", filepath.Join(t.TempDir(), "missing"))
	if !seekio.IsNotFound(err) {
		t.Errorf("cat error = %v, want ErrNotFound", err)
	}
}

func TestSize(t *testing.T) {
	p := writeTemp(t, "a.txt", "12345")

	got, err := execute(t, "size", p)
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if strings.TrimSpace(got) != "5" {
		t.Errorf("size = %q, want 5", got)
	}
}

func TestSum(t *testing.T) {
	p := writeTemp(t, "a.txt", "hello world")

	got, err := execute(t, "sum", "--hash", "md5", p)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	want := "5eb63bbbe01eeed093cb22bb8f5acdc3  " + p + "\n"
	if got != want {
		t.Errorf("sum = %q, want %q", got, want)
	}

	got, err = execute(t, "sum", p)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !strings.HasPrefix(got, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9") {
		t.Errorf("sha256 sum = %q", got)
	}
}

func TestSumUnsupportedHash(t *testing.T) {
	p := writeTemp(t, "a.txt", "x")
	if _, err := execute(t, "sum", "--hash", "whirlpool", p); err == nil {
		t.Error("sum with an unknown hash should fail")
	}
}

func TestCp(t *testing.T) {
	src := writeTemp(t, "src.txt", "copied content")
	dst := filepath.Join(t.TempDir(), "dst.txt")

	if _, err := execute(t, "cp", src, dst); err != nil {
		t.Fatalf("cp failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "copied content" {
		t.Errorf("dst = %q, want %q", got, "copied content")
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should still exist: %v", err)
	}
}

func TestCpOverwritesShorter(t *testing.T) {
	src := writeTemp(t, "src.txt", "new")
	dst := writeTemp(t, "dst.txt", "much longer old content")

	if _, err := execute(t, "cp", src, "file://"+dst); err != nil {
		t.Fatalf("cp failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("dst = %q, want %q", got, "new")
	}
}

func TestCatOverHTTP(t *testing.T) {
	content := []byte("remote bytes over http")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(content))
	}))
	defer srv.Close()

	got, err := execute(t, "cat", srv.URL+"/file.txt", "--offset", "7", "--length", "5",
		"--config", "retries=2,timeout=5", "--block-size", "4")
	if err != nil {
		t.Fatalf("cat failed: %v", err)
	}
	if got != "bytes" {
		t.Errorf("cat = %q, want %q", got, "bytes")
	}
}

func TestCpToHTTPIsReadOnly(t *testing.T) {
	src := writeTemp(t, "src.txt", "x")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader([]byte("old")))
	}))
	defer srv.Close()

	if _, err := execute(t, "cp", src, srv.URL+"/file.txt"); !seekio.IsNotSupported(err) {
		t.Errorf("cp error = %v, want ErrNotSupported", err)
	}
}

func TestArgsValidation(t *testing.T) {
	for _, args := range [][]string{
		{"cat"},
		{"size", "a", "b"},
		{"sum"},
		{"cp", "a"},
	} {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v should fail argument validation", args)
		}
	}
}
