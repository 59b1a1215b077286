package fileutil_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"vodmill/internal/fileutil"
)

func TestWriteStreamCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "upload.mp4")
	written, err := fileutil.WriteStream(path, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("WriteStream failed: %v", err)
	}
	if written != int64(len("payload")) {
		t.Fatalf("written = %d", written)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestWriteStreamRemovesPartialOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.mp4")
	reader := iotest.TimeoutReader(strings.NewReader("partial data that fails"))
	if _, err := fileutil.WriteStream(path, reader); err == nil {
		t.Fatal("expected error from failing reader")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("partial file should be removed")
	}
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), []byte("123"), 0o644); err != nil {
		t.Fatal(err)
	}

	size, err := fileutil.DirSize(dir)
	if err != nil {
		t.Fatalf("DirSize failed: %v", err)
	}
	if size != 8 {
		t.Fatalf("size = %d, want 8", size)
	}
}
