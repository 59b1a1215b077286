package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteStream copies r into a new file at path, creating parent directories.
// Returns the number of bytes written. The destination is removed on failure
// so a partial write never masquerades as a complete upload.
func WriteStream(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return written, nil
}

// DirSize returns the total size in bytes of regular files under dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
