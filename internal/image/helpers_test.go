package image_test

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTempFile writes buf to a temp file named name and returns its path.
func writeTempFile(t *testing.T, name string, buf []byte) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func openFile(t *testing.T, path string) (*os.File, error) {
	t.Helper()
	return os.Open(path)
}
