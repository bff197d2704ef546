package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// spoolToTemp copies an uploaded multipart file to a temp path so format
// parsers (which read by path, matching how they handle files dropped on
// disk by other collaborators) can operate uniformly regardless of
// upload transport. The caller must invoke the returned cleanup func.
func spoolToTemp(src io.Reader, filename string) (path string, cleanup func(), err error) {
	safeName := filepath.Base(filename)
	tmp, err := os.CreateTemp("", "ragcore-upload-*-"+safeName)
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("spooling upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
