package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore persists uploads to a directory on the local filesystem.
// Duplicate filenames are accepted: each save is prefixed with a
// nanosecond timestamp so two uploads named "paper.pdf" never collide,
// per the binding duplicate-filename decision in DESIGN.md.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	safeName := sanitizeFilename(filename)
	storedName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), safeName)
	fullPath := filepath.Join(s.baseDir, storedName)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("storage: creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("storage: writing file: %w", err)
	}

	return storedName, nil
}

func (s *LocalStore) Open(ctx context.Context, storedPath string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.baseDir, storedPath))
	if err != nil {
		return nil, fmt.Errorf("storage: opening file: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, storedPath string) error {
	if err := os.Remove(filepath.Join(s.baseDir, storedPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: deleting file: %w", err)
	}
	return nil
}

// sanitizeFilename strips path separators so a crafted upload filename
// can't escape the upload directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return name
}
