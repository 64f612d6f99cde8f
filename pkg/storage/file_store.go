// Package storage persists uploaded files and hands back URL-like references
// stored on assignments and submissions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore stores uploads and re-opens them later by the URL it returned.
type BlobStore interface {
	// Save writes the upload and returns the URL to store on the record.
	Save(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (string, error)
	// Open returns the stored content for a URL produced by Save.
	Open(ctx context.Context, fileURL string) (io.ReadCloser, error)
	// Delete removes the stored content behind a URL produced by Save.
	Delete(ctx context.Context, fileURL string) error
}

const uploadURLPrefix = "/uploads/"

// FileStore keeps uploads on the local filesystem, referenced by
// /uploads/<name> paths served by the HTTP layer.
type FileStore struct {
	dir string
}

var _ BlobStore = (*FileStore)(nil)

// NewFileStore ensures the upload directory exists.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("upload dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory served under /uploads/.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) Save(_ context.Context, originalName string, r io.Reader, _ int64, _ string) (string, error) {
	name := uuid.NewString() + safeExt(originalName)
	dst, err := os.Create(filepath.Join(f.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return uploadURLPrefix + name, nil
}

func (f *FileStore) Open(_ context.Context, fileURL string) (io.ReadCloser, error) {
	name, ok := strings.CutPrefix(fileURL, uploadURLPrefix)
	if !ok || name == "" {
		return nil, fmt.Errorf("not a local upload reference: %q", fileURL)
	}
	// filepath.Base guards against traversal in stored references.
	file, err := os.Open(filepath.Join(f.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return file, nil
}

// Delete removes a stored upload by its /uploads/ reference.
func (f *FileStore) Delete(_ context.Context, fileURL string) error {
	name, ok := strings.CutPrefix(fileURL, uploadURLPrefix)
	if !ok || name == "" {
		return fmt.Errorf("not a local upload reference: %q", fileURL)
	}
	if err := os.Remove(filepath.Join(f.dir, filepath.Base(name))); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// safeExt keeps only a plain alphanumeric extension from the original name.
func safeExt(name string) string {
	ext := strings.ToLower(path.Ext(path.Base(name)))
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
