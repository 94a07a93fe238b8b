package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore persists tender attachments and returns the URL stored as the tender source.
type FileStore interface {
	Save(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (string, error)
	// Remove deletes a file previously returned by Save. Unknown URLs are ignored.
	Remove(ctx context.Context, url string) error
	// Owns reports whether url points into this store, i.e. could have come from Save.
	Owns(url string) bool
}

var ErrEmptyFile = errors.New("empty file")

// objectName keeps only the extension of the client's file name.
func objectName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}
