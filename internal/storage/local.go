package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local writes files under dir; they are served publicly under publicPath.
type Local struct {
	dir        string
	publicPath string
}

func NewLocal(dir, publicPath string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, publicPath: strings.TrimRight(publicPath, "/")}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(_ context.Context, originalName string, r io.Reader, _ int64, _ string) (string, error) {
	name := objectName(originalName)
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmptyFile
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return l.publicPath + "/" + name, nil
}

func (l *Local) name(url string) (string, bool) {
	name, ok := strings.CutPrefix(url, l.publicPath+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}

func (l *Local) Owns(url string) bool {
	_, ok := l.name(url)
	return ok
}

func (l *Local) Remove(_ context.Context, url string) error {
	name, ok := l.name(url)
	if !ok {
		return nil
	}

	err := os.Remove(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
