package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalSaveAndRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewLocal(dir, "/uploads/")
	require.NoError(t, err)

	url, err := store.Save(ctx, "../../Terms.PDF", strings.NewReader("tender terms"), 12, "application/pdf")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/"))
	require.True(t, strings.HasSuffix(url, ".pdf"))

	name := strings.TrimPrefix(url, "/uploads/")
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, "tender terms", string(b))

	require.NoError(t, store.Remove(ctx, url))
	_, err = os.Stat(filepath.Join(dir, name))
	require.True(t, os.IsNotExist(err))

	// removing twice, or a foreign URL, is a no-op
	require.NoError(t, store.Remove(ctx, url))
	require.NoError(t, store.Remove(ctx, "https://example.com/file.pdf"))
}

func TestLocalRejectsEmptyFile(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "empty.txt", strings.NewReader(""), 0, "")
	require.ErrorIs(t, err, ErrEmptyFile)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestOwns(t *testing.T) {
	local, err := NewLocal(t.TempDir(), "/uploads/")
	require.NoError(t, err)

	remote, err := NewMinIO(MinIOConfig{
		Endpoint:  "minio.test:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "tenders",
		PublicURL: "http://minio.test/",
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		store FileStore
		url   string
		want  bool
	}{
		{name: "local upload", store: local, url: "/uploads/abc.pdf", want: true},
		{name: "local nested", store: local, url: "/uploads/a/b.pdf"},
		{name: "local prefix only", store: local, url: "/uploads/"},
		{name: "local external", store: local, url: "https://example.com/uploads/abc.pdf"},
		{name: "minio object", store: remote, url: "http://minio.test/tenders/tenders/abc.pdf", want: true},
		{name: "minio other bucket", store: remote, url: "http://minio.test/other/abc.pdf"},
		{name: "minio external", store: remote, url: "https://example.com/tenders/tenders/abc.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.store.Owns(tt.url))
		})
	}
}
