package blob

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

func newTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewFSStore(root, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	require.NoError(t, err)
	return store, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestList(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.md", "bravo")
	writeFile(t, root, ".hidden", "skip me")
	writeFile(t, root, "pending/upload.txt", "still uploading")

	files, err := store.List(context.Background(), "")
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.md"}, paths)
}

func TestList_Prefix(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "docs/a.txt", "alpha")
	writeFile(t, root, "other/b.txt", "bravo")

	files, err := store.List(context.Background(), "docs/")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "docs/a.txt", files[0].Path)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, int64(5), files[0].Size)
}

func TestRead(t *testing.T) {
	store, root := newTestStore(t)
	writeFile(t, root, "sub/doc.txt", "content here")

	data, err := store.Read(context.Background(), "sub/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "content here", string(data))
}

func TestRead_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Read(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRead_PathEscape(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Read(context.Background(), "../outside.txt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWatch(t *testing.T) {
	store, root := newTestStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, events)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "new.txt", "fresh upload")

	select {
	case path := <-events:
		assert.Equal(t, "new.txt", path)
	case <-ctx.Done():
		t.Fatal("timed out waiting for watch event")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_IgnoresPendingUploads(t *testing.T) {
	store, root := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pending"), 0o755))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events := make(chan string, 16)
	go store.Watch(ctx, events)

	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "pending/partial.txt", "not ready")
	writeFile(t, root, "visible.txt", "ready")

	select {
	case path := <-events:
		assert.Equal(t, "visible.txt", path)
	case <-ctx.Done():
		t.Fatal("timed out waiting for watch event")
	}
}
