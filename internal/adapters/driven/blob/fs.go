// Package blob provides document store adapters over raw file storage.
package blob

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.DocumentStore        = (*FSStore)(nil)
	_ driven.DocumentStoreWatcher = (*FSStore)(nil)
)

// pendingPrefix holds files still being uploaded; the scanner must not
// pick them up until they are moved into place.
const pendingPrefix = "pending/"

// FSStore serves documents from a directory tree on the local filesystem
type FSStore struct {
	root   string
	logger *slog.Logger
}

// NewFSStore creates a filesystem-backed document store rooted at root
func NewFSStore(root string, logger *slog.Logger) (*FSStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", root)
	}

	return &FSStore{
		root:   root,
		logger: logger.With(slog.String("component", "fs_store")),
	}, nil
}

// List returns all files under prefix, skipping hidden files and the
// pending upload area. Paths are relative to the store root with forward
// slashes.
func (s *FSStore) List(ctx context.Context, prefix string) ([]domain.FileInfo, error) {
	var files []domain.FileInfo

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(rel, prefix) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		files = append(files, domain.FileInfo{
			Path:       rel,
			Name:       d.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return files, nil
}

func skipDir(rel string) bool {
	if rel == "." {
		return false
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}
	return strings.HasPrefix(rel+"/", pendingPrefix)
}

// Read returns the raw bytes of one file
func (s *FSStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	return data, nil
}

// resolve joins path onto the root and rejects escapes
func (s *FSStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: path %s escapes document root", domain.ErrInvalidInput, path)
	}
	return full, nil
}

// Watch reports created and modified files until ctx is cancelled. Events
// for a single upload burst are debounced; callers receive at most one
// event per path per debounce window. Directories created at runtime are
// added to the watch list.
func (s *FSStore) Watch(ctx context.Context, events chan<- string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, s.root); err != nil {
		return fmt.Errorf("watch document root: %w", err)
	}

	s.logger.Info("document store watcher started", slog.String("root", s.root))

	const debounce = 500 * time.Millisecond
	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			s.logger.Info("document store watcher stopped")
			return nil

		case <-flushCh:
			for path := range pending {
				select {
				case events <- path:
				case <-ctx.Done():
					return nil
				}
			}
			pending = make(map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("failed to watch new directory",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			rel, relErr := filepath.Rel(s.root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if strings.HasPrefix(filepath.Base(rel), ".") || strings.HasPrefix(rel, pendingPrefix) {
				continue
			}

			pending[rel] = struct{}{}
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("document store watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher. The pending upload area is not watched.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && (strings.HasPrefix(base, ".") || base == strings.TrimSuffix(pendingPrefix, "/")) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
