package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is an in-memory DocumentStore
type MockDocumentStore struct {
	mu    sync.RWMutex
	files map[string][]byte

	// ListErr, when set, is returned by List
	ListErr error
	// ReadErrs maps paths to injected Read failures
	ReadErrs map[string]error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		files:    make(map[string][]byte),
		ReadErrs: make(map[string]error),
	}
}

// Put adds or replaces a file
func (m *MockDocumentStore) Put(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// Remove deletes a file
func (m *MockDocumentStore) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

func (m *MockDocumentStore) List(ctx context.Context, prefix string) ([]domain.FileInfo, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []domain.FileInfo
	for path, content := range m.files {
		if prefix != "" && !strings.HasPrefix(path, prefix) {
			continue
		}
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		files = append(files, domain.FileInfo{
			Path:       path,
			Name:       name,
			Size:       int64(len(content)),
			ModifiedAt: time.Now(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (m *MockDocumentStore) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.ReadErrs[path]; ok {
		return nil, err
	}
	content, ok := m.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return content, nil
}
