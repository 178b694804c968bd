// Package mocks provides in-memory implementations of the driven ports for
// testing.
package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentRegistry = (*MockDocumentRegistry)(nil)

// MockDocumentRegistry is an in-memory DocumentRegistry
type MockDocumentRegistry struct {
	mu     sync.RWMutex
	docs   map[string]*domain.SourceDocument
	byPath map[string]string // storage path -> document ID

	// SaveErr, when set, is returned by Save
	SaveErr error
}

// NewMockDocumentRegistry creates a new MockDocumentRegistry
func NewMockDocumentRegistry() *MockDocumentRegistry {
	return &MockDocumentRegistry{
		docs:   make(map[string]*domain.SourceDocument),
		byPath: make(map[string]string),
	}
}

func (m *MockDocumentRegistry) Save(ctx context.Context, doc *domain.SourceDocument) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.ID] = &cp
	m.byPath[doc.StoragePath] = doc.ID
	return nil
}

func (m *MockDocumentRegistry) Get(ctx context.Context, id string) (*domain.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentRegistry) GetByPath(ctx context.Context, path string) (*domain.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPath[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m.docs[id]
	return &cp, nil
}

func (m *MockDocumentRegistry) List(ctx context.Context, vectorized *bool, limit, offset int) ([]*domain.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*domain.SourceDocument
	for _, doc := range m.docs {
		if vectorized != nil && doc.Vectorized != *vectorized {
			continue
		}
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})

	return paginate(docs, limit, offset), nil
}

func (m *MockDocumentRegistry) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byPath, doc.StoragePath)
	delete(m.docs, id)
	return nil
}

func (m *MockDocumentRegistry) Counts(ctx context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vectorized := 0
	for _, doc := range m.docs {
		if doc.Vectorized {
			vectorized++
		}
	}
	return len(m.docs), vectorized, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
