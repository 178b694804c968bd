package extractors

import (
	"context"
	"sort"
	"sync"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry. Extractors are tried in
// registration order; the first that supports the file wins.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.Extractor
}

// NewRegistry creates a new extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make([]driven.Extractor, 0),
	}
}

// Register registers an extractor.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, e)
}

// Get retrieves the extractor for a file, or nil if none supports it.
func (r *Registry) Get(fileName string) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.extractors {
		if e.Supports(fileName) {
			return e
		}
	}
	return nil
}

// Extract selects an extractor for the file and runs it.
func (r *Registry) Extract(ctx context.Context, data []byte, fileName string) (string, error) {
	e := r.Get(fileName)
	if e == nil {
		return "", &domain.ExtractionError{
			Kind:     domain.ExtractionUnsupported,
			FileName: fileName,
		}
	}
	return e.Extract(ctx, data, fileName)
}

// List returns the names of registered extractors, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry creates a registry with the plain-text extractor. Remote
// extraction for binary formats is added by the caller when configured.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPlainText())
	return r
}
