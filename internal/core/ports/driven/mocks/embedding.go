package mocks

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingService = (*MockEmbeddingService)(nil)

// MockEmbeddingService is a deterministic in-memory EmbeddingService. By
// default it derives a vector from the text's hash, so identical texts embed
// identically. Specific texts can be pinned to fixed vectors to control
// similarity scores in tests.
type MockEmbeddingService struct {
	mu    sync.RWMutex
	dim   int
	model string
	fixed map[string][]float32

	// EmbedErr, when set, is returned by Embed
	EmbedErr error
	// ForceDim, when non-zero, overrides the length of every returned
	// vector (for dimension-mismatch tests)
	ForceDim int

	closed bool
}

// NewMockEmbeddingService creates a mock embedder with the given dimension
func NewMockEmbeddingService(dim int) *MockEmbeddingService {
	return &MockEmbeddingService{
		dim:   dim,
		model: "mock-embedder",
		fixed: make(map[string][]float32),
	}
}

// Pin fixes the vector returned for a specific text
func (m *MockEmbeddingService) Pin(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = vector
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	dim := m.dim
	if m.ForceDim != 0 {
		dim = m.ForceDim
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.fixed[text]; ok {
			vectors[i] = v
			continue
		}
		vectors[i] = hashVector(text, dim)
	}
	return vectors, nil
}

func (m *MockEmbeddingService) Dimensions() int { return m.dim }

func (m *MockEmbeddingService) Model() string { return m.model }

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error { return nil }

func (m *MockEmbeddingService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called, for test assertions
func (m *MockEmbeddingService) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	h := fnv.New64a()
	for i := range v {
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		v[i] = float32(h.Sum64()%1000)/1000 - 0.5
	}
	return v
}
