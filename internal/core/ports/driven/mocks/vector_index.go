package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// MockVectorIndex is an in-memory VectorIndex. Query computes real cosine
// similarity over the stored points, so similarity-gate tests can steer
// scores by choosing vectors.
type MockVectorIndex struct {
	mu        sync.RWMutex
	points    map[string]domain.ChunkVector
	dimension int

	// QueryErr, when set, is returned by Query
	QueryErr error
	// UpsertErr, when set, is returned by Upsert
	UpsertErr error
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{points: make(map[string]domain.ChunkVector)}
}

func (m *MockVectorIndex) EnsureCollection(ctx context.Context, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = dimension
	return nil
}

func (m *MockVectorIndex) Upsert(ctx context.Context, vectors []domain.ChunkVector) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		m.points[v.PointID] = v
	}
	return nil
}

func (m *MockVectorIndex) Delete(ctx context.Context, pointIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range pointIDs {
		delete(m.points, id)
	}
	return nil
}

func (m *MockVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range m.points {
		if v.Payload.DocumentID == documentID {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, excludeDocumentID string, topK int) ([]domain.ScoredPoint, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scored []domain.ScoredPoint
	for id, v := range m.points {
		if excludeDocumentID != "" && v.Payload.DocumentID == excludeDocumentID {
			continue
		}
		scored = append(scored, domain.ScoredPoint{
			PointID: id,
			Score:   cosine(vector, v.Vector),
			Payload: v.Payload,
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

func (m *MockVectorIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

// Has reports whether a point is stored, for test assertions
func (m *MockVectorIndex) Has(pointID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.points[pointID]
	return ok
}

// DocumentPointCount returns the number of points owned by a document
func (m *MockVectorIndex) DocumentPointCount(documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, v := range m.points {
		if v.Payload.DocumentID == documentID {
			count++
		}
	}
	return count
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
