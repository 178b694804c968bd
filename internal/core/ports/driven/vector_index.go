package driven

import (
	"context"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

// VectorIndex is the external nearest-neighbor store (Qdrant).
// The collection dimension is configured once and constant for the index's
// lifetime; writes with a different dimension are rejected upstream.
type VectorIndex interface {
	// EnsureCollection creates the collection if missing
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes chunk vectors; existing point IDs are overwritten
	Upsert(ctx context.Context, vectors []domain.ChunkVector) error

	// Delete removes points by ID
	Delete(ctx context.Context, pointIDs []string) error

	// DeleteByDocument removes all points owned by a document
	DeleteByDocument(ctx context.Context, documentID string) error

	// Query returns the topK nearest neighbors of vector, excluding points
	// owned by excludeDocumentID (empty string excludes nothing)
	Query(ctx context.Context, vector []float32, excludeDocumentID string, topK int) ([]domain.ScoredPoint, error)

	// Count returns the total number of points in the collection
	Count(ctx context.Context) (int, error)

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error
}
