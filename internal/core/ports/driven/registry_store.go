package driven

import (
	"context"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

// DocumentRegistry is the durable record of every known source document
// (PostgreSQL). It is the single source of truth for vectorization state.
type DocumentRegistry interface {
	// Save creates or updates a document record
	Save(ctx context.Context, doc *domain.SourceDocument) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.SourceDocument, error)

	// GetByPath retrieves a document by its storage path
	GetByPath(ctx context.Context, path string) (*domain.SourceDocument, error)

	// List retrieves documents, optionally filtered by vectorized flag,
	// newest first
	List(ctx context.Context, vectorized *bool, limit, offset int) ([]*domain.SourceDocument, error)

	// Delete removes a document record
	Delete(ctx context.Context, id string) error

	// Counts returns total and vectorized document counts
	Counts(ctx context.Context) (total int, vectorized int, err error)
}

// JobStore persists processing jobs (PostgreSQL).
type JobStore interface {
	// Create inserts a new job
	Create(ctx context.Context, job *domain.ProcessingJob) error

	// MarkProcessing transitions pending -> processing
	MarkProcessing(ctx context.Context, id string) error

	// MarkCompleted transitions processing -> completed and records final
	// counters. Fails with domain.ErrAlreadyResolved if the job is terminal.
	MarkCompleted(ctx context.Context, id string, chunksProcessed, vectorsCreated int) error

	// MarkFailed transitions processing -> failed with an error message.
	// Fails with domain.ErrAlreadyResolved if the job is terminal.
	MarkFailed(ctx context.Context, id string, message string) error

	// List retrieves jobs, optionally filtered by status, newest first
	List(ctx context.Context, status domain.JobStatus, limit, offset int) ([]*domain.ProcessingJob, error)

	// LatestFailedDocumentIDs returns IDs of documents whose most recent
	// job failed (for the reset-failed operation)
	LatestFailedDocumentIDs(ctx context.Context) ([]string, error)

	// CountByStatus returns job counts grouped by status
	CountByStatus(ctx context.Context) (domain.JobCounts, error)
}

// ApprovalStore persists pending approvals and their held vectors
// (PostgreSQL).
type ApprovalStore interface {
	// Upsert creates a pending approval, or replaces the held vectors,
	// score, reason and related documents of the document's existing
	// pending entry. A document never has two pending entries.
	Upsert(ctx context.Context, approval *domain.PendingApproval) error

	// Get retrieves an approval by ID, including held vectors
	Get(ctx context.Context, id string) (*domain.PendingApproval, error)

	// GetPendingByDocument retrieves the document's pending entry, if any
	GetPendingByDocument(ctx context.Context, documentID string) (*domain.PendingApproval, error)

	// Resolve transitions pending -> approved/rejected and records the
	// reviewer. Fails with domain.ErrAlreadyResolved if the entry is not
	// pending. Held vectors are cleared as part of resolution.
	Resolve(ctx context.Context, id string, status domain.ApprovalStatus, reviewedBy, comment string) error

	// List retrieves approvals filtered by status, newest first, without
	// held vectors
	List(ctx context.Context, status domain.ApprovalStatus, limit, offset int) ([]*domain.PendingApproval, error)

	// CountPending returns the number of unresolved entries
	CountPending(ctx context.Context) (int, error)
}
