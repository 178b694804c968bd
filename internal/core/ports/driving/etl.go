package driving

import (
	"context"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

// ScanService drives the ETL scan lifecycle.
type ScanService interface {
	// TriggerScan starts a scan in the background and returns immediately.
	// Returns domain.ErrScanInProgress if a scan is already running.
	TriggerScan(ctx context.Context) error

	// Status reports whether a scan is running and the last outcome.
	Status() domain.ScanStatus

	// ResetFailed re-queues documents whose latest job failed so the next
	// scan retries them. Returns the number of documents reset.
	ResetFailed(ctx context.Context) (int, error)
}

// ApprovalService resolves similarity-gate holds.
type ApprovalService interface {
	// List retrieves approvals by status (default pending)
	List(ctx context.Context, status domain.ApprovalStatus, limit, offset int) ([]*ApprovalView, error)

	// Approve commits the held vectors and updates the registry.
	// Returns domain.ErrAlreadyResolved if the entry is not pending.
	Approve(ctx context.Context, id, reviewedBy, comment string) (*ApprovalResult, error)

	// Reject discards the held vectors; registry and index untouched.
	// Returns domain.ErrAlreadyResolved if the entry is not pending.
	Reject(ctx context.Context, id, reviewedBy, comment string) error
}

// CatalogService exposes read-only views over the registry and job history.
type CatalogService interface {
	// ListDocuments retrieves tracked documents, optionally filtered by
	// vectorized flag
	ListDocuments(ctx context.Context, vectorized *bool, limit, offset int) ([]*domain.SourceDocument, error)

	// ListJobs retrieves processing jobs, optionally filtered by status
	ListJobs(ctx context.Context, status domain.JobStatus, limit, offset int) ([]*JobView, error)

	// Stats aggregates document, approval and job counts
	Stats(ctx context.Context) (*domain.PipelineStats, error)
}

// DocumentSummary is the compact document view embedded in listings.
type DocumentSummary struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
	ByteSize    int64  `json:"byte_size"`
}

// ApprovalView is a pending approval enriched with its document.
type ApprovalView struct {
	*domain.PendingApproval
	Document *DocumentSummary `json:"document,omitempty"`
}

// JobView is a processing job enriched with its document.
type JobView struct {
	*domain.ProcessingJob
	Document *DocumentSummary `json:"document,omitempty"`
}

// ApprovalResult reports the effect of an approval.
type ApprovalResult struct {
	DocumentID     string `json:"document_id"`
	FileName       string `json:"file_name"`
	VectorsCreated int    `json:"vectors_created"`
}
