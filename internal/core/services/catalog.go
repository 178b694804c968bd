package services

import (
	"context"
	"fmt"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
	"github.com/scopeworks/kbcore/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.CatalogService = (*Catalog)(nil)

// Catalog exposes read-only views over the registry and job history
type Catalog struct {
	registry  driven.DocumentRegistry
	jobs      driven.JobStore
	approvals driven.ApprovalStore
}

// NewCatalog creates a catalog service
func NewCatalog(registry driven.DocumentRegistry, jobs driven.JobStore, approvals driven.ApprovalStore) *Catalog {
	return &Catalog{
		registry:  registry,
		jobs:      jobs,
		approvals: approvals,
	}
}

// ListDocuments retrieves tracked documents
func (c *Catalog) ListDocuments(ctx context.Context, vectorized *bool, limit, offset int) ([]*domain.SourceDocument, error) {
	docs, err := c.registry.List(ctx, vectorized, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListJobs retrieves processing jobs enriched with their documents
func (c *Catalog) ListJobs(ctx context.Context, status domain.JobStatus, limit, offset int) ([]*driving.JobView, error) {
	jobs, err := c.jobs.List(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	views := make([]*driving.JobView, 0, len(jobs))
	for _, job := range jobs {
		view := &driving.JobView{ProcessingJob: job}
		if doc, docErr := c.registry.Get(ctx, job.DocumentID); docErr == nil {
			view.Document = &driving.DocumentSummary{
				ID:          doc.ID,
				FileName:    doc.FileName,
				StoragePath: doc.StoragePath,
				ByteSize:    doc.ByteSize,
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Stats aggregates document, approval and job counts
func (c *Catalog) Stats(ctx context.Context) (*domain.PipelineStats, error) {
	total, vectorized, err := c.registry.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("document counts: %w", err)
	}

	pending, err := c.approvals.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("pending approval count: %w", err)
	}

	jobCounts, err := c.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}

	return &domain.PipelineStats{
		TotalDocuments:        total,
		VectorizedDocuments:   vectorized,
		UnvectorizedDocuments: total - vectorized,
		PendingApprovals:      pending,
		ProcessingJobs:        jobCounts,
	}, nil
}
