package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven/mocks"
)

func TestCatalogStats(t *testing.T) {
	registry := mocks.NewMockDocumentRegistry()
	jobs := mocks.NewMockJobStore()
	approvals := mocks.NewMockApprovalStore()
	catalog := NewCatalog(registry, jobs, approvals)
	ctx := context.Background()

	require.NoError(t, registry.Save(ctx, &domain.SourceDocument{ID: "a", StoragePath: "a.txt", Vectorized: true, UploadedAt: time.Now()}))
	require.NoError(t, registry.Save(ctx, &domain.SourceDocument{ID: "b", StoragePath: "b.txt", UploadedAt: time.Now()}))

	job := domain.NewProcessingJob("a")
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, jobs.MarkProcessing(ctx, job.ID))
	require.NoError(t, jobs.MarkCompleted(ctx, job.ID, 3, 3))

	failed := domain.NewProcessingJob("b")
	require.NoError(t, jobs.Create(ctx, failed))
	require.NoError(t, jobs.MarkFailed(ctx, failed.ID, "boom"))

	require.NoError(t, approvals.Upsert(ctx, &domain.PendingApproval{
		ID: "ap-1", DocumentID: "b", Decision: domain.DecisionUpdate,
		Status: domain.ApprovalStatusPending, CreatedAt: time.Now(),
	}))

	stats, err := catalog.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 1, stats.VectorizedDocuments)
	assert.Equal(t, 1, stats.UnvectorizedDocuments)
	assert.Equal(t, 1, stats.PendingApprovals)
	assert.Equal(t, 1, stats.ProcessingJobs.Completed)
	assert.Equal(t, 1, stats.ProcessingJobs.Failed)
}

func TestCatalogListJobs_EnrichedWithDocument(t *testing.T) {
	registry := mocks.NewMockDocumentRegistry()
	jobs := mocks.NewMockJobStore()
	catalog := NewCatalog(registry, jobs, mocks.NewMockApprovalStore())
	ctx := context.Background()

	require.NoError(t, registry.Save(ctx, &domain.SourceDocument{
		ID: "a", FileName: "report.txt", StoragePath: "report.txt", UploadedAt: time.Now(),
	}))
	require.NoError(t, jobs.Create(ctx, domain.NewProcessingJob("a")))

	views, err := catalog.ListJobs(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Document)
	assert.Equal(t, "report.txt", views[0].Document.FileName)
}

func TestCatalogListDocuments_VectorizedFilter(t *testing.T) {
	registry := mocks.NewMockDocumentRegistry()
	catalog := NewCatalog(registry, mocks.NewMockJobStore(), mocks.NewMockApprovalStore())
	ctx := context.Background()

	require.NoError(t, registry.Save(ctx, &domain.SourceDocument{ID: "a", StoragePath: "a.txt", Vectorized: true, UploadedAt: time.Now()}))
	require.NoError(t, registry.Save(ctx, &domain.SourceDocument{ID: "b", StoragePath: "b.txt", UploadedAt: time.Now()}))

	vectorized := true
	docs, err := catalog.ListDocuments(ctx, &vectorized, 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
}
