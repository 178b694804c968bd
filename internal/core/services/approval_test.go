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

type approvalFixture struct {
	approvals *mocks.MockApprovalStore
	registry  *mocks.MockDocumentRegistry
	index     *mocks.MockVectorIndex
	resolver  *ApprovalResolver
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	f := &approvalFixture{
		approvals: mocks.NewMockApprovalStore(),
		registry:  mocks.NewMockDocumentRegistry(),
		index:     mocks.NewMockVectorIndex(),
	}
	f.resolver = NewApprovalResolver(f.approvals, f.registry, f.index, testLogger())
	return f
}

// seedHold registers a document and a pending approval holding its vectors.
func (f *approvalFixture) seedHold(t *testing.T, docID string) *domain.PendingApproval {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.registry.Save(ctx, &domain.SourceDocument{
		ID:          docID,
		FileName:    docID + ".txt",
		StoragePath: docID + ".txt",
		ContentHash: "hash-" + docID,
		UploadedAt:  time.Now().UTC(),
	}))

	approval := &domain.PendingApproval{
		ID:         "approval-" + docID,
		DocumentID: docID,
		Decision:   domain.DecisionDuplicate,
		Score:      0.97,
		Reason:     "content matches existing document",
		Related:    []domain.RelatedDocument{{DocumentID: "other", FileName: "other.txt", Score: 0.97}},
		HeldVectors: []domain.ChunkVector{
			{PointID: PointID(docID, 0), Vector: []float32{1, 0}, Payload: domain.VectorPayload{DocumentID: docID, ChunkIndex: 0}},
			{PointID: PointID(docID, 1), Vector: []float32{0, 1}, Payload: domain.VectorPayload{DocumentID: docID, ChunkIndex: 1}},
		},
		Status:    domain.ApprovalStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.approvals.Upsert(ctx, approval))
	return approval
}

func TestApprove_CommitsHeldVectors(t *testing.T) {
	f := newApprovalFixture(t)
	approval := f.seedHold(t, "doc-1")
	ctx := context.Background()

	result, err := f.resolver.Approve(ctx, approval.ID, "admin@example.com", "looks fine")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, 2, result.VectorsCreated)

	// Held vectors landed in the index.
	assert.Equal(t, 2, f.index.DocumentPointCount("doc-1"))

	// Registry advanced.
	doc, err := f.registry.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, doc.Vectorized)
	assert.Equal(t, 2, doc.VectorCount)
	assert.Len(t, doc.VectorIDs, 2)
	require.NotNil(t, doc.VectorizedAt)

	// Entry resolved with reviewer identity, held vectors cleared.
	resolved, err := f.approvals.Get(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, resolved.Status)
	assert.Equal(t, "admin@example.com", resolved.ReviewedBy)
	assert.Equal(t, "looks fine", resolved.ReviewerComment)
	assert.Empty(t, resolved.HeldVectors)
}

func TestApprove_ReplacesPreviousVectors(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	// The document already owns stale points from an earlier version.
	require.NoError(t, f.index.Upsert(ctx, []domain.ChunkVector{
		{PointID: "stale-0", Vector: []float32{0.5, 0.5}, Payload: domain.VectorPayload{DocumentID: "doc-1"}},
		{PointID: "stale-1", Vector: []float32{0.5, 0.5}, Payload: domain.VectorPayload{DocumentID: "doc-1"}},
		{PointID: "stale-2", Vector: []float32{0.5, 0.5}, Payload: domain.VectorPayload{DocumentID: "doc-1"}},
	}))

	approval := f.seedHold(t, "doc-1")
	_, err := f.resolver.Approve(ctx, approval.ID, "admin", "")
	require.NoError(t, err)

	// Exactly the held set survives; stale points are gone.
	assert.Equal(t, 2, f.index.DocumentPointCount("doc-1"))
	assert.False(t, f.index.Has("stale-0"))
}

func TestApprove_AlreadyResolved(t *testing.T) {
	f := newApprovalFixture(t)
	approval := f.seedHold(t, "doc-1")
	ctx := context.Background()

	_, err := f.resolver.Approve(ctx, approval.ID, "admin", "")
	require.NoError(t, err)

	// A retried approval must not double-apply.
	_, err = f.resolver.Approve(ctx, approval.ID, "admin", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Equal(t, 2, f.index.DocumentPointCount("doc-1"))
}

func TestApprove_NotFound(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.resolver.Approve(context.Background(), "missing", "admin", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReject_DiscardsHeldVectors(t *testing.T) {
	f := newApprovalFixture(t)
	approval := f.seedHold(t, "doc-1")
	ctx := context.Background()

	require.NoError(t, f.resolver.Reject(ctx, approval.ID, "admin@example.com", "duplicate upload"))

	// Nothing reached the index, registry untouched.
	assert.Equal(t, 0, f.index.DocumentPointCount("doc-1"))
	doc, err := f.registry.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, doc.Vectorized)

	resolved, err := f.approvals.Get(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, resolved.Status)
	assert.Empty(t, resolved.HeldVectors)
}

func TestReject_AlreadyResolved(t *testing.T) {
	f := newApprovalFixture(t)
	approval := f.seedHold(t, "doc-1")
	ctx := context.Background()

	require.NoError(t, f.resolver.Reject(ctx, approval.ID, "admin", ""))
	err := f.resolver.Reject(ctx, approval.ID, "admin", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestRejectThenApproveFails(t *testing.T) {
	f := newApprovalFixture(t)
	approval := f.seedHold(t, "doc-1")
	ctx := context.Background()

	require.NoError(t, f.resolver.Reject(ctx, approval.ID, "admin", ""))

	_, err := f.resolver.Approve(ctx, approval.ID, "admin", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	assert.Equal(t, 0, f.index.DocumentPointCount("doc-1"))
}

func TestList_EnrichedWithDocument(t *testing.T) {
	f := newApprovalFixture(t)
	f.seedHold(t, "doc-1")

	views, err := f.resolver.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)

	require.NotNil(t, views[0].Document)
	assert.Equal(t, "doc-1.txt", views[0].Document.FileName)
	assert.Equal(t, domain.DecisionDuplicate, views[0].Decision)
}
