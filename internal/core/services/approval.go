package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
	"github.com/scopeworks/kbcore/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.ApprovalService = (*ApprovalResolver)(nil)

// ApprovalResolver resolves similarity-gate holds. Approval commits the held
// vectors to the index and advances the registry; rejection discards them
// and leaves everything as it was. Both transitions are terminal: resolving
// an already-resolved entry fails with ErrAlreadyResolved instead of
// re-applying effects, so a retried approval request cannot double-ingest.
type ApprovalResolver struct {
	approvals driven.ApprovalStore
	registry  driven.DocumentRegistry
	index     driven.VectorIndex
	logger    *slog.Logger
}

// NewApprovalResolver creates an approval resolver
func NewApprovalResolver(approvals driven.ApprovalStore, registry driven.DocumentRegistry, index driven.VectorIndex, logger *slog.Logger) *ApprovalResolver {
	return &ApprovalResolver{
		approvals: approvals,
		registry:  registry,
		index:     index,
		logger:    logger.With(slog.String("component", "approval_resolver")),
	}
}

// List retrieves approvals by status, enriched with document details
func (r *ApprovalResolver) List(ctx context.Context, status domain.ApprovalStatus, limit, offset int) ([]*driving.ApprovalView, error) {
	if status == "" {
		status = domain.ApprovalStatusPending
	}

	approvals, err := r.approvals.List(ctx, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}

	views := make([]*driving.ApprovalView, 0, len(approvals))
	for _, approval := range approvals {
		view := &driving.ApprovalView{PendingApproval: approval}
		if doc, docErr := r.registry.Get(ctx, approval.DocumentID); docErr == nil {
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

// Approve commits the held vectors and updates the registry. The store
// transition runs first and acts as the idempotency barrier: a second
// approval of the same entry stops there.
//
// If the index write fails after the transition, the entry is already spent
// but the document remains unvectorized with an unchanged content hash. The
// next scan's recovery pass picks such documents up, re-runs the pipeline,
// and the gate queues a fresh entry for review, so the content is never
// lost; it just needs approving again.
func (r *ApprovalResolver) Approve(ctx context.Context, id, reviewedBy, comment string) (*driving.ApprovalResult, error) {
	approval, err := r.approvals.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := r.registry.Get(ctx, approval.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("approval %s references unknown document %s: %w", id, approval.DocumentID, err)
	}

	held := approval.HeldVectors
	if len(held) == 0 && approval.Status == domain.ApprovalStatusPending {
		return nil, fmt.Errorf("approval %s has no held vectors", id)
	}

	if err := r.approvals.Resolve(ctx, id, domain.ApprovalStatusApproved, reviewedBy, comment); err != nil {
		return nil, err
	}

	// The entry is resolved; commit the deferred index write. The
	// document's previous vectors are replaced, never merged.
	if err := r.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("delete previous vectors: %w", err)
	}
	if err := r.index.Upsert(ctx, held); err != nil {
		return nil, fmt.Errorf("commit held vectors: %w", err)
	}

	ids := make([]string, len(held))
	for i, v := range held {
		ids[i] = v.PointID
	}
	now := time.Now().UTC()
	doc.Vectorized = true
	doc.VectorCount = len(held)
	doc.VectorIDs = ids
	doc.VectorizedAt = &now

	if err := r.registry.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("update registry: %w", err)
	}

	r.logger.Info("approval committed",
		slog.String("approval_id", id),
		slog.String("document_id", doc.ID),
		slog.String("reviewed_by", reviewedBy),
		slog.Int("vectors", len(held)))

	return &driving.ApprovalResult{
		DocumentID:     doc.ID,
		FileName:       doc.FileName,
		VectorsCreated: len(held),
	}, nil
}

// Reject discards the held vectors. The index and registry are untouched.
func (r *ApprovalResolver) Reject(ctx context.Context, id, reviewedBy, comment string) error {
	if err := r.approvals.Resolve(ctx, id, domain.ApprovalStatusRejected, reviewedBy, comment); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyResolved) {
			return err
		}
		return fmt.Errorf("reject approval %s: %w", id, err)
	}

	r.logger.Info("approval rejected",
		slog.String("approval_id", id),
		slog.String("reviewed_by", reviewedBy))
	return nil
}
