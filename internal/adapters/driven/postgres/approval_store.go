package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ApprovalStore = (*ApprovalStore)(nil)

// ApprovalStore implements driven.ApprovalStore using PostgreSQL.
// Held chunk vectors are stored as JSONB alongside the approval so the
// deferred index write needs no re-extraction on approval.
type ApprovalStore struct {
	db *DB
}

// NewApprovalStore creates a new ApprovalStore
func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// Upsert creates a pending approval, or replaces the content of the
// document's existing pending entry. The partial unique index on
// (document_id) WHERE status='pending' makes the conflict target work.
func (s *ApprovalStore) Upsert(ctx context.Context, approval *domain.PendingApproval) error {
	relatedJSON, err := json.Marshal(approval.Related)
	if err != nil {
		return err
	}
	heldJSON, err := json.Marshal(approval.HeldVectors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pending_approvals (id, document_id, decision, similarity_score, reason, related_docs, held_vectors, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		ON CONFLICT (document_id) WHERE status = 'pending' DO UPDATE SET
			decision = EXCLUDED.decision,
			similarity_score = EXCLUDED.similarity_score,
			reason = EXCLUDED.reason,
			related_docs = EXCLUDED.related_docs,
			held_vectors = EXCLUDED.held_vectors,
			created_at = EXCLUDED.created_at
	`

	_, err = s.db.ExecContext(ctx, query,
		approval.ID,
		approval.DocumentID,
		string(approval.Decision),
		approval.Score,
		approval.Reason,
		relatedJSON,
		heldJSON,
		approval.CreatedAt,
	)
	return err
}

const approvalColumns = `id, document_id, decision, similarity_score, reason, related_docs, status, COALESCE(reviewed_by, ''), COALESCE(reviewer_comment, ''), created_at, resolved_at`

// Get retrieves an approval by ID, including held vectors
func (s *ApprovalStore) Get(ctx context.Context, id string) (*domain.PendingApproval, error) {
	query := `SELECT ` + approvalColumns + `, held_vectors FROM pending_approvals WHERE id = $1`
	return s.scanApprovalWithVectors(s.db.QueryRowContext(ctx, query, id))
}

// GetPendingByDocument retrieves the document's pending entry, if any
func (s *ApprovalStore) GetPendingByDocument(ctx context.Context, documentID string) (*domain.PendingApproval, error) {
	query := `SELECT ` + approvalColumns + `, held_vectors FROM pending_approvals WHERE document_id = $1 AND status = 'pending'`
	return s.scanApprovalWithVectors(s.db.QueryRowContext(ctx, query, documentID))
}

func (s *ApprovalStore) scanApprovalWithVectors(row rowScanner) (*domain.PendingApproval, error) {
	approval, relatedJSON, heldJSON, err := scanApprovalRow(row, true)
	if err != nil {
		return nil, err
	}

	if len(relatedJSON) > 0 {
		if err := json.Unmarshal(relatedJSON, &approval.Related); err != nil {
			return nil, err
		}
	}
	if len(heldJSON) > 0 {
		if err := json.Unmarshal(heldJSON, &approval.HeldVectors); err != nil {
			return nil, err
		}
	}

	return approval, nil
}

func scanApprovalRow(row rowScanner, withVectors bool) (*domain.PendingApproval, []byte, []byte, error) {
	var approval domain.PendingApproval
	var relatedJSON, heldJSON []byte
	var resolvedAt sql.NullTime

	dest := []interface{}{
		&approval.ID,
		&approval.DocumentID,
		&approval.Decision,
		&approval.Score,
		&approval.Reason,
		&relatedJSON,
		&approval.Status,
		&approval.ReviewedBy,
		&approval.ReviewerComment,
		&approval.CreatedAt,
		&resolvedAt,
	}
	if withVectors {
		dest = append(dest, &heldJSON)
	}

	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, nil, err
	}

	approval.ResolvedAt = TimePtr(resolvedAt)
	return &approval, relatedJSON, heldJSON, nil
}

// Resolve transitions pending -> approved/rejected and clears held vectors.
// The status guard in the WHERE clause makes resolution race-safe: a retried
// or concurrent resolution matches zero rows and reports ErrAlreadyResolved.
func (s *ApprovalStore) Resolve(ctx context.Context, id string, status domain.ApprovalStatus, reviewedBy, comment string) error {
	query := `
		UPDATE pending_approvals
		SET status = $2, reviewed_by = $3, reviewer_comment = NULLIF($4, ''), resolved_at = $5, held_vectors = NULL
		WHERE id = $1 AND status = 'pending'
	`

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, id, string(status), reviewedBy, comment, time.Now().UTC())
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pending_approvals WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrNotFound
			}
			return domain.ErrAlreadyResolved
		}

		return nil
	})
}

// List retrieves approvals filtered by status, without held vectors
func (s *ApprovalStore) List(ctx context.Context, status domain.ApprovalStatus, limit, offset int) ([]*domain.PendingApproval, error) {
	query := `SELECT ` + approvalColumns + `
		FROM pending_approvals
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []*domain.PendingApproval
	for rows.Next() {
		approval, relatedJSON, _, err := scanApprovalRow(rows, false)
		if err != nil {
			return nil, err
		}
		if len(relatedJSON) > 0 {
			if err := json.Unmarshal(relatedJSON, &approval.Related); err != nil {
				return nil, err
			}
		}
		approvals = append(approvals, approval)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return approvals, nil
}

// CountPending returns the number of unresolved entries
func (s *ApprovalStore) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_approvals WHERE status = 'pending'`).Scan(&count)
	return count, err
}
