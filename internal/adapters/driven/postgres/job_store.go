package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobStore = (*JobStore)(nil)

// JobStore implements driven.JobStore using PostgreSQL.
// Terminal transitions are guarded in SQL: completed and failed jobs are
// immutable because the UPDATE only matches non-terminal rows.
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new job
func (s *JobStore) Create(ctx context.Context, job *domain.ProcessingJob) error {
	query := `
		INSERT INTO processing_jobs (id, document_id, status, chunks_processed, vectors_created, error_message, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.DocumentID,
		string(job.Status),
		job.ChunksProcessed,
		job.VectorsCreated,
		job.Error,
		job.CreatedAt,
		NullTime(job.StartedAt),
		NullTime(job.CompletedAt),
	)
	return err
}

// MarkProcessing transitions pending -> processing
func (s *JobStore) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE processing_jobs
		SET status = 'processing', started_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	return s.transition(ctx, query, id, time.Now().UTC())
}

// MarkCompleted transitions processing -> completed with final counters
func (s *JobStore) MarkCompleted(ctx context.Context, id string, chunksProcessed, vectorsCreated int) error {
	query := `
		UPDATE processing_jobs
		SET status = 'completed', chunks_processed = $2, vectors_created = $3, completed_at = $4
		WHERE id = $1 AND status = 'processing'
	`
	return s.transition(ctx, query, id, chunksProcessed, vectorsCreated, time.Now().UTC())
}

// MarkFailed transitions processing -> failed with an error message
func (s *JobStore) MarkFailed(ctx context.Context, id string, message string) error {
	query := `
		UPDATE processing_jobs
		SET status = 'failed', error_message = $2, completed_at = $3
		WHERE id = $1 AND status IN ('pending', 'processing')
	`
	return s.transition(ctx, query, id, message, time.Now().UTC())
}

// transition runs a guarded UPDATE inside a transaction. When the update
// matches zero rows, the probe that classifies the miss reads the same
// snapshot, so a concurrent delete or transition cannot skew the answer.
func (s *JobStore) transition(ctx context.Context, query, id string, args ...interface{}) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			// Either the job does not exist or it already reached a
			// terminal state.
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM processing_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
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

const jobColumns = `id, document_id, status, chunks_processed, vectors_created, COALESCE(error_message, ''), created_at, started_at, completed_at`

// List retrieves jobs, optionally filtered by status, newest first
func (s *JobStore) List(ctx context.Context, status domain.JobStatus, limit, offset int) ([]*domain.ProcessingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, string(status), limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ProcessingJob
	for rows.Next() {
		var job domain.ProcessingJob
		var startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&job.ID,
			&job.DocumentID,
			&job.Status,
			&job.ChunksProcessed,
			&job.VectorsCreated,
			&job.Error,
			&job.CreatedAt,
			&startedAt,
			&completedAt,
		)
		if err != nil {
			return nil, err
		}

		job.StartedAt = TimePtr(startedAt)
		job.CompletedAt = TimePtr(completedAt)
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// LatestFailedDocumentIDs returns IDs of documents whose most recent job failed
func (s *JobStore) LatestFailedDocumentIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT document_id FROM (
			SELECT DISTINCT ON (document_id) document_id, status
			FROM processing_jobs
			ORDER BY document_id, created_at DESC
		) latest
		WHERE status = 'failed'
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// CountByStatus returns job counts grouped by status
func (s *JobStore) CountByStatus(ctx context.Context) (domain.JobCounts, error) {
	query := `SELECT status, COUNT(*) FROM processing_jobs GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return domain.JobCounts{}, err
	}
	defer rows.Close()

	var counts domain.JobCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.JobCounts{}, err
		}
		switch domain.JobStatus(status) {
		case domain.JobStatusPending:
			counts.Pending = count
		case domain.JobStatusProcessing:
			counts.Processing = count
		case domain.JobStatusCompleted:
			counts.Completed = count
		case domain.JobStatusFailed:
			counts.Failed = count
		}
	}

	return counts, rows.Err()
}
