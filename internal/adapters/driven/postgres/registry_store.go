package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentRegistry = (*RegistryStore)(nil)

// RegistryStore implements driven.DocumentRegistry using PostgreSQL
type RegistryStore struct {
	db *DB
}

// NewRegistryStore creates a new RegistryStore
func NewRegistryStore(db *DB) *RegistryStore {
	return &RegistryStore{db: db}
}

// Save creates or updates a document record
func (s *RegistryStore) Save(ctx context.Context, doc *domain.SourceDocument) error {
	vectorIDs, err := json.Marshal(doc.VectorIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO kb_documents (id, file_name, storage_path, content_hash, byte_size, vectorized, vector_count, vector_ids, uploaded_at, last_checked, vectorized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			storage_path = EXCLUDED.storage_path,
			content_hash = EXCLUDED.content_hash,
			byte_size = EXCLUDED.byte_size,
			vectorized = EXCLUDED.vectorized,
			vector_count = EXCLUDED.vector_count,
			vector_ids = EXCLUDED.vector_ids,
			last_checked = EXCLUDED.last_checked,
			vectorized_at = EXCLUDED.vectorized_at
	`

	_, err = s.db.ExecContext(ctx, query,
		doc.ID,
		doc.FileName,
		doc.StoragePath,
		doc.ContentHash,
		doc.ByteSize,
		doc.Vectorized,
		doc.VectorCount,
		vectorIDs,
		doc.UploadedAt,
		NullTime(doc.LastChecked),
		NullTime(doc.VectorizedAt),
	)
	return err
}

const documentColumns = `id, file_name, storage_path, content_hash, byte_size, vectorized, vector_count, vector_ids, uploaded_at, last_checked, vectorized_at`

// Get retrieves a document by ID
func (s *RegistryStore) Get(ctx context.Context, id string) (*domain.SourceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM kb_documents WHERE id = $1`
	return scanDocument(s.db.QueryRowContext(ctx, query, id))
}

// GetByPath retrieves a document by its storage path
func (s *RegistryStore) GetByPath(ctx context.Context, path string) (*domain.SourceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM kb_documents WHERE storage_path = $1`
	return scanDocument(s.db.QueryRowContext(ctx, query, path))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	var vectorIDs []byte
	var lastChecked, vectorizedAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.StoragePath,
		&doc.ContentHash,
		&doc.ByteSize,
		&doc.Vectorized,
		&doc.VectorCount,
		&vectorIDs,
		&doc.UploadedAt,
		&lastChecked,
		&vectorizedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.LastChecked = TimePtr(lastChecked)
	doc.VectorizedAt = TimePtr(vectorizedAt)

	if len(vectorIDs) > 0 {
		if err := json.Unmarshal(vectorIDs, &doc.VectorIDs); err != nil {
			return nil, err
		}
	}

	return &doc, nil
}

// List retrieves documents, optionally filtered by vectorized flag
func (s *RegistryStore) List(ctx context.Context, vectorized *bool, limit, offset int) ([]*domain.SourceDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM kb_documents`
	args := []interface{}{}

	if vectorized != nil {
		query += ` WHERE vectorized = $1 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`
		args = append(args, *vectorized, limit, offset)
	} else {
		query += ` ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.SourceDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}

// Delete removes a document record
func (s *RegistryStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM kb_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Counts returns total and vectorized document counts
func (s *RegistryStore) Counts(ctx context.Context) (int, int, error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE vectorized) FROM kb_documents`

	var total, vectorized int
	err := s.db.QueryRowContext(ctx, query).Scan(&total, &vectorized)
	return total, vectorized, err
}
