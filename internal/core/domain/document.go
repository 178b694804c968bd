package domain

import "time"

// SourceDocument is one tracked file in the watched document store.
// The registry record is the single source of truth for its vectorization
// state; only the scan orchestrator and approval resolution mutate it.
type SourceDocument struct {
	ID           string     `json:"id"`
	FileName     string     `json:"file_name"`
	StoragePath  string     `json:"storage_path"` // unique path in the document store
	ContentHash  string     `json:"content_hash"` // sha256 hex of the raw bytes
	ByteSize     int64      `json:"byte_size"`
	Vectorized   bool       `json:"vectorized"`
	VectorCount  int        `json:"vector_count"`
	VectorIDs    []string   `json:"vector_ids,omitempty"` // point IDs owned by this document
	UploadedAt   time.Time  `json:"uploaded_at"`
	LastChecked  *time.Time `json:"last_checked,omitempty"`
	VectorizedAt *time.Time `json:"vectorized_at,omitempty"`
}

// Chunk is a contiguous slice of one document's extracted text.
// Chunks exist only in memory during processing; they are never persisted
// independently of the vectors they produce.
type Chunk struct {
	DocumentID string
	Ordinal    int // 0-based, contiguous
	Start      int // character offset, inclusive
	End        int // character offset, exclusive
	Text       string
	Preview    string // truncated text stored in the vector payload
}

// VectorPayload is the metadata attached to every point in the vector index.
type VectorPayload struct {
	DocumentID string    `json:"document_id"`
	FileName   string    `json:"file_name"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"` // chunk preview
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkVector is the embedding of one chunk as stored in the vector index.
// PointID is deterministic for (document ID, chunk ordinal), so
// re-vectorizing a document overwrites its points instead of duplicating.
type ChunkVector struct {
	PointID string        `json:"point_id"`
	Vector  []float32     `json:"vector"`
	Payload VectorPayload `json:"payload"`
}

// ScoredPoint is a nearest-neighbor hit returned by the vector index.
type ScoredPoint struct {
	PointID string
	Score   float64
	Payload VectorPayload
}

// FileInfo describes one file listed from the document store.
type FileInfo struct {
	Path       string
	Name       string
	Size       int64
	ModifiedAt time.Time
}
