package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// JobStatus represents the current state of a processing job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ProcessingJob is one attempt to process one source document.
// A document accumulates one job per scan that found it changed; the latest
// job represents its current processing status. Completed and failed jobs
// are immutable.
type ProcessingJob struct {
	ID              string     `json:"id"`
	DocumentID      string     `json:"document_id"`
	Status          JobStatus  `json:"status"`
	ChunksProcessed int        `json:"chunks_processed"`
	VectorsCreated  int        `json:"vectors_created"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewProcessingJob creates a pending job for a document.
func NewProcessingJob(documentID string) *ProcessingJob {
	return &ProcessingJob{
		ID:         GenerateID(),
		DocumentID: documentID,
		Status:     JobStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// JobCounts aggregates processing jobs by status.
type JobCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// PipelineStats is the aggregate view exposed to operators.
type PipelineStats struct {
	TotalDocuments        int       `json:"total_documents"`
	VectorizedDocuments   int       `json:"vectorized_documents"`
	UnvectorizedDocuments int       `json:"unvectorized_documents"`
	PendingApprovals      int       `json:"pending_approvals"`
	ProcessingJobs        JobCounts `json:"processing_jobs"`
}
