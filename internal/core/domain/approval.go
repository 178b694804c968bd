package domain

import "time"

// Decision classifies why the similarity gate held a document.
type Decision string

const (
	// DecisionDuplicate indicates a likely re-upload of existing content.
	DecisionDuplicate Decision = "duplicate"
	// DecisionUpdate indicates a likely revision of existing content.
	DecisionUpdate Decision = "update"
	// DecisionNewWithConflict indicates new content with related matches.
	DecisionNewWithConflict Decision = "new-with-conflict"
)

// ApprovalStatus represents the state of a pending approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// RelatedDocument is an existing document matched by the similarity gate,
// with the best score among its chunk vectors.
type RelatedDocument struct {
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	Score      float64 `json:"similarity_score"`
}

// PendingApproval is a similarity-gate decision awaiting human disposition.
// The held chunk vectors are retained with the entry and committed to the
// vector index only on approval. A document has at most one pending entry at
// a time; a second conflicting change replaces the held content in place.
type PendingApproval struct {
	ID              string            `json:"id"`
	DocumentID      string            `json:"document_id"`
	Decision        Decision          `json:"decision"`
	Score           float64           `json:"similarity_score"`
	Reason          string            `json:"reason"`
	Related         []RelatedDocument `json:"related_documents"`
	HeldVectors     []ChunkVector     `json:"-"`
	Status          ApprovalStatus    `json:"status"`
	ReviewedBy      string            `json:"reviewed_by,omitempty"`
	ReviewerComment string            `json:"reviewer_comment,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}

// Routing is the similarity gate's verdict for a document.
type Routing struct {
	// Hold is false when the document is safe to ingest directly.
	Hold     bool
	Decision Decision
	Score    float64
	Reason   string
	Related  []RelatedDocument
}

// RoutingIngest is the direct-ingest verdict.
func RoutingIngest() Routing {
	return Routing{Hold: false}
}
