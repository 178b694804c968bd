package domain

import "time"

// ScanSummary is the outcome of one scan over the document store.
type ScanSummary struct {
	Scanned           int `json:"scanned"`
	New               int `json:"new"`
	Updated           int `json:"updated"`
	Unchanged         int `json:"unchanged"`
	Failed            int `json:"failed"`
	QueuedForApproval int `json:"queued_for_approval"`
}

// ScanStatus is the observable state of the orchestrator's scan loop.
type ScanStatus struct {
	IsScanning  bool         `json:"is_scanning"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	LastSummary *ScanSummary `json:"last_summary,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
}
