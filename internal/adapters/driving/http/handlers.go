package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/scopeworks/kbcore/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Verifies the database, vector index and embedder are reachable
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.db.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	if err := s.index.HealthCheck(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "vector index unavailable")
		return
	}
	if err := s.embedder.HealthCheck(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "embedding service unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Scan endpoints

// handleTriggerScan godoc
// @Summary      Trigger a knowledge-base scan
// @Description  Starts a scan of the document store in the background
// @Tags         ETL
// @Produce      json
// @Success      202  {object}  StatusResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/v1/etl/scan [post]
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	if err := s.scanService.TriggerScan(r.Context()); err != nil {
		if errors.Is(err, domain.ErrScanInProgress) {
			writeError(w, http.StatusConflict, "scan already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to trigger scan")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}

// handleScanStatus godoc
// @Summary      Scan status
// @Description  Reports whether a scan is running and the last outcome
// @Tags         ETL
// @Produce      json
// @Success      200  {object}  domain.ScanStatus
// @Router       /api/v1/etl/scan/status [get]
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scanService.Status())
}

// handleResetFailed godoc
// @Summary      Reset failed documents
// @Description  Re-queues documents whose latest processing job failed
// @Tags         ETL
// @Produce      json
// @Success      200  {object}  map[string]int
// @Router       /api/v1/etl/reset-failed [post]
func (s *Server) handleResetFailed(w http.ResponseWriter, r *http.Request) {
	count, err := s.scanService.ResetFailed(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset_count": count})
}

// Approval endpoints

// handleListApprovals godoc
// @Summary      List approvals
// @Description  Lists similarity-gate approvals, pending by default
// @Tags         Approvals
// @Produce      json
// @Param        status  query  string  false  "pending | approved | rejected"
// @Param        limit   query  int     false  "page size"
// @Param        offset  query  int     false  "page offset"
// @Success      200  {array}  driving.ApprovalView
// @Router       /api/v1/etl/approvals [get]
func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	status := domain.ApprovalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.ApprovalStatusPending, domain.ApprovalStatusApproved, domain.ApprovalStatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	limit, offset := pagination(r)
	views, err := s.approvalService.List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list approvals")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// resolveRequest is the optional body for approve/reject
type resolveRequest struct {
	Comment string `json:"comment"`
}

// handleApprove godoc
// @Summary      Approve a held document
// @Description  Commits the held vectors to the index and updates the registry
// @Tags         Approvals
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "approval ID"
// @Success      200  {object}  driving.ApprovalResult
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/v1/etl/approvals/{id}/approve [post]
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	identity := GetIdentity(r.Context())
	result, err := s.approvalService.Approve(r.Context(), id, identity.Subject, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "approval not found")
		case errors.Is(err, domain.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, "approval already resolved")
		default:
			writeError(w, http.StatusInternalServerError, "failed to approve")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleReject godoc
// @Summary      Reject a held document
// @Description  Discards the held vectors; index and registry are untouched
// @Tags         Approvals
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "approval ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/v1/etl/approvals/{id}/reject [post]
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	identity := GetIdentity(r.Context())
	if err := s.approvalService.Reject(r.Context(), id, identity.Subject, req.Comment); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "approval not found")
		case errors.Is(err, domain.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, "approval already resolved")
		default:
			writeError(w, http.StatusInternalServerError, "failed to reject")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// Catalog endpoints

// handleListDocuments godoc
// @Summary      List tracked documents
// @Tags         Catalog
// @Produce      json
// @Param        vectorized  query  bool  false  "filter by vectorization state"
// @Success      200  {array}  domain.SourceDocument
// @Router       /api/v1/etl/documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var vectorized *bool
	if raw := r.URL.Query().Get("vectorized"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid vectorized filter")
			return
		}
		vectorized = &v
	}

	limit, offset := pagination(r)
	docs, err := s.catalogService.ListDocuments(r.Context(), vectorized, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleListJobs godoc
// @Summary      List processing jobs
// @Tags         Catalog
// @Produce      json
// @Param        status  query  string  false  "pending | processing | completed | failed"
// @Success      200  {array}  driving.JobView
// @Router       /api/v1/etl/jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	limit, offset := pagination(r)
	views, err := s.catalogService.ListJobs(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// handleStats godoc
// @Summary      Pipeline statistics
// @Tags         Catalog
// @Produce      json
// @Success      200  {object}  domain.PipelineStats
// @Router       /api/v1/etl/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalogService.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// pagination parses limit/offset query parameters with sane bounds
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
