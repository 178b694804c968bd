package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driving"
)

const testSecret = "test-secret"

// Stub services

type stubScanService struct {
	inProgress bool
	status     domain.ScanStatus
	resetCount int
}

func (s *stubScanService) TriggerScan(ctx context.Context) error {
	if s.inProgress {
		return domain.ErrScanInProgress
	}
	return nil
}

func (s *stubScanService) Status() domain.ScanStatus { return s.status }

func (s *stubScanService) ResetFailed(ctx context.Context) (int, error) {
	return s.resetCount, nil
}

type stubApprovalService struct {
	views      []*driving.ApprovalView
	approveErr error
	rejectErr  error

	lastID       string
	lastReviewer string
	lastComment  string
}

func (s *stubApprovalService) List(ctx context.Context, status domain.ApprovalStatus, limit, offset int) ([]*driving.ApprovalView, error) {
	return s.views, nil
}

func (s *stubApprovalService) Approve(ctx context.Context, id, reviewedBy, comment string) (*driving.ApprovalResult, error) {
	s.lastID, s.lastReviewer, s.lastComment = id, reviewedBy, comment
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	return &driving.ApprovalResult{DocumentID: "doc-1", FileName: "guide.txt", VectorsCreated: 3}, nil
}

func (s *stubApprovalService) Reject(ctx context.Context, id, reviewedBy, comment string) error {
	s.lastID, s.lastReviewer, s.lastComment = id, reviewedBy, comment
	return s.rejectErr
}

type stubCatalogService struct {
	docs  []*domain.SourceDocument
	jobs  []*driving.JobView
	stats *domain.PipelineStats

	lastVectorized *bool
}

func (s *stubCatalogService) ListDocuments(ctx context.Context, vectorized *bool, limit, offset int) ([]*domain.SourceDocument, error) {
	s.lastVectorized = vectorized
	return s.docs, nil
}

func (s *stubCatalogService) ListJobs(ctx context.Context, status domain.JobStatus, limit, offset int) ([]*driving.JobView, error) {
	return s.jobs, nil
}

func (s *stubCatalogService) Stats(ctx context.Context) (*domain.PipelineStats, error) {
	return s.stats, nil
}

type stubHealth struct{ err error }

func (s *stubHealth) Ping(ctx context.Context) error        { return s.err }
func (s *stubHealth) HealthCheck(ctx context.Context) error { return s.err }

// Fixture

type serverFixture struct {
	server    *Server
	scans     *stubScanService
	approvals *stubApprovalService
	catalog   *stubCatalogService
	db        *stubHealth
	index     *stubHealth
	embedder  *stubHealth
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		scans:     &stubScanService{},
		approvals: &stubApprovalService{},
		catalog:   &stubCatalogService{stats: &domain.PipelineStats{}},
		db:        &stubHealth{},
		index:     &stubHealth{},
		embedder:  &stubHealth{},
	}

	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	f.server = NewServer(cfg, f.scans, f.approvals, f.catalog, f.db, f.index, f.embedder, logger)
	return f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func signToken(t *testing.T, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (f *serverFixture) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) adminRequest(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return f.request(t, method, path, signToken(t, "admin@example.com", "admin"), body)
}

// Health

func TestServer_Health(t *testing.T) {
	f := newServerFixture(t)
	rec := f.request(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyAllHealthy(t *testing.T) {
	f := newServerFixture(t)
	rec := f.request(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyDatabaseDown(t *testing.T) {
	f := newServerFixture(t)
	f.db.err = errors.New("connection refused")
	rec := f.request(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_ReadyIndexDown(t *testing.T) {
	f := newServerFixture(t)
	f.index.err = errors.New("connection refused")
	rec := f.request(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// Auth

func TestServer_ScanRequiresToken(t *testing.T) {
	f := newServerFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/etl/scan", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ScanRejectsInvalidToken(t *testing.T) {
	f := newServerFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/etl/scan", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ScanRejectsWrongSecret(t *testing.T) {
	f := newServerFixture(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin@example.com"},
	})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec := f.request(t, http.MethodPost, "/api/v1/etl/scan", signed, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ScanRejectsNonAdmin(t *testing.T) {
	f := newServerFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/etl/scan", signToken(t, "user@example.com", "member"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// Scan lifecycle

func TestServer_TriggerScanAccepted(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/scan", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_TriggerScanConflict(t *testing.T) {
	f := newServerFixture(t)
	f.scans.inProgress = true
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/scan", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ScanStatus(t *testing.T) {
	f := newServerFixture(t)
	f.scans.status = domain.ScanStatus{
		LastSummary: &domain.ScanSummary{Scanned: 12, New: 3, Unchanged: 9},
	}

	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/scan/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status domain.ScanStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsScanning)
	require.NotNil(t, status.LastSummary)
	assert.Equal(t, 12, status.LastSummary.Scanned)
}

func TestServer_ResetFailed(t *testing.T) {
	f := newServerFixture(t)
	f.scans.resetCount = 2

	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/reset-failed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["reset_count"])
}

// Approvals

func TestServer_ListApprovals(t *testing.T) {
	f := newServerFixture(t)
	f.approvals.views = []*driving.ApprovalView{
		{
			PendingApproval: &domain.PendingApproval{
				ID:         "appr-1",
				DocumentID: "doc-1",
				Decision:   domain.DecisionDuplicate,
				Score:      0.97,
				Status:     domain.ApprovalStatusPending,
			},
			Document: &driving.DocumentSummary{ID: "doc-1", FileName: "guide.txt"},
		},
	}

	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/approvals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []*driving.ApprovalView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "appr-1", views[0].ID)
	assert.Equal(t, "guide.txt", views[0].Document.FileName)
}

func TestServer_ListApprovalsInvalidStatus(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/approvals?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ApproveRecordsReviewer(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/approvals/appr-1/approve", `{"comment":"looks fine"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "appr-1", f.approvals.lastID)
	assert.Equal(t, "admin@example.com", f.approvals.lastReviewer)
	assert.Equal(t, "looks fine", f.approvals.lastComment)

	var result driving.ApprovalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.VectorsCreated)
}

func TestServer_ApproveNotFound(t *testing.T) {
	f := newServerFixture(t)
	f.approvals.approveErr = domain.ErrNotFound
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/approvals/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ApproveAlreadyResolved(t *testing.T) {
	f := newServerFixture(t)
	f.approvals.approveErr = domain.ErrAlreadyResolved
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/approvals/appr-1/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Reject(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/approvals/appr-1/reject", `{"comment":"stale copy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "appr-1", f.approvals.lastID)
	assert.Equal(t, "stale copy", f.approvals.lastComment)
}

func TestServer_RejectAlreadyResolved(t *testing.T) {
	f := newServerFixture(t)
	f.approvals.rejectErr = domain.ErrAlreadyResolved
	rec := f.adminRequest(t, http.MethodPost, "/api/v1/etl/approvals/appr-1/reject", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// Catalog

func TestServer_ListDocumentsVectorizedFilter(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/documents?vectorized=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.catalog.lastVectorized)
	assert.True(t, *f.catalog.lastVectorized)
}

func TestServer_ListDocumentsInvalidFilter(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/documents?vectorized=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListJobsInvalidStatus(t *testing.T) {
	f := newServerFixture(t)
	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/jobs?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Stats(t *testing.T) {
	f := newServerFixture(t)
	f.catalog.stats = &domain.PipelineStats{
		TotalDocuments:      10,
		VectorizedDocuments: 7,
		PendingApprovals:    2,
		ProcessingJobs:      domain.JobCounts{Completed: 8, Failed: 1},
	}

	rec := f.adminRequest(t, http.MethodGet, "/api/v1/etl/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.PipelineStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 10, stats.TotalDocuments)
	assert.Equal(t, 2, stats.PendingApprovals)
	assert.Equal(t, 8, stats.ProcessingJobs.Completed)
}
