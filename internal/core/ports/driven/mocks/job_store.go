package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.JobStore = (*MockJobStore)(nil)

// MockJobStore is an in-memory JobStore
type MockJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ProcessingJob
}

// NewMockJobStore creates a new MockJobStore
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{jobs: make(map[string]*domain.ProcessingJob)}
}

func (m *MockJobStore) Create(ctx context.Context, job *domain.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MockJobStore) MarkProcessing(ctx context.Context, id string) error {
	return m.transition(id, domain.JobStatusPending, func(job *domain.ProcessingJob) {
		job.Status = domain.JobStatusProcessing
		now := time.Now().UTC()
		job.StartedAt = &now
	})
}

func (m *MockJobStore) MarkCompleted(ctx context.Context, id string, chunksProcessed, vectorsCreated int) error {
	return m.transition(id, domain.JobStatusProcessing, func(job *domain.ProcessingJob) {
		job.Status = domain.JobStatusCompleted
		job.ChunksProcessed = chunksProcessed
		job.VectorsCreated = vectorsCreated
		now := time.Now().UTC()
		job.CompletedAt = &now
	})
}

func (m *MockJobStore) MarkFailed(ctx context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrAlreadyResolved
	}
	job.Status = domain.JobStatusFailed
	job.Error = message
	now := time.Now().UTC()
	job.CompletedAt = &now
	return nil
}

func (m *MockJobStore) transition(id string, from domain.JobStatus, apply func(*domain.ProcessingJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != from {
		return domain.ErrAlreadyResolved
	}
	apply(job)
	return nil
}

func (m *MockJobStore) List(ctx context.Context, status domain.JobStatus, limit, offset int) ([]*domain.ProcessingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []*domain.ProcessingJob
	for _, job := range m.jobs {
		if status != "" && job.Status != status {
			continue
		}
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return paginate(jobs, limit, offset), nil
}

func (m *MockJobStore) LatestFailedDocumentIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]*domain.ProcessingJob)
	for _, job := range m.jobs {
		cur, ok := latest[job.DocumentID]
		if !ok || job.CreatedAt.After(cur.CreatedAt) {
			latest[job.DocumentID] = job
		}
	}

	var ids []string
	for docID, job := range latest {
		if job.Status == domain.JobStatusFailed {
			ids = append(ids, docID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockJobStore) CountByStatus(ctx context.Context) (domain.JobCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var counts domain.JobCounts
	for _, job := range m.jobs {
		switch job.Status {
		case domain.JobStatusPending:
			counts.Pending++
		case domain.JobStatusProcessing:
			counts.Processing++
		case domain.JobStatusCompleted:
			counts.Completed++
		case domain.JobStatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

// Get returns a job by ID for test assertions
func (m *MockJobStore) Get(id string) *domain.ProcessingJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}
