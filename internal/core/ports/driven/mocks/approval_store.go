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
var _ driven.ApprovalStore = (*MockApprovalStore)(nil)

// MockApprovalStore is an in-memory ApprovalStore
type MockApprovalStore struct {
	mu        sync.RWMutex
	approvals map[string]*domain.PendingApproval
}

// NewMockApprovalStore creates a new MockApprovalStore
func NewMockApprovalStore() *MockApprovalStore {
	return &MockApprovalStore{approvals: make(map[string]*domain.PendingApproval)}
}

func (m *MockApprovalStore) Upsert(ctx context.Context, approval *domain.PendingApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Replace the document's existing pending entry in place.
	for _, existing := range m.approvals {
		if existing.DocumentID == approval.DocumentID && existing.Status == domain.ApprovalStatusPending {
			existing.Decision = approval.Decision
			existing.Score = approval.Score
			existing.Reason = approval.Reason
			existing.Related = approval.Related
			existing.HeldVectors = approval.HeldVectors
			existing.CreatedAt = approval.CreatedAt
			return nil
		}
	}

	cp := *approval
	cp.Status = domain.ApprovalStatusPending
	m.approvals[approval.ID] = &cp
	return nil
}

func (m *MockApprovalStore) Get(ctx context.Context, id string) (*domain.PendingApproval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	approval, ok := m.approvals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *approval
	return &cp, nil
}

func (m *MockApprovalStore) GetPendingByDocument(ctx context.Context, documentID string) (*domain.PendingApproval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, approval := range m.approvals {
		if approval.DocumentID == documentID && approval.Status == domain.ApprovalStatusPending {
			cp := *approval
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockApprovalStore) Resolve(ctx context.Context, id string, status domain.ApprovalStatus, reviewedBy, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	approval, ok := m.approvals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if approval.Status != domain.ApprovalStatusPending {
		return domain.ErrAlreadyResolved
	}
	approval.Status = status
	approval.ReviewedBy = reviewedBy
	approval.ReviewerComment = comment
	approval.HeldVectors = nil
	now := time.Now().UTC()
	approval.ResolvedAt = &now
	return nil
}

func (m *MockApprovalStore) List(ctx context.Context, status domain.ApprovalStatus, limit, offset int) ([]*domain.PendingApproval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var approvals []*domain.PendingApproval
	for _, approval := range m.approvals {
		if approval.Status != status {
			continue
		}
		cp := *approval
		cp.HeldVectors = nil
		approvals = append(approvals, &cp)
	}
	sort.Slice(approvals, func(i, j int) bool {
		return approvals[i].CreatedAt.After(approvals[j].CreatedAt)
	})

	return paginate(approvals, limit, offset), nil
}

func (m *MockApprovalStore) CountPending(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, approval := range m.approvals {
		if approval.Status == domain.ApprovalStatusPending {
			count++
		}
	}
	return count, nil
}
