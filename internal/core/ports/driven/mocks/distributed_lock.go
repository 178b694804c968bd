package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock. TTLs are ignored;
// locks are held until released.
type MockDistributedLock struct {
	mu    sync.Mutex
	held  map[string]bool
	// AcquireErr, when set, is returned by Acquire
	AcquireErr error
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]bool)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// Held reports whether the named lock is currently held
func (m *MockDistributedLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[name]
}
