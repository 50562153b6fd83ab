package repository

import (
	"context"
	"sync"
	"time"

	"github.com/tradexpert/whatsnew-admin/internal/drafts"
)

// MemoryRepo keeps drafts in process memory. It is the default store and the
// one unit tests use.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*drafts.Draft
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*drafts.Draft), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, d *drafts.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[d.ID] = d.Clone()
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*drafts.Draft, error) {
	m.mu.RLock()
	d, ok := m.store[id]
	m.mu.RUnlock()
	if !ok {
		return nil, drafts.ErrNotFound
	}
	if d.Expired(m.now()) {
		m.mu.Lock()
		delete(m.store, id)
		m.mu.Unlock()
		return nil, drafts.ErrNotFound
	}
	return d.Clone(), nil
}

func (m *MemoryRepo) Update(_ context.Context, d *drafts.Draft, prev int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[d.ID]
	if !ok || cur.Expired(m.now()) {
		return drafts.ErrNotFound
	}
	if cur.InFlight {
		return drafts.ErrInFlight
	}
	if cur.Version != prev {
		return drafts.ErrConflict
	}
	m.store[d.ID] = d.Clone()
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return drafts.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *MemoryRepo) ClaimSubmit(_ context.Context, id string) (*drafts.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok || cur.Expired(m.now()) {
		return nil, drafts.ErrNotFound
	}
	if cur.InFlight {
		return nil, drafts.ErrInFlight
	}
	cur.InFlight = true
	return cur.Clone(), nil
}

func (m *MemoryRepo) ReleaseSubmit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[id]
	if !ok {
		return drafts.ErrNotFound
	}
	cur.InFlight = false
	return nil
}

// Len reports how many drafts are held, expired ones included.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
