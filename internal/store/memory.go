package store

import (
	"context"
	"sync"
	"time"

	"github.com/solatis/waveplanner/internal/types"
)

// record is one stored strategy with its own lock.
type record struct {
	mu sync.Mutex
	s  *types.Strategy
}

// MemoryStore is a process-local Store. Edits lock only the record being
// changed; the index lock is held just long enough to find it.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[types.StrategyID]*record
	order   []types.StrategyID
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[types.StrategyID]*record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, params CreateParams) (*types.Strategy, error) {
	s, err := newStrategy(params, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.records[s.ID] = &record{s: clone(s)}
	m.order = append(m.order, s.ID)
	m.mu.Unlock()

	return clone(s), nil
}

func (m *MemoryStore) lookup(id types.StrategyID) (*record, error) {
	m.mu.RLock()
	r, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return r, nil
}

func (m *MemoryStore) Get(_ context.Context, id types.StrategyID) (*types.Strategy, error) {
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.s), nil
}

func (m *MemoryStore) List(_ context.Context) ([]*types.Strategy, error) {
	m.mu.RLock()
	recs := make([]*record, len(m.order))
	for i, id := range m.order {
		recs[i] = m.records[id]
	}
	m.mu.RUnlock()

	out := make([]*types.Strategy, len(recs))
	for i, r := range recs {
		r.mu.Lock()
		out[i] = clone(r.s)
		r.mu.Unlock()
	}
	return out, nil
}

// edit applies fn to the record under its lock after the version check.
func (m *MemoryStore) edit(id types.StrategyID, expectedVersion int64, fn func(s *types.Strategy)) (*types.Strategy, error) {
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkVersion(id, r.s.Version, expectedVersion); err != nil {
		return nil, err
	}
	fn(r.s)
	r.s.Version++
	r.s.UpdatedAt = m.now()
	return clone(r.s), nil
}

func (m *MemoryStore) Rename(_ context.Context, id types.StrategyID, name string, expectedVersion int64) (*types.Strategy, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	return m.edit(id, expectedVersion, func(s *types.Strategy) {
		s.Name = name
	})
}

func (m *MemoryStore) UpdateRules(_ context.Context, id types.StrategyID, seq []types.Condition, expectedVersion int64) (*types.Strategy, error) {
	rules := append([]types.Condition{}, seq...)
	return m.edit(id, expectedVersion, func(s *types.Strategy) {
		s.Rules = rules
	})
}

func (m *MemoryStore) RecordMetrics(_ context.Context, id types.StrategyID, metrics types.RunMetrics) (*types.Strategy, error) {
	r, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.s.History = append(r.s.History, metrics)
	last := metrics
	r.s.LastMetrics = &last
	return clone(r.s), nil
}
