package store

import (
	"context"
	"sync"

	"github.com/wonny/walletsim/internal/simulation"
)

// DefaultMemoryRuns bounds how many runs MemoryStore keeps
const DefaultMemoryRuns = 50

// MemoryStore keeps recent runs in process (used when DATABASE_URL is empty)
type MemoryStore struct {
	mu      sync.RWMutex
	max     int
	order   []string // 오래된 순
	runs    map[string]RunSummary
	wallets map[string][]WalletRow
}

// NewMemoryStore creates a store holding at most max runs
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMemoryRuns
	}
	return &MemoryStore{
		max:     max,
		runs:    make(map[string]RunSummary),
		wallets: make(map[string][]WalletRow),
	}
}

// SaveRun stores the run header and its top wallets, evicting the oldest run when full
func (m *MemoryStore) SaveRun(_ context.Context, outcome *simulation.Outcome, top int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := outcome.RunID
	if _, exists := m.runs[id]; !exists {
		m.order = append(m.order, id)
	}
	m.runs[id] = Summarize(outcome)
	m.wallets[id] = rankedRows(outcome.Ranked, top)

	for len(m.order) > m.max {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.runs, oldest)
		delete(m.wallets, oldest)
	}
	return nil
}

// ListRuns returns the newest runs first
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunSummary, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.runs[m.order[i]])
	}
	return out, nil
}

// GetRun returns one run header
func (m *MemoryStore) GetRun(_ context.Context, id string) (*RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// TopWallets returns up to limit ranked wallets of a run
func (m *MemoryStore) TopWallets(_ context.Context, id string, limit int) ([]WalletRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.wallets[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return append([]WalletRow(nil), rows...), nil
}
