package pricedata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/pkg/logger"
)

type fakeProvider struct {
	mu     sync.Mutex
	bars   map[string][]contracts.Bar
	err    error
	called map[string]int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchBars(_ context.Context, symbol string, _, _ time.Time) ([]contracts.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.called == nil {
		p.called = make(map[string]int)
	}
	p.called[symbol]++
	if p.err != nil {
		return nil, p.err
	}
	return p.bars[symbol], nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]contracts.Bar
}

func (m *memStore) SaveBars(_ context.Context, symbol string, bars []contracts.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]contracts.Bar)
	}
	m.data[symbol] = bars
	return nil
}

func (m *memStore) LoadBars(_ context.Context, symbol string, _, _ time.Time) ([]contracts.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bars, ok := m.data[symbol]; ok {
		return bars, nil
	}
	return nil, ErrNotFound
}

func closes(dates []string, values ...float64) []contracts.Bar {
	bars := make([]contracts.Bar, len(dates))
	for i, d := range dates {
		bars[i] = contracts.Bar{Date: day(d), Open: values[i], High: values[i], Low: values[i], Close: values[i]}
	}
	return bars
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to time.Time
		wantFrom time.Time
		wantTo   time.Time
		wantErr  bool
	}{
		{"both empty", time.Time{}, time.Time{}, day("2024-02-15"), day("2024-03-15"), false},
		{"end only", time.Time{}, day("2024-01-31"), day("2023-12-31"), day("2024-01-31"), false},
		{"both given", day("2023-01-01"), day("2023-12-31"), day("2023-01-01"), day("2023-12-31"), false},
		{"inverted", day("2024-02-01"), day("2024-01-01"), time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ResolveRange(tt.from, tt.to, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestLoader_LoadAlignsAndBackfills(t *testing.T) {
	provider := &fakeProvider{bars: map[string][]contracts.Bar{
		"A": closes([]string{"2024-01-02", "2024-01-03", "2024-01-04"}, 10, 11, 12),
		"B": closes([]string{"2024-01-02", "2024-01-04"}, 20, 22),
	}}
	db := &memStore{}
	csvStore := NewCSVStore(t.TempDir(), logger.NewNop())

	loader := NewLoader(provider, LoaderOptions{CSV: csvStore, DB: db, SaveCSV: true}, logger.NewNop())

	table, report, err := loader.Load(context.Background(), []string{"A", "B"}, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 1, report.DroppedDates)
	assert.Equal(t, SourceProvider, report.Sources["A"])

	colB, _ := table.Column("B")
	assert.Equal(t, []float64{20, 22}, colB)

	// 공급자 결과가 DB와 CSV에 저장됨
	assert.Len(t, db.data["A"], 3)
	saved, err := csvStore.LoadBars("B", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestLoader_PrefersStoredSeries(t *testing.T) {
	provider := &fakeProvider{}
	csvStore := NewCSVStore(t.TempDir(), logger.NewNop())
	from, to := day("2024-01-01"), day("2024-01-31")

	_, err := csvStore.SaveBars("A", from, to, closes([]string{"2024-01-02", "2024-01-03"}, 1, 2))
	require.NoError(t, err)

	db := &memStore{data: map[string][]contracts.Bar{
		"B": closes([]string{"2024-01-02", "2024-01-03"}, 3, 4),
	}}

	loader := NewLoader(provider, LoaderOptions{CSV: csvStore, DB: db}, logger.NewNop())

	_, report, err := loader.Load(context.Background(), []string{"A", "B"}, from, to)
	require.NoError(t, err)

	assert.Equal(t, SourceCSV, report.Sources["A"])
	assert.Equal(t, SourceDB, report.Sources["B"])
	assert.Empty(t, provider.called)
}

func TestLoader_ProviderError(t *testing.T) {
	boom := errors.New("upstream down")
	loader := NewLoader(&fakeProvider{err: boom}, LoaderOptions{Concurrency: 2}, logger.NewNop())

	_, _, err := loader.Load(context.Background(), []string{"A", "B", "C"}, day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, boom)
}

func TestLoader_EmptyProviderResult(t *testing.T) {
	loader := NewLoader(&fakeProvider{bars: map[string][]contracts.Bar{}}, LoaderOptions{}, logger.NewNop())

	_, _, err := loader.Load(context.Background(), []string{"A"}, day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
}

func TestLoader_NoProvider(t *testing.T) {
	loader := NewLoader(nil, LoaderOptions{CSV: NewCSVStore(t.TempDir(), logger.NewNop())}, logger.NewNop())

	_, _, err := loader.Load(context.Background(), []string{"A"}, day("2024-01-01"), day("2024-01-31"))
	assert.ErrorIs(t, err, ErrNotFound)
}
