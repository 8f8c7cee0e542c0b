package brain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/internal/simulation"
	"github.com/wonny/walletsim/internal/store"
	"github.com/wonny/walletsim/pkg/logger"
)

type fakeProvider struct {
	closes map[string][]float64
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchBars(_ context.Context, symbol string, from, _ time.Time) ([]contracts.Bar, error) {
	vals, ok := p.closes[symbol]
	if !ok {
		return nil, errors.New("unknown symbol " + symbol)
	}
	bars := make([]contracts.Bar, len(vals))
	for i, v := range vals {
		bars[i] = contracts.Bar{Date: from.AddDate(0, 0, i+1), Close: v, Open: v, High: v, Low: v}
	}
	return bars, nil
}

type fakeIndex struct{ members []string }

func (f fakeIndex) FetchIndexConstituents(context.Context, string) ([]string, error) {
	return f.members, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if len(out) == 0 || out[len(out)-1] != e.Stage {
			out = append(out, e.Stage)
		}
	}
	return out
}

func testProvider() *fakeProvider {
	return &fakeProvider{closes: map[string][]float64{
		"A": {100, 101, 102, 104, 103, 105},
		"B": {50, 49, 51, 50, 52, 51},
		"C": {20, 20.5, 20.2, 20.8, 21, 21.5},
		"D": {10, 9.5, 9.8, 9.2, 9.0, 8.8},
	}}
}

func testProfile(t *testing.T) *runconfig.Profile {
	return &runconfig.Profile{
		Meta: runconfig.Meta{ProfileID: "test"},
		Universes: map[string]runconfig.Universe{
			"abcd": {Symbols: []string{"A", "B", "C", "D"}},
			"idx":  {Index: "KPI200"},
		},
		Data: runconfig.Data{Start: "2024-01-01", End: "2024-01-31"},
		Search: runconfig.Search{
			Universe:          "abcd",
			SubsetSize:        2,
			Wallets:           20,
			MinWeight:         0,
			MaxWeight:         1,
			MaxSampleAttempts: 100,
			TradingDays:       252,
			Seed:              7,
			Workers:           2,
			BatchSize:         5,
		},
		Output: runconfig.Output{Dir: t.TempDir(), TopN: 3, PersistDB: true},
	}
}

func TestOrchestrator_Run(t *testing.T) {
	runs := store.NewMemoryStore(10)
	events := &recorder{}

	o := NewOrchestrator(Deps{
		Provider:  testProvider(),
		Runs:      runs,
		Publisher: events,
	}, simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	result, err := o.Run(context.Background(), RunRequest{Profile: testProfile(t), RunID: "run-abc"})
	require.NoError(t, err)

	assert.Equal(t, "run-abc", result.RunID)
	assert.Equal(t, "run-abc", result.Outcome.RunID)
	assert.Equal(t, []string{StageUniverse, StagePrices, StageSimulate, StagePersist}, result.CompletedStages)
	assert.Equal(t, 6*20, result.Outcome.TotalTasks) // C(4,2) × 20
	assert.Len(t, result.ProfileHash, 64)
	assert.FileExists(t, result.CSVPath)
	assert.True(t, result.Persisted)

	wallets, err := runs.TopWallets(context.Background(), "run-abc", 0)
	require.NoError(t, err)
	assert.Len(t, wallets, 3)
	assert.Equal(t, result.Outcome.Best.SharpeRatio, wallets[0].SharpeRatio)

	stages := events.stages()
	assert.Equal(t, StageUniverse, stages[0])
	assert.Equal(t, StageDone, stages[len(stages)-1])
	assert.Contains(t, stages, StageSimulate)
}

func TestOrchestrator_NoDB(t *testing.T) {
	runs := store.NewMemoryStore(10)
	o := NewOrchestrator(Deps{Provider: testProvider(), Runs: runs}, simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	result, err := o.Run(context.Background(), RunRequest{Profile: testProfile(t), NoDB: true})
	require.NoError(t, err)
	assert.False(t, result.Persisted)
	assert.NotEmpty(t, result.RunID)

	list, _ := runs.ListRuns(context.Background(), 0)
	assert.Empty(t, list)
}

func TestOrchestrator_IndexUniverse(t *testing.T) {
	p := testProfile(t)
	p.Search.Universe = "idx"

	o := NewOrchestrator(Deps{
		Provider:     testProvider(),
		Constituents: fakeIndex{members: []string{"A", "C", "D"}},
	}, simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	result, err := o.Run(context.Background(), RunRequest{Profile: p})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, result.Universe)
	assert.Equal(t, 3*20, result.Outcome.TotalTasks)
}

func TestOrchestrator_SymbolsOverride(t *testing.T) {
	o := NewOrchestrator(Deps{Provider: testProvider()}, simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	result, err := o.Run(context.Background(), RunRequest{Profile: testProfile(t), Symbols: []string{"B", "D"}})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Outcome.TotalTasks)
}

func TestOrchestrator_Failures(t *testing.T) {
	events := &recorder{}
	o := NewOrchestrator(Deps{Provider: testProvider(), Publisher: events},
		simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	// 가격 단계 실패
	_, err := o.Run(context.Background(), RunRequest{Profile: testProfile(t), Symbols: []string{"A", "Z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StagePrices)

	last := events.events[len(events.events)-1]
	assert.True(t, last.Done)
	assert.NotEmpty(t, last.Error)

	// 지수 유니버스인데 구성종목 소스 없음
	p := testProfile(t)
	p.Search.Universe = "idx"
	_, err = o.Run(context.Background(), RunRequest{Profile: p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageUniverse)

	// 구조적 오류: subset 크기 > 유니버스
	p = testProfile(t)
	p.Search.SubsetSize = 5
	result, err := o.Run(context.Background(), RunRequest{Profile: p})
	require.Error(t, err)
	assert.Equal(t, []string{StageUniverse, StagePrices}, result.CompletedStages)

	_, err = o.Run(context.Background(), RunRequest{})
	assert.Error(t, err)
}

func TestOrchestrator_Fetch(t *testing.T) {
	p := testProfile(t)
	p.Data.Dir = t.TempDir()

	o := NewOrchestrator(Deps{Provider: testProvider()}, simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	result, err := o.Fetch(context.Background(), RunRequest{Profile: p})
	require.NoError(t, err)
	assert.Equal(t, []string{StageUniverse, StagePrices}, result.CompletedStages)
	assert.Equal(t, 6, result.Table.Len())
	assert.Equal(t, "provider", result.Load.Sources["A"])

	// 두 번째 호출은 CSV에서 읽음
	again, err := o.Fetch(context.Background(), RunRequest{Profile: p})
	require.NoError(t, err)
	assert.Equal(t, "csv", again.Load.Sources["A"])
}

func TestOrchestrator_PreloadedTable(t *testing.T) {
	dates := make([]time.Time, 5)
	for i := range dates {
		dates[i] = time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC)
	}
	table, err := contracts.NewPriceTable(dates, []string{"X", "Y", "Z"}, [][]float64{
		{10, 11, 10.5, 11.2, 11.8},
		{5, 4.9, 5.1, 5.3, 5.2},
		{100, 99, 101, 103, 102},
	})
	require.NoError(t, err)

	// provider 없이도 실행 가능해야 함
	o := NewOrchestrator(Deps{}, simulation.NewSimulator(logger.NewNop()), logger.NewNop())

	result, err := o.Run(context.Background(), RunRequest{Profile: testProfile(t), Table: table})
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, result.Universe)
	assert.Nil(t, result.Load)
	assert.Equal(t, 3*20, result.Outcome.TotalTasks)
}
