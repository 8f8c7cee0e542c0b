package simulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/subset"
	"github.com/wonny/walletsim/pkg/logger"
)

// fakeEvaluator scores a candidate by its first weight; panics or errors on request
type fakeEvaluator struct {
	calls   int64
	panicOn string
	failOn  string
	onCall  func(n int64)
}

func (f *fakeEvaluator) Evaluate(_ *contracts.PriceTable, c contracts.Candidate) (contracts.WalletResult, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if f.onCall != nil {
		f.onCall(n)
	}
	if c.Assets[0] == f.panicOn {
		panic("corrupt slice")
	}
	if c.Assets[0] == f.failOn {
		return contracts.WalletResult{}, contracts.ErrMalformedPrices
	}
	return contracts.WalletResult{
		Assets:        c.Assets,
		Weights:       c.Weights,
		SharpeRatio:   c.Weights[0],
		SharpeDefined: true,
	}, nil
}

func pool(n, k int) []contracts.WeightSample {
	out := make([]contracts.WeightSample, n)
	for i := range out {
		w := make([]float64, k)
		w[0] = float64(i+1) / float64(n+1)
		rest := (1 - w[0]) / float64(max(k-1, 1))
		for j := 1; j < k; j++ {
			w[j] = rest
		}
		out[i] = contracts.InBounds(w, 1)
	}
	return out
}

func enumerate(t *testing.T, universe []string, k int) *subset.Enumerator {
	t.Helper()
	e, err := subset.NewEnumerator(universe, k)
	require.NoError(t, err)
	return e
}

func TestScheduler_EvaluatesFullProduct(t *testing.T) {
	tests := []struct {
		name      string
		universe  []string
		k         int
		wallets   int
		workers   int
		batchSize int
	}{
		{"single worker", []string{"A", "B", "C", "D"}, 2, 3, 1, 1},
		{"batch larger than total", []string{"A", "B", "C", "D", "E"}, 3, 4, 4, 1000},
		{"uneven batches", []string{"A", "B", "C", "D", "E", "F", "G"}, 2, 5, 3, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := enumerate(t, tt.universe, tt.k)
			want := e.Count() * tt.wallets
			eval := &fakeEvaluator{}
			s := NewScheduler(eval, Options{Workers: tt.workers, BatchSize: tt.batchSize}, logger.NewNop())

			var last Progress
			report, err := s.Run(context.Background(), nil, e, pool(tt.wallets, tt.k), func(p Progress) { last = p })
			require.NoError(t, err)

			assert.Equal(t, want, report.Total)
			assert.Equal(t, want, report.Dispatched)
			assert.Len(t, report.Results, want)
			assert.Empty(t, report.Failures)
			assert.False(t, report.Cancelled)
			assert.Equal(t, int64(want), atomic.LoadInt64(&eval.calls))
			assert.Equal(t, want, last.Done)
			assert.Equal(t, 100.0, last.Percent())

			// 모든 (subset, wallet) 쌍이 정확히 한 번씩
			seen := make(map[string]int)
			for _, r := range report.Results {
				seen[r.Assets.String()]++
			}
			for _, n := range seen {
				assert.Equal(t, tt.wallets, n)
			}
		})
	}
}

func TestScheduler_IsolatesFailures(t *testing.T) {
	// subsets of {A,B,C,D} size 2: A* = 3, B* = 2, C* = 1
	eval := &fakeEvaluator{panicOn: "B", failOn: "C"}
	s := NewScheduler(eval, Options{Workers: 2, BatchSize: 2}, logger.NewNop())

	report, err := s.Run(context.Background(), nil, enumerate(t, []string{"A", "B", "C", "D"}, 2), pool(2, 2), nil)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Total)
	assert.Len(t, report.Results, 6)
	assert.Len(t, report.Failures, 6)
	for _, f := range report.Failures {
		assert.True(t, errors.Is(f, contracts.ErrWorkerFailure), "failure %v", f)
	}
}

func TestScheduler_DimensionMismatchIsTaskFailure(t *testing.T) {
	s := NewScheduler(&fakeEvaluator{}, Options{Workers: 1}, logger.NewNop())

	report, err := s.Run(context.Background(), nil, enumerate(t, []string{"A", "B", "C"}, 2), pool(2, 3), nil)
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	require.Len(t, report.Failures, 6)
	assert.True(t, errors.Is(report.Failures[0], contracts.ErrDimensionMismatch))
}

func TestScheduler_EmptySearchSpace(t *testing.T) {
	s := NewScheduler(&fakeEvaluator{}, Options{}, logger.NewNop())

	_, err := s.Run(context.Background(), nil, enumerate(t, []string{"A", "B"}, 1), nil, nil)
	assert.True(t, errors.Is(err, contracts.ErrEmptySearchSpace))
}

func TestScheduler_CancelBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eval := &fakeEvaluator{}
	s := NewScheduler(eval, Options{Workers: 2, BatchSize: 1}, logger.NewNop())

	report, err := s.Run(ctx, nil, enumerate(t, []string{"A", "B", "C"}, 2), pool(3, 2), nil)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Dispatched)
	assert.Empty(t, report.Results)
	assert.Equal(t, int64(0), atomic.LoadInt64(&eval.calls))
}

func TestScheduler_CancelDrainsInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	eval := &fakeEvaluator{onCall: func(n int64) {
		if n == 3 {
			once.Do(cancel)
			time.Sleep(5 * time.Millisecond)
		}
	}}
	s := NewScheduler(eval, Options{Workers: 1, BatchSize: 1}, logger.NewNop())

	universe := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	report, err := s.Run(ctx, nil, enumerate(t, universe, 2), pool(10, 2), nil)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Less(t, report.Dispatched, report.Total)
	// 배분된 batch는 모두 처리되고 부분 결과는 유효
	assert.Equal(t, report.Dispatched, len(report.Results)+len(report.Failures))
	best, err := SelectBest(report.Results)
	require.NoError(t, err)
	assert.True(t, best.SharpeDefined)
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(&fakeEvaluator{}, Options{}, logger.NewNop())
	assert.Positive(t, s.Workers())
	assert.Equal(t, DefaultBatchSize, s.batchSize)
}
