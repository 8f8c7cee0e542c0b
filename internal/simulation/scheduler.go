package simulation

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/subset"
	"github.com/wonny/walletsim/pkg/logger"
)

// DefaultBatchSize is the number of candidates handed to a worker at once
const DefaultBatchSize = 1000

// maxLoggedFailures caps per-task failure log lines per run
const maxLoggedFailures = 20

// Evaluator evaluates one candidate against the shared, read-only price table
type Evaluator interface {
	Evaluate(table *contracts.PriceTable, c contracts.Candidate) (contracts.WalletResult, error)
}

// SubsetSource is a lazy single-pass subset stream with a known size
type SubsetSource interface {
	Next() bool
	Subset() contracts.AssetSubset
	Count() int
}

// Options sizes the worker pool
type Options struct {
	Workers   int // <= 0 → runtime.NumCPU()
	BatchSize int // <= 0 → DefaultBatchSize
}

// Progress is reported by the collector after every completed batch
type Progress struct {
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}

// Percent returns Done/Total in percent
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// ProgressFunc receives progress updates on the collecting goroutine
type ProgressFunc func(Progress)

// TaskFailure is one isolated candidate evaluation fault
type TaskFailure struct {
	Assets      contracts.AssetSubset `json:"assets"`
	WeightIndex int                   `json:"weight_index"`
	Err         error                 `json:"-"`
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("%s (wallet #%d): %v", f.Assets, f.WeightIndex, f.Err)
}

func (f TaskFailure) Unwrap() error {
	return f.Err
}

// Report is the raw output of one scheduled search
type Report struct {
	Results    []contracts.WalletResult // 완료 순서 (제출 순서 아님)
	Failures   []TaskFailure
	Total      int
	Dispatched int
	Cancelled  bool
	Elapsed    time.Duration
}

// Scheduler fans the subset × weight-pool product out to a fixed worker pool
// ⭐ SSOT: 병렬 평가 분배는 여기서만
type Scheduler struct {
	evaluator Evaluator
	workers   int
	batchSize int
	logger    *logger.Logger
}

// NewScheduler creates a scheduler
func NewScheduler(evaluator Evaluator, opts Options, log *logger.Logger) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &Scheduler{
		evaluator: evaluator,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		logger:    log.Component("scheduler"),
	}
}

// Workers returns the pool size
func (s *Scheduler) Workers() int {
	return s.workers
}

type task struct {
	candidate   contracts.Candidate
	weightIndex int
	err         error // 후보 생성 단계의 오류 (worker에서 실패로 처리)
}

type batchOutcome struct {
	results  []contracts.WalletResult
	failures []TaskFailure
}

// Run evaluates every (subset, weight vector) pair exactly once.
// 곱집합은 미리 만들지 않고 subset 단위로 lazy 생성한다.
// ctx 취소 시 새 batch 배분을 멈추고 이미 배분된 batch는 끝까지 처리한다.
func (s *Scheduler) Run(
	ctx context.Context,
	table *contracts.PriceTable,
	subsets SubsetSource,
	pool []contracts.WeightSample,
	progress ProgressFunc,
) (*Report, error) {
	nSubsets, nWeights := subsets.Count(), len(pool)
	if nSubsets == 0 || nWeights == 0 {
		return nil, fmt.Errorf("%w: %d subsets x %d wallets", contracts.ErrEmptySearchSpace, nSubsets, nWeights)
	}
	if nSubsets > math.MaxInt/nWeights {
		return nil, fmt.Errorf("%w: %d subsets x %d wallets", subset.ErrSearchSpaceTooLarge, nSubsets, nWeights)
	}

	start := time.Now()
	report := &Report{Total: nSubsets * nWeights}

	s.logger.WithFields(map[string]interface{}{
		"subsets":    nSubsets,
		"wallets":    nWeights,
		"tasks":      report.Total,
		"workers":    s.workers,
		"batch_size": s.batchSize,
	}).Info("Dispatching search")

	batches := make(chan []task, s.workers)
	outcomes := make(chan batchOutcome, s.workers)

	// producer: dispatched/cancelled는 close(batches) 이전에만 기록
	var dispatched int
	var cancelled bool
	go func() {
		defer close(batches)
		dispatched, cancelled = s.produce(ctx, subsets, pool, batches)
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(table, batches, outcomes)
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	report.Results = make([]contracts.WalletResult, 0, min(report.Total, 1<<20))
	done := 0
	for out := range outcomes {
		report.Results = append(report.Results, out.results...)
		for _, f := range out.failures {
			if len(report.Failures) < maxLoggedFailures {
				s.logger.WithError(f.Err).WithFields(map[string]interface{}{
					"assets":       f.Assets.String(),
					"weight_index": f.WeightIndex,
				}).Warn("Candidate evaluation failed, excluded from results")
			}
			report.Failures = append(report.Failures, f)
		}

		done += len(out.results) + len(out.failures)
		if progress != nil {
			progress(Progress{
				Done:    done,
				Total:   report.Total,
				Failed:  len(report.Failures),
				Elapsed: time.Since(start),
			})
		}
	}

	report.Dispatched = dispatched
	report.Cancelled = cancelled
	report.Elapsed = time.Since(start)

	if len(report.Failures) > maxLoggedFailures {
		s.logger.WithField("failures", len(report.Failures)).Warn("Further candidate failures were not logged individually")
	}

	return report, nil
}

// produce streams subset-major candidates into fixed-size batches
func (s *Scheduler) produce(
	ctx context.Context,
	subsets SubsetSource,
	pool []contracts.WeightSample,
	batches chan<- []task,
) (dispatched int, cancelled bool) {
	batch := make([]task, 0, s.batchSize)

	send := func() bool {
		select {
		case batches <- batch:
			dispatched += len(batch)
			batch = make([]task, 0, s.batchSize)
			return true
		case <-ctx.Done():
			return false
		}
	}

	for subsets.Next() {
		if ctx.Err() != nil {
			return dispatched, true
		}

		assets := subsets.Subset()
		for i, sample := range pool {
			c, err := contracts.NewCandidate(assets, sample)
			if err != nil {
				c.Assets = assets
			}
			batch = append(batch, task{candidate: c, weightIndex: i, err: err})
			if len(batch) == s.batchSize && !send() {
				return dispatched, true
			}
		}
	}

	if len(batch) > 0 && !send() {
		return dispatched, true
	}

	return dispatched, false
}

// work evaluates whole batches until the batch channel closes
func (s *Scheduler) work(table *contracts.PriceTable, batches <-chan []task, outcomes chan<- batchOutcome) {
	for b := range batches {
		out := batchOutcome{results: make([]contracts.WalletResult, 0, len(b))}
		for _, t := range b {
			r, err := s.evaluate(table, t)
			if err != nil {
				out.failures = append(out.failures, TaskFailure{
					Assets:      t.candidate.Assets,
					WeightIndex: t.weightIndex,
					Err:         err,
				})
				continue
			}
			out.results = append(out.results, r)
		}
		outcomes <- out
	}
}

// evaluate isolates one task: errors and panics become a wrapped ErrWorkerFailure
func (s *Scheduler) evaluate(table *contracts.PriceTable, t task) (r contracts.WalletResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", contracts.ErrWorkerFailure, p)
		}
	}()

	if t.err != nil {
		return r, fmt.Errorf("%w: %w", contracts.ErrWorkerFailure, t.err)
	}

	r, err = s.evaluator.Evaluate(table, t.candidate)
	if err != nil {
		return r, fmt.Errorf("%w: %w", contracts.ErrWorkerFailure, err)
	}

	return r, nil
}
