package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/risk"
	"github.com/wonny/walletsim/internal/subset"
	"github.com/wonny/walletsim/internal/weights"
	"github.com/wonny/walletsim/pkg/logger"
	"github.com/wonny/walletsim/pkg/metrics"
)

// Params configures one search run
type Params struct {
	RunID             string         `json:"run_id,omitempty"` // 비우면 새 UUID
	Universe          []string       `json:"universe"`         // nil → 가격표의 전체 심볼
	SubsetSize        int            `json:"subset_size"`
	Wallets           int            `json:"wallets"`
	Bounds            weights.Bounds `json:"bounds"`
	MaxSampleAttempts int            `json:"max_sample_attempts"`
	Risk              risk.Config    `json:"risk"`
	Workers           int            `json:"workers"`
	BatchSize         int            `json:"batch_size"`
	Seed              uint64         `json:"seed"`
}

// Outcome is the answer of one run plus its bookkeeping
type Outcome struct {
	RunID           string                   `json:"run_id"`
	Params          Params                   `json:"params"`
	Seed            uint64                   `json:"seed"` // 실제 사용된 시드
	Best            contracts.WalletResult   `json:"best"`
	Ranked          []contracts.WalletResult `json:"-"`
	BestRisk        *risk.Report             `json:"best_risk,omitempty"`
	Subsets         int                      `json:"subsets"`
	TotalTasks      int                      `json:"total_tasks"`
	Evaluated       int                      `json:"evaluated"`
	Failures        []TaskFailure            `json:"failures,omitempty"`
	Sampling        weights.PoolStats        `json:"sampling"`
	UndefinedSharpe int                      `json:"undefined_sharpe"`
	Cancelled       bool                     `json:"cancelled"`
	StartedAt       time.Time                `json:"started_at"`
	Duration        time.Duration            `json:"duration"`
}

// Simulator wires enumerator, sampler, metric engine, scheduler and selector
// ⭐ SSOT: 한 번의 탐색 실행 조립은 여기서만
type Simulator struct {
	logger *logger.Logger
}

// NewSimulator creates a simulator
func NewSimulator(log *logger.Logger) *Simulator {
	return &Simulator{logger: log.Component("simulation")}
}

// Run searches the subset × weight space of the table and selects the best wallet.
// 구조적 오류(ErrInvalidSubsetSize, ErrEmptySearchSpace)는 병렬 작업 전에 반환된다.
func (s *Simulator) Run(ctx context.Context, table *contracts.PriceTable, p Params, progress ProgressFunc) (*Outcome, error) {
	outcome, err := s.run(ctx, table, p, progress)
	switch {
	case err != nil:
		metrics.Runs.WithLabelValues("failed").Inc()
	case outcome.Cancelled:
		metrics.Runs.WithLabelValues("cancelled").Inc()
	default:
		metrics.Runs.WithLabelValues("completed").Inc()
	}
	return outcome, err
}

func (s *Simulator) run(ctx context.Context, table *contracts.PriceTable, p Params, progress ProgressFunc) (*Outcome, error) {
	universe := p.Universe
	if len(universe) == 0 {
		universe = table.Symbols()
	}
	for _, sym := range universe {
		if !table.Has(sym) {
			return nil, fmt.Errorf("%w: universe symbol %s has no price column", contracts.ErrMalformedPrices, sym)
		}
	}

	if p.SubsetSize < 1 {
		return nil, fmt.Errorf("%w: subset size must be positive, got %d", contracts.ErrInvalidSubsetSize, p.SubsetSize)
	}
	enumerator, err := subset.NewEnumerator(universe, p.SubsetSize)
	if err != nil {
		return nil, err
	}
	if p.Wallets < 1 {
		return nil, fmt.Errorf("%w: wallet count %d", contracts.ErrEmptySearchSpace, p.Wallets)
	}

	sampler, err := weights.NewSampler(p.Bounds, p.MaxSampleAttempts, p.Seed, s.logger)
	if err != nil {
		return nil, err
	}

	runID := p.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	outcome := &Outcome{
		RunID:     runID,
		Params:    p,
		Seed:      sampler.Seed(),
		Subsets:   enumerator.Count(),
		StartedAt: time.Now(),
	}
	outcome.Params.Universe = universe

	log := s.logger.WithRun(outcome.RunID)
	log.WithFields(map[string]interface{}{
		"universe":    len(universe),
		"subset_size": p.SubsetSize,
		"subsets":     outcome.Subsets,
		"wallets":     p.Wallets,
		"min_weight":  p.Bounds.Min,
		"max_weight":  p.Bounds.Max,
		"seed":        outcome.Seed,
	}).Info("Starting portfolio search")

	// 가중치 풀은 한 번만 뽑아 모든 subset에 재사용
	pool, stats, err := sampler.Pool(p.Wallets, p.SubsetSize)
	if err != nil {
		return nil, err
	}
	outcome.Sampling = stats
	metrics.SamplingExhausted.Add(float64(stats.BestEffort))

	engine := risk.NewEngine(p.Risk)
	scheduler := NewScheduler(engine, Options{Workers: p.Workers, BatchSize: p.BatchSize}, log)

	report, err := scheduler.Run(ctx, table, enumerator, pool, progress)
	if err != nil {
		return nil, err
	}

	outcome.TotalTasks = report.Total
	outcome.Evaluated = len(report.Results)
	outcome.Failures = report.Failures
	outcome.Cancelled = report.Cancelled
	outcome.Duration = time.Since(outcome.StartedAt)

	for _, r := range report.Results {
		if !r.SharpeDefined {
			outcome.UndefinedSharpe++
		}
	}

	metrics.TasksEvaluated.Add(float64(outcome.Evaluated))
	metrics.WorkerFailures.Add(float64(len(outcome.Failures)))
	metrics.UndefinedSharpe.Add(float64(outcome.UndefinedSharpe))
	metrics.RunDuration.Observe(outcome.Duration.Seconds())

	best, err := SelectBest(report.Results)
	if err != nil {
		if len(report.Failures) > 0 {
			return outcome, fmt.Errorf("all %d candidates failed: %w", len(report.Failures),
				errors.Join(err, report.Failures[0]))
		}
		return outcome, err
	}
	outcome.Best = best
	outcome.Ranked = Rank(report.Results)

	if outcome.BestRisk, err = engine.Report(table, best); err != nil {
		log.WithError(err).Warn("Best wallet risk report unavailable")
	}

	log.WithFields(map[string]interface{}{
		"evaluated":        outcome.Evaluated,
		"failures":         len(outcome.Failures),
		"undefined_sharpe": outcome.UndefinedSharpe,
		"best_effort":      stats.BestEffort,
		"cancelled":        outcome.Cancelled,
		"best_sharpe":      best.SharpeRatio,
		"best_assets":      best.Assets.String(),
		"duration":         outcome.Duration.String(),
	}).Info("Portfolio search finished")

	return outcome, nil
}
