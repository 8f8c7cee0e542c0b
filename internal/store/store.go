package store

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/simulation"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the persisted header of one simulation run
type RunSummary struct {
	ID          string            `json:"id"`
	StartedAt   time.Time         `json:"started_at"`
	DurationMs  int64             `json:"duration_ms"`
	Universe    []string          `json:"universe"`
	SubsetSize  int               `json:"subset_size"`
	Wallets     int               `json:"wallets"`
	MinWeight   float64           `json:"min_weight"`
	MaxWeight   float64           `json:"max_weight"`
	Seed        uint64            `json:"seed"`
	TotalTasks  int               `json:"total_tasks"`
	Evaluated   int               `json:"evaluated"`
	Failures    int               `json:"failures"`
	Cancelled   bool              `json:"cancelled"`
	BestAssets  []string          `json:"best_assets"`
	BestWeights []float64         `json:"best_weights"`
	BestSharpe  float64           `json:"best_sharpe"`
	Params      simulation.Params `json:"params"`
}

// WalletRow is one ranked wallet of a run
type WalletRow struct {
	Rank int `json:"rank"`
	contracts.WalletResult
}

// RunStore persists simulation outcomes
type RunStore interface {
	SaveRun(ctx context.Context, outcome *simulation.Outcome, top int) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id string) (*RunSummary, error)
	TopWallets(ctx context.Context, id string, limit int) ([]WalletRow, error)
}

// Summarize builds the run header from an outcome
func Summarize(o *simulation.Outcome) RunSummary {
	return RunSummary{
		ID:          o.RunID,
		StartedAt:   o.StartedAt,
		DurationMs:  o.Duration.Milliseconds(),
		Universe:    o.Params.Universe,
		SubsetSize:  o.Params.SubsetSize,
		Wallets:     o.Params.Wallets,
		MinWeight:   o.Params.Bounds.Min,
		MaxWeight:   o.Params.Bounds.Max,
		Seed:        o.Seed,
		TotalTasks:  o.TotalTasks,
		Evaluated:   o.Evaluated,
		Failures:    len(o.Failures),
		Cancelled:   o.Cancelled,
		BestAssets:  o.Best.Assets,
		BestWeights: o.Best.Weights,
		BestSharpe:  o.Best.SharpeRatio,
		Params:      o.Params,
	}
}

// rankedRows numbers the first top results of an already ranked slice (top <= 0 → all)
func rankedRows(ranked []contracts.WalletResult, top int) []WalletRow {
	ranked = simulation.Top(ranked, top)
	rows := make([]WalletRow, len(ranked))
	for i, r := range ranked {
		rows[i] = WalletRow{Rank: i + 1, WalletResult: r}
	}
	return rows
}
