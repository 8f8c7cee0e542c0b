package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/walletsim/internal/simulation"
)

// Schema creates the run storage tables
var Schema = []string{
	`CREATE SCHEMA IF NOT EXISTS sim`,
	`CREATE TABLE IF NOT EXISTS sim.runs (
		id           UUID PRIMARY KEY,
		started_at   TIMESTAMPTZ NOT NULL,
		duration_ms  BIGINT      NOT NULL,
		universe     TEXT[]      NOT NULL,
		subset_size  INT         NOT NULL,
		wallets      INT         NOT NULL,
		min_weight   DOUBLE PRECISION NOT NULL,
		max_weight   DOUBLE PRECISION NOT NULL,
		seed         BIGINT      NOT NULL,
		total_tasks  BIGINT      NOT NULL,
		evaluated    BIGINT      NOT NULL,
		failures     BIGINT      NOT NULL,
		cancelled    BOOLEAN     NOT NULL,
		best_assets  TEXT[]      NOT NULL,
		best_weights DOUBLE PRECISION[] NOT NULL,
		best_sharpe  DOUBLE PRECISION NOT NULL,
		params       JSONB       NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sim.wallets (
		run_id         UUID NOT NULL REFERENCES sim.runs(id) ON DELETE CASCADE,
		rank           INT  NOT NULL,
		assets         TEXT[] NOT NULL,
		weights        DOUBLE PRECISION[] NOT NULL,
		annual_return  DOUBLE PRECISION NOT NULL,
		annual_std_dev DOUBLE PRECISION NOT NULL,
		sharpe_ratio   DOUBLE PRECISION NOT NULL,
		sharpe_defined BOOLEAN NOT NULL,
		best_effort    BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, rank)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON sim.runs (started_at DESC)`,
}

var walletColumns = []string{
	"run_id", "rank", "assets", "weights",
	"annual_return", "annual_std_dev", "sharpe_ratio", "sharpe_defined", "best_effort",
}

// WalletRepository stores runs and ranked wallets in PostgreSQL
// ⭐ SSOT: sim.runs / sim.wallets 접근은 여기서만
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new repository
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// SaveRun inserts the run header and copies its top wallets in one transaction
func (r *WalletRepository) SaveRun(ctx context.Context, outcome *simulation.Outcome, top int) error {
	summary := Summarize(outcome)
	params, err := json.Marshal(summary.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sim.runs (id, started_at, duration_ms, universe, subset_size, wallets,
			min_weight, max_weight, seed, total_tasks, evaluated, failures, cancelled,
			best_assets, best_weights, best_sharpe, params)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	// seed는 uint64 → BIGINT 비트 그대로 저장
	_, err = tx.Exec(ctx, query,
		summary.ID, summary.StartedAt, summary.DurationMs, summary.Universe,
		summary.SubsetSize, summary.Wallets, summary.MinWeight, summary.MaxWeight,
		int64(summary.Seed), summary.TotalTasks, summary.Evaluated, summary.Failures,
		summary.Cancelled, nonNilStrings(summary.BestAssets), nonNilFloats(summary.BestWeights),
		summary.BestSharpe, params,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := rankedRows(outcome.Ranked, top)
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"sim", "wallets"},
		walletColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			w := rows[i]
			return []any{
				summary.ID, w.Rank, []string(w.Assets), w.Weights,
				w.AnnualReturn, w.AnnualStdDev, w.SharpeRatio, w.SharpeDefined, w.BestEffortWeights,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy wallets: %w", err)
	}

	return tx.Commit(ctx)
}

const runColumns = `id::text, started_at, duration_ms, universe, subset_size, wallets,
	min_weight, max_weight, seed, total_tasks, evaluated, failures, cancelled,
	best_assets, best_weights, best_sharpe, params`

func scanRun(row pgx.Row) (*RunSummary, error) {
	var (
		s      RunSummary
		seed   int64
		params []byte
	)
	err := row.Scan(&s.ID, &s.StartedAt, &s.DurationMs, &s.Universe, &s.SubsetSize, &s.Wallets,
		&s.MinWeight, &s.MaxWeight, &seed, &s.TotalTasks, &s.Evaluated, &s.Failures, &s.Cancelled,
		&s.BestAssets, &s.BestWeights, &s.BestSharpe, &params)
	if err != nil {
		return nil, err
	}
	s.Seed = uint64(seed)
	if err := json.Unmarshal(params, &s.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return &s, nil
}

// ListRuns returns the newest runs first
func (r *WalletRepository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM sim.runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *s)
	}
	return runs, rows.Err()
}

// GetRun returns one run header
func (r *WalletRepository) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	s, err := scanRun(r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM sim.runs WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return s, err
}

// TopWallets returns up to limit ranked wallets of a run
func (r *WalletRepository) TopWallets(ctx context.Context, id string, limit int) ([]WalletRow, error) {
	if _, err := r.GetRun(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT rank, assets, weights, annual_return, annual_std_dev, sharpe_ratio, sharpe_defined, best_effort
		FROM sim.wallets
		WHERE run_id::text = $1
		ORDER BY rank ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []WalletRow
	for rows.Next() {
		var (
			w      WalletRow
			assets []string
		)
		if err := rows.Scan(&w.Rank, &assets, &w.Weights, &w.AnnualReturn, &w.AnnualStdDev,
			&w.SharpeRatio, &w.SharpeDefined, &w.BestEffortWeights); err != nil {
			return nil, err
		}
		w.Assets = assets
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFloats(f []float64) []float64 {
	if f == nil {
		return []float64{}
	}
	return f
}
