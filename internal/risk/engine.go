package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/walletsim/internal/contracts"
)

// =============================================================================
// Metric Engine - 순수 계산기
// =============================================================================

// Engine evaluates candidate portfolios against a price table
// ⭐ SSOT: 수익률/공분산/샤프 계산은 여기서만
// 상태 없음: 여러 worker가 동시에 Evaluate 호출 가능
type Engine struct {
	cfg Config
}

// NewEngine creates an engine, filling zero-valued fields with defaults
func NewEngine(cfg Config) *Engine {
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = DefaultConfig().TradingDays
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine constants
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate computes annual return, annual std dev and Sharpe ratio of one candidate
func (e *Engine) Evaluate(table *contracts.PriceTable, c contracts.Candidate) (contracts.WalletResult, error) {
	returns, err := e.assetReturns(table, c.Assets, c.Weights)
	if err != nil {
		return contracts.WalletResult{}, err
	}

	annualReturn := AnnualReturn(PortfolioReturns(returns, c.Weights), e.cfg.TradingDays)
	dailyStd := PortfolioStdDev(Covariance(returns), c.Weights)
	annualStd := AnnualStdDev(dailyStd, e.cfg.TradingDays)

	if !isFinite(annualReturn) || !isFinite(annualStd) {
		return contracts.WalletResult{}, fmt.Errorf("%w: non-finite metrics for %s (return=%g, std=%g)",
			contracts.ErrMalformedPrices, c.Assets, annualReturn, annualStd)
	}

	sharpe, defined := SharpeRatio(annualReturn, annualStd, e.cfg.RiskFreeRate)

	return contracts.WalletResult{
		Assets:            c.Assets,
		Weights:           c.Weights,
		AnnualReturn:      annualReturn,
		AnnualStdDev:      annualStd,
		SharpeRatio:       sharpe,
		SharpeDefined:     defined,
		BestEffortWeights: c.BestEffort,
	}, nil
}

// PortfolioSeries returns the daily portfolio return series of a wallet
func (e *Engine) PortfolioSeries(table *contracts.PriceTable, assets contracts.AssetSubset, weights []float64) ([]float64, error) {
	returns, err := e.assetReturns(table, assets, weights)
	if err != nil {
		return nil, err
	}
	return PortfolioReturns(returns, weights), nil
}

func (e *Engine) assetReturns(table *contracts.PriceTable, assets contracts.AssetSubset, weights []float64) (*mat.Dense, error) {
	if len(assets) == 0 || len(assets) != len(weights) {
		return nil, fmt.Errorf("%w: %d assets vs %d weights", contracts.ErrDimensionMismatch, len(assets), len(weights))
	}

	columns, err := table.Columns(assets)
	if err != nil {
		return nil, err
	}

	return DailyReturns(columns)
}

// =============================================================================
// 단계별 계산 (Pure)
// =============================================================================

// DailyReturns converts k price columns of T rows into a (T-1)×k matrix of
// simple returns r[t] = p[t]/p[t-1] - 1. 첫 행은 직전 가격이 없어 제외.
// 표본 공분산에 최소 2개 관측치가 필요하므로 T >= 3 요구.
func DailyReturns(columns [][]float64) (*mat.Dense, error) {
	k := len(columns)
	if k == 0 {
		return nil, fmt.Errorf("%w: no price columns", contracts.ErrDimensionMismatch)
	}

	rows := len(columns[0])
	if rows < 3 {
		return nil, fmt.Errorf("%w: %d price rows, need at least 3", contracts.ErrInsufficientHistory, rows)
	}

	data := make([]float64, (rows-1)*k)
	for j, col := range columns {
		if len(col) != rows {
			return nil, fmt.Errorf("%w: ragged price columns", contracts.ErrDimensionMismatch)
		}
		for t := 0; t < rows; t++ {
			if col[t] <= 0 || !isFinite(col[t]) {
				return nil, fmt.Errorf("%w: price %g at row %d, column %d", contracts.ErrMalformedPrices, col[t], t, j)
			}
			if t > 0 {
				data[(t-1)*k+j] = col[t]/col[t-1] - 1
			}
		}
	}

	return mat.NewDense(rows-1, k, data), nil
}

// PortfolioReturns is the matrix-vector product R·w, one return per date
func PortfolioReturns(returns *mat.Dense, weights []float64) []float64 {
	rows, _ := returns.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(returns, mat.NewVecDense(len(weights), weights))
	return out.RawVector().Data
}

// AnnualReturn is the mean daily return times tradingDays
func AnnualReturn(portfolio []float64, tradingDays int) float64 {
	if len(portfolio) == 0 {
		return 0
	}
	return stat.Mean(portfolio, nil) * float64(tradingDays)
}

// Covariance is the sample (N-1) covariance of the return columns
func Covariance(returns *mat.Dense) *mat.SymDense {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)
	return &cov
}

// PortfolioStdDev is sqrt(wᵀ·Cov·w). 반올림으로 생긴 미세한 음수 분산은 0으로 본다.
func PortfolioStdDev(cov *mat.SymDense, weights []float64) float64 {
	w := mat.NewVecDense(len(weights), weights)
	variance := mat.Inner(w, cov, w)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// AnnualStdDev scales a daily std dev by sqrt(tradingDays)
func AnnualStdDev(daily float64, tradingDays int) float64 {
	return daily * math.Sqrt(float64(tradingDays))
}

// SharpeRatio returns (ret - rf) / std and whether it is defined.
// std == 0 이면 정의되지 않음: 초과수익 부호에 따라 +Inf / -Inf, 초과수익 0이면 0.
func SharpeRatio(annualReturn, annualStd, riskFreeRate float64) (float64, bool) {
	excess := annualReturn - riskFreeRate
	if annualStd == 0 {
		switch {
		case excess > 0:
			return math.Inf(1), false
		case excess < 0:
			return math.Inf(-1), false
		default:
			return 0, false
		}
	}
	return excess / annualStd, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
