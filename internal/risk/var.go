package risk

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/walletsim/internal/contracts"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 일별 수익률 배열 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
// 반환값: VaR는 손실을 양수로 표현 (예: 0.05 = 5% 손실 가능)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 수익률 정렬 (오름차순: 손실이 앞에)
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	// VaR: (1-confidence) 백분위수
	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall) 계산
// sorted: 오름차순 정렬된 수익률
// varIdx: VaR 인덱스 (이 인덱스 이하의 수익률이 tail)
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}

	return lossOf(stat.Mean(sorted[:varIdx+1], nil))
}

// CalculateParametricVaR 정규분포 가정 VaR 계산
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	if stdDev <= 0 || confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence, VaR: lossOf(mean), CVaR: lossOf(mean)}
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	z := normal.Quantile(confidence)

	// VaR = z·σ - μ, CVaR = σ·φ(z)/(1-c) - μ
	return VaRResult{
		Confidence: confidence,
		VaR:        math.Max(0, z*stdDev-mean),
		CVaR:       math.Max(0, stdDev*normal.Prob(z)/(1-confidence)-mean),
	}
}

// MaxDrawdown 누적 자산 곡선의 최대 낙폭 (양수) 과 누적 수익률
func MaxDrawdown(returns []float64) (drawdown, cumulative float64) {
	wealth, peak := 1.0, 1.0
	for _, r := range returns {
		wealth *= 1 + r
		if wealth > peak {
			peak = wealth
		}
		if dd := 1 - wealth/peak; dd > drawdown {
			drawdown = dd
		}
	}
	return drawdown, wealth - 1
}

// =============================================================================
// Best-wallet report
// =============================================================================

// Report builds the tail-risk report of a wallet over the table's history
func (e *Engine) Report(table *contracts.PriceTable, r contracts.WalletResult) (*Report, error) {
	series, err := e.PortfolioSeries(table, r.Assets, r.Weights)
	if err != nil {
		return nil, fmt.Errorf("portfolio series: %w", err)
	}

	mean, std := stat.MeanStdDev(series, nil)
	dd, cum := MaxDrawdown(series)
	dates := table.Dates()

	return &Report{
		Observations:     len(series),
		DailyMean:        mean,
		DailyStdDev:      std,
		Historical95:     CalculateVaR(series, 0.95),
		Historical99:     CalculateVaR(series, 0.99),
		Parametric95:     CalculateParametricVaR(mean, std, 0.95),
		MaxDrawdown:      dd,
		CumulativeReturn: cum,
		From:             dates[1],
		To:               dates[len(dates)-1],
	}, nil
}

// lossOf 수익률을 손실(양수)로 변환, 이익이면 0
func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
