package contracts

import (
	"fmt"
	"strings"
)

// AssetSubset is an ordered sequence of distinct symbols
type AssetSubset []string

// String joins the symbols with '|' (CSV/DB friendly)
func (s AssetSubset) String() string {
	return strings.Join(s, "|")
}

// SampleStatus tags how a weight vector was obtained
type SampleStatus string

const (
	SampleInBounds   SampleStatus = "in_bounds"   // 모든 원소가 [min, max] 안
	SampleBestEffort SampleStatus = "best_effort" // 시도 예산 소진, 마지막 표본 반환
)

// WeightSample is the tagged result of one weight draw
// ⭐ 계약: BestEffort 표본은 범위를 벗어날 수 있음, 호출자가 재검증
type WeightSample struct {
	Weights  []float64    `json:"weights"`
	Status   SampleStatus `json:"status"`
	Attempts int          `json:"attempts"`
}

// InBounds builds a conforming sample
func InBounds(weights []float64, attempts int) WeightSample {
	return WeightSample{Weights: weights, Status: SampleInBounds, Attempts: attempts}
}

// BestEffort builds a degraded sample returned after the attempt budget ran out
func BestEffort(weights []float64, attempts int) WeightSample {
	return WeightSample{Weights: weights, Status: SampleBestEffort, Attempts: attempts}
}

// IsInBounds reports whether the sample met every bound
func (s WeightSample) IsInBounds() bool {
	return s.Status == SampleInBounds
}

// Candidate pairs a subset with one weight vector, the unit of evaluation
type Candidate struct {
	Assets     AssetSubset
	Weights    []float64 // shared with the weight pool, read-only
	BestEffort bool
}

// NewCandidate binds a sample to a subset, rejecting a length mismatch
func NewCandidate(assets AssetSubset, sample WeightSample) (Candidate, error) {
	if len(assets) != len(sample.Weights) {
		return Candidate{}, fmt.Errorf("%w: %d assets vs %d weights",
			ErrDimensionMismatch, len(assets), len(sample.Weights))
	}
	return Candidate{
		Assets:     assets,
		Weights:    sample.Weights,
		BestEffort: !sample.IsInBounds(),
	}, nil
}

// Allocation returns the symbol → weight mapping
func (c Candidate) Allocation() map[string]float64 {
	return allocation(c.Assets, c.Weights)
}

// WalletResult is one evaluated candidate portfolio
// ⭐ SSOT: 코어의 출력 단위 (불변)
type WalletResult struct {
	Assets       AssetSubset `json:"assets"`
	Weights      []float64   `json:"weights"`
	AnnualReturn float64     `json:"annual_return"`
	AnnualStdDev float64     `json:"annual_std_dev"`
	SharpeRatio  float64     `json:"sharpe_ratio"`

	// SharpeDefined is false when AnnualStdDev == 0; SharpeRatio then holds
	// +Inf / -Inf / 0 by the sign of the excess return
	SharpeDefined bool `json:"sharpe_defined"`

	// BestEffortWeights is true when the weights came from an exhausted sampler
	BestEffortWeights bool `json:"best_effort_weights"`
}

// Allocation returns the symbol → weight mapping
func (r WalletResult) Allocation() map[string]float64 {
	return allocation(r.Assets, r.Weights)
}

// WeightOf returns the weight held in symbol (0 when absent)
func (r WalletResult) WeightOf(symbol string) float64 {
	for i, s := range r.Assets {
		if s == symbol {
			return r.Weights[i]
		}
	}
	return 0
}

func allocation(assets AssetSubset, weights []float64) map[string]float64 {
	out := make(map[string]float64, len(assets))
	for i, s := range assets {
		if i < len(weights) {
			out[s] = weights[i]
		}
	}
	return out
}
