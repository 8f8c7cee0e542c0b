package weights

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/pkg/logger"
)

// DefaultMaxAttempts is the rejection budget per weight vector
const DefaultMaxAttempts = 100000

// Bounds constrains every element of a weight vector to [Min, Max]
type Bounds struct {
	Min float64 `json:"min_weight" yaml:"min_weight"`
	Max float64 `json:"max_weight" yaml:"max_weight"`
}

// Validate requires 0 <= Min < Max
func (b Bounds) Validate() error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) || b.Min < 0 || b.Min >= b.Max {
		return fmt.Errorf("invalid weight bounds [%g, %g]: need 0 <= min < max", b.Min, b.Max)
	}
	return nil
}

// Contains reports whether every weight lies in [Min, Max]
func (b Bounds) Contains(w []float64) bool {
	for _, v := range w {
		if v < b.Min || v > b.Max {
			return false
		}
	}
	return true
}

// Feasible reports whether an n-vector summing to 1 can satisfy the bounds at all
func (b Bounds) Feasible(n int) bool {
	return float64(n)*b.Min <= 1 && float64(n)*b.Max >= 1
}

// Sampler draws weight vectors uniformly from the probability simplex
// (normalized Exp(1) draws = Dirichlet(1,...,1)) and rejects out-of-bounds ones.
// Not safe for concurrent use.
type Sampler struct {
	bounds      Bounds
	maxAttempts int
	exp         distuv.Exponential
	seed        uint64
	logger      *logger.Logger
}

// NewSampler creates a seeded sampler. seed 0 picks a time-derived seed.
func NewSampler(bounds Bounds, maxAttempts int, seed uint64, log *logger.Logger) (*Sampler, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Sampler{
		bounds:      bounds,
		maxAttempts: maxAttempts,
		exp: distuv.Exponential{
			Rate: 1,
			Src:  rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
		seed:   seed,
		logger: log.Component("weights"),
	}, nil
}

// Seed returns the effective seed (재현용으로 결과에 기록)
func (s *Sampler) Seed() uint64 {
	return s.seed
}

// Sample draws one weight vector of length n.
// 범위를 만족하는 표본이 나올 때까지 전체 벡터를 다시 뽑고 (원소별 clamp 없음),
// 예산을 다 쓰면 마지막 표본을 BestEffort로 반환한다.
func (s *Sampler) Sample(n int) (contracts.WeightSample, error) {
	if n < 1 {
		return contracts.WeightSample{}, fmt.Errorf("%w: weight vector length %d", contracts.ErrDimensionMismatch, n)
	}

	w := make([]float64, n)

	// 합이 1인 벡터로는 범위를 만족할 수 없음: 재시도 없이 한 번만 뽑는다
	if !s.bounds.Feasible(n) {
		s.draw(w)
		return contracts.BestEffort(w, 1), nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.draw(w)
		if s.bounds.Contains(w) {
			return contracts.InBounds(w, attempt), nil
		}
	}

	return contracts.BestEffort(w, s.maxAttempts), nil
}

// draw fills w with one normalized Exp(1) vector
func (s *Sampler) draw(w []float64) {
	for {
		sum := 0.0
		for i := range w {
			w[i] = s.exp.Rand()
			sum += w[i]
		}
		if sum > 0 {
			for i := range w {
				w[i] /= sum
			}
			return
		}
	}
}

// PoolStats summarizes one pool draw
type PoolStats struct {
	Size          int `json:"size"`
	InBounds      int `json:"in_bounds"`
	BestEffort    int `json:"best_effort"`
	TotalAttempts int `json:"total_attempts"`
}

// Pool draws count independent vectors of length n. The pool is drawn once and
// shared by every subset of the run.
func (s *Sampler) Pool(count, n int) ([]contracts.WeightSample, PoolStats, error) {
	stats := PoolStats{Size: count}
	if count < 0 {
		return nil, stats, fmt.Errorf("negative wallet count %d", count)
	}

	if !s.bounds.Feasible(n) {
		s.logger.WithFields(map[string]interface{}{
			"n":          n,
			"min_weight": s.bounds.Min,
			"max_weight": s.bounds.Max,
		}).Warn("Weight bounds cannot be met by any vector summing to 1, every draw will be best-effort")
	}

	pool := make([]contracts.WeightSample, 0, count)
	for i := 0; i < count; i++ {
		sample, err := s.Sample(n)
		if err != nil {
			return nil, stats, err
		}
		if sample.IsInBounds() {
			stats.InBounds++
		} else {
			stats.BestEffort++
		}
		stats.TotalAttempts += sample.Attempts
		pool = append(pool, sample)
	}

	if stats.BestEffort > 0 {
		s.logger.WithError(contracts.ErrSamplingBudgetExhausted).WithFields(map[string]interface{}{
			"best_effort":  stats.BestEffort,
			"pool_size":    count,
			"max_attempts": s.maxAttempts,
		}).Warn("Some weight vectors are best-effort and may violate bounds")
	}

	return pool, stats, nil
}
