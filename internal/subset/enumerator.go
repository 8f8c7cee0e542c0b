package subset

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/wonny/walletsim/internal/contracts"
)

// ErrSearchSpaceTooLarge is returned when C(n, k) does not fit in an int
var ErrSearchSpaceTooLarge = errors.New("subset count overflows int")

// Count returns C(n, k), the number of subsets of size k drawn from n symbols
func Count(n, k int) (int, error) {
	if k < 0 || k > n {
		return 0, fmt.Errorf("%w: k=%d, n=%d", contracts.ErrInvalidSubsetSize, k, n)
	}
	if k == 0 || k == n {
		return 1, nil
	}

	// combin.Binomial은 중간값 (n-k+i)*b 가 넘칠 수 있으므로 log n 만큼 여유를 둠
	if combin.LogGeneralizedBinomial(float64(n), float64(k))+math.Log(float64(n)) >= math.Log(math.MaxInt) {
		return 0, fmt.Errorf("%w: C(%d, %d)", ErrSearchSpaceTooLarge, n, k)
	}

	return combin.Binomial(n, k), nil
}

// Enumerator lazily yields every size-k subset of a universe in lexicographic
// order of universe positions. It is finite and single-use.
type Enumerator struct {
	universe []string
	k        int
	count    int
	gen      *combin.CombinationGenerator
	idx      []int
	current  contracts.AssetSubset
}

// NewEnumerator validates the universe and subset size
// k < 0 또는 k > N 이면 ErrInvalidSubsetSize (빈 부분집합 목록으로 대체하지 않음)
func NewEnumerator(universe []string, k int) (*Enumerator, error) {
	seen := make(map[string]struct{}, len(universe))
	for _, s := range universe {
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("duplicate symbol %q in universe", s)
		}
		seen[s] = struct{}{}
	}

	count, err := Count(len(universe), k)
	if err != nil {
		return nil, err
	}

	return &Enumerator{
		universe: append([]string(nil), universe...),
		k:        k,
		count:    count,
		gen:      combin.NewCombinationGenerator(len(universe), k),
		idx:      make([]int, k),
	}, nil
}

// Count returns the total number of subsets this enumerator yields
func (e *Enumerator) Count() int {
	return e.count
}

// Size returns k
func (e *Enumerator) Size() int {
	return e.k
}

// Next advances to the next subset, returning false when exhausted
func (e *Enumerator) Next() bool {
	if !e.gen.Next() {
		e.current = nil
		return false
	}

	e.idx = e.gen.Combination(e.idx)
	s := make(contracts.AssetSubset, e.k)
	for i, j := range e.idx {
		s[i] = e.universe[j]
	}
	e.current = s

	return true
}

// Subset returns the current subset. Each call to Next allocates a fresh
// slice, so returned subsets may be retained.
func (e *Enumerator) Subset() contracts.AssetSubset {
	return e.current
}

// All drains the enumerator as an iterator
func (e *Enumerator) All() iter.Seq[contracts.AssetSubset] {
	return func(yield func(contracts.AssetSubset) bool) {
		for e.Next() {
			if !yield(e.Subset()) {
				return
			}
		}
	}
}
