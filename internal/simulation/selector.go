package simulation

import (
	"fmt"
	"sort"

	"github.com/wonny/walletsim/internal/contracts"
)

// better reports whether a ranks strictly ahead of b.
// 정의된 샤프 비율이 정의되지 않은 것(표준편차 0)보다 항상 앞선다.
func better(a, b contracts.WalletResult) bool {
	if a.SharpeDefined != b.SharpeDefined {
		return a.SharpeDefined
	}
	return a.SharpeRatio > b.SharpeRatio
}

// SelectBest returns the result with the highest Sharpe ratio.
// 동률이면 수집 순서상 먼저 나온 결과를 유지한다.
func SelectBest(results []contracts.WalletResult) (contracts.WalletResult, error) {
	if len(results) == 0 {
		return contracts.WalletResult{}, fmt.Errorf("%w: no results to select from", contracts.ErrEmptySearchSpace)
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if better(results[i], results[best]) {
			best = i
		}
	}

	return results[best], nil
}

// Rank returns a copy of results sorted best-first (stable)
func Rank(results []contracts.WalletResult) []contracts.WalletResult {
	ranked := append([]contracts.WalletResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return better(ranked[i], ranked[j])
	})
	return ranked
}

// Top returns at most n best-first results
func Top(ranked []contracts.WalletResult, n int) []contracts.WalletResult {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}
