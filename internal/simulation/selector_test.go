package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/contracts"
)

func result(name string, sharpe float64, defined bool) contracts.WalletResult {
	return contracts.WalletResult{
		Assets:        contracts.AssetSubset{name},
		Weights:       []float64{1},
		SharpeRatio:   sharpe,
		SharpeDefined: defined,
	}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name    string
		results []contracts.WalletResult
		want    string
	}{
		{
			name:    "max sharpe",
			results: []contracts.WalletResult{result("a", 0.5, true), result("b", 1.2, true), result("c", 0.9, true)},
			want:    "b",
		},
		{
			name:    "tie keeps first seen",
			results: []contracts.WalletResult{result("a", 0.7, true), result("b", 1.1, true), result("c", 1.1, true)},
			want:    "b",
		},
		{
			name:    "negative sharpes",
			results: []contracts.WalletResult{result("a", -2, true), result("b", -0.5, true)},
			want:    "b",
		},
		{
			name:    "defined beats undefined +Inf",
			results: []contracts.WalletResult{result("flat", math.Inf(1), false), result("a", 0.1, true)},
			want:    "a",
		},
		{
			name:    "only undefined",
			results: []contracts.WalletResult{result("down", math.Inf(-1), false), result("zero", 0, false)},
			want:    "zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, err := SelectBest(tt.results)
			require.NoError(t, err)
			assert.Equal(t, tt.want, best.Assets[0])
		})
	}
}

func TestSelectBest_Empty(t *testing.T) {
	_, err := SelectBest(nil)
	if !errors.Is(err, contracts.ErrEmptySearchSpace) {
		t.Errorf("SelectBest(nil) error = %v, want ErrEmptySearchSpace", err)
	}
}

func TestRank(t *testing.T) {
	in := []contracts.WalletResult{
		result("a", 0.5, true),
		result("flat", 0, false),
		result("b", 1.2, true),
		result("c", 0.5, true),
	}

	ranked := Rank(in)

	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Assets[0]
	}
	assert.Equal(t, []string{"b", "a", "c", "flat"}, names)
	assert.Equal(t, "a", in[0].Assets[0], "input must not be reordered")

	assert.Len(t, Top(ranked, 2), 2)
	assert.Len(t, Top(ranked, 0), 4)
	assert.Len(t, Top(ranked, 10), 4)
}
