package commands

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/pkg/config"
)

func TestSplitSymbols(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"005930", []string{"005930"}},
		{" 005930, 000660 ,,035420 ", []string{"005930", "000660", "035420"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitSymbols(tt.in), tt.in)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestBuildProfile_FlagOverrides(t *testing.T) {
	cmd := simulateCmd
	require.NoError(t, cmd.ParseFlags([]string{"--subset-size", "2", "--wallets", "50", "--seed", "9", "--max-weight", "0.8"}))

	sim := config.SimulationConfig{SubsetSize: 5, Wallets: 10, MaxWeight: 0.2, TradingDays: 252, MaxSampleAttempts: 10, TopN: 5}
	p, err := buildProfile(cmd, sim, []string{"A", "B", "C"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Search.SubsetSize)
	assert.Equal(t, 50, p.Search.Wallets)
	assert.Equal(t, uint64(9), p.Search.Seed)
	assert.Equal(t, 0.8, p.Search.MaxWeight)
	assert.Equal(t, 5, p.Output.TopN, "top is untouched unless the flag is set")
	assert.Equal(t, []string{"A", "B", "C"}, p.Universes[p.Search.Universe].Symbols)
}

func TestBuildProfile_RequiresInput(t *testing.T) {
	_, err := buildProfile(statusCmd, config.SimulationConfig{}, nil, nil)
	assert.Error(t, err)
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })
	return &buf
}

func TestPrintWallets(t *testing.T) {
	buf := captureOutput(t)

	PrintWallets([]contracts.WalletResult{
		{Assets: []string{"005930", "000660"}, Weights: []float64{0.4, 0.6},
			AnnualReturn: 0.1234, AnnualStdDev: 0.2, SharpeRatio: 0.617, SharpeDefined: true},
		{Assets: []string{"035420", "051910"}, Weights: []float64{0.5, 0.5}, SharpeRatio: math.Inf(1)},
	})

	got := buf.String()
	assert.Contains(t, got, "Sharpe")
	assert.Contains(t, got, "005930,000660")
	assert.Contains(t, got, "0.400,0.600")
	assert.Contains(t, got, "12.34%")
	assert.Contains(t, got, "0.6170")
	assert.Contains(t, got, "n/a")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-5.00%", formatPercent(-0.05))
	assert.Equal(t, "0.125,0.875", formatWeights([]float64{0.125, 0.875}))
	assert.Equal(t, "A, B", summarizeSymbols([]string{"A", "B"}, 3))
	assert.Equal(t, "A, B ... (+2)", summarizeSymbols([]string{"A", "B", "C", "D"}, 2))
}
