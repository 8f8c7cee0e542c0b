package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/simulation"
)

// WalletsFileName is the default results file name
const WalletsFileName = "wallets.csv"

var walletsHeader = []string{"", "Assets", "Weights", "Annual Return", "Annual Std Dev", "Sharpe Ratio"}

// WriteWalletsCSV writes results ranked by Sharpe ratio, best first.
// The first column is the row index; assets and weights are '|'-joined.
func WriteWalletsCSV(path string, results []contracts.WalletResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(walletsHeader); err != nil {
		return err
	}

	for i, r := range simulation.Rank(results) {
		rec := []string{
			strconv.Itoa(i),
			r.Assets.String(),
			joinFloats(r.Weights),
			formatFloat(r.AnnualReturn),
			formatFloat(r.AnnualStdDev),
			formatFloat(r.SharpeRatio),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, "|")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
