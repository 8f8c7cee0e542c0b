package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/wonny/walletsim/internal/store"
)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// finite returns nil for ±Inf/NaN (JSON has no representation for them)
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func queryInt(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// runDTO shadows the float fields that may be infinite
type runDTO struct {
	store.RunSummary
	BestSharpe *float64 `json:"best_sharpe"`
}

func toRunDTO(s store.RunSummary) runDTO {
	return runDTO{RunSummary: s, BestSharpe: finite(s.BestSharpe)}
}

type walletDTO struct {
	store.WalletRow
	SharpeRatio *float64 `json:"sharpe_ratio"`
}

func toWalletDTO(w store.WalletRow) walletDTO {
	return walletDTO{WalletRow: w, SharpeRatio: finite(w.SharpeRatio)}
}
