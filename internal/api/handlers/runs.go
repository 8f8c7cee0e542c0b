package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/walletsim/internal/store"
	"github.com/wonny/walletsim/pkg/logger"
)

// RunsHandler serves stored simulation runs
// ⭐ SSOT: 실행 결과 조회 API는 이 구조체에서만
type RunsHandler struct {
	runs   store.RunStore
	logger *logger.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(runs store.RunStore, log *logger.Logger) *RunsHandler {
	return &RunsHandler{
		runs:   runs,
		logger: log,
	}
}

// ListRuns returns the most recent runs
// GET /api/runs?limit=20
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(r.Context(), queryInt(r, "limit", 20, 200))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	out := make([]runDTO, len(runs))
	for i, run := range runs {
		out[i] = toRunDTO(run)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  out,
		"count": len(out),
	})
}

// GetRun returns one run header
// GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithRun(id).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	respondJSON(w, http.StatusOK, toRunDTO(*run))
}

// GetWallets returns the ranked wallets of a run
// GET /api/runs/{id}/wallets?limit=100
func (h *RunsHandler) GetWallets(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	wallets, err := h.runs.TopWallets(r.Context(), id, queryInt(r, "limit", 100, 10000))
	if errors.Is(err, store.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithRun(id).Error("Failed to get wallets")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve wallets")
		return
	}

	out := make([]walletDTO, len(wallets))
	for i, wr := range wallets {
		out[i] = toWalletDTO(wr)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  id,
		"wallets": out,
		"count":   len(out),
	})
}
