package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/pkg/config"
	"github.com/wonny/walletsim/pkg/logger"
)

// ErrBusy is returned by a Launcher when no run slot is free
var ErrBusy = errors.New("a simulation is already running")

// Launcher starts a run in the background and returns its id
type Launcher interface {
	Launch(profile *runconfig.Profile) (string, error)
}

// SimulationRequest represents a simulation request body
type SimulationRequest struct {
	Symbols    []string `json:"symbols" validate:"required,min=1,unique,dive,required"`
	Start      string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End        string   `json:"end" validate:"omitempty,datetime=2006-01-02"`
	SubsetSize int      `json:"subset_size" validate:"omitempty,gte=1"`
	Wallets    int      `json:"wallets" validate:"omitempty,gte=1,lte=1000000"`
	MinWeight  *float64 `json:"min_weight" validate:"omitempty,gte=0,lt=1"`
	MaxWeight  *float64 `json:"max_weight" validate:"omitempty,gt=0,lte=1"`
	Seed       uint64   `json:"seed"`
	TopN       int      `json:"top_n" validate:"omitempty,gte=1"`
}

// SimulationResponse represents an accepted simulation
type SimulationResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	Stream string `json:"stream"`
}

// SimulationHandler starts simulations
type SimulationHandler struct {
	launcher Launcher
	defaults config.SimulationConfig
	logger   *logger.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(launcher Launcher, defaults config.SimulationConfig, log *logger.Logger) *SimulationHandler {
	return &SimulationHandler{
		launcher: launcher,
		defaults: defaults,
		logger:   log,
	}
}

// Start validates the request and launches an asynchronous run
// POST /api/simulations
func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := runconfig.Validator().Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, runconfig.FromValidator(err).Error())
		return
	}

	profile := h.profile(req)
	if err := runconfig.Validate(profile); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID, err := h.launcher.Launch(profile)
	if errors.Is(err, ErrBusy) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to launch simulation")
		respondError(w, http.StatusInternalServerError, "Failed to launch simulation")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id":  runID,
		"symbols": len(req.Symbols),
	}).Info("Simulation accepted")

	respondJSON(w, http.StatusAccepted, SimulationResponse{
		Status: "accepted",
		RunID:  runID,
		Stream: "/ws/progress?run_id=" + runID,
	})
}

// profile builds an ad-hoc profile from env defaults plus request overrides
func (h *SimulationHandler) profile(req SimulationRequest) *runconfig.Profile {
	p := runconfig.Default(h.defaults, req.Symbols)
	p.Meta.ProfileID = "api"
	p.Data.Start = req.Start
	p.Data.End = req.End

	if req.SubsetSize > 0 {
		p.Search.SubsetSize = req.SubsetSize
	}
	if req.Wallets > 0 {
		p.Search.Wallets = req.Wallets
	}
	if req.MinWeight != nil {
		p.Search.MinWeight = *req.MinWeight
	}
	if req.MaxWeight != nil {
		p.Search.MaxWeight = *req.MaxWeight
	}
	if req.Seed != 0 {
		p.Search.Seed = req.Seed
	}
	if req.TopN > 0 {
		p.Output.TopN = req.TopN
	}
	return p
}
