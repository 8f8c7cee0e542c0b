package brain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/pricedata"
	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/internal/simulation"
	"github.com/wonny/walletsim/internal/store"
	"github.com/wonny/walletsim/pkg/logger"
	"github.com/wonny/walletsim/pkg/redis"
)

// Stage names reported in events and results
const (
	StageUniverse = "universe"
	StagePrices   = "prices"
	StageSimulate = "simulate"
	StagePersist  = "persist"
	StageDone     = "done"
)

// ConstituentSource resolves index membership
type ConstituentSource interface {
	FetchIndexConstituents(ctx context.Context, index string) ([]string, error)
}

// Event is one progress notification of a run
type Event struct {
	RunID    string               `json:"run_id"`
	Stage    string               `json:"stage"`
	Message  string               `json:"message,omitempty"`
	Progress *simulation.Progress `json:"progress,omitempty"`
	Done     bool                 `json:"done"`
	Error    string               `json:"error,omitempty"`
	Time     time.Time            `json:"time"`
}

// Publisher receives run events (websocket hub, console printer)
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(Event)

// Publish calls f(e)
func (f PublisherFunc) Publish(e Event) { f(e) }

// Deps holds the orchestrator collaborators. Nil entries disable the stage they serve.
type Deps struct {
	Provider     pricedata.Provider // 시세 공급자 (Naver)
	Constituents ConstituentSource  // 지수 구성종목 (Naver)
	Cache        *redis.Cache
	Bars         pricedata.BarStore // PostgreSQL 시세 저장소
	Runs         store.RunStore     // 실행 결과 저장소
	Publisher    Publisher
	Concurrency  int
}

// RunRequest asks for one profile run
type RunRequest struct {
	Profile *runconfig.Profile
	RunID   string                // 비우면 새 UUID
	Symbols []string              // 지정 시 프로필 유니버스 대신 사용
	NoDB    bool                  // DB 저장 생략
	Table   *contracts.PriceTable // 지정 시 가격 로딩 생략 (--prices 파일)
}

// RunResult holds the results of a complete run
type RunResult struct {
	RunID           string
	ProfileHash     string
	Universe        []string
	Load            *pricedata.LoadReport
	Table           *contracts.PriceTable
	Outcome         *simulation.Outcome
	CSVPath         string
	Persisted       bool
	CompletedStages []string
	Duration        time.Duration
}

// Orchestrator coordinates universe → prices → simulate → persist
// ⭐ SSOT: 실행 조율은 여기서만
type Orchestrator struct {
	deps      Deps
	simulator *simulation.Simulator
	logger    *logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Deps, simulator *simulation.Simulator, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		deps:      deps,
		simulator: simulator,
		logger:    log.Component("orchestrator"),
	}
}

// Run executes the complete pipeline for one profile
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	startTime := time.Now()

	if req.Profile == nil {
		return nil, errors.New("profile is required")
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	hash, err := runconfig.Hash(req.Profile)
	if err != nil {
		return nil, fmt.Errorf("hash profile: %w", err)
	}

	result := &RunResult{
		RunID:           req.RunID,
		ProfileHash:     hash,
		CompletedStages: make([]string, 0, 4),
	}
	log := o.logger.WithRun(req.RunID)

	log.WithFields(map[string]interface{}{
		"profile_id":   req.Profile.Meta.ProfileID,
		"profile_hash": hash[:12],
		"universe":     req.Profile.Search.Universe,
	}).Info("Starting run")

	for _, w := range runconfig.Warn(req.Profile) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	fail := func(stage string, err error) (*RunResult, error) {
		err = fmt.Errorf("%s failed: %w", stage, err)
		result.Duration = time.Since(startTime)
		o.publish(Event{RunID: req.RunID, Stage: stage, Done: true, Error: err.Error()})
		log.WithError(err).Error("Run failed")
		return result, err
	}

	// 1. Universe
	var universe []string
	if req.Table != nil && len(req.Symbols) == 0 {
		universe = req.Table.Symbols()
	} else if universe, err = o.resolveUniverse(ctx, req); err != nil {
		return fail(StageUniverse, err)
	}
	result.Universe = universe
	result.CompletedStages = append(result.CompletedStages, StageUniverse)
	o.publish(Event{RunID: req.RunID, Stage: StageUniverse, Message: fmt.Sprintf("%d symbols", len(universe))})

	// 2. Prices
	table := req.Table
	if table == nil {
		from, to := req.Profile.Data.Range()
		loaded, report, err := o.loader(req.Profile.Data).Load(ctx, universe, from, to)
		if err != nil {
			return fail(StagePrices, err)
		}
		table = loaded
		result.Load = report
		o.publish(Event{RunID: req.RunID, Stage: StagePrices, Message: fmt.Sprintf("%d rows, %d dropped dates", report.Rows, report.DroppedDates)})
	} else {
		o.publish(Event{RunID: req.RunID, Stage: StagePrices, Message: fmt.Sprintf("%d rows from file", table.Len())})
	}
	result.Table = table
	result.CompletedStages = append(result.CompletedStages, StagePrices)

	// 3. Simulate
	params := req.Profile.Params(universe)
	params.RunID = req.RunID
	outcome, err := o.simulator.Run(ctx, table, params, func(p simulation.Progress) {
		o.publish(Event{RunID: req.RunID, Stage: StageSimulate, Progress: &p})
	})
	result.Outcome = outcome
	if err != nil {
		return fail(StageSimulate, err)
	}
	result.CompletedStages = append(result.CompletedStages, StageSimulate)

	// 4. Persist
	if err := o.persist(ctx, req, result); err != nil {
		return fail(StagePersist, err)
	}
	result.CompletedStages = append(result.CompletedStages, StagePersist)

	result.Duration = time.Since(startTime)
	o.publish(Event{
		RunID:   req.RunID,
		Stage:   StageDone,
		Done:    true,
		Message: fmt.Sprintf("best %s sharpe=%.4f", outcome.Best.Assets, outcome.Best.SharpeRatio),
	})

	log.WithFields(map[string]interface{}{
		"stages":   result.CompletedStages,
		"csv":      result.CSVPath,
		"db":       result.Persisted,
		"duration": result.Duration.String(),
	}).Info("Run completed")

	return result, nil
}

// Fetch resolves the universe and loads its prices without simulating.
// Bars fetched from the provider are written back to the CSV store and DB.
func (o *Orchestrator) Fetch(ctx context.Context, req RunRequest) (*RunResult, error) {
	startTime := time.Now()
	if req.Profile == nil {
		return nil, errors.New("profile is required")
	}

	result := &RunResult{RunID: req.RunID}

	universe, err := o.resolveUniverse(ctx, req)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", StageUniverse, err)
	}
	result.Universe = universe
	result.CompletedStages = append(result.CompletedStages, StageUniverse)

	data := req.Profile.Data
	data.SaveCSV = data.Dir != ""
	from, to := data.Range()

	table, report, err := o.loader(data).Load(ctx, universe, from, to)
	if err != nil {
		return result, fmt.Errorf("%s failed: %w", StagePrices, err)
	}
	result.Table = table
	result.Load = report
	result.CompletedStages = append(result.CompletedStages, StagePrices)
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"symbols":  len(universe),
		"rows":     report.Rows,
		"dropped":  report.DroppedDates,
		"duration": result.Duration.String(),
	}).Info("Prices fetched")

	return result, nil
}

// ResolveUniverse returns the symbols of a profile universe (scraped for index universes)
func (o *Orchestrator) ResolveUniverse(ctx context.Context, u runconfig.Universe) ([]string, error) {
	if u.Static() {
		return u.Symbols, nil
	}
	if o.deps.Constituents == nil {
		return nil, fmt.Errorf("index %s requires a constituents source", u.Index)
	}

	symbols, _, err := redis.Remember(ctx, o.deps.Cache, redis.ConstituentsKey(u.Index), redis.TTLDaily,
		func(s []string) bool { return len(s) == 0 },
		func(ctx context.Context) ([]string, error) {
			return o.deps.Constituents.FetchIndexConstituents(ctx, u.Index)
		},
		func(err error) { o.logger.WithError(err).Warn("Constituents cache failed") })
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: index %s has no constituents", contracts.ErrEmptySearchSpace, u.Index)
	}
	return symbols, nil
}

func (o *Orchestrator) resolveUniverse(ctx context.Context, req RunRequest) ([]string, error) {
	if len(req.Symbols) > 0 {
		return req.Symbols, nil
	}
	u, ok := req.Profile.Universes[req.Profile.Search.Universe]
	if !ok {
		return nil, fmt.Errorf("unknown universe %q", req.Profile.Search.Universe)
	}
	return o.ResolveUniverse(ctx, u)
}

// loader builds a price loader for the profile data section
func (o *Orchestrator) loader(d runconfig.Data) *pricedata.Loader {
	opts := pricedata.LoaderOptions{
		Cache:       o.deps.Cache,
		DB:          o.deps.Bars,
		SaveCSV:     d.SaveCSV,
		Concurrency: o.deps.Concurrency,
	}
	if d.Dir != "" {
		opts.CSV = pricedata.NewCSVStore(d.Dir, o.logger)
	}

	provider := o.deps.Provider
	if d.Source == runconfig.SourceCSV {
		provider = nil // CSV 전용 프로필은 외부 호출 없음
		opts.Cache = nil
		opts.DB = nil
	}
	return pricedata.NewLoader(provider, opts, o.logger)
}

func (o *Orchestrator) persist(ctx context.Context, req RunRequest, result *RunResult) error {
	out := req.Profile.Output
	outcome := result.Outcome

	if !out.SkipCSV {
		dir := out.Dir
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, outcome.RunID, store.WalletsFileName)
		if err := store.WriteWalletsCSV(path, outcome.Ranked); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		result.CSVPath = path
	}

	if out.PersistDB && !req.NoDB && o.deps.Runs != nil {
		if err := o.deps.Runs.SaveRun(ctx, outcome, out.TopN); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		result.Persisted = true
	}

	return nil
}

func (o *Orchestrator) publish(e Event) {
	if o.deps.Publisher == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	o.deps.Publisher.Publish(e)
}
