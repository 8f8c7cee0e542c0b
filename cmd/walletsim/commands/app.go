package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/external/naver"
	"github.com/wonny/walletsim/internal/pricedata"
	"github.com/wonny/walletsim/internal/simulation"
	"github.com/wonny/walletsim/internal/store"
	"github.com/wonny/walletsim/pkg/config"
	"github.com/wonny/walletsim/pkg/database"
	"github.com/wonny/walletsim/pkg/httputil"
	"github.com/wonny/walletsim/pkg/logger"
	"github.com/wonny/walletsim/pkg/redis"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB // nil = DB 비활성
	redis  *redis.Client
	cache  *redis.Cache // nil = 캐시 비활성
	naver  *naver.Client
	runs   store.RunStore
	orch   *brain.Orchestrator
	closed bool
}

// appOptions tunes bootstrap for a command
type appOptions struct {
	NoDB      bool
	Publisher brain.Publisher
}

// bootstrap wires config → logger → DB → Redis → HTTP → Naver → orchestrator
func bootstrap(ctx context.Context, opts appOptions) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 3. Connect to database (optional)
	if !opts.NoDB {
		db, err := database.New(ctx, cfg)
		switch {
		case errors.Is(err, database.ErrDisabled):
			log.Debug("DATABASE_URL not set, DB persistence disabled")
		case err != nil:
			return nil, fmt.Errorf("connect to database: %w", err)
		default:
			migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			schema := append(append([]string{}, pricedata.Schema...), store.Schema...)
			if err := db.Migrate(migrateCtx, schema...); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			a.db = db
			log.Info("Connected to database")
		}
	}

	// 4. Connect to Redis (optional)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc = redis.Disabled()
	}
	a.redis = rc
	if rc.Enabled() {
		a.cache = redis.NewCache(rc, "walletsim")
	}

	// 5. Create HTTP client (rate paced, shared limiter when Redis is on)
	httpClient := httputil.New(log).WithPacing(cfg.Naver.RatePerSec, cfg.Naver.Concurrency)
	if rc.Enabled() {
		httpClient = httpClient.WithRateLimiter(redis.NewRateLimiter(rc, "walletsim"), redis.RateLimitConfig{
			Key:    "naver",
			Limit:  int(cfg.Naver.RatePerSec * 60),
			Window: time.Minute,
		})
	}

	// 6. Create external API clients
	a.naver = naver.NewClient(httpClient, cfg.Naver.BaseURL, cfg.Naver.ChartURL, log)

	// 7. Create stores
	deps := brain.Deps{
		Provider:     a.naver,
		Constituents: a.naver,
		Cache:        a.cache,
		Publisher:    opts.Publisher,
		Concurrency:  cfg.Naver.Concurrency,
	}
	if a.db != nil {
		deps.Bars = pricedata.NewRepository(a.db.Pool)
		a.runs = store.NewWalletRepository(a.db.Pool)
	} else {
		a.runs = store.NewMemoryStore(0)
	}
	deps.Runs = a.runs

	// 8. Create orchestrator
	a.orch = brain.NewOrchestrator(deps, simulation.NewSimulator(log), log)

	log.WithFields(map[string]interface{}{
		"env":   cfg.Env,
		"db":    a.db != nil,
		"redis": rc.Enabled(),
	}).Debug("Application wired")

	return a, nil
}

// Close releases DB and Redis connections
func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.db.Close()
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Redis close failed")
	}
}
