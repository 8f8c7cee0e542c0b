package pricedata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/pkg/logger"
	"github.com/wonny/walletsim/pkg/metrics"
	"github.com/wonny/walletsim/pkg/redis"
)

// Provider fetches daily bars from a remote source
type Provider interface {
	Name() string
	FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error)
}

// BarStore is a durable bar store (PostgreSQL in production)
type BarStore interface {
	SaveBars(ctx context.Context, symbol string, bars []contracts.Bar) error
	LoadBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error)
}

// Source names used in metrics and load reports
const (
	SourceCache    = "cache"
	SourceDB       = "db"
	SourceCSV      = "csv"
	SourceProvider = "provider"
)

// DefaultConcurrency bounds in-flight provider fetches
const DefaultConcurrency = 4

// LoaderOptions configures a Loader. Every store is optional.
type LoaderOptions struct {
	Cache       *redis.Cache
	CSV         *CSVStore
	DB          BarStore
	SaveCSV     bool // 공급자에서 받은 시세를 CSV로 보관
	Concurrency int
}

// LoadReport describes where each symbol's bars came from
type LoadReport struct {
	From, To     time.Time
	Sources      map[string]string
	Rows         int
	DroppedDates int
}

// Loader resolves price series for a universe and aligns them into a PriceTable
// 순서: Redis 캐시 → DB → CSV → 공급자
type Loader struct {
	provider Provider
	opts     LoaderOptions
	logger   *logger.Logger
	now      func() time.Time
}

// NewLoader creates a new loader
func NewLoader(provider Provider, opts LoaderOptions, log *logger.Logger) *Loader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Loader{
		provider: provider,
		opts:     opts,
		logger:   log.Component("price_loader"),
		now:      time.Now,
	}
}

// ResolveRange applies default dates: end = today, start = one month before end
func ResolveRange(from, to, now time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		y, m, d := now.Date()
		to = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	if !from.Before(to) {
		return from, to, fmt.Errorf("start %s must be before end %s", from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}

// Load resolves every symbol and returns the date-aligned closes table
func (l *Loader) Load(ctx context.Context, symbols []string, from, to time.Time) (*contracts.PriceTable, *LoadReport, error) {
	from, to, err := ResolveRange(from, to, l.now())
	if err != nil {
		return nil, nil, err
	}

	series, sources, err := l.FetchAll(ctx, symbols, from, to)
	if err != nil {
		return nil, nil, err
	}

	table, dropped, err := contracts.AlignCloses(series, symbols)
	if err != nil {
		return nil, nil, err
	}

	report := &LoadReport{
		From:         from,
		To:           to,
		Sources:      sources,
		Rows:         table.Len(),
		DroppedDates: dropped,
	}

	if dropped > 0 {
		l.logger.WithFields(map[string]interface{}{
			"dropped": dropped,
			"rows":    table.Len(),
		}).Warn("Dropped dates missing from some symbols")
	}

	return table, report, nil
}

// FetchAll resolves bars for every symbol concurrently
func (l *Loader) FetchAll(ctx context.Context, symbols []string, from, to time.Time) (map[string][]contracts.Bar, map[string]string, error) {
	var (
		mu      sync.Mutex
		series  = make(map[string][]contracts.Bar, len(symbols))
		sources = make(map[string]string, len(symbols))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for _, sym := range symbols {
		g.Go(func() error {
			bars, source, err := l.resolve(gctx, sym, from, to)
			if err != nil {
				return fmt.Errorf("load %s: %w", sym, err)
			}

			mu.Lock()
			series[sym] = bars
			sources[sym] = source
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return series, sources, nil
}

// resolve walks the store chain for one symbol, backfilling faster stores on a miss
func (l *Loader) resolve(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, string, error) {
	key := redis.PriceSeriesKey(symbol, from.Format(dateLayout), to.Format(dateLayout))
	log := l.logger.WithField("symbol", symbol)

	// 1. Redis
	if l.opts.Cache != nil {
		var cached []contracts.Bar
		start := time.Now()
		hit, err := l.opts.Cache.Get(ctx, key, &cached)
		if err != nil {
			log.WithError(err).Warn("Cache read failed")
		}
		if hit && len(cached) > 0 {
			metrics.FetchDuration.WithLabelValues(SourceCache).Observe(time.Since(start).Seconds())
			return cached, SourceCache, nil
		}
	}

	bars, source, err := l.resolveStored(ctx, symbol, from, to)
	if err != nil {
		return nil, "", err
	}

	if source == SourceProvider {
		l.backfill(ctx, symbol, from, to, bars)
	}

	if l.opts.Cache != nil {
		if err := l.opts.Cache.Set(ctx, key, bars, l.cacheTTL(to)); err != nil {
			log.WithError(err).Warn("Cache write failed")
		}
	}

	return bars, source, nil
}

func (l *Loader) resolveStored(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, string, error) {
	// 2. PostgreSQL
	if l.opts.DB != nil {
		start := time.Now()
		bars, err := l.opts.DB.LoadBars(ctx, symbol, from, to)
		switch {
		case err == nil:
			metrics.FetchDuration.WithLabelValues(SourceDB).Observe(time.Since(start).Seconds())
			return bars, SourceDB, nil
		case !errors.Is(err, ErrNotFound):
			l.logger.WithField("symbol", symbol).WithError(err).Warn("DB read failed")
		}
	}

	// 3. CSV
	if l.opts.CSV != nil {
		start := time.Now()
		bars, err := l.opts.CSV.LoadBars(symbol, from, to)
		switch {
		case err == nil && len(bars) > 0:
			metrics.FetchDuration.WithLabelValues(SourceCSV).Observe(time.Since(start).Seconds())
			return bars, SourceCSV, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, "", err
		}
	}

	// 4. Provider
	if l.provider == nil {
		return nil, "", fmt.Errorf("%w: no stored series and no provider configured", ErrNotFound)
	}

	start := time.Now()
	bars, err := l.provider.FetchBars(ctx, symbol, from, to)
	if err != nil {
		return nil, "", err
	}
	metrics.FetchDuration.WithLabelValues(SourceProvider).Observe(time.Since(start).Seconds())

	if len(bars) == 0 {
		return nil, "", fmt.Errorf("%w: %s returned no bars", contracts.ErrInsufficientHistory, l.provider.Name())
	}

	return bars, SourceProvider, nil
}

func (l *Loader) backfill(ctx context.Context, symbol string, from, to time.Time, bars []contracts.Bar) {
	log := l.logger.WithField("symbol", symbol)

	if l.opts.DB != nil {
		if err := l.opts.DB.SaveBars(ctx, symbol, bars); err != nil {
			log.WithError(err).Warn("DB write failed")
		}
	}

	if l.opts.CSV != nil && l.opts.SaveCSV {
		if _, err := l.opts.CSV.SaveBars(symbol, from, to, bars); err != nil {
			log.WithError(err).Warn("CSV write failed")
		}
	}
}

// cacheTTL keeps ranges that include today short-lived
func (l *Loader) cacheTTL(to time.Time) time.Duration {
	if to.AddDate(0, 0, 1).After(l.now()) {
		return redis.TTLShort
	}
	return redis.TTLDaily
}
