package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/pkg/logger"
)

// Fetcher resolves a universe and loads its prices (brain.Orchestrator)
type Fetcher interface {
	Fetch(ctx context.Context, req brain.RunRequest) (*brain.RunResult, error)
}

// PriceRefreshJob warms the price caches for the profile's universe
type PriceRefreshJob struct {
	fetcher     Fetcher
	profilePath string
	logger      *logger.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(fetcher Fetcher, profilePath string, log *logger.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		fetcher:     fetcher,
		profilePath: profilePath,
		logger:      log,
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Schedule returns the cron schedule (weekdays after market close)
func (j *PriceRefreshJob) Schedule() string {
	return "0 0 16 * * 1-5" // 평일 16:00 (장 마감 후)
}

// Run loads prices for the profile universe up to today
func (j *PriceRefreshJob) Run(ctx context.Context) error {
	profile, _, err := runconfig.Load(j.profilePath)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	// 고정 종료일이 있으면 그대로, 없으면 오늘까지 (ResolveRange 기본값)
	result, err := j.fetcher.Fetch(ctx, brain.RunRequest{Profile: profile})
	if err != nil {
		return fmt.Errorf("price refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(result.Universe),
		"rows":    result.Load.Rows,
		"sources": result.Load.Sources,
	}).Info("Price refresh completed")

	return nil
}
