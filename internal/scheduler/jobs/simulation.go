package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/pkg/logger"
)

// Executor runs one profile to completion (brain.Orchestrator)
type Executor interface {
	Run(ctx context.Context, req brain.RunRequest) (*brain.RunResult, error)
}

// SimulationJob runs the configured profile on a schedule
type SimulationJob struct {
	executor    Executor
	profilePath string
	schedule    string
	logger      *logger.Logger
}

// NewSimulationJob creates a new simulation job
func NewSimulationJob(executor Executor, profilePath, schedule string, log *logger.Logger) *SimulationJob {
	return &SimulationJob{
		executor:    executor,
		profilePath: profilePath,
		schedule:    schedule,
		logger:      log,
	}
}

// Name returns the job name
func (j *SimulationJob) Name() string {
	return "simulation"
}

// Schedule returns the cron schedule
func (j *SimulationJob) Schedule() string {
	return j.schedule
}

// Run reloads the profile and executes it
// 프로필은 매 실행마다 다시 읽어서 파일 수정이 다음 실행에 반영되도록 한다
func (j *SimulationJob) Run(ctx context.Context) error {
	profile, _, err := runconfig.Load(j.profilePath)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if err := runconfig.Validate(profile); err != nil {
		return fmt.Errorf("invalid profile %s: %w", j.profilePath, err)
	}

	result, err := j.executor.Run(ctx, brain.RunRequest{Profile: profile})
	if err != nil {
		return fmt.Errorf("simulation run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"evaluated":   result.Outcome.Evaluated,
		"best_sharpe": result.Outcome.Best.SharpeRatio,
		"csv":         result.CSVPath,
		"persisted":   result.Persisted,
	}).Info("Scheduled simulation completed")

	return nil
}
