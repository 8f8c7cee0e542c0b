package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/walletsim/internal/api/handlers"
	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/pkg/logger"
)

// Executor runs one profile to completion (brain.Orchestrator)
type Executor interface {
	Run(ctx context.Context, req brain.RunRequest) (*brain.RunResult, error)
}

// Runner launches runs in the background with a bounded number of slots
type Runner struct {
	ctx      context.Context
	executor Executor
	slots    chan struct{}
	wg       sync.WaitGroup
	logger   *logger.Logger
}

// NewRunner creates a runner; ctx cancels in-flight runs on shutdown
func NewRunner(ctx context.Context, executor Executor, maxConcurrent int, log *logger.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{
		ctx:      ctx,
		executor: executor,
		slots:    make(chan struct{}, maxConcurrent),
		logger:   log.Component("runner"),
	}
}

// Launch starts the profile asynchronously; handlers.ErrBusy when every slot is taken
func (r *Runner) Launch(profile *runconfig.Profile) (string, error) {
	select {
	case r.slots <- struct{}{}:
	default:
		return "", handlers.ErrBusy
	}

	runID := uuid.NewString()
	r.wg.Add(1)

	go func() {
		defer func() {
			<-r.slots
			r.wg.Done()
		}()

		if _, err := r.executor.Run(r.ctx, brain.RunRequest{Profile: profile, RunID: runID}); err != nil {
			r.logger.WithError(err).WithRun(runID).Warn("Background run failed")
		}
	}()

	return runID, nil
}

// Wait blocks until every launched run has returned
func (r *Runner) Wait() {
	r.wg.Wait()
}
