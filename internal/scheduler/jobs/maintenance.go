package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/walletsim/pkg/logger"
)

// OutputCleanupJob removes run output directories older than the retention
type OutputCleanupJob struct {
	dir       string
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewOutputCleanupJob creates a new output cleanup job
func NewOutputCleanupJob(dir string, retention time.Duration, log *logger.Logger) *OutputCleanupJob {
	return &OutputCleanupJob{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *OutputCleanupJob) Name() string {
	return "output_cleanup"
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *OutputCleanupJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run deletes expired run directories under dir
// 실행 디렉토리(<dir>/<run_id>/wallets.csv)만 대상, 시세 CSV 파일은 건드리지 않는다
func (j *OutputCleanupJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read output dir: %w", err)
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.WithError(err).WithField("path", path).Warn("Failed to remove run output")
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Output cleanup completed")
	}

	return nil
}
