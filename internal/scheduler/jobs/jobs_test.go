package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/pricedata"
	"github.com/wonny/walletsim/internal/simulation"
	"github.com/wonny/walletsim/pkg/logger"
)

const profileYAML = `
meta:
  profile_id: nightly
universes:
  main:
    symbols: ["A", "B", "C"]
data:
  source: naver
search:
  universe: main
  subset_size: 2
  wallets: 10
  min_weight: 0.1
  max_weight: 0.9
output:
  dir: out
`

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

type fakeExecutor struct {
	got brain.RunRequest
	err error
}

func (f *fakeExecutor) Run(_ context.Context, req brain.RunRequest) (*brain.RunResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &brain.RunResult{
		RunID:   "run-1",
		Outcome: &simulation.Outcome{Evaluated: 10, Best: contracts.WalletResult{SharpeRatio: 1.2}},
	}, nil
}

func (f *fakeExecutor) Fetch(_ context.Context, req brain.RunRequest) (*brain.RunResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &brain.RunResult{
		Universe: []string{"A", "B", "C"},
		Load:     &pricedata.LoadReport{Rows: 20, Sources: map[string]string{"A": pricedata.SourceProvider}},
	}, nil
}

func TestSimulationJob_Run(t *testing.T) {
	exec := &fakeExecutor{}
	job := NewSimulationJob(exec, writeProfile(t, profileYAML), "0 30 18 * * 1-5", logger.NewNop())

	assert.Equal(t, "simulation", job.Name())
	assert.Equal(t, "0 30 18 * * 1-5", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, exec.got.Profile)
	assert.Equal(t, "nightly", exec.got.Profile.Meta.ProfileID)
}

func TestSimulationJob_Errors(t *testing.T) {
	t.Run("missing profile", func(t *testing.T) {
		job := NewSimulationJob(&fakeExecutor{}, filepath.Join(t.TempDir(), "nope.yaml"), "@daily", logger.NewNop())
		assert.Error(t, job.Run(context.Background()))
	})

	t.Run("invalid profile", func(t *testing.T) {
		bad := writeProfile(t, `
universes:
  main:
    symbols: ["A"]
search:
  universe: other
  subset_size: 1
  wallets: 1
  max_weight: 1
`)
		exec := &fakeExecutor{}
		job := NewSimulationJob(exec, bad, "@daily", logger.NewNop())
		assert.Error(t, job.Run(context.Background()))
		assert.Nil(t, exec.got.Profile, "executor must not run on invalid profile")
	})

	t.Run("executor failure", func(t *testing.T) {
		exec := &fakeExecutor{err: errors.New("no prices")}
		job := NewSimulationJob(exec, writeProfile(t, profileYAML), "@daily", logger.NewNop())
		err := job.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no prices")
	})
}

func TestPriceRefreshJob_Run(t *testing.T) {
	exec := &fakeExecutor{}
	job := NewPriceRefreshJob(exec, writeProfile(t, profileYAML), logger.NewNop())

	assert.Equal(t, "price_refresh", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "main", exec.got.Profile.Search.Universe)

	exec.err = errors.New("provider down")
	assert.Error(t, job.Run(context.Background()))
}

func TestOutputCleanupJob_Run(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 7, 1, 3, 0, 0, 0, time.UTC)

	mk := func(name string, age time.Duration) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(p, 0o755))
		mod := now.Add(-age)
		require.NoError(t, os.Chtimes(p, mod, mod))
		return p
	}
	oldRun := mk("old-run", 40*24*time.Hour)
	newRun := mk("new-run", 24*time.Hour)

	priceFile := filepath.Join(dir, "A_from_2024-01-01_to_2024-02-01.csv")
	require.NoError(t, os.WriteFile(priceFile, []byte("Date,Close\n"), 0o644))
	old := now.Add(-90 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(priceFile, old, old))

	job := NewOutputCleanupJob(dir, 30*24*time.Hour, logger.NewNop())
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.NoDirExists(t, oldRun)
	assert.DirExists(t, newRun)
	assert.FileExists(t, priceFile)
}

func TestOutputCleanupJob_MissingDir(t *testing.T) {
	job := NewOutputCleanupJob(filepath.Join(t.TempDir(), "absent"), time.Hour, logger.NewNop())
	assert.NoError(t, job.Run(context.Background()))
}
