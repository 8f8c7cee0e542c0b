package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/walletsim/internal/scheduler"
	"github.com/wonny/walletsim/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/walletsim scheduler start
  go run ./cmd/walletsim scheduler list
  go run ./cmd/walletsim scheduler run simulation`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다 (Asia/Seoul 기준).

등록되는 작업:
- simulation: SIM_SCHEDULE (기본 평일 18:30, SIM_PROFILE 실행)
- price_refresh: 평일 16:00 (가격 캐시 갱신)
- output_cleanup: 매일 03:00 (오래된 실행 결과 삭제)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	// Flags
	schedulerRetention time.Duration
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().DurationVar(&schedulerRetention, "retention", 30*24*time.Hour, "실행 결과 보관 기간")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== walletsim Scheduler ===")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.log, scheduler.WithLocation(seoul()))
	if err := registerJobs(a, sched); err != nil {
		return err
	}

	// Start scheduler
	sched.Start()

	PrintSuccess("Scheduler started")
	printJobTable(sched)
	fmt.Println("Press Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context(), appOptions{NoDB: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.log)
	if err := registerJobs(a, sched); err != nil {
		return err
	}

	printJobTable(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.log, scheduler.WithRetry(0, 0))
	if err := registerJobs(a, sched); err != nil {
		return err
	}

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// 결과가 기록될 때까지 대기 (Ctrl+C 시 취소)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sched.Stop()
			printJobStats(sched)
			return ctx.Err()
		case <-ticker.C:
			history, err := sched.GetJobHistory(jobName)
			if err != nil {
				return err
			}
			res, done := history.Last()
			if !done {
				continue
			}
			if !res.Success {
				PrintError(fmt.Sprintf("%s failed after %d attempt(s): %s", jobName, res.Attempts, res.Error))
				return fmt.Errorf("job %s failed", jobName)
			}
			PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, res.Duration.Round(time.Millisecond)))
			return nil
		}
	}
}

// registerJobs adds every walletsim job to the scheduler
func registerJobs(a *app, sched *scheduler.Scheduler) error {
	sim := a.cfg.Simulation
	log := a.log.Component("jobs")

	for _, job := range []scheduler.Job{
		jobs.NewSimulationJob(a.orch, sim.ProfilePath, sim.Schedule, log),
		jobs.NewPriceRefreshJob(a.orch, sim.ProfilePath, log),
		jobs.NewOutputCleanupJob(sim.OutputDir, schedulerRetention, log),
	} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("register job: %w", err)
		}
	}
	return nil
}

// printJobTable lists jobs with their cron expression and next activation
func printJobTable(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	rows := make([][]string, 0, len(stats))
	for _, name := range sched.GetAllJobs() {
		next := "-"
		if t, err := sched.NextRun(name); err == nil && !t.IsZero() {
			next = t.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{name, stats[name].Schedule, next})
	}
	PrintTable([]string{"Job", "Schedule", "Next Run"}, rows)
}

// printJobStats summarizes the jobs that ran at least once
func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	var rows [][]string
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		if st.TotalRuns == 0 {
			continue
		}
		last := "-"
		if st.LastRun != nil {
			last = st.LastRun.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(st.TotalRuns),
			fmt.Sprintf("%d (%.1f%%)", st.SuccessCount, st.SuccessRate*100),
			strconv.Itoa(st.FailureCount),
			last,
		})
	}
	if len(rows) == 0 {
		return
	}
	PrintTable([]string{"Job", "Runs", "Success", "Failures", "Last Run"}, rows)
}

// seoul returns the KRX market timezone (UTC when tzdata is missing)
func seoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.UTC
	}
	return loc
}
