package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/walletsim/internal/api"
	"github.com/wonny/walletsim/internal/api/handlers"
	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/scheduler"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API + 진행률 웹소켓 서버를 시작합니다.

Endpoints:
  GET  /health                     - Health check
  GET  /metrics                    - Prometheus metrics
  GET  /api/runs                   - 실행 목록
  GET  /api/runs/{id}              - 실행 요약
  GET  /api/runs/{id}/wallets      - 상위 지갑 (?limit=)
  POST /api/simulations            - 비동기 실행 시작 (202 + run_id)
  GET  /ws/progress?run_id=        - 진행률 스트림

Example:
  go run ./cmd/walletsim serve
  go run ./cmd/walletsim serve --port 8089 --with-scheduler`,
	RunE: runServe,
}

var (
	servePort          string
	serveMaxRuns       int
	serveWithScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT)")
	serveCmd.Flags().IntVar(&serveMaxRuns, "max-runs", 1, "동시 실행 가능한 탐색 수")
	serveCmd.Flags().BoolVar(&serveWithScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== walletsim API Server ===")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// hub는 logger 생성 후 만들어지므로 늦게 바인딩
	var hub *api.ProgressHub
	publisher := brain.PublisherFunc(func(e brain.Event) {
		if hub != nil {
			hub.Publish(e)
		}
	})

	a, err := bootstrap(ctx, appOptions{Publisher: publisher})
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	hub = api.NewProgressHub(a.log)
	go hub.Run(ctx)

	runner := api.NewRunner(ctx, a.orch, serveMaxRuns, a.log)
	defer runner.Wait()

	router := api.NewRouter(api.Routes{
		Runs:        handlers.NewRunsHandler(a.runs, a.log),
		Simulations: handlers.NewSimulationHandler(runner, a.cfg.Simulation, a.log),
		Hub:         hub,
		Metrics:     a.cfg.MetricsEnabled,
	}, a.log)

	if serveWithScheduler {
		sched := scheduler.New(a.log, scheduler.WithLocation(seoul()))
		if err := registerJobs(a, sched); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := api.New(a.cfg, a.log, router).Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
