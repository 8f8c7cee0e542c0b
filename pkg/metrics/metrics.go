package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ⭐ SSOT: 프로세스 전역 시뮬레이션 지표는 여기서만 정의

var (
	// TasksEvaluated counts candidate evaluations that produced a result
	TasksEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletsim_tasks_evaluated_total",
		Help: "Candidate portfolios evaluated successfully",
	})

	// WorkerFailures counts candidate evaluations isolated as failures
	WorkerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletsim_worker_failures_total",
		Help: "Candidate evaluations that failed and were excluded",
	})

	// SamplingExhausted counts weight draws that ran out of attempts
	SamplingExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletsim_sampling_exhausted_total",
		Help: "Weight vectors returned as best-effort after the attempt budget",
	})

	// UndefinedSharpe counts zero-volatility candidates
	UndefinedSharpe = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletsim_undefined_sharpe_total",
		Help: "Results whose Sharpe ratio was undefined (zero std dev)",
	})

	// Runs counts simulation runs by outcome (completed, cancelled, failed)
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletsim_runs_total",
		Help: "Simulation runs by outcome",
	}, []string{"status"})

	// RunDuration observes wall time of simulation runs
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walletsim_run_duration_seconds",
		Help:    "Wall time of a simulation run",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms ~ 43m
	})

	// FetchDuration observes provider fetch latency per symbol
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "walletsim_price_fetch_seconds",
		Help:    "Latency of resolving one symbol's price series",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// HTTPRequests counts API requests by route template and status code
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletsim_http_requests_total",
		Help: "API requests by route and status",
	}, []string{"route", "code"})
)

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
