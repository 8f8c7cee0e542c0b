package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/walletsim/internal/api/handlers"
	"github.com/wonny/walletsim/pkg/logger"
	"github.com/wonny/walletsim/pkg/metrics"
)

// requestIDHeader carries the per-request id in and out
const requestIDHeader = "X-Request-ID"

// Routes bundles the handlers mounted by NewRouter
type Routes struct {
	Runs        *handlers.RunsHandler
	Simulations *handlers.SimulationHandler
	Hub         *ProgressHub
	Metrics     bool
}

// NewRouter mounts health, metrics, run history, simulation start and the progress stream
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	started := time.Now()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"service": "walletsim-api",
			"uptime":  time.Since(started).Round(time.Second).String(),
		})
	}).Methods(http.MethodGet)

	if routes.Metrics {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", routes.Runs.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", routes.Runs.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/wallets", routes.Runs.GetWallets).Methods(http.MethodGet)
	if routes.Simulations != nil {
		api.HandleFunc("/simulations", routes.Simulations.Start).Methods(http.MethodPost)
	}

	if routes.Hub != nil {
		r.HandleFunc("/ws/progress", routes.Hub.ServeWS).Methods(http.MethodGet)
	}

	// 바깥쪽부터: request id → access log → panic recovery
	r.Use(requestID, accessLog(log), recoverPanics(log))
	return r
}

// statusRecorder remembers the status written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack is required by the /ws/progress upgrade
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// routeLabel is the matched path template, so /api/runs/{id} stays one series
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func accessLog(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := routeLabel(r)
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			log.WithFields(map[string]interface{}{
				"method":     r.Method,
				"route":      route,
				"status":     rec.status,
				"duration":   time.Since(start),
				"request_id": r.Header.Get(requestIDHeader),
			}).Debug("HTTP request")
		})
	}
}

func recoverPanics(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.WithFields(map[string]interface{}{
						"panic":      v,
						"path":       r.URL.Path,
						"request_id": r.Header.Get(requestIDHeader),
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
