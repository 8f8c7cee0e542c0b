package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(WorkerFailures)
	WorkerFailures.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WorkerFailures))

	Runs.WithLabelValues("completed").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(Runs.WithLabelValues("completed")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	TasksEvaluated.Add(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "walletsim_tasks_evaluated_total")
}
