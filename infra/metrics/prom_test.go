package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/peakopt/core/factory"
	coremetrics "github.com/kilianp07/peakopt/core/metrics"
)

func TestPromSink_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordStage(coremetrics.StageEvent{Stage: "solve", Duration: 150 * time.Millisecond}))
	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{Stage: "write", Outcome: coremetrics.OutcomeSuccess, Units: 3, Steps: 48}))
	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{Stage: "solve", Outcome: coremetrics.OutcomeFailure}))

	expected := `
# HELP peakopt_runs_total Total number of optimisation runs by final stage and outcome
# TYPE peakopt_runs_total counter
peakopt_runs_total{outcome="failure",stage="solve"} 1
peakopt_runs_total{outcome="success",stage="write"} 1
`
	if err := testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.duration); c != 1 {
		t.Errorf("expected one duration series, got %d", c)
	}
	// failed run without steps leaves the gauges untouched
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.units))
	assert.Equal(t, 48.0, testutil.ToFloat64(sink.steps))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordRun(coremetrics.RunEvent{Stage: "write", Outcome: "success"}))
	require.NoError(t, b.RecordRun(coremetrics.RunEvent{Stage: "write", Outcome: "success"}))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.runs.WithLabelValues("write", "success")))
}

func TestPushSink_PushesOnClose(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewPushSink(PromConfig{PushgatewayURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, sink.RecordRun(coremetrics.RunEvent{Stage: "write", Outcome: "success", Units: 1, Steps: 2}))
	require.NoError(t, sink.Close())
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/peakopt", path)
}

func TestPushSink_Errors(t *testing.T) {
	_, err := NewPushSink(PromConfig{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	sink, err := NewPushSink(PromConfig{PushgatewayURL: srv.URL, Job: "nightly"})
	require.NoError(t, err)
	assert.Error(t, sink.Close())
}

func TestFactory_Builtins(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)

	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{
		{Type: "nop"},
		{Type: "prometheus", Conf: map[string]any{"pushgateway_url": "http://127.0.0.1:9091", "job": "test"}},
	})
	require.NoError(t, err)
	m, ok := s.(*coremetrics.MultiSink)
	require.True(t, ok, "expected MultiSink, got %T", s)
	assert.Len(t, m.Sinks, 2)
	assert.IsType(t, &PromSink{}, m.Sinks[1])

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}})
	assert.ErrorContains(t, err, "metrics sink 1")
}
