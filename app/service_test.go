package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/peakopt/config"
	"github.com/kilianp07/peakopt/core/factory"
	"github.com/kilianp07/peakopt/core/model"
	"github.com/kilianp07/peakopt/core/pipeline"
	"github.com/kilianp07/peakopt/core/runlog"
	"github.com/kilianp07/peakopt/core/solver"
)

type stubSolver struct{ doc string }

func (s stubSolver) Run(_ context.Context, req solver.Request) error {
	return os.WriteFile(req.Output, []byte(s.doc), 0o644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.ScratchRoot = filepath.Join(dir, "temp")
	cfg.RunLog = runlog.Config{Backend: runlog.BackendJSONL, Path: filepath.Join(dir, "runs.jsonl")}
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	return cfg
}

func testInputs(t *testing.T) pipeline.Inputs {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	idx := []time.Time{start, start.Add(30 * time.Minute)}
	load, err := model.NewFrame(idx, []model.UnitID{"h1"}, [][]float64{{1}, {2}})
	require.NoError(t, err)
	solar, err := model.NewFrame(idx, []model.UnitID{"h1"}, [][]float64{{0}, {0.5}})
	require.NoError(t, err)
	fleet := model.Fleet{{Unit: "h1", CapacityWh: 5000, ChargeW: 2000, DischargeW: 2000, InitialWh: 1000, Efficiency: 0.9}}
	return pipeline.Inputs{Load: load, Solar: solar, Fleet: fleet}
}

func TestServiceRun(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg, pipeline.WithInvoker(stubSolver{doc: `{"battery_load": [[0.5], [-1.0]]}`}))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "schedule.csv")
	res, err := svc.Run(context.Background(), testInputs(t), pipeline.RunOptions{Output: out, Cleanup: true})
	require.NoError(t, err)
	assert.True(t, res.CleanedUp)
	assert.Equal(t, []float64{0.5}, res.Schedule.Dispatch.Values[0])
	assert.FileExists(t, out)

	recs, err := svc.RunLog.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.RunID, recs[0].RunID)
	assert.Equal(t, runlog.StatusSuccess, recs[0].Status)

	require.NoError(t, svc.Close())
}

func TestServiceUnknownPublisher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publishers = []factory.ModuleConfig{{Type: "carrier-pigeon"}}
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishers")
}

func TestServiceUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics")
}

func TestPlugins(t *testing.T) {
	p := Plugins()
	assert.Subset(t, p["metrics"], []string{"influx", "nop", "prometheus"})
	assert.Contains(t, p["publishers"], "mqtt")
}
