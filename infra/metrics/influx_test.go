package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/peakopt/core/metrics"
	"github.com/kilianp07/peakopt/core/model"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func lines(points ...*write.Point) string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	}
	return strings.Join(out, "\n")
}

func TestInfluxSink_RecordRun(t *testing.T) {
	var rec bodyRecorder
	srv := rec.server(t)

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	start := time.Date(2022, 7, 20, 0, 0, 0, 0, time.UTC)
	ev := coremetrics.RunEvent{
		RunID:       "r1",
		Start:       start,
		End:         start.Add(1500 * time.Millisecond),
		Outcome:     coremetrics.OutcomeSuccess,
		Stage:       "write",
		Units:       3,
		Steps:       48,
		StepMinutes: 30,
		Alpha:       0.5,
	}
	if err := sink.RecordRun(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("optimisation_run").
		AddTag("run_id", "r1").
		AddTag("outcome", "success").
		AddTag("stage", "write").
		AddField("units", 3).
		AddField("steps", 48).
		AddField("step_minutes", 30).
		AddField("alpha", 0.5).
		AddField("duration_s", 1.5).
		SetTime(ev.End)
	if len(rec.bodies) != 1 || rec.bodies[0] != lines(p) {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordStage(t *testing.T) {
	var rec bodyRecorder
	srv := rec.server(t)

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	now := time.Now()
	ev := coremetrics.StageEvent{RunID: "r1", Stage: "solve", Duration: 2 * time.Second, Err: errors.New("boom"), Time: now}
	if err := sink.RecordStage(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("optimisation_stage").
		AddTag("run_id", "r1").
		AddTag("stage", "solve").
		AddTag("outcome", "failure").
		AddField("duration_s", 2.0).
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != lines(p) {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordSchedule(t *testing.T) {
	var rec bodyRecorder
	srv := rec.server(t)

	t0 := time.Date(2022, 7, 20, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)
	sched := model.Schedule{
		Dispatch: model.Frame{Index: []time.Time{t0, t1}, Units: []model.UnitID{"a"}, Values: [][]float64{{1.5}, {-2}}},
		SoC:      &model.Frame{Index: []time.Time{t0, t1, t2}, Units: []model.UnitID{"a"}, Values: [][]float64{{5}, {6.5}, {4.5}}},
	}
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	if err := sink.RecordSchedule("r1", sched); err != nil {
		t.Fatalf("record: %v", err)
	}
	point := func(ts time.Time) *write.Point {
		return write.NewPointWithMeasurement("battery_schedule").AddTag("run_id", "r1").AddTag("unit", "a").SetTime(ts)
	}
	want := lines(
		point(t0).AddField("battery_load", 1.5).AddField("soc_kwh", 5.0),
		point(t1).AddField("battery_load", -2.0).AddField("soc_kwh", 6.5),
		point(t2).AddField("soc_kwh", 4.5),
	)
	if len(rec.bodies) != 1 || rec.bodies[0] != want {
		t.Errorf("bodies: %#v\nwant %q", rec.bodies, want)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
