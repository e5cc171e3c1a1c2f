package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/peakopt/core/metrics"
	"github.com/kilianp07/peakopt/core/model"
	"github.com/kilianp07/peakopt/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving run data.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// InfluxSink writes runs and schedules to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordStage writes one optimisation_stage point.
func (s *InfluxSink) RecordStage(ev coremetrics.StageEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("optimisation_stage").
		AddTag("run_id", ev.RunID).
		AddTag("stage", ev.Stage).
		AddTag("outcome", ev.Outcome()).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes one optimisation_run point stamped with the run end.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("optimisation_run").
		AddTag("run_id", ev.RunID).
		AddTag("outcome", ev.Outcome).
		AddTag("stage", ev.Stage).
		AddField("units", ev.Units).
		AddField("steps", ev.Steps).
		AddField("step_minutes", ev.StepMinutes).
		AddField("alpha", ev.Alpha).
		AddField("duration_s", round3(ev.End.Sub(ev.Start).Seconds())).
		SetTime(ev.End)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one battery_schedule point per unit and timestep.
// The state of charge, when present, is a field of the same point; its
// final extra timestep produces points carrying the state of charge only.
func (s *InfluxSink) RecordSchedule(runID string, sched model.Schedule) error {
	points := schedulePoints(runID, sched)
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

func schedulePoints(runID string, sched model.Schedule) []*write.Point {
	d := sched.Dispatch
	rows := d.Len()
	if sched.SoC != nil && sched.SoC.Len() > rows {
		rows = sched.SoC.Len()
	}
	var points []*write.Point
	for i := 0; i < rows; i++ {
		for j, u := range d.Units {
			var ts time.Time
			p := write.NewPointWithMeasurement("battery_schedule").
				AddTag("run_id", runID).
				AddTag("unit", string(u))
			fields := 0
			if i < d.Len() {
				ts = d.Index[i]
				p.AddField("battery_load", d.Values[i][j])
				fields++
			}
			if sched.SoC != nil && i < sched.SoC.Len() {
				ts = sched.SoC.Index[i]
				p.AddField("soc_kwh", sched.SoC.Values[i][j])
				fields++
			}
			if fields == 0 {
				continue
			}
			points = append(points, p.SetTime(ts))
		}
	}
	return points
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	if s.client == nil {
		return nil
	}
	s.client.Close()
	s.client = nil
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
