// Package mqtt publishes optimised schedules to an MQTT broker.
package mqtt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/peakopt/core/factory"
	"github.com/kilianp07/peakopt/core/model"
	"github.com/kilianp07/peakopt/core/publish"
	"github.com/kilianp07/peakopt/infra/logger"
	"github.com/kilianp07/peakopt/pkg/export"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// SchedulePublisher sends one JSON schedule document per run to
// <topic_prefix>/<run_id>/schedule.
type SchedulePublisher struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger
	now    func() time.Time
}

func init() {
	_ = publish.Register("mqtt", func(conf map[string]any) (publish.Publisher, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSchedulePublisher(c)
	})
}

// NewSchedulePublisher connects to the broker.
func NewSchedulePublisher(cfg Config) (*SchedulePublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.timeout()) {
		return nil, fmt.Errorf("connect to %s: timed out after %s", cfg.Broker, cfg.timeout())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return &SchedulePublisher{cli: c, cfg: cfg, logger: log, now: time.Now}, nil
}

// Topic returns the topic the schedule of runID is published to.
func (p *SchedulePublisher) Topic(runID string) string {
	return fmt.Sprintf("%s/%s/schedule", p.cfg.TopicPrefix, runID)
}

// PublishSchedule publishes sched, retrying with exponential backoff.
func (p *SchedulePublisher) PublishSchedule(ctx context.Context, runID string, sched model.Schedule) error {
	doc := export.NewDocument(runID, sched, p.now())
	doc.MessageID = uuid.NewString()
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, doc); err != nil {
		return fmt.Errorf("%w: encode schedule: %v", publish.ErrPublish, err)
	}
	payload := bytes.TrimSpace(buf.Bytes())
	topic := p.Topic(runID)
	backoff := time.Duration(p.cfg.BackoffMS) * time.Millisecond

	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
		if !token.WaitTimeout(p.cfg.timeout()) {
			publishErr = fmt.Errorf("timed out after %s", p.cfg.timeout())
		} else {
			publishErr = token.Error()
		}
		if publishErr == nil {
			p.logger.Infow("schedule published", map[string]any{"topic": topic, "message_id": doc.MessageID, "bytes": len(payload)})
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", publish.ErrPublish, ctx.Err())
		case <-time.After(backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("%w: %s: %v", publish.ErrPublish, topic, publishErr)
}

// Close gracefully closes the MQTT connection.
func (p *SchedulePublisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}
