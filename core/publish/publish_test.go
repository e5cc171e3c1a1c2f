package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/peakopt/core/factory"
	"github.com/kilianp07/peakopt/core/model"
)

type memPublisher struct {
	topic  string
	closed bool
}

func (m *memPublisher) PublishSchedule(context.Context, string, model.Schedule) error { return nil }

func (m *memPublisher) Close() error {
	m.closed = true
	return nil
}

func TestNew(t *testing.T) {
	require.NoError(t, Register("mem-test", func(conf map[string]any) (Publisher, error) {
		var c struct {
			Topic string `json:"topic"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Topic == "" {
			return nil, errors.New("topic required")
		}
		return &memPublisher{topic: c.Topic}, nil
	}))

	pubs, err := New(nil)
	require.NoError(t, err)
	assert.Empty(t, pubs)

	pubs, err = New([]factory.ModuleConfig{
		{Type: "mem-test", Conf: map[string]any{"topic": "a"}},
		{Type: "mem-test", Conf: map[string]any{"topic": "b"}},
	})
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, "b", pubs[1].(*memPublisher).topic)
	require.NoError(t, CloseAll(pubs))
	assert.True(t, pubs[0].(*memPublisher).closed)

	_, err = New([]factory.ModuleConfig{
		{Type: "mem-test", Conf: map[string]any{"topic": "a"}},
		{Type: "mem-test"},
	})
	assert.ErrorContains(t, err, "publisher 1")
}
