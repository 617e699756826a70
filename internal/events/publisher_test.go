package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
)

type channelStub struct {
	key      string
	msg      amqp.Publishing
	deadline bool
	err      error
	closed   bool
}

func (c *channelStub) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.key = key
	c.msg = msg
	_, c.deadline = ctx.Deadline()
	return c.err
}

func (c *channelStub) Close() error {
	c.closed = true
	return nil
}

func sampleAction() scheduling.Action {
	return scheduling.Action{
		ID:          "act-1",
		Kind:        scheduling.ActionMove,
		Description: "Move Mathematics",
		CommittedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		Changes: []scheduling.Change{{
			Week:    "2024-01-01",
			Removed: []models.TimetableEntry{{ID: "e1", Day: "Monday", PeriodNumber: 1}},
			Added:   []models.TimetableEntry{{ID: "e1", Day: "Tuesday", PeriodNumber: 2}},
		}},
	}
}

func TestFromActionFlattensChanges(t *testing.T) {
	evt := FromAction(sampleAction())
	assert.Equal(t, []string{"2024-01-01"}, evt.Weeks)
	assert.Len(t, evt.Removed, 1)
	assert.Equal(t, "Tuesday", evt.Added[0].Day)
}

func TestAMQPPublisherPublish(t *testing.T) {
	ch := &channelStub{}
	p := newAMQPPublisher(ch, "timetable_changes", time.Second, nil)

	require.NoError(t, p.Publish(context.Background(), FromAction(sampleAction())))
	assert.Equal(t, "timetable_changes", ch.key)
	assert.True(t, ch.deadline)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "move", ch.msg.Type)

	var decoded ChangeEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "act-1", decoded.ActionID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherWrapsErrors(t *testing.T) {
	ch := &channelStub{err: errors.New("channel closed")}
	p := newAMQPPublisher(ch, "q", 0, nil)
	err := p.Publish(context.Background(), ChangeEvent{ActionID: "x"})
	assert.ErrorContains(t, err, "publish change event")
}
