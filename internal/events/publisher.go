package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
)

// ChangeEvent is published once per committed timetable action.
type ChangeEvent struct {
	ActionID    string                  `json:"actionId"`
	Kind        scheduling.ActionKind   `json:"kind"`
	Description string                  `json:"description"`
	Weeks       []string                `json:"weeks"`
	Removed     []models.TimetableEntry `json:"removed"`
	Added       []models.TimetableEntry `json:"added"`
	CommittedAt time.Time               `json:"committedAt"`
}

// FromAction flattens an action into an event.
func FromAction(action scheduling.Action) ChangeEvent {
	evt := ChangeEvent{
		ActionID:    action.ID,
		Kind:        action.Kind,
		Description: action.Description,
		Weeks:       action.Weeks(),
		Removed:     []models.TimetableEntry{},
		Added:       []models.TimetableEntry{},
		CommittedAt: action.CommittedAt,
	}
	for _, change := range action.Changes {
		evt.Removed = append(evt.Removed, change.Removed...)
		evt.Added = append(evt.Added, change.Added...)
	}
	return evt
}

// Publisher delivers change events.
type Publisher interface {
	Publish(ctx context.Context, evt ChangeEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher writes events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	timeout time.Duration
	logger  *zap.Logger
	mu      sync.Mutex
}

// DialAMQP connects to the broker and declares the queue.
func DialAMQP(url, queue string, timeout time.Duration, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	p := newAMQPPublisher(ch, queue, timeout, logger)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, queue string, timeout time.Duration, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPPublisher{channel: ch, queue: queue, timeout: timeout, logger: logger}
}

// Publish sends evt as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, evt ChangeEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ActionID,
		Type:         string(evt.Kind),
		Timestamp:    evt.CommittedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	p.logger.Debug("change event published", zap.String("action_id", evt.ActionID), zap.String("kind", string(evt.Kind)))
	return nil
}

// Close shuts the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
