package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher hands envelopes to the message bus. Implementations must never
// block or fail the ledger mutation that produced the event; callers log and
// swallow returned errors.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// AMQPPublisher publishes persistent messages on a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewAMQPPublisher opens a channel on the provided connection and declares the
// topic exchange.
func NewAMQPPublisher(conn *amqp.Connection, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish routes the event by its topic key, marked persistent.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, data any) error {
	key := RoutingKey(eventType)
	if key == "" {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	env, err := NewEnvelope(eventType, data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID,
		Timestamp:    env.Timestamp,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.logger.Info("event published", "type", eventType, "event_id", env.EventID, "routing_key", key)
	return nil
}

// Close releases the publisher channel.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Close()
}
