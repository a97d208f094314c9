package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivered envelope. A non-nil error causes the message
// to be negatively acknowledged and requeued.
type Handler func(ctx context.Context, env Envelope) error

const rebindBackoff = 5 * time.Second

// Consumer binds a durable queue to the topic exchange and feeds deliveries to
// a handler, acknowledging each exactly once. It owns its broker connection so
// it can rebind after channel loss.
type Consumer struct {
	url      string
	exchange string
	queue    string
	bindings []string
	handler  Handler
	logger   *slog.Logger
	backoff  time.Duration
}

// NewConsumer builds a consumer for the given queue and routing-key bindings.
func NewConsumer(url, exchange, queue string, bindings []string, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		url:      url,
		exchange: exchange,
		queue:    queue,
		bindings: bindings,
		handler:  handler,
		logger:   logger,
		backoff:  rebindBackoff,
	}
}

// Run consumes until the context is cancelled, reconnecting with a fixed
// backoff whenever the connection or channel drops.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if err := c.consume(ctx); err != nil {
			c.logger.Error("consumer interrupted", "queue", c.queue, "error", err)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped", "queue", c.queue)
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	for _, key := range c.bindings {
		if err := ch.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", c.queue, key, err)
		}
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming events", "queue", c.queue, "bindings", c.bindings)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", c.queue)
			}
			c.dispatch(ctx, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.logger.Error("undecodable event requeued", "queue", c.queue, "error", err)
		_ = d.Nack(false, true)
		return
	}

	if err := c.handler(ctx, env); err != nil {
		c.logger.Error("event processing failed", "queue", c.queue, "type", env.EventType, "event_id", env.EventID, "error", err)
		_ = d.Nack(false, true)
		return
	}

	c.logger.Info("event processed", "queue", c.queue, "type", env.EventType, "event_id", env.EventID)
	_ = d.Ack(false)
}
