package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MemoryBus is an in-process Publisher that delivers envelopes synchronously
// to pattern-bound subscribers. It backs tests and broker-less development;
// handler errors are logged, matching the bus's at-least-once stance of never
// failing the publisher.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []memorySub
	logger *slog.Logger
}

type memorySub struct {
	pattern string
	handler Handler
}

// NewMemoryBus constructs an empty in-process bus.
func NewMemoryBus(logger *slog.Logger) *MemoryBus {
	return &MemoryBus{logger: logger}
}

// Subscribe binds a handler to a topic pattern ("wallet.*" matches one segment).
func (b *MemoryBus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, memorySub{pattern: pattern, handler: handler})
}

// Publish wraps the payload in an envelope and delivers it to every matching
// subscriber.
func (b *MemoryBus) Publish(ctx context.Context, eventType string, data any) error {
	key := RoutingKey(eventType)
	if key == "" {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	env, err := NewEnvelope(eventType, data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	b.mu.RLock()
	subs := make([]memorySub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !topicMatch(sub.pattern, key) {
			continue
		}
		if err := sub.handler(ctx, env); err != nil {
			b.logger.Error("event processing failed", "type", eventType, "event_id", env.EventID, "error", err)
		}
	}
	return nil
}

// Deliver re-injects an existing envelope, preserving its event ID. Tests use
// it to simulate broker redelivery of the same message.
func (b *MemoryBus) Deliver(ctx context.Context, env Envelope) {
	key := RoutingKey(env.EventType)

	b.mu.RLock()
	subs := make([]memorySub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !topicMatch(sub.pattern, key) {
			continue
		}
		if err := sub.handler(ctx, env); err != nil {
			b.logger.Error("event processing failed", "type", env.EventType, "event_id", env.EventID, "error", err)
		}
	}
}

// topicMatch implements AMQP-style segment matching where "*" stands in for
// exactly one dot-separated word.
func topicMatch(pattern, key string) bool {
	if pattern == key {
		return true
	}
	pp := strings.Split(pattern, ".")
	kp := strings.Split(key, ".")
	if len(pp) != len(kp) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != kp[i] {
			return false
		}
	}
	return true
}
