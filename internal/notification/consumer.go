package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowpay/flowpay/internal/events"
)

const dedupKeyPrefix = "notification:event:"

// Consumer turns user and wallet events into notifications. Delivery from the
// bus is at-least-once, so it dedups on event ID before notifying; the dedup
// store is best effort and fails open toward sending.
type Consumer struct {
	notifier Notifier
	dedup    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
}

// NewConsumer builds the notification-side event consumer.
func NewConsumer(notifier Notifier, dedup *redis.Client, ttl time.Duration, logger *slog.Logger) *Consumer {
	return &Consumer{notifier: notifier, dedup: dedup, ttl: ttl, logger: logger}
}

// Handle processes one delivered envelope.
func (c *Consumer) Handle(ctx context.Context, env events.Envelope) error {
	msg, err := c.messageFor(env)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	if !c.claim(ctx, env.EventID) {
		c.logger.Info("duplicate event ignored", "type", env.EventType, "event_id", env.EventID)
		return nil
	}

	if err := c.notifier.Send(ctx, *msg); err != nil {
		// Release the claim so a redelivery can retry the send.
		c.release(ctx, env.EventID)
		return fmt.Errorf("send %s notification: %w", msg.Kind, err)
	}
	return nil
}

func (c *Consumer) messageFor(env events.Envelope) (*Message, error) {
	switch env.EventType {
	case events.TypeUserRegistered:
		var data events.UserRegisteredData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return &Message{
			Kind:        KindWelcome,
			Destination: data.Email,
			Body:        fmt.Sprintf("Welcome %s! Your account is ready.", data.Name),
		}, nil

	case events.TypeWalletCreated:
		var data events.WalletCreatedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return &Message{
			Kind:        KindWalletCreated,
			Destination: data.UserID,
			Body:        fmt.Sprintf("Your wallet %s has been created.", data.WalletID),
		}, nil

	case events.TypeWalletCredited, events.TypeWalletDebited:
		var data events.BalanceChangedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		verb := "credited to"
		if env.EventType == events.TypeWalletDebited {
			verb = "debited from"
		}
		return &Message{
			Kind:        KindTransaction,
			Destination: data.UserID,
			Body: fmt.Sprintf("%s was %s your wallet. New balance: %s.",
				data.Amount.StringFixed(2), verb, data.Balance.StringFixed(2)),
		}, nil

	case events.TypeInsufficientBalance:
		var data events.InsufficientBalanceData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return &Message{
			Kind:        KindLowBalance,
			Destination: data.UserID,
			Body: fmt.Sprintf("A debit of %s was declined. Current balance: %s.",
				data.RequestedAmount.StringFixed(2), data.CurrentBalance.StringFixed(2)),
		}, nil
	}

	return nil, nil
}

// claim marks the event ID as processed; a second delivery fails the claim.
func (c *Consumer) claim(ctx context.Context, eventID string) bool {
	if c.dedup == nil || eventID == "" {
		return true
	}

	ok, err := c.dedup.SetNX(ctx, dedupKeyPrefix+eventID, 1, c.ttl).Result()
	if err != nil {
		c.logger.Warn("notification dedup unavailable", "event_id", eventID, "error", err)
		return true
	}
	return ok
}

func (c *Consumer) release(ctx context.Context, eventID string) {
	if c.dedup == nil || eventID == "" {
		return
	}
	if err := c.dedup.Del(ctx, dedupKeyPrefix+eventID).Err(); err != nil {
		c.logger.Warn("notification dedup release failed", "event_id", eventID, "error", err)
	}
}
