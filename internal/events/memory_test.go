package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flowpay/flowpay/internal/logging"
)

func TestTopicMatch(t *testing.T) {
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"wallet.credited", "wallet.credited", true},
		{"wallet.*", "wallet.credited", true},
		{"wallet.*", "wallet.insufficient_balance", true},
		{"wallet.*", "user.registered", false},
		{"user.registered", "user.loggedin", false},
		{"*.registered", "user.registered", true},
		{"wallet.*", "wallet.credited.extra", false},
	}
	for _, tc := range cases {
		if got := topicMatch(tc.pattern, tc.key); got != tc.want {
			t.Errorf("topicMatch(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}

func TestMemoryBusRoutesByPattern(t *testing.T) {
	bus := NewMemoryBus(logging.Discard())
	ctx := context.Background()

	var walletEvents, userEvents []Envelope
	bus.Subscribe("wallet.*", func(_ context.Context, env Envelope) error {
		walletEvents = append(walletEvents, env)
		return nil
	})
	bus.Subscribe("user.registered", func(_ context.Context, env Envelope) error {
		userEvents = append(userEvents, env)
		return nil
	})

	if err := bus.Publish(ctx, TypeWalletCredited, BalanceChangedData{UserID: "u1", TransactionID: "tx1"}); err != nil {
		t.Fatalf("publish credited: %v", err)
	}
	if err := bus.Publish(ctx, TypeUserRegistered, UserRegisteredData{UserID: "u1", Email: "a@b.c"}); err != nil {
		t.Fatalf("publish registered: %v", err)
	}

	if len(walletEvents) != 1 || len(userEvents) != 1 {
		t.Fatalf("expected 1 wallet and 1 user event, got %d and %d", len(walletEvents), len(userEvents))
	}

	env := walletEvents[0]
	if env.EventType != TypeWalletCredited || env.EventID == "" || env.Timestamp.IsZero() {
		t.Fatalf("incomplete envelope: %+v", env)
	}

	var data BalanceChangedData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.UserID != "u1" || data.TransactionID != "tx1" {
		t.Fatalf("payload mismatch: %+v", data)
	}
}

func TestMemoryBusUnknownType(t *testing.T) {
	bus := NewMemoryBus(logging.Discard())
	if err := bus.Publish(context.Background(), "MYSTERY_EVENT", nil); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestMemoryBusDeliverPreservesEventID(t *testing.T) {
	bus := NewMemoryBus(logging.Discard())
	ctx := context.Background()

	var seen []string
	bus.Subscribe("wallet.*", func(_ context.Context, env Envelope) error {
		seen = append(seen, env.EventID)
		return nil
	})

	env, err := NewEnvelope(TypeWalletCreated, WalletCreatedData{UserID: "u1", WalletID: "w1"})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	bus.Deliver(ctx, env)
	bus.Deliver(ctx, env)

	if len(seen) != 2 || seen[0] != env.EventID || seen[1] != env.EventID {
		t.Fatalf("expected the same event id twice, got %v", seen)
	}
}
