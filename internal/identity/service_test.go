package identity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/flowpay/flowpay/internal/events"
	"github.com/flowpay/flowpay/internal/logging"
)

func setupIdentity(t *testing.T) (*Service, *events.MemoryBus, *[]events.Envelope) {
	t.Helper()

	bus := events.NewMemoryBus(logging.Discard())
	captured := &[]events.Envelope{}
	bus.Subscribe("user.registered", func(_ context.Context, env events.Envelope) error {
		*captured = append(*captured, env)
		return nil
	})

	svc := NewService(NewMemoryRepository(), bus, logging.Discard())
	return svc, bus, captured
}

func TestRegisterPublishesEvent(t *testing.T) {
	svc, _, captured := setupIdentity(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "Ada@Example.com", Name: " Ada ", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Name != "Ada" {
		t.Fatalf("expected trimmed name, got %q", user.Name)
	}
	if len(user.PasswordHash) == 0 {
		t.Fatalf("expected hashed password")
	}

	if len(*captured) != 1 {
		t.Fatalf("expected 1 user.registered event, got %d", len(*captured))
	}
	var data events.UserRegisteredData
	if err := json.Unmarshal((*captured)[0].Data, &data); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if data.UserID != user.ID || data.Email != user.Email {
		t.Fatalf("payload mismatch: %+v", data)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := setupIdentity(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "hunter2hunter2"},
		{Email: "not-an-email", Password: "hunter2hunter2"},
		{Email: "a@b.c", Password: "short"},
	}
	for _, input := range cases {
		if _, err := svc.Register(ctx, input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", input, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, captured := setupIdentity(t)
	ctx := context.Background()

	input := RegisterInput{Email: "a@b.c", Password: "hunter2hunter2"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, input); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if len(*captured) != 1 {
		t.Fatalf("rejected registration must not publish, got %d events", len(*captured))
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := setupIdentity(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.Authenticate(ctx, "A@B.C ", "hunter2hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	if _, err := svc.Authenticate(ctx, "a@b.c", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@b.c", "hunter2hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}
