package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/flowpay/flowpay/internal/events"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials occurs when login email/password verification fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidInput rejects malformed registration input.
	ErrInvalidInput = errors.New("email and a password of at least 8 characters are required")
)

// Service handles registration and authentication. Wallet provisioning is not
// done here: registration publishes user.registered and the wallet-lifecycle
// consumer reacts to it.
type Service struct {
	repo   Repository
	events events.Publisher
	logger *slog.Logger
}

// NewService builds an identity service instance.
func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, events: publisher, logger: logger}
}

// RegisterInput captures data required to register a user.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Register creates a user account and announces it on the bus.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") || len(input.Password) < minPasswordLength {
		return User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	s.logger.Info("user registered", "user_id", user.ID)

	if err := s.events.Publish(ctx, events.TypeUserRegistered, events.UserRegisteredData{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}); err != nil {
		s.logger.Error("event publish failed", "type", events.TypeUserRegistered, "error", err)
	}

	return user, nil
}

// Authenticate verifies email/password and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
