package identity

import (
	"context"
	"errors"
)

var (
	// ErrUserExists occurs when the email is already registered.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound occurs when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
)

// Repository persists user accounts.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}
