package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/flowpay/flowpay/internal/events"
)

const (
	defaultCreditDescription = "Credit transaction"
	defaultDebitDescription  = "Debit transaction"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Guard deduplicates retried mutations by idempotency token. Both methods are
// best effort; Check misses when the backing store is unavailable.
type Guard interface {
	Check(ctx context.Context, token string, out any) bool
	Store(ctx context.Context, token string, outcome any)
}

// Service is the ledger engine: it owns every wallet mutation and orchestrates
// guard -> store -> cache invalidation -> outcome store -> event publish.
type Service struct {
	store  Store
	cache  *Cache
	guard  Guard
	events events.Publisher
	logger *slog.Logger
}

// NewService builds the ledger engine.
func NewService(store Store, cache *Cache, guard Guard, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, guard: guard, events: publisher, logger: logger}
}

// Credit adds amount to the user's balance and returns the resulting entry.
// Retries with the same token receive the original entry verbatim.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, description, token string) (Entry, error) {
	if err := validateMutation(amount, token); err != nil {
		return Entry{}, err
	}
	if description == "" {
		description = defaultCreditDescription
	}

	var prior Entry
	if s.guard.Check(ctx, token, &prior) {
		s.logger.Info("duplicate credit suppressed", "user_id", userID, "transaction_id", prior.ID)
		return prior, nil
	}

	entry, err := s.store.Apply(ctx, userID, KindCredit, amount, description, token)
	if errors.Is(err, ErrDuplicateEntry) {
		s.logger.Info("duplicate credit suppressed", "user_id", userID, "transaction_id", entry.ID)
		return entry, nil
	}
	if err != nil {
		return Entry{}, err
	}

	s.finishMutation(ctx, userID, token, entry, events.TypeWalletCredited)
	return entry, nil
}

// Debit subtracts amount from the user's balance. A balance shortfall returns
// *InsufficientBalanceError after publishing the rejection event; no entry is
// written for a rejected debit.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, description, token string) (Entry, error) {
	if err := validateMutation(amount, token); err != nil {
		return Entry{}, err
	}
	if description == "" {
		description = defaultDebitDescription
	}

	var prior Entry
	if s.guard.Check(ctx, token, &prior) {
		s.logger.Info("duplicate debit suppressed", "user_id", userID, "transaction_id", prior.ID)
		return prior, nil
	}

	entry, err := s.store.Apply(ctx, userID, KindDebit, amount, description, token)
	if errors.Is(err, ErrDuplicateEntry) {
		s.logger.Info("duplicate debit suppressed", "user_id", userID, "transaction_id", entry.ID)
		return entry, nil
	}

	var insufficient *InsufficientBalanceError
	if errors.As(err, &insufficient) {
		s.logger.Warn("debit rejected", "user_id", userID, "requested", insufficient.RequestedAmount, "balance", insufficient.CurrentBalance)
		s.publish(ctx, events.TypeInsufficientBalance, events.InsufficientBalanceData{
			UserID:          userID,
			WalletID:        insufficient.WalletID,
			RequestedAmount: insufficient.RequestedAmount,
			CurrentBalance:  insufficient.CurrentBalance,
		})
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, err
	}

	s.finishMutation(ctx, userID, token, entry, events.TypeWalletDebited)
	return entry, nil
}

// finishMutation runs the post-commit side effects shared by credit and debit.
// All of them are non-critical: the balance change is already durable.
func (s *Service) finishMutation(ctx context.Context, userID, token string, entry Entry, eventType string) {
	s.cache.Invalidate(ctx, userID)
	s.guard.Store(ctx, token, entry)
	s.publish(ctx, eventType, events.BalanceChangedData{
		UserID:        userID,
		WalletID:      entry.WalletID,
		Amount:        entry.Amount,
		Balance:       entry.BalanceAfter,
		TransactionID: entry.ID,
	})
	s.logger.Info("wallet mutated", "user_id", userID, "kind", entry.Kind, "amount", entry.Amount, "balance", entry.BalanceAfter)
}

// Balance returns the wallet snapshot, serving from cache when possible and
// repopulating it on a miss.
func (s *Service) Balance(ctx context.Context, userID string) (Snapshot, error) {
	if snap, ok := s.cache.Get(ctx, userID); ok {
		return snap, nil
	}

	w, err := s.store.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := snapshotOf(w)
	s.cache.Set(ctx, userID, snap)
	return snap, nil
}

// History returns the user's ledger entries newest first, paged by offset.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Entries(ctx, userID, limit, offset)
}

// CreateWalletIfAbsent provisions a wallet for the user, treating "already
// exists" as success. A wallet.created event is published only on first
// creation.
func (s *Service) CreateWalletIfAbsent(ctx context.Context, userID string) (Wallet, error) {
	w, created, err := s.store.CreateIfAbsent(ctx, userID)
	if err != nil {
		return Wallet{}, err
	}

	if created {
		s.logger.Info("wallet created", "user_id", userID, "wallet_id", w.ID)
		s.publish(ctx, events.TypeWalletCreated, events.WalletCreatedData{UserID: userID, WalletID: w.ID})
	}
	return w, nil
}

// HandleUserEvent is the wallet-lifecycle consumer handler: it provisions a
// wallet when a user registers. Safe under duplicate delivery.
func (s *Service) HandleUserEvent(ctx context.Context, env events.Envelope) error {
	if env.EventType != events.TypeUserRegistered {
		return nil
	}

	var data events.UserRegisteredData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	if data.UserID == "" {
		return fmt.Errorf("%s event %s has no user id", env.EventType, env.EventID)
	}

	_, err := s.CreateWalletIfAbsent(ctx, data.UserID)
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, data any) {
	if err := s.events.Publish(ctx, eventType, data); err != nil {
		// The ledger is the source of truth; a failed publish only means the
		// notification side channel lags or misses this change.
		s.logger.Error("event publish failed", "type", eventType, "error", err)
	}
}

func validateMutation(amount decimal.Decimal, token string) error {
	if !amount.IsPositive() || amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	if token == "" {
		return ErrMissingToken
	}
	return nil
}
