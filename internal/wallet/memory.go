package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is a concurrency-safe in-memory Store useful for unit tests and
// database-less development. A single mutex serializes all balance mutations.
type MemoryStore struct {
	mu      sync.Mutex
	wallets map[string]Wallet
	entries map[string][]Entry
	byToken map[string]Entry
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]Wallet),
		entries: make(map[string][]Entry),
		byToken: make(map[string]Entry),
	}
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, userID string) (Wallet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, exists := s.wallets[userID]; exists {
		return w, false, nil
	}

	now := time.Now().UTC()
	w := Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  defaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[userID] = w
	return w, true, nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.wallets[userID]
	if !exists {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *MemoryStore) Apply(_ context.Context, userID, kind string, amount decimal.Decimal, description, token string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, exists := s.byToken[token]; exists {
		return prior, ErrDuplicateEntry
	}

	w, exists := s.wallets[userID]
	if !exists {
		return Entry{}, ErrWalletNotFound
	}

	before := w.Balance
	var after decimal.Decimal
	switch kind {
	case KindCredit:
		after = before.Add(amount)
	case KindDebit:
		if before.LessThan(amount) {
			return Entry{}, &InsufficientBalanceError{
				WalletID:        w.ID,
				RequestedAmount: amount,
				CurrentBalance:  before,
			}
		}
		after = before.Sub(amount)
	default:
		return Entry{}, fmt.Errorf("unknown entry kind %q", kind)
	}

	entry := Entry{
		ID:            uuid.NewString(),
		WalletID:      w.ID,
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		Token:         token,
		Status:        StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}

	w.Balance = after
	w.UpdatedAt = entry.CreatedAt
	s.wallets[userID] = w
	s.entries[userID] = append(s.entries[userID], entry)
	s.byToken[token] = entry

	return entry, nil
}

func (s *MemoryStore) Entries(_ context.Context, userID string, limit, offset int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.entries[userID]
	var page []Entry
	// Newest first: walk the append-only log backwards.
	for i := len(all) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, all[i])
	}
	return page, nil
}
