package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedWallet is a test helper that creates (or overwrites) a wallet with the
// given balance when using the in-memory store.
func SeedWallet(s Store, userID string, balance decimal.Decimal) {
	mem, ok := s.(*MemoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()

	w, exists := mem.wallets[userID]
	if !exists {
		now := time.Now().UTC()
		w = Wallet{ID: uuid.NewString(), UserID: userID, Currency: defaultCurrency, CreatedAt: now, UpdatedAt: now}
	}
	w.Balance = balance
	mem.wallets[userID] = w
}
