package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the system of record for wallets and ledger entries.
//
// Apply must serialize all mutations to one wallet's balance: the balance used
// to compute the outcome is read under the same lock (or transaction) that
// writes it, and the wallet update and entry append become visible atomically.
// When the idempotency token was already used, Apply returns the original
// entry together with ErrDuplicateEntry.
type Store interface {
	CreateIfAbsent(ctx context.Context, userID string) (Wallet, bool, error)
	Get(ctx context.Context, userID string) (Wallet, error)
	Apply(ctx context.Context, userID, kind string, amount decimal.Decimal, description, token string) (Entry, error)
	Entries(ctx context.Context, userID string, limit, offset int) ([]Entry, error)
}
