package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry kinds and statuses.
const (
	KindCredit = "CREDIT"
	KindDebit  = "DEBIT"

	StatusSuccess = "SUCCESS"

	defaultCurrency = "USD"
)

var (
	// ErrWalletNotFound occurs when no wallet exists for the requested user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDuplicateEntry indicates the idempotency token was already used; the
	// store returns the original entry alongside it.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrInvalidAmount rejects amounts that are not positive or carry more
	// than two decimal places.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")

	// ErrMissingToken rejects mutations submitted without an idempotency token.
	ErrMissingToken = errors.New("idempotency token is required")
)

// InsufficientBalanceError is a business rejection, not a system error: the
// debit exceeded the available balance and no entry was written.
type InsufficientBalanceError struct {
	WalletID        string
	RequestedAmount decimal.Decimal
	CurrentBalance  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		e.RequestedAmount.StringFixed(2), e.CurrentBalance.StringFixed(2))
}

// Wallet is the durable per-user balance record. Balance never goes negative
// and only the ledger engine mutates it.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is the immutable record of one applied credit or debit. The
// idempotency token is unique across all entries and excluded from responses.
type Entry struct {
	ID            string          `json:"transactionId"`
	WalletID      string          `json:"walletId"`
	UserID        string          `json:"userId"`
	Kind          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	Token         string          `json:"-"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Snapshot is the cached, read-side view of a wallet.
type Snapshot struct {
	WalletID  string          `json:"walletId"`
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"createdAt"`
}

func snapshotOf(w Wallet) Snapshot {
	return Snapshot{
		WalletID:  w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		Currency:  w.Currency,
		CreatedAt: w.CreatedAt,
	}
}
