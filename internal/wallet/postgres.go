package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// PostgresStore persists wallets and ledger entries in PostgreSQL. Per-wallet
// serialization comes from a SELECT ... FOR UPDATE row lock held for the
// duration of the mutation transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateIfAbsent provisions a zero-balance wallet for the user unless one
// already exists. The second return reports whether a wallet was created.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, userID string) (Wallet, bool, error) {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `INSERT INTO wallets (id, user_id, balance, currency, created_at, updated_at)
        VALUES ($1, $2, 0, $3, $4, $4)
        ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID, defaultCurrency, now)
	if err != nil {
		return Wallet{}, false, err
	}

	w, err := s.Get(ctx, userID)
	if err != nil {
		return Wallet{}, false, err
	}
	return w, tag.RowsAffected() == 1, nil
}

// Get fetches the wallet for a user.
func (s *PostgresStore) Get(ctx context.Context, userID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT id, user_id, balance, currency, created_at, updated_at
        FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// Apply mutates the wallet balance and appends the ledger entry in one
// transaction. Duplicate tokens return the original entry with
// ErrDuplicateEntry; debits exceeding the balance return
// *InsufficientBalanceError without writing anything.
func (s *PostgresStore) Apply(ctx context.Context, userID, kind string, amount decimal.Decimal, description, token string) (Entry, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var walletID uuid.UUID
	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&walletID, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrWalletNotFound
		}
		return Entry{}, err
	}

	// Replayed token: hand back the original outcome verbatim.
	existing, err := entryByToken(ctx, tx, token)
	if err == nil {
		return existing, ErrDuplicateEntry
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, err
	}

	before := balance
	var after decimal.Decimal
	switch kind {
	case KindCredit:
		after = before.Add(amount)
	case KindDebit:
		if before.LessThan(amount) {
			return Entry{}, &InsufficientBalanceError{
				WalletID:        walletID.String(),
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
		WalletID:      walletID.String(),
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

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`,
		after, entry.CreatedAt, walletID); err != nil {
		return Entry{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO ledger_entries
        (id, wallet_id, user_id, kind, amount, balance_before, balance_after, description, idempotency_token, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, walletID, userID, kind, amount, before, after, description, token, StatusSuccess, entry.CreatedAt); err != nil {
		// A concurrent request for another wallet can race the same token past
		// the in-tx check; the unique index is the backstop.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			prior, lookupErr := entryByToken(ctx, s.db, token)
			if lookupErr != nil {
				return Entry{}, lookupErr
			}
			return prior, ErrDuplicateEntry
		}
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// Entries returns the user's ledger entries newest first; timestamp ties break
// by insertion order.
func (s *PostgresStore) Entries(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, user_id, kind, amount, balance_before, balance_after,
            description, idempotency_token, status, created_at
        FROM ledger_entries WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func entryByToken(ctx context.Context, q rowQuerier, token string) (Entry, error) {
	row := q.QueryRow(ctx, `SELECT id, wallet_id, user_id, kind, amount, balance_before, balance_after,
            description, idempotency_token, status, created_at
        FROM ledger_entries WHERE idempotency_token = $1`, token)
	return scanEntry(row)
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var id, walletID uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &walletID, &e.UserID, &e.Kind, &e.Amount, &e.BalanceBefore,
		&e.BalanceAfter, &e.Description, &e.Token, &e.Status, &createdAt); err != nil {
		return Entry{}, err
	}
	e.ID = id.String()
	e.WalletID = walletID.String()
	e.CreatedAt = createdAt.UTC()
	return e, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &w.UserID, &w.Balance, &w.Currency, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}
