package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestMemoryStoreApplyArithmetic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.CreateIfAbsent(ctx, "user-1"); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	credit, err := store.Apply(ctx, "user-1", KindCredit, dec(t, "100.00"), "top up", "tok-credit")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !credit.BalanceBefore.Equal(decimal.Zero) || !credit.BalanceAfter.Equal(dec(t, "100.00")) {
		t.Fatalf("unexpected credit balances: before=%s after=%s", credit.BalanceBefore, credit.BalanceAfter)
	}

	debit, err := store.Apply(ctx, "user-1", KindDebit, dec(t, "30.00"), "purchase", "tok-debit")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !debit.BalanceBefore.Equal(dec(t, "100.00")) || !debit.BalanceAfter.Equal(dec(t, "70.00")) {
		t.Fatalf("unexpected debit balances: before=%s after=%s", debit.BalanceBefore, debit.BalanceAfter)
	}

	w, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !w.Balance.Equal(dec(t, "70.00")) {
		t.Fatalf("expected balance 70.00, got %s", w.Balance)
	}
}

func TestMemoryStoreDuplicateToken(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.CreateIfAbsent(ctx, "user-1")

	first, err := store.Apply(ctx, "user-1", KindCredit, dec(t, "10.00"), "x", "dup")
	if err != nil {
		t.Fatalf("initial apply: %v", err)
	}

	replay, err := store.Apply(ctx, "user-1", KindCredit, dec(t, "10.00"), "x", "dup")
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if replay.ID != first.ID || !replay.BalanceAfter.Equal(first.BalanceAfter) {
		t.Fatalf("replay differs from original: %+v vs %+v", replay, first)
	}

	entries, _ := store.Entries(ctx, "user-1", 10, 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestMemoryStoreWalletNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Apply(context.Background(), "ghost", KindCredit, dec(t, "1.00"), "", "tok"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestMemoryStoreInsufficientBalance(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	SeedWallet(store, "user-1", dec(t, "20.00"))

	_, err := store.Apply(ctx, "user-1", KindDebit, dec(t, "20.01"), "", "tok")
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.CurrentBalance.Equal(dec(t, "20.00")) {
		t.Fatalf("expected current balance 20.00, got %s", insufficient.CurrentBalance)
	}

	// Rejected debit writes nothing.
	w, _ := store.Get(ctx, "user-1")
	if !w.Balance.Equal(dec(t, "20.00")) {
		t.Fatalf("balance changed after rejected debit: %s", w.Balance)
	}
	entries, _ := store.Entries(ctx, "user-1", 10, 0)
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestMemoryStoreConcurrentDebits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	SeedWallet(store, "user-1", dec(t, "100.00"))

	const workers = 20
	amount := dec(t, "9.00")

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Apply(ctx, "user-1", KindDebit, amount, "load", fmt.Sprintf("tok-%d", i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var insufficient *InsufficientBalanceError
			if !errors.As(err, &insufficient) {
				t.Fatalf("unexpected error: %v", err)
			}
			rejected++
		}
	}

	// floor(100/9) = 11 debits fit.
	if succeeded != 11 || rejected != workers-11 {
		t.Fatalf("expected 11 successes, got %d (rejected %d)", succeeded, rejected)
	}

	w, _ := store.Get(ctx, "user-1")
	if !w.Balance.Equal(dec(t, "1.00")) {
		t.Fatalf("expected final balance 1.00, got %s", w.Balance)
	}
	if w.Balance.IsNegative() {
		t.Fatalf("balance went negative: %s", w.Balance)
	}
}

func TestMemoryStoreEntriesPaging(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	SeedWallet(store, "user-1", dec(t, "1000.00"))

	for i := 1; i <= 5; i++ {
		if _, err := store.Apply(ctx, "user-1", KindDebit, dec(t, "1.00"), fmt.Sprintf("n%d", i), fmt.Sprintf("tok-%d", i)); err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}

	page, err := store.Entries(ctx, "user-1", 2, 1)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page))
	}
	// Newest first, offset skips the latest.
	if page[0].Description != "n4" || page[1].Description != "n3" {
		t.Fatalf("unexpected page order: %s, %s", page[0].Description, page[1].Description)
	}
}
