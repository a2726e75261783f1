package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/database/dbtest"
	"github.com/alexbotov/arcade/internal/domain"
	"github.com/google/uuid"
)

const testStartingBalance = 1000

func setupTestLedger(t *testing.T, store Store) (*Service, string) {
	t.Helper()

	auditSvc := audit.New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc := New(store, auditSvc, testStartingBalance)

	playerID := uuid.New().String()
	if _, err := svc.EnsureAccount(context.Background(), playerID); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return svc, playerID
}

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"Memory": func(t *testing.T) Store { return NewMemoryStore() },
		"Postgres": func(t *testing.T) Store {
			db := dbtest.Open(t)
			return NewPostgresStore(db.DB)
		},
	}
}

func TestLedger(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			runLedgerSuite(t, newStore)
		})
	}
}

func runLedgerSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("EnsureAccountIsIdempotent", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		created, err := svc.EnsureAccount(ctx, playerID)
		if err != nil {
			t.Fatalf("Failed to ensure account: %v", err)
		}
		if created {
			t.Error("Expected existing account not to be recreated")
		}

		balance, _ := svc.GetBalance(ctx, playerID)
		if balance != testStartingBalance {
			t.Errorf("Expected starting balance %d, got %d", testStartingBalance, balance)
		}
	})

	t.Run("DebitAndCredit", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		balance, err := svc.Debit(ctx, playerID, 100, "round-1")
		if err != nil {
			t.Fatalf("Failed to debit: %v", err)
		}
		if balance != 900 {
			t.Errorf("Expected 900 after debit, got %d", balance)
		}

		balance, err = svc.Credit(ctx, playerID, 200, domain.ReasonPayout, "round-1")
		if err != nil {
			t.Fatalf("Failed to credit: %v", err)
		}
		if balance != 1100 {
			t.Errorf("Expected 1100 after credit, got %d", balance)
		}
	})

	t.Run("InsufficientFundsChangesNothing", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		_, err := svc.Debit(ctx, playerID, testStartingBalance+1, "too-much")
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
		}

		balance, _ := svc.GetBalance(ctx, playerID)
		if balance != testStartingBalance {
			t.Errorf("Expected balance unchanged at %d, got %d", testStartingBalance, balance)
		}

		entries, _ := svc.Entries(ctx, playerID, 10)
		if len(entries) != 1 {
			t.Errorf("Expected only the opening entry, got %d entries", len(entries))
		}
	})

	t.Run("DebitEntireBalance", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		balance, err := svc.Debit(ctx, playerID, testStartingBalance, "all-in")
		if err != nil {
			t.Fatalf("Failed to debit full balance: %v", err)
		}
		if balance != 0 {
			t.Errorf("Expected 0, got %d", balance)
		}
	})

	t.Run("RejectsInvalidAmounts", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		for _, amount := range []int64{0, -5} {
			if _, err := svc.Debit(ctx, playerID, amount, ""); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Debit(%d): expected ErrInvalidAmount, got %v", amount, err)
			}
			if _, err := svc.Credit(ctx, playerID, amount, domain.ReasonPayout, ""); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Credit(%d): expected ErrInvalidAmount, got %v", amount, err)
			}
		}
		if _, err := svc.AdjustBalance(ctx, playerID, 0, domain.ReasonPayout, ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount for zero delta, got %v", err)
		}
	})

	t.Run("UnknownPlayer", func(t *testing.T) {
		svc, _ := setupTestLedger(t, newStore(t))

		if _, err := svc.GetBalance(ctx, "nobody"); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("Expected ErrPlayerNotFound, got %v", err)
		}
		if _, err := svc.Debit(ctx, "nobody", 10, ""); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("Expected ErrPlayerNotFound on debit, got %v", err)
		}
	})

	t.Run("EntriesReconcileWithBalance", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		svc.Debit(ctx, playerID, 50, "a")
		svc.Credit(ctx, playerID, 125, domain.ReasonPayout, "a")
		svc.Debit(ctx, playerID, 300, "b")

		entries, err := svc.Entries(ctx, playerID, 100)
		if err != nil {
			t.Fatalf("Failed to list entries: %v", err)
		}
		if len(entries) != 4 {
			t.Fatalf("Expected 4 entries, got %d", len(entries))
		}

		var sum int64
		for _, e := range entries {
			sum += e.Delta
		}
		balance, _ := svc.GetBalance(ctx, playerID)
		if sum != balance {
			t.Errorf("Ledger sum %d does not match balance %d", sum, balance)
		}
		if entries[0].Reason != domain.ReasonWager || entries[0].Reference != "b" {
			t.Errorf("Expected newest entry first, got %+v", entries[0])
		}
	})

	t.Run("ConcurrentDebitsNeverOverdraw", func(t *testing.T) {
		svc, playerID := setupTestLedger(t, newStore(t))

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.Debit(ctx, playerID, 100, "race"); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if succeeded != 10 {
			t.Errorf("Expected exactly 10 successful debits, got %d", succeeded)
		}
		balance, _ := svc.GetBalance(ctx, playerID)
		if balance != 0 {
			t.Errorf("Expected balance 0, got %d", balance)
		}
	})

	t.Run("Grant", func(t *testing.T) {
		svc, _ := setupTestLedger(t, newStore(t))
		newPlayer := uuid.New().String()

		balance, err := svc.Grant(ctx, newPlayer, 500, "admin-1")
		if err != nil {
			t.Fatalf("Failed to grant: %v", err)
		}
		if balance != testStartingBalance+500 {
			t.Errorf("Expected %d, got %d", testStartingBalance+500, balance)
		}
	})

	t.Run("InvalidGrantCreatesNoAccount", func(t *testing.T) {
		svc, _ := setupTestLedger(t, newStore(t))
		ghost := uuid.New().String()

		for _, amount := range []int64{0, -5} {
			if _, err := svc.Grant(ctx, ghost, amount, "admin-1"); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("Grant(%d): expected ErrInvalidAmount, got %v", amount, err)
			}
		}
		if _, err := svc.GetBalance(ctx, ghost); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("Expected no account after rejected grants, got %v", err)
		}
	})
}
