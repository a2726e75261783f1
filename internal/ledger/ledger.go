// Package ledger owns player balances. Every change is an atomic in-place
// increment guarded against going negative, recorded as a LedgerEntry.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/domain"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrPlayerNotFound    = errors.New("player not found")
)

// Store persists accounts and their ledger entries
type Store interface {
	// Create inserts the account with an opening balance unless it exists
	Create(ctx context.Context, playerID string, opening int64) (bool, error)
	Balance(ctx context.Context, playerID string) (int64, error)
	// Adjust applies delta only if the result stays non-negative
	Adjust(ctx context.Context, playerID string, delta int64, reason domain.LedgerReason, reference string) (*domain.LedgerEntry, error)
	Entries(ctx context.Context, playerID string, limit int) ([]*domain.LedgerEntry, error)
}

// Service provides ledger functionality
type Service struct {
	store           Store
	audit           *audit.Service
	startingBalance int64
}

// New creates a new ledger service
func New(store Store, auditSvc *audit.Service, startingBalance int64) *Service {
	return &Service{
		store:           store,
		audit:           auditSvc,
		startingBalance: startingBalance,
	}
}

// EnsureAccount provisions the player's account with the starting balance on
// first contact. It reports whether the account was created by this call.
func (s *Service) EnsureAccount(ctx context.Context, playerID string) (bool, error) {
	if playerID == "" {
		return false, ErrPlayerNotFound
	}

	created, err := s.store.Create(ctx, playerID, s.startingBalance)
	if err != nil {
		return false, fmt.Errorf("create account: %w", err)
	}

	if created {
		s.audit.Log(ctx, audit.EventAccountCreated, domain.SeverityInfo,
			"player account provisioned",
			map[string]int64{"starting_balance": s.startingBalance},
			audit.WithPlayer(playerID), audit.WithComponent("ledger"))
	}
	return created, nil
}

// GetBalance reads the current balance
func (s *Service) GetBalance(ctx context.Context, playerID string) (int64, error) {
	return s.store.Balance(ctx, playerID)
}

// AdjustBalance applies a signed delta and returns the new balance.
// A delta that would take the balance below zero fails with
// ErrInsufficientFunds and changes nothing.
func (s *Service) AdjustBalance(ctx context.Context, playerID string, delta int64, reason domain.LedgerReason, reference string) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}

	entry, err := s.store.Adjust(ctx, playerID, delta, reason, reference)
	if err != nil {
		return 0, err
	}
	return entry.BalanceAfter, nil
}

// Debit removes a stake from the player's balance
func (s *Service) Debit(ctx context.Context, playerID string, amount int64, reference string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.AdjustBalance(ctx, playerID, -amount, domain.ReasonWager, reference)
}

// Credit adds a payout, refund or grant to the player's balance
func (s *Service) Credit(ctx context.Context, playerID string, amount int64, reason domain.LedgerReason, reference string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.AdjustBalance(ctx, playerID, amount, reason, reference)
}

// Grant credits currency on an operator's behalf
func (s *Service) Grant(ctx context.Context, playerID string, amount int64, actor string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if _, err := s.EnsureAccount(ctx, playerID); err != nil {
		return 0, err
	}

	balance, err := s.Credit(ctx, playerID, amount, domain.ReasonGrant, "admin:"+actor)
	if err != nil {
		return 0, err
	}

	s.audit.Log(ctx, audit.EventBalanceGrant, domain.SeverityWarning,
		fmt.Sprintf("Granted %d to %s", amount, playerID),
		map[string]int64{"amount": amount, "balance_after": balance},
		audit.WithPlayer(playerID), audit.WithActor(actor), audit.WithComponent("ledger"))

	return balance, nil
}

// Entries lists the player's most recent ledger entries, newest first
func (s *Service) Entries(ctx context.Context, playerID string, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.Entries(ctx, playerID, limit)
}
