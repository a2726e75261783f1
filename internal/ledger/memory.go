package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.PlayerAccount
	entries  map[string][]*domain.LedgerEntry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*domain.PlayerAccount),
		entries:  make(map[string][]*domain.LedgerEntry),
	}
}

func (s *MemoryStore) Create(_ context.Context, playerID string, opening int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[playerID]; ok {
		return false, nil
	}

	now := time.Now().UTC()
	s.accounts[playerID] = &domain.PlayerAccount{ID: playerID, Balance: opening, CreatedAt: now, UpdatedAt: now}
	if opening > 0 {
		s.entries[playerID] = append(s.entries[playerID], &domain.LedgerEntry{
			ID:           uuid.New().String(),
			PlayerID:     playerID,
			Delta:        opening,
			BalanceAfter: opening,
			Reason:       domain.ReasonGrant,
			Reference:    "starting-balance",
			CreatedAt:    now,
		})
	}
	return true, nil
}

func (s *MemoryStore) Balance(_ context.Context, playerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[playerID]
	if !ok {
		return 0, ErrPlayerNotFound
	}
	return acct.Balance, nil
}

func (s *MemoryStore) Adjust(_ context.Context, playerID string, delta int64, reason domain.LedgerReason, reference string) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if acct.Balance+delta < 0 {
		return nil, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	acct.Balance += delta
	acct.UpdatedAt = now

	entry := &domain.LedgerEntry{
		ID:           uuid.New().String(),
		PlayerID:     playerID,
		Delta:        delta,
		BalanceAfter: acct.Balance,
		Reason:       reason,
		Reference:    reference,
		CreatedAt:    now,
	}
	s.entries[playerID] = append(s.entries[playerID], entry)
	return entry, nil
}

func (s *MemoryStore) Entries(_ context.Context, playerID string, limit int) ([]*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.entries[playerID]
	out := make([]*domain.LedgerEntry, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		e := *all[i]
		out = append(out, &e)
	}
	return out, nil
}
