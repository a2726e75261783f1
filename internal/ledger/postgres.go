package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/google/uuid"
)

// PostgresStore keeps accounts in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, playerID string, opening int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO player_accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO NOTHING
	`, playerID, opening, now)
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if opening > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, player_id, delta, balance_after, reason, reference, created_at)
			VALUES ($1, $2, $3, $3, $4, 'starting-balance', $5)
		`, uuid.New().String(), playerID, opening, domain.ReasonGrant, now)
		if err != nil {
			return false, fmt.Errorf("insert opening entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) Balance(ctx context.Context, playerID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM player_accounts WHERE id = $1`, playerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPlayerNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Adjust(ctx context.Context, playerID string, delta int64, reason domain.LedgerReason, reference string) (*domain.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// increment in place; the guard makes check and write one statement
	var balance int64
	err = tx.QueryRowContext(ctx, `
		UPDATE player_accounts SET balance = balance + $2, updated_at = $3
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance
	`, playerID, delta, now).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.classifyMiss(ctx, tx, playerID)
		}
		return nil, fmt.Errorf("adjust balance: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New().String(),
		PlayerID:     playerID,
		Delta:        delta,
		BalanceAfter: balance,
		Reason:       reason,
		Reference:    reference,
		CreatedAt:    now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, player_id, delta, balance_after, reason, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.PlayerID, entry.Delta, entry.BalanceAfter, entry.Reason, entry.Reference, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// classifyMiss tells a missing account from a balance that would go negative
func (s *PostgresStore) classifyMiss(ctx context.Context, tx *sql.Tx, playerID string) error {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM player_accounts WHERE id = $1)`, playerID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return ErrPlayerNotFound
	}
	return ErrInsufficientFunds
}

func (s *PostgresStore) Entries(ctx context.Context, playerID string, limit int) ([]*domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, delta, balance_after, reason, reference, created_at
		FROM ledger_entries WHERE player_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.Delta, &e.BalanceAfter, &e.Reason, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
