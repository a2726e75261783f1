package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/alexbotov/arcade/internal/domain"
)

// PostgresRounds keeps game rounds in PostgreSQL
type PostgresRounds struct {
	db *sql.DB
}

// NewPostgresRounds creates a PostgreSQL round store
func NewPostgresRounds(db *sql.DB) *PostgresRounds {
	return &PostgresRounds{db: db}
}

func (s *PostgresRounds) Record(ctx context.Context, r *domain.GameRound) error {
	var outcome any
	if len(r.Outcome) > 0 {
		outcome = string(r.Outcome)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_rounds (id, player_id, game, bet, payout, won, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.PlayerID, r.Game, r.Bet, r.Payout, r.Won, outcome, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func (s *PostgresRounds) Recent(ctx context.Context, playerID string, limit int) ([]*domain.GameRound, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, game, bet, payout, won, COALESCE(outcome::text, ''), created_at
		FROM game_rounds WHERE player_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []*domain.GameRound
	for rows.Next() {
		var r domain.GameRound
		var outcome string
		if err := rows.Scan(&r.ID, &r.PlayerID, &r.Game, &r.Bet, &r.Payout, &r.Won, &outcome, &r.CreatedAt); err != nil {
			return nil, err
		}
		if outcome != "" {
			r.Outcome = []byte(outcome)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// MemoryRounds keeps game rounds in process
type MemoryRounds struct {
	mu     sync.Mutex
	rounds map[string][]*domain.GameRound
}

// NewMemoryRounds creates an empty in-memory round store
func NewMemoryRounds() *MemoryRounds {
	return &MemoryRounds{rounds: make(map[string][]*domain.GameRound)}
}

func (s *MemoryRounds) Record(_ context.Context, r *domain.GameRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rounds[r.PlayerID] = append(s.rounds[r.PlayerID], &cp)
	return nil
}

func (s *MemoryRounds) Recent(_ context.Context, playerID string, limit int) ([]*domain.GameRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.rounds[playerID]
	out := make([]*domain.GameRound, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, nil
}
