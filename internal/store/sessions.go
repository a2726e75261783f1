package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/alexbotov/arcade/internal/domain"
)

// PostgresSessions keeps wager sessions in PostgreSQL
type PostgresSessions struct {
	db *sql.DB
}

// NewPostgresSessions creates a PostgreSQL session store
func NewPostgresSessions(db *sql.DB) *PostgresSessions {
	return &PostgresSessions{db: db}
}

const sessionColumns = `seed, player_id, game_type, initial_stake, current_payout, progress_index, state, created_at, last_updated_at`

func scanSession(row interface{ Scan(...any) error }) (*domain.WagerSession, error) {
	var s domain.WagerSession
	err := row.Scan(&s.Seed, &s.PlayerID, &s.GameType, &s.InitialStake, &s.CurrentPayout,
		&s.ProgressIndex, &s.State, &s.CreatedAt, &s.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session. The partial unique index rejects a second
// ACTIVE session for the same player and game with ErrActiveExists.
func (s *PostgresSessions) Create(ctx context.Context, ws *domain.WagerSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wager_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ws.Seed, ws.PlayerID, ws.GameType, ws.InitialStake, ws.CurrentPayout,
		ws.ProgressIndex, ws.State, ws.CreatedAt, ws.LastUpdatedAt)
	if err != nil {
		if mapped := uniqueViolationErr(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessions) Get(ctx context.Context, seed int64) (*domain.WagerSession, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM wager_sessions WHERE seed = $1`, seed))
}

func (s *PostgresSessions) Active(ctx context.Context, playerID string, game domain.GameType) (*domain.WagerSession, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM wager_sessions
		WHERE player_id = $1 AND game_type = $2 AND state = $3
	`, playerID, game, domain.SessionActive))
}

// Update writes ws only if the stored row is still ACTIVE at prevProgress
func (s *PostgresSessions) Update(ctx context.Context, ws *domain.WagerSession, prevProgress int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wager_sessions
		SET current_payout = $2, progress_index = $3, state = $4, last_updated_at = $5
		WHERE seed = $1 AND state = $6 AND progress_index = $7
	`, ws.Seed, ws.CurrentPayout, ws.ProgressIndex, ws.State, ws.LastUpdatedAt,
		domain.SessionActive, prevProgress)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

// MemorySessions keeps wager sessions in process
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[int64]*domain.WagerSession
}

// NewMemorySessions creates an empty in-memory session store
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[int64]*domain.WagerSession)}
}

func (s *MemorySessions) Create(_ context.Context, ws *domain.WagerSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[ws.Seed]; ok {
		return ErrDuplicateKey
	}
	if ws.State == domain.SessionActive {
		for _, other := range s.sessions {
			if other.PlayerID == ws.PlayerID && other.GameType == ws.GameType && other.State == domain.SessionActive {
				return ErrActiveExists
			}
		}
	}

	cp := *ws
	s.sessions[ws.Seed] = &cp
	return nil
}

func (s *MemorySessions) Get(_ context.Context, seed int64) (*domain.WagerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.sessions[seed]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (s *MemorySessions) Active(_ context.Context, playerID string, game domain.GameType) (*domain.WagerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ws := range s.sessions {
		if ws.PlayerID == playerID && ws.GameType == game && ws.State == domain.SessionActive {
			cp := *ws
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemorySessions) Update(_ context.Context, ws *domain.WagerSession, prevProgress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[ws.Seed]
	if !ok || cur.State != domain.SessionActive || cur.ProgressIndex != prevProgress {
		return ErrStale
	}
	cur.CurrentPayout = ws.CurrentPayout
	cur.ProgressIndex = ws.ProgressIndex
	cur.State = ws.State
	cur.LastUpdatedAt = ws.LastUpdatedAt
	return nil
}
