package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexbotov/arcade/internal/domain"
)

// PostgresChallenges keeps coinflip challenges in PostgreSQL
type PostgresChallenges struct {
	db *sql.DB
}

// NewPostgresChallenges creates a PostgreSQL challenge store
func NewPostgresChallenges(db *sql.DB) *PostgresChallenges {
	return &PostgresChallenges{db: db}
}

const challengeColumns = `id, initiator_id, opponent_id, stake, fee, state, winner_id, payout, created_at, settled_at`

func scanChallenge(row interface{ Scan(...any) error }) (*domain.CoinflipChallenge, error) {
	var c domain.CoinflipChallenge
	var opponent, winner sql.NullString
	var settledAt sql.NullTime

	err := row.Scan(&c.ID, &c.InitiatorID, &opponent, &c.Stake, &c.Fee, &c.State,
		&winner, &c.Payout, &c.CreatedAt, &settledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.OpponentID = opponent.String
	c.WinnerID = winner.String
	if settledAt.Valid {
		c.SettledAt = &settledAt.Time
	}
	return &c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PostgresChallenges) Create(ctx context.Context, c *domain.CoinflipChallenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coinflip_challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.InitiatorID, nullable(c.OpponentID), c.Stake, c.Fee, c.State,
		nullable(c.WinnerID), c.Payout, c.CreatedAt, c.SettledAt)
	if err != nil {
		if mapped := uniqueViolationErr(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// Get loads a challenge by id. Ids that are not uuids match nothing.
func (s *PostgresChallenges) Get(ctx context.Context, id string) (*domain.CoinflipChallenge, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanChallenge(s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM coinflip_challenges WHERE id = $1`, id))
}

// ListOpen returns unclaimed OPEN challenges, oldest first
func (s *PostgresChallenges) ListOpen(ctx context.Context, limit int) ([]*domain.CoinflipChallenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+challengeColumns+` FROM coinflip_challenges
		WHERE state = $1 AND opponent_id IS NULL
		ORDER BY created_at ASC LIMIT $2
	`, domain.ChallengeOpen, limit)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	defer rows.Close()

	var out []*domain.CoinflipChallenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresChallenges) exec(ctx context.Context, query string, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrStale
	}
	res, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
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

// Claim reserves an OPEN challenge for the accepting player
func (s *PostgresChallenges) Claim(ctx context.Context, id, opponentID string) error {
	return s.exec(ctx, `
		UPDATE coinflip_challenges SET opponent_id = $2
		WHERE id = $1 AND state = $3 AND opponent_id IS NULL
	`, id, opponentID, domain.ChallengeOpen)
}

// Unclaim releases a claim that could not be funded
func (s *PostgresChallenges) Unclaim(ctx context.Context, id, opponentID string) error {
	return s.exec(ctx, `
		UPDATE coinflip_challenges SET opponent_id = NULL
		WHERE id = $1 AND state = $3 AND opponent_id = $2
	`, id, opponentID, domain.ChallengeOpen)
}

// Settle records the flip result on a claimed challenge
func (s *PostgresChallenges) Settle(ctx context.Context, c *domain.CoinflipChallenge) error {
	return s.exec(ctx, `
		UPDATE coinflip_challenges SET state = $3, winner_id = $4, payout = $5, settled_at = $6
		WHERE id = $1 AND opponent_id = $2 AND state = $7
	`, c.ID, c.OpponentID, domain.ChallengeSettled, c.WinnerID, c.Payout, c.SettledAt, domain.ChallengeOpen)
}

// Cancel closes an unclaimed challenge on its initiator's behalf
func (s *PostgresChallenges) Cancel(ctx context.Context, id, initiatorID string) error {
	return s.exec(ctx, `
		UPDATE coinflip_challenges SET state = $3, settled_at = NOW()
		WHERE id = $1 AND initiator_id = $2 AND state = $4 AND opponent_id IS NULL
	`, id, initiatorID, domain.ChallengeCancelled, domain.ChallengeOpen)
}

// MemoryChallenges keeps coinflip challenges in process
type MemoryChallenges struct {
	mu         sync.Mutex
	challenges map[string]*domain.CoinflipChallenge
}

// NewMemoryChallenges creates an empty in-memory challenge store
func NewMemoryChallenges() *MemoryChallenges {
	return &MemoryChallenges{challenges: make(map[string]*domain.CoinflipChallenge)}
}

func (s *MemoryChallenges) Create(_ context.Context, c *domain.CoinflipChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[c.ID]; ok {
		return ErrDuplicateKey
	}
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *MemoryChallenges) Get(_ context.Context, id string) (*domain.CoinflipChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryChallenges) ListOpen(_ context.Context, limit int) ([]*domain.CoinflipChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.CoinflipChallenge
	for _, c := range s.challenges {
		if c.State == domain.ChallengeOpen && c.OpponentID == "" {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryChallenges) Claim(_ context.Context, id, opponentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.State != domain.ChallengeOpen || c.OpponentID != "" {
		return ErrStale
	}
	c.OpponentID = opponentID
	return nil
}

func (s *MemoryChallenges) Unclaim(_ context.Context, id, opponentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.State != domain.ChallengeOpen || c.OpponentID != opponentID {
		return ErrStale
	}
	c.OpponentID = ""
	return nil
}

func (s *MemoryChallenges) Settle(_ context.Context, settled *domain.CoinflipChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[settled.ID]
	if !ok || c.State != domain.ChallengeOpen || c.OpponentID != settled.OpponentID {
		return ErrStale
	}
	c.State = domain.ChallengeSettled
	c.WinnerID = settled.WinnerID
	c.Payout = settled.Payout
	c.SettledAt = settled.SettledAt
	return nil
}

func (s *MemoryChallenges) Cancel(_ context.Context, id, initiatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok || c.InitiatorID != initiatorID || c.State != domain.ChallengeOpen || c.OpponentID != "" {
		return ErrStale
	}
	now := time.Now().UTC()
	c.State = domain.ChallengeCancelled
	c.SettledAt = &now
	return nil
}
