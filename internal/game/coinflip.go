package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/alexbotov/arcade/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SideHeads = "heads"
	SideTails = "tails"
)

// CoinflipFee is the house cut of a pot holding both stakes
func CoinflipFee(stake, feePercent int64) int64 {
	return 2 * stake * feePercent / 100
}

// FlipWinner settles a duel with one fair draw and reports whether the
// initiator won. When exactly one side is on reduced luck the other side
// wins without a draw.
func FlipWinner(src rng.Source, initiatorRigged, opponentRigged bool) (bool, error) {
	switch {
	case initiatorRigged && !opponentRigged:
		return false, nil
	case opponentRigged && !initiatorRigged:
		return true, nil
	}

	n, err := src.UniformInt(2)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// CoinflipResult describes a challenge after an action
type CoinflipResult struct {
	Challenge *domain.CoinflipChallenge `json:"challenge"`
	Side      string                    `json:"side,omitempty"`
	Won       bool                      `json:"won"`
	Payout    int64                     `json:"payout"`
	Balance   int64                     `json:"balance"`
}

func challengeKey(id string) string {
	return "coinflip:" + id
}

func (e *Engine) loadChallenge(ctx context.Context, id string) (*domain.CoinflipChallenge, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrChallengeNotFound
	}
	c, err := e.challenges.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	return c, nil
}

// CreateChallenge escrows the initiator's stake and posts an open challenge
func (e *Engine) CreateChallenge(ctx context.Context, playerID string, bet int64) (*CoinflipResult, error) {
	if err := e.checkBet(domain.GameCoinflip, bet); err != nil {
		return nil, err
	}
	if err := e.control.CheckGame(ctx, domain.GameCoinflip); err != nil {
		return nil, err
	}
	if err := e.checkFunds(ctx, playerID, bet); err != nil {
		return nil, err
	}

	c := &domain.CoinflipChallenge{
		ID:          uuid.New().String(),
		InitiatorID: playerID,
		Stake:       bet,
		Fee:         CoinflipFee(bet, e.cfg.Coinflip.FeePercent),
		State:       domain.ChallengeOpen,
		CreatedAt:   time.Now().UTC(),
	}

	ref := challengeKey(c.ID)
	balance, err := e.ledger.Debit(ctx, playerID, bet, ref)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	if err := e.challenges.Create(ctx, c); err != nil {
		e.refund(ctx, playerID, domain.GameCoinflip, bet, ref, err)
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	e.logger.Info("coinflip challenge created", "challenge_id", c.ID, "player_id", playerID, "stake", bet)
	return &CoinflipResult{Challenge: c, Balance: balance}, nil
}

// AcceptChallenge escrows the accepter's stake, flips and pays the winner
func (e *Engine) AcceptChallenge(ctx context.Context, playerID, id string) (*CoinflipResult, error) {
	unlock := e.guard.Lock(challengeKey(id))
	defer unlock()

	c, err := e.loadChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.InitiatorID == playerID {
		return nil, ErrSelfAccept
	}
	if c.State != domain.ChallengeOpen || c.OpponentID != "" {
		return nil, ErrChallengeTaken
	}
	if err := e.control.CheckGame(ctx, domain.GameCoinflip); err != nil {
		return nil, err
	}

	initiatorRigged, err := e.control.HasReducedLuck(ctx, c.InitiatorID)
	if err != nil {
		return nil, err
	}
	opponentRigged, err := e.control.HasReducedLuck(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if err := e.checkFunds(ctx, playerID, c.Stake); err != nil {
		return nil, err
	}

	if err := e.challenges.Claim(ctx, id, playerID); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrChallengeTaken
		}
		return nil, fmt.Errorf("claim challenge: %w", err)
	}

	ref := challengeKey(id)
	balance, err := e.ledger.Debit(ctx, playerID, c.Stake, ref)
	if err != nil {
		e.unclaim(context.WithoutCancel(ctx), c, playerID)
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	initiatorWins, err := FlipWinner(e.rng, initiatorRigged, opponentRigged)
	if err != nil {
		e.refund(ctx, playerID, domain.GameCoinflip, c.Stake, ref, err)
		e.unclaim(ctx, c, playerID)
		return nil, fmt.Errorf("draw flip: %w", err)
	}

	now := time.Now().UTC()
	c.OpponentID = playerID
	c.State = domain.ChallengeSettled
	c.Payout = 2*c.Stake - c.Fee
	c.SettledAt = &now
	side := SideTails
	c.WinnerID = playerID
	if initiatorWins {
		side = SideHeads
		c.WinnerID = c.InitiatorID
	}

	if err := e.challenges.Settle(ctx, c); err != nil {
		e.refund(ctx, playerID, domain.GameCoinflip, c.Stake, ref, err)
		e.unclaim(ctx, c, playerID)
		return nil, fmt.Errorf("settle challenge: %w", err)
	}

	if c.Payout > 0 {
		winnerBalance, err := e.ledger.Credit(ctx, c.WinnerID, c.Payout, domain.ReasonPayout, ref)
		if err != nil {
			e.settlementFailure(ctx, c.WinnerID, domain.GameCoinflip, ref, c.Payout, err)
			return nil, fmt.Errorf("credit payout: %w", err)
		}
		if c.WinnerID == playerID {
			balance = winnerBalance
		}
	}

	e.logger.Info("coinflip settled", "challenge_id", id, "winner_id", c.WinnerID, "side", side, "payout", c.Payout)

	outcome := map[string]string{"challengeId": id, "side": side, "winnerId": c.WinnerID}
	for _, participant := range []string{c.InitiatorID, playerID} {
		s := &settlement{roundID: uuid.New().String()}
		m := decimal.Zero
		if participant == c.WinnerID {
			s.payout = c.Payout
			s.won = c.Payout > c.Stake
			m = decimal.NewFromInt(c.Payout).Div(decimal.NewFromInt(c.Stake))
		}
		e.finishRound(ctx, participant, domain.GameCoinflip, c.Stake, s, m, false, outcome)
	}

	res := &CoinflipResult{Challenge: c, Side: side, Balance: balance}
	if c.WinnerID == playerID {
		res.Won = true
		res.Payout = c.Payout
	}
	return res, nil
}

// unclaim reopens a challenge whose accept failed. If the claim cannot be
// released the initiator's escrowed stake is stuck behind it and needs an
// operator.
func (e *Engine) unclaim(ctx context.Context, c *domain.CoinflipChallenge, playerID string) {
	if err := e.challenges.Unclaim(ctx, c.ID, playerID); err != nil {
		e.logger.Error("failed to release challenge claim", "challenge_id", c.ID, "player_id", playerID, "error", err)
		e.settlementFailure(ctx, c.InitiatorID, domain.GameCoinflip, challengeKey(c.ID), c.Stake, err)
	}
}

// CancelChallenge withdraws an open challenge and refunds its stake. Only the
// initiator can cancel, and only before anyone accepts.
func (e *Engine) CancelChallenge(ctx context.Context, playerID, id string) (*CoinflipResult, error) {
	unlock := e.guard.Lock(challengeKey(id))
	defer unlock()

	c, err := e.loadChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.InitiatorID != playerID {
		return nil, ErrForbidden
	}
	if c.State != domain.ChallengeOpen || c.OpponentID != "" {
		return nil, ErrChallengeTaken
	}

	if err := e.challenges.Cancel(ctx, id, playerID); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrChallengeTaken
		}
		return nil, fmt.Errorf("cancel challenge: %w", err)
	}

	ctx = context.WithoutCancel(ctx)

	ref := challengeKey(id)
	balance, err := e.ledger.Credit(ctx, playerID, c.Stake, domain.ReasonRefund, ref)
	if err != nil {
		e.settlementFailure(ctx, playerID, domain.GameCoinflip, ref, c.Stake, err)
		return nil, fmt.Errorf("refund stake: %w", err)
	}
	e.metrics.RecordRefund(string(domain.GameCoinflip))

	now := time.Now().UTC()
	c.State = domain.ChallengeCancelled
	c.SettledAt = &now

	e.logger.Info("coinflip challenge cancelled", "challenge_id", id, "player_id", playerID)
	return &CoinflipResult{Challenge: c, Balance: balance}, nil
}

// OpenChallenges lists unclaimed challenges, oldest first
func (e *Engine) OpenChallenges(ctx context.Context, limit int) ([]*domain.CoinflipChallenge, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return e.challenges.ListOpen(ctx, limit)
}
