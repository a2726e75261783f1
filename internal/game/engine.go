// Package game provides the game rule modules and the settlement engine that
// runs them against the ledger.
//
// Rule functions (SpinSlots, SpinRoulette, SpinWheel, ChickenMultiplier,
// FlipWinner) are pure over a rng.Source. The Engine owns the money flow:
// verify, debit, draw, credit, persist, announce.
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/config"
	"github.com/alexbotov/arcade/internal/control"
	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/guard"
	"github.com/alexbotov/arcade/internal/ledger"
	"github.com/alexbotov/arcade/internal/metrics"
	"github.com/alexbotov/arcade/internal/notify"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStore persists chicken cross sessions
type SessionStore interface {
	Create(ctx context.Context, ws *domain.WagerSession) error
	Get(ctx context.Context, seed int64) (*domain.WagerSession, error)
	Active(ctx context.Context, playerID string, game domain.GameType) (*domain.WagerSession, error)
	Update(ctx context.Context, ws *domain.WagerSession, prevProgress int) error
}

// ChallengeStore persists coinflip challenges
type ChallengeStore interface {
	Create(ctx context.Context, c *domain.CoinflipChallenge) error
	Get(ctx context.Context, id string) (*domain.CoinflipChallenge, error)
	ListOpen(ctx context.Context, limit int) ([]*domain.CoinflipChallenge, error)
	Claim(ctx context.Context, id, opponentID string) error
	Unclaim(ctx context.Context, id, opponentID string) error
	Settle(ctx context.Context, c *domain.CoinflipChallenge) error
	Cancel(ctx context.Context, id, initiatorID string) error
}

// RoundStore persists settled rounds for recall
type RoundStore interface {
	Record(ctx context.Context, r *domain.GameRound) error
	Recent(ctx context.Context, playerID string, limit int) ([]*domain.GameRound, error)
}

// Announcer receives large wins. It must not block.
type Announcer interface {
	Announce(w notify.Win)
}

// Dependencies wires an Engine
type Dependencies struct {
	Config     config.GameConfig
	Ledger     *ledger.Service
	RNG        rng.Source
	Control    *control.Service
	Sessions   SessionStore
	Challenges ChallengeStore
	Rounds     RoundStore
	Guard      *guard.Locker
	Announcer  Announcer
	Audit      *audit.Service
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Engine settles wagers for every game
type Engine struct {
	cfg        config.GameConfig
	ledger     *ledger.Service
	rng        rng.Source
	control    *control.Service
	sessions   SessionStore
	challenges ChallengeStore
	rounds     RoundStore
	guard      *guard.Locker
	announcer  Announcer
	audit      *audit.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a new game engine
func New(deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := deps.Guard
	if locker == nil {
		locker = guard.New()
	}
	return &Engine{
		cfg:        deps.Config,
		ledger:     deps.Ledger,
		rng:        deps.RNG,
		control:    deps.Control,
		sessions:   deps.Sessions,
		challenges: deps.Challenges,
		rounds:     deps.Rounds,
		guard:      locker,
		announcer:  deps.Announcer,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     logger.With("component", "game"),
	}
}

// Limits returns the bet range of a game
func (e *Engine) Limits(game domain.GameType) (config.BetLimits, error) {
	switch game {
	case domain.GameSlots:
		return e.cfg.Slots, nil
	case domain.GameRoulette:
		return e.cfg.Roulette.BetLimits, nil
	case domain.GameWheel:
		return e.cfg.Wheel, nil
	case domain.GameChicken:
		return e.cfg.Chicken.BetLimits, nil
	case domain.GameCoinflip:
		return e.cfg.Coinflip.BetLimits, nil
	}
	return config.BetLimits{}, control.ErrUnknownGame
}

// Payout is floor(bet * multiplier)
func Payout(bet int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(bet).Mul(multiplier).Floor().IntPart()
}

func (e *Engine) checkBet(game domain.GameType, bet int64) error {
	limits, err := e.Limits(game)
	if err != nil {
		return err
	}
	if bet < limits.MinBet || bet > limits.MaxBet {
		return fmt.Errorf("%w: must be between %d and %d", ErrInvalidBet, limits.MinBet, limits.MaxBet)
	}
	return nil
}

func (e *Engine) checkFunds(ctx context.Context, playerID string, bet int64) error {
	balance, err := e.ledger.GetBalance(ctx, playerID)
	if err != nil {
		return err
	}
	if balance < bet {
		return ledger.ErrInsufficientFunds
	}
	return nil
}

// verify runs the pre-debit checks in settlement order and reports whether
// the player is on reduced luck.
func (e *Engine) verify(ctx context.Context, playerID string, game domain.GameType, bet int64) (bool, error) {
	if err := e.checkBet(game, bet); err != nil {
		return false, err
	}
	if err := e.control.CheckGame(ctx, game); err != nil {
		return false, err
	}
	rigged, err := e.control.HasReducedLuck(ctx, playerID)
	if err != nil {
		return false, err
	}
	if err := e.checkFunds(ctx, playerID, bet); err != nil {
		return false, err
	}
	return rigged, nil
}

// draw is a single-shot outcome
type draw struct {
	multiplier decimal.Decimal
	jackpot    bool
	outcome    any
}

// settlement is the money side of a finished round
type settlement struct {
	roundID string
	payout  int64
	won     bool
	balance int64
}

// playRound settles a single-shot wager. Once the stake is debited the
// settlement runs to completion even if the caller goes away.
func (e *Engine) playRound(ctx context.Context, playerID string, game domain.GameType, bet int64, spin func(rigged bool) (*draw, error)) (*settlement, *draw, error) {
	rigged, err := e.verify(ctx, playerID, game, bet)
	if err != nil {
		return nil, nil, err
	}

	roundID := uuid.New().String()
	balance, err := e.ledger.Debit(ctx, playerID, bet, roundID)
	if err != nil {
		return nil, nil, err
	}

	ctx = context.WithoutCancel(ctx)

	d, err := spin(rigged)
	if err != nil {
		e.refund(ctx, playerID, game, bet, roundID, err)
		return nil, nil, fmt.Errorf("draw %s outcome: %w", game, err)
	}

	payout := Payout(bet, d.multiplier)
	if payout > 0 {
		balance, err = e.ledger.Credit(ctx, playerID, payout, domain.ReasonPayout, roundID)
		if err != nil {
			e.settlementFailure(ctx, playerID, game, roundID, payout, err)
			return nil, nil, fmt.Errorf("credit payout: %w", err)
		}
	}

	s := &settlement{roundID: roundID, payout: payout, won: payout > bet, balance: balance}
	e.finishRound(ctx, playerID, game, bet, s, d.multiplier, d.jackpot, d.outcome)
	return s, d, nil
}

// finishRound does the best-effort bookkeeping after the ledger is settled
func (e *Engine) finishRound(ctx context.Context, playerID string, game domain.GameType, bet int64, s *settlement, multiplier decimal.Decimal, jackpot bool, outcome any) {
	now := time.Now().UTC()

	if e.rounds != nil {
		raw, err := json.Marshal(outcome)
		if err != nil {
			raw = nil
		}
		round := &domain.GameRound{
			ID:        s.roundID,
			PlayerID:  playerID,
			Game:      game,
			Bet:       bet,
			Payout:    s.payout,
			Won:       s.won,
			Outcome:   raw,
			CreatedAt: now,
		}
		if err := e.rounds.Record(ctx, round); err != nil {
			e.logger.Error("failed to record round", "round_id", s.roundID, "player_id", playerID, "error", err)
		}
	}

	e.metrics.RecordWager(string(game), bet, s.payout)

	if s.payout <= 0 || (s.payout < e.cfg.LargeWinThreshold && !jackpot) {
		return
	}

	m := multiplier.InexactFloat64()
	e.audit.Log(ctx, audit.EventLargeWin, domain.SeverityInfo,
		fmt.Sprintf("Large win: %d on %s", s.payout, game),
		map[string]interface{}{
			"round_id":   s.roundID,
			"bet":        bet,
			"payout":     s.payout,
			"multiplier": m,
			"jackpot":    jackpot,
		},
		audit.WithPlayer(playerID), audit.WithComponent("game"))

	if e.announcer != nil {
		e.announcer.Announce(notify.Win{
			RoundID:    s.roundID,
			PlayerID:   playerID,
			Game:       string(game),
			Bet:        bet,
			Payout:     s.payout,
			Multiplier: m,
			Jackpot:    jackpot,
			At:         now,
		})
	}
}

// refund returns an escrowed stake after a failure past the debit
func (e *Engine) refund(ctx context.Context, playerID string, game domain.GameType, amount int64, reference string, cause error) {
	e.logger.Error("refunding stake", "player_id", playerID, "game", game, "reference", reference, "error", cause)

	if _, err := e.ledger.Credit(ctx, playerID, amount, domain.ReasonRefund, reference); err != nil {
		e.settlementFailure(ctx, playerID, game, reference, amount, err)
		return
	}

	e.metrics.RecordRefund(string(game))
	e.audit.Log(ctx, audit.EventRefund, domain.SeverityWarning,
		fmt.Sprintf("Refunded %d on %s", amount, game),
		map[string]interface{}{"reference": reference, "amount": amount, "cause": cause.Error()},
		audit.WithPlayer(playerID), audit.WithComponent("game"))
}

// settlementFailure records money owed to a player that could not be paid
func (e *Engine) settlementFailure(ctx context.Context, playerID string, game domain.GameType, reference string, amount int64, err error) {
	e.audit.Log(ctx, audit.EventSettlementFailure, domain.SeverityCritical,
		fmt.Sprintf("Failed to pay %d on %s", amount, game),
		map[string]interface{}{"reference": reference, "amount": amount, "error": err.Error()},
		audit.WithPlayer(playerID), audit.WithComponent("game"))
}

// History returns the player's most recent settled rounds
func (e *Engine) History(ctx context.Context, playerID string, limit int) ([]*domain.GameRound, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rounds, err := e.rounds.Recent(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return rounds, nil
}

// Info describes a game's limits and payouts
type Info struct {
	Game        domain.GameType `json:"game"`
	MinBet      int64           `json:"minBet"`
	MaxBet      int64           `json:"maxBet"`
	PayoutTable interface{}     `json:"payoutTable"`
}

// Info returns the public description of a game
func (e *Engine) Info(game domain.GameType) (*Info, error) {
	limits, err := e.Limits(game)
	if err != nil {
		return nil, err
	}

	info := &Info{Game: game, MinBet: limits.MinBet, MaxBet: limits.MaxBet}
	switch game {
	case domain.GameSlots:
		info.PayoutTable = slotsPaytable()
	case domain.GameRoulette:
		info.PayoutTable = roulettePaytable(e.cfg.Roulette.ZeroWeight)
	case domain.GameWheel:
		info.PayoutTable = wheelPaytable()
	case domain.GameChicken:
		info.PayoutTable = chickenPaytable(e.cfg.Chicken)
	case domain.GameCoinflip:
		info.PayoutTable = map[string]int64{"feePercent": e.cfg.Coinflip.FeePercent}
	}
	return info, nil
}
