package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/alexbotov/arcade/internal/config"
	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/ledger"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/alexbotov/arcade/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// seedAttempts bounds the search for an unused session seed
	seedAttempts = 3
	// maxSeed keeps seeds exact in a JSON number (float64 mantissa)
	maxSeed = 1<<53 - 1
)

// ChickenMultiplier is the published multiplier curve for a session. It
// depends only on (seed, step), so anyone holding the seed can audit it.
// Step 0 is the stake itself.
func ChickenMultiplier(cfg config.ChickenConfig, seed int64, step int) float64 {
	if step <= 0 {
		return 1
	}
	variance := 1 - cfg.Variance + 2*cfg.Variance*rng.SeededFloat(seed, step)
	return math.Pow(cfg.Base, float64(step)) * variance
}

// SurvivalChance is the probability of surviving the move onto step
func SurvivalChance(cfg config.ChickenConfig, seed int64, step int) float64 {
	return math.Min(1, cfg.SafetyFactor/ChickenMultiplier(cfg, seed, step))
}

// ChickenPayout is floor(stake * multiplier(seed, step))
func ChickenPayout(cfg config.ChickenConfig, stake, seed int64, step int) int64 {
	return Payout(stake, decimal.NewFromFloat(ChickenMultiplier(cfg, seed, step)))
}

// CrossStep decides one advance with a single draw. A rigged step never survives.
func CrossStep(src rng.Source, cfg config.ChickenConfig, seed int64, step int, rigged bool) (bool, error) {
	u, err := src.Uniform()
	if err != nil {
		return false, err
	}
	return !rigged && u < SurvivalChance(cfg, seed, step), nil
}

type chickenTuning struct {
	Base         float64 `json:"base"`
	Variance     float64 `json:"variance"`
	SafetyFactor float64 `json:"safetyFactor"`
	MaxSteps     int     `json:"maxSteps"`
}

func chickenPaytable(cfg config.ChickenConfig) chickenTuning {
	return chickenTuning{
		Base:         cfg.Base,
		Variance:     cfg.Variance,
		SafetyFactor: cfg.SafetyFactor,
		MaxSteps:     cfg.MaxSteps,
	}
}

// ChickenResult describes a session after an action
type ChickenResult struct {
	Session        *domain.WagerSession `json:"session"`
	Multiplier     float64              `json:"multiplier"`
	NextMultiplier float64              `json:"nextMultiplier,omitempty"`
	SurvivalChance float64              `json:"survivalChance,omitempty"`
	Credited       int64                `json:"credited"`
	Balance        int64                `json:"balance"`
}

func (e *Engine) chickenResult(ws *domain.WagerSession, credited, balance int64) *ChickenResult {
	cfg := e.cfg.Chicken
	res := &ChickenResult{
		Session:    ws,
		Multiplier: ChickenMultiplier(cfg, ws.Seed, ws.ProgressIndex),
		Credited:   credited,
		Balance:    balance,
	}
	if ws.State == domain.SessionActive {
		next := ws.ProgressIndex + 1
		res.NextMultiplier = ChickenMultiplier(cfg, ws.Seed, next)
		res.SurvivalChance = SurvivalChance(cfg, ws.Seed, next)
	}
	return res
}

func chickenKey(playerID string) string {
	return "chicken:" + playerID
}

func sessionReference(seed int64) string {
	return "chickencross:" + strconv.FormatInt(seed, 10)
}

// StartChicken escrows the stake and opens a session. A player holds at most
// one ACTIVE session; a second start fails with ErrSessionActive and changes
// nothing.
func (e *Engine) StartChicken(ctx context.Context, playerID string, bet int64) (*ChickenResult, error) {
	unlock := e.guard.Lock(chickenKey(playerID))
	defer unlock()

	if err := e.checkBet(domain.GameChicken, bet); err != nil {
		return nil, err
	}
	if err := e.control.CheckGame(ctx, domain.GameChicken); err != nil {
		return nil, err
	}

	if _, err := e.sessions.Active(ctx, playerID, domain.GameChicken); err == nil {
		return nil, ErrSessionActive
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check active session: %w", err)
	}

	if err := e.checkFunds(ctx, playerID, bet); err != nil {
		return nil, err
	}

	seed, err := e.newSeed(ctx)
	if err != nil {
		return nil, err
	}

	ref := sessionReference(seed)
	balance, err := e.ledger.Debit(ctx, playerID, bet, ref)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	now := time.Now().UTC()
	ws := &domain.WagerSession{
		Seed:          seed,
		PlayerID:      playerID,
		GameType:      domain.GameChicken,
		InitialStake:  bet,
		CurrentPayout: bet,
		ProgressIndex: 0,
		State:         domain.SessionActive,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := e.sessions.Create(ctx, ws); err != nil {
		e.refund(ctx, playerID, domain.GameChicken, bet, ref, err)
		if errors.Is(err, store.ErrActiveExists) {
			return nil, ErrSessionActive
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	e.logger.Info("chicken session started", "player_id", playerID, "seed", seed, "stake", bet)
	return e.chickenResult(ws, 0, balance), nil
}

// newSeed draws a seed in [1, maxSeed] not used by any stored session
func (e *Engine) newSeed(ctx context.Context) (int64, error) {
	for i := 0; i < seedAttempts; i++ {
		n, err := e.rng.UniformInt(maxSeed)
		if err != nil {
			return 0, fmt.Errorf("draw seed: %w", err)
		}
		seed := n + 1

		_, err = e.sessions.Get(ctx, seed)
		if errors.Is(err, store.ErrNotFound) {
			return seed, nil
		}
		if err != nil {
			return 0, fmt.Errorf("check seed: %w", err)
		}
	}
	return 0, fmt.Errorf("no free seed after %d attempts", seedAttempts)
}

// ownedSession loads a session and checks that playerID owns it
func (e *Engine) ownedSession(ctx context.Context, playerID string, seed int64) (*domain.WagerSession, error) {
	ws, err := e.sessions.Get(ctx, seed)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ws.PlayerID != playerID {
		return nil, ErrForbidden
	}
	return ws, nil
}

// AdvanceChicken moves one step. Surviving raises the payout; dying loses the
// stake. Reaching the last step cashes out automatically.
func (e *Engine) AdvanceChicken(ctx context.Context, playerID string, seed int64) (*ChickenResult, error) {
	unlock := e.guard.Lock(chickenKey(playerID))
	defer unlock()

	ws, err := e.ownedSession(ctx, playerID, seed)
	if err != nil {
		return nil, err
	}
	if ws.State != domain.SessionActive {
		return nil, ErrSessionClosed
	}

	rigged, err := e.control.HasReducedLuck(ctx, playerID)
	if err != nil {
		return nil, err
	}

	next := ws.ProgressIndex + 1
	survived, err := CrossStep(e.rng, e.cfg.Chicken, ws.Seed, next, rigged)
	if err != nil {
		return nil, fmt.Errorf("draw step: %w", err)
	}

	ctx = context.WithoutCancel(ctx)

	prev := ws.ProgressIndex
	if survived {
		ws.ProgressIndex = next
		ws.CurrentPayout = ChickenPayout(e.cfg.Chicken, ws.InitialStake, ws.Seed, next)
		if next >= e.cfg.Chicken.MaxSteps {
			ws.State = domain.SessionCashedOut
		}
	} else {
		ws.CurrentPayout = 0
		ws.State = domain.SessionLost
	}
	ws.LastUpdatedAt = time.Now().UTC()

	if err := e.sessions.Update(ctx, ws, prev); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("update session: %w", err)
	}

	return e.closeChicken(ctx, ws)
}

// CashoutChicken credits the current payout and closes the session
func (e *Engine) CashoutChicken(ctx context.Context, playerID string, seed int64) (*ChickenResult, error) {
	unlock := e.guard.Lock(chickenKey(playerID))
	defer unlock()

	ws, err := e.ownedSession(ctx, playerID, seed)
	if err != nil {
		return nil, err
	}
	if ws.State != domain.SessionActive {
		return nil, ErrSessionClosed
	}

	ctx = context.WithoutCancel(ctx)

	ws.State = domain.SessionCashedOut
	ws.LastUpdatedAt = time.Now().UTC()
	if err := e.sessions.Update(ctx, ws, ws.ProgressIndex); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("update session: %w", err)
	}

	return e.closeChicken(ctx, ws)
}

// closeChicken pays out a session that just left ACTIVE. Active sessions
// pass through with only a balance read.
func (e *Engine) closeChicken(ctx context.Context, ws *domain.WagerSession) (*ChickenResult, error) {
	ref := sessionReference(ws.Seed)

	var credited int64
	var balance int64
	var err error
	if ws.State == domain.SessionCashedOut && ws.CurrentPayout > 0 {
		balance, err = e.ledger.Credit(ctx, ws.PlayerID, ws.CurrentPayout, domain.ReasonPayout, ref)
		if err != nil {
			e.settlementFailure(ctx, ws.PlayerID, domain.GameChicken, ref, ws.CurrentPayout, err)
			return nil, fmt.Errorf("credit payout: %w", err)
		}
		credited = ws.CurrentPayout
	} else {
		balance, err = e.ledger.GetBalance(ctx, ws.PlayerID)
		if err != nil {
			return nil, err
		}
	}

	if ws.State.Terminal() {
		s := &settlement{
			roundID: uuid.New().String(),
			payout:  ws.CurrentPayout,
			won:     ws.CurrentPayout > ws.InitialStake,
			balance: balance,
		}
		m := decimal.NewFromFloat(ChickenMultiplier(e.cfg.Chicken, ws.Seed, ws.ProgressIndex))
		if ws.State == domain.SessionLost {
			m = decimal.Zero
		}
		e.finishRound(ctx, ws.PlayerID, domain.GameChicken, ws.InitialStake, s, m, false, ws)
		e.logger.Info("chicken session closed", "player_id", ws.PlayerID, "seed", ws.Seed,
			"state", ws.State, "progress", ws.ProgressIndex, "payout", ws.CurrentPayout)
	}

	return e.chickenResult(ws, credited, balance), nil
}

// ChickenSession returns a session to its owner
func (e *Engine) ChickenSession(ctx context.Context, playerID string, seed int64) (*ChickenResult, error) {
	ws, err := e.ownedSession(ctx, playerID, seed)
	if err != nil {
		return nil, err
	}
	balance, err := e.ledger.GetBalance(ctx, playerID)
	if err != nil && !errors.Is(err, ledger.ErrPlayerNotFound) {
		return nil, err
	}
	return e.chickenResult(ws, 0, balance), nil
}

// ActiveChicken returns the player's live session, or nil when there is none
func (e *Engine) ActiveChicken(ctx context.Context, playerID string) (*domain.WagerSession, error) {
	ws, err := e.sessions.Active(ctx, playerID, domain.GameChicken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}
	return ws, nil
}
