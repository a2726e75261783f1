// Package domain contains the core records of the arcade wagering engine.
//
// Balances are whole units of the virtual currency. Every mutation of a
// PlayerAccount goes through the ledger and leaves a LedgerEntry behind.
package domain

import (
	"encoding/json"
	"time"
)

// GameType names a game module. The value doubles as its HTTP path segment.
type GameType string

const (
	GameSlots    GameType = "slots"
	GameRoulette GameType = "roulette"
	GameWheel    GameType = "luckywheel"
	GameChicken  GameType = "chickencross"
	GameCoinflip GameType = "coinflip"
)

// AllGames lists every game the engine serves
var AllGames = []GameType{GameSlots, GameRoulette, GameWheel, GameChicken, GameCoinflip}

// Valid reports whether g is a known game
func (g GameType) Valid() bool {
	for _, known := range AllGames {
		if g == known {
			return true
		}
	}
	return false
}

// PlayerAccount is the persistent balance record of a player
type PlayerAccount struct {
	ID        string    `json:"id" db:"id"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// LedgerReason classifies a balance adjustment
type LedgerReason string

const (
	ReasonWager  LedgerReason = "wager"
	ReasonPayout LedgerReason = "payout"
	ReasonRefund LedgerReason = "refund"
	ReasonGrant  LedgerReason = "grant"
)

// LedgerEntry records one balance adjustment. It is written in the same
// transaction as the balance change it describes.
type LedgerEntry struct {
	ID           string       `json:"id" db:"id"`
	PlayerID     string       `json:"playerId" db:"player_id"`
	Delta        int64        `json:"delta" db:"delta"`
	BalanceAfter int64        `json:"balanceAfter" db:"balance_after"`
	Reason       LedgerReason `json:"reason" db:"reason"`
	Reference    string       `json:"reference,omitempty" db:"reference"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
}

// SessionState is the lifecycle state of a WagerSession
type SessionState string

const (
	SessionActive    SessionState = "ACTIVE"
	SessionLost      SessionState = "LOST"
	SessionCashedOut SessionState = "CASHED_OUT"
)

// Terminal reports whether no further transition is allowed
func (s SessionState) Terminal() bool {
	return s == SessionLost || s == SessionCashedOut
}

// WagerSession is an escrowed multi-step wager. The seed is the session key
// and also feeds the published multiplier curve.
type WagerSession struct {
	Seed          int64        `json:"seed" db:"seed"`
	PlayerID      string       `json:"playerId" db:"player_id"`
	GameType      GameType     `json:"gameType" db:"game_type"`
	InitialStake  int64        `json:"initialStake" db:"initial_stake"`
	CurrentPayout int64        `json:"currentPayout" db:"current_payout"`
	ProgressIndex int          `json:"progressIndex" db:"progress_index"`
	State         SessionState `json:"state" db:"state"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	LastUpdatedAt time.Time    `json:"lastUpdatedAt" db:"last_updated_at"`
}

// ChallengeState is the lifecycle state of a CoinflipChallenge
type ChallengeState string

const (
	ChallengeOpen      ChallengeState = "OPEN"
	ChallengeSettled   ChallengeState = "SETTLED"
	ChallengeCancelled ChallengeState = "CANCELLED"
)

// CoinflipChallenge is a two-player duel with both stakes escrowed
type CoinflipChallenge struct {
	ID          string         `json:"id" db:"id"`
	InitiatorID string         `json:"initiatorId" db:"initiator_id"`
	OpponentID  string         `json:"opponentId,omitempty" db:"opponent_id"`
	Stake       int64          `json:"stake" db:"stake"`
	Fee         int64          `json:"fee" db:"fee"`
	State       ChallengeState `json:"state" db:"state"`
	WinnerID    string         `json:"winnerId,omitempty" db:"winner_id"`
	Payout      int64          `json:"payout" db:"payout"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	SettledAt   *time.Time     `json:"settledAt,omitempty" db:"settled_at"`
}

// GameRound is the recall record of a settled wager
type GameRound struct {
	ID        string          `json:"id" db:"id"`
	PlayerID  string          `json:"playerId" db:"player_id"`
	Game      GameType        `json:"game" db:"game"`
	Bet       int64           `json:"bet" db:"bet"`
	Payout    int64           `json:"payout" db:"payout"`
	Won       bool            `json:"won" db:"won"`
	Outcome   json.RawMessage `json:"outcome,omitempty" db:"outcome"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// EventSeverity represents audit event severity
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// AuditEvent represents a significant operator or settlement event:
// flag changes, grants, large wins and settlement failures.
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Severity    EventSeverity   `json:"severity" db:"severity"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	PlayerID    *string         `json:"playerId,omitempty" db:"player_id"`
	Actor       string          `json:"actor,omitempty" db:"actor"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	Component   string          `json:"component" db:"component"`
}
