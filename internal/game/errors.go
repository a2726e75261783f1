package game

import (
	"errors"

	"github.com/alexbotov/arcade/internal/control"
)

var (
	ErrInvalidBet        = errors.New("invalid bet amount")
	ErrInvalidBetType    = errors.New("invalid bet type")
	ErrInvalidNumber     = errors.New("invalid roulette number")
	ErrInvalidIntent     = errors.New("invalid intent")
	ErrSessionActive     = errors.New("a session is already active for this game")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is no longer active")
	ErrForbidden         = errors.New("not the owner")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeTaken    = errors.New("challenge is no longer open")
	ErrSelfAccept        = errors.New("cannot accept your own challenge")
	ErrGameDisabled      = control.ErrGameDisabled
)
