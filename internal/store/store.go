// Package store persists wager sessions, coinflip challenges and game rounds.
// Every state transition is a conditional write so that concurrent replicas
// cannot both apply it.
package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrActiveExists means the player already holds an ACTIVE session for the game
	ErrActiveExists = errors.New("active session exists")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStale means the row no longer matches the state the caller read
	ErrStale = errors.New("record changed concurrently")
)

const (
	activeSessionIndex = "uq_wager_sessions_active"
	uniqueViolation    = "23505"
)

// uniqueViolationErr maps a PostgreSQL unique violation to a store error
func uniqueViolationErr(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	if pqErr.Constraint == activeSessionIndex {
		return ErrActiveExists
	}
	return ErrDuplicateKey
}
