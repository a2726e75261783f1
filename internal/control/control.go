// Package control provides operator switches over the engine.
//
// Operators can:
//   - put a player on reduced luck, forcing losing outcomes
//   - disable and re-enable individual games
//
// Every state change is audited.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/flags"
)

var (
	ErrGameDisabled = errors.New("game is currently disabled")
	ErrUnknownGame  = errors.New("unknown game")
	ErrInvalidID    = errors.New("player id is required")
)

// Service provides gaming control functionality
type Service struct {
	flags flags.Store
	audit *audit.Service
}

// New creates a new control service
func New(store flags.Store, auditSvc *audit.Service) *Service {
	return &Service{
		flags: store,
		audit: auditSvc,
	}
}

// SetReducedLuck puts a player on the reduced-luck list
func (s *Service) SetReducedLuck(ctx context.Context, playerID, authorizedBy string) error {
	if playerID == "" {
		return ErrInvalidID
	}
	if err := s.flags.Set(ctx, flags.NamespaceReducedLuck, playerID); err != nil {
		return fmt.Errorf("failed to persist reduced luck: %w", err)
	}

	s.audit.Log(ctx, audit.EventReducedLuckSet, domain.SeverityWarning,
		fmt.Sprintf("Reduced luck set for %s", playerID),
		map[string]string{"authorized_by": authorizedBy},
		audit.WithPlayer(playerID), audit.WithActor(authorizedBy), audit.WithComponent("control"))

	return nil
}

// ClearReducedLuck removes a player from the reduced-luck list
func (s *Service) ClearReducedLuck(ctx context.Context, playerID, authorizedBy string) error {
	if playerID == "" {
		return ErrInvalidID
	}
	if err := s.flags.Clear(ctx, flags.NamespaceReducedLuck, playerID); err != nil {
		return fmt.Errorf("failed to persist reduced luck: %w", err)
	}

	s.audit.Log(ctx, audit.EventReducedLuckCleared, domain.SeverityInfo,
		fmt.Sprintf("Reduced luck cleared for %s", playerID),
		map[string]string{"authorized_by": authorizedBy},
		audit.WithPlayer(playerID), audit.WithActor(authorizedBy), audit.WithComponent("control"))

	return nil
}

// HasReducedLuck reports whether the player's outcomes are forced to lose
func (s *Service) HasReducedLuck(ctx context.Context, playerID string) (bool, error) {
	ok, err := s.flags.Has(ctx, flags.NamespaceReducedLuck, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to read reduced luck: %w", err)
	}
	return ok, nil
}

// ReducedLuckPlayers lists every flagged player
func (s *Service) ReducedLuckPlayers(ctx context.Context) ([]string, error) {
	return s.flags.List(ctx, flags.NamespaceReducedLuck)
}

// DisableGame stops new wagers on a game. Open chicken sessions can still be
// advanced and cashed out so escrowed stakes are never stranded.
func (s *Service) DisableGame(ctx context.Context, game domain.GameType, reason, authorizedBy string) error {
	if !game.Valid() {
		return ErrUnknownGame
	}
	if err := s.flags.Set(ctx, flags.NamespaceDisabledGame, string(game)); err != nil {
		return fmt.Errorf("failed to persist game state: %w", err)
	}

	s.audit.Log(ctx, audit.EventGameDisabled, domain.SeverityWarning,
		fmt.Sprintf("Game disabled: %s - %s", game, reason),
		map[string]interface{}{
			"game":          game,
			"reason":        reason,
			"authorized_by": authorizedBy,
		},
		audit.WithActor(authorizedBy), audit.WithComponent("control"))

	return nil
}

// EnableGame re-enables a game
func (s *Service) EnableGame(ctx context.Context, game domain.GameType, authorizedBy string) error {
	if !game.Valid() {
		return ErrUnknownGame
	}
	if err := s.flags.Clear(ctx, flags.NamespaceDisabledGame, string(game)); err != nil {
		return fmt.Errorf("failed to persist game state: %w", err)
	}

	s.audit.Log(ctx, audit.EventGameEnabled, domain.SeverityInfo,
		fmt.Sprintf("Game enabled: %s", game),
		map[string]interface{}{
			"game":          game,
			"authorized_by": authorizedBy,
		},
		audit.WithActor(authorizedBy), audit.WithComponent("control"))

	return nil
}

// CheckGame returns ErrGameDisabled when new wagers on game are blocked
func (s *Service) CheckGame(ctx context.Context, game domain.GameType) error {
	if !game.Valid() {
		return ErrUnknownGame
	}
	disabled, err := s.flags.Has(ctx, flags.NamespaceDisabledGame, string(game))
	if err != nil {
		return fmt.Errorf("failed to read game state: %w", err)
	}
	if disabled {
		return ErrGameDisabled
	}
	return nil
}

// DisabledGames lists the games currently blocked
func (s *Service) DisabledGames(ctx context.Context) ([]domain.GameType, error) {
	ids, err := s.flags.List(ctx, flags.NamespaceDisabledGame)
	if err != nil {
		return nil, err
	}
	games := make([]domain.GameType, 0, len(ids))
	for _, id := range ids {
		games = append(games, domain.GameType(id))
	}
	return games, nil
}
