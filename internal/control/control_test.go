package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/flags"
)

func setupTestControl(t *testing.T) (*Service, *audit.Service) {
	t.Helper()

	auditSvc := audit.New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(flags.NewMemoryStore(), auditSvc), auditSvc
}

func TestReducedLuck(t *testing.T) {
	svc, auditSvc := setupTestControl(t)
	ctx := context.Background()

	t.Run("DefaultIsOff", func(t *testing.T) {
		on, err := svc.HasReducedLuck(ctx, "p1")
		if err != nil {
			t.Fatalf("HasReducedLuck failed: %v", err)
		}
		if on {
			t.Error("Expected reduced luck off by default")
		}
	})

	t.Run("SetAndClear", func(t *testing.T) {
		if err := svc.SetReducedLuck(ctx, "p1", "admin"); err != nil {
			t.Fatalf("SetReducedLuck failed: %v", err)
		}
		on, _ := svc.HasReducedLuck(ctx, "p1")
		if !on {
			t.Error("Expected reduced luck on")
		}

		players, _ := svc.ReducedLuckPlayers(ctx)
		if len(players) != 1 || players[0] != "p1" {
			t.Errorf("Unexpected flagged players: %v", players)
		}

		if err := svc.ClearReducedLuck(ctx, "p1", "admin"); err != nil {
			t.Fatalf("ClearReducedLuck failed: %v", err)
		}
		on, _ = svc.HasReducedLuck(ctx, "p1")
		if on {
			t.Error("Expected reduced luck off after clear")
		}
	})

	t.Run("ChangesAreAudited", func(t *testing.T) {
		events, _ := auditSvc.GetEvents(ctx, audit.EventFilter{PlayerID: "p1"})
		if len(events) != 2 {
			t.Fatalf("Expected 2 audit events, got %d", len(events))
		}
		if events[0].Type != audit.EventReducedLuckCleared || events[1].Type != audit.EventReducedLuckSet {
			t.Errorf("Unexpected event order: %s, %s", events[0].Type, events[1].Type)
		}
	})

	t.Run("RejectsEmptyPlayer", func(t *testing.T) {
		if err := svc.SetReducedLuck(ctx, "", "admin"); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Expected ErrInvalidID, got %v", err)
		}
	})
}

func TestGameControl(t *testing.T) {
	svc, _ := setupTestControl(t)
	ctx := context.Background()

	t.Run("EnabledByDefault", func(t *testing.T) {
		for _, g := range domain.AllGames {
			if err := svc.CheckGame(ctx, g); err != nil {
				t.Errorf("Expected %s enabled, got %v", g, err)
			}
		}
	})

	t.Run("DisableOnlyAffectsThatGame", func(t *testing.T) {
		if err := svc.DisableGame(ctx, domain.GameRoulette, "maintenance", "admin"); err != nil {
			t.Fatalf("DisableGame failed: %v", err)
		}
		if err := svc.CheckGame(ctx, domain.GameRoulette); !errors.Is(err, ErrGameDisabled) {
			t.Errorf("Expected ErrGameDisabled, got %v", err)
		}
		if err := svc.CheckGame(ctx, domain.GameSlots); err != nil {
			t.Errorf("Expected slots enabled, got %v", err)
		}

		games, _ := svc.DisabledGames(ctx)
		if len(games) != 1 || games[0] != domain.GameRoulette {
			t.Errorf("Unexpected disabled games: %v", games)
		}
	})

	t.Run("Enable", func(t *testing.T) {
		if err := svc.EnableGame(ctx, domain.GameRoulette, "admin"); err != nil {
			t.Fatalf("EnableGame failed: %v", err)
		}
		if err := svc.CheckGame(ctx, domain.GameRoulette); err != nil {
			t.Errorf("Expected roulette enabled, got %v", err)
		}
	})

	t.Run("UnknownGame", func(t *testing.T) {
		if err := svc.DisableGame(ctx, "poker", "", "admin"); !errors.Is(err, ErrUnknownGame) {
			t.Errorf("Expected ErrUnknownGame, got %v", err)
		}
		if err := svc.CheckGame(ctx, "poker"); !errors.Is(err, ErrUnknownGame) {
			t.Errorf("Expected ErrUnknownGame, got %v", err)
		}
	})
}
