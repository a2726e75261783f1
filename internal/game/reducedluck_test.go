package game

import (
	"context"
	"testing"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/rng"
)

const riggedPlays = 1000

func TestReducedLuckNeverWins(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, string) {
		env := newTestEnv(t, rng.New())
		p := env.player(t, "unlucky")
		env.fund(t, p, 10_000_000)
		if err := env.control.SetReducedLuck(ctx, p, "ops"); err != nil {
			t.Fatalf("Failed to flag player: %v", err)
		}
		return env, p
	}

	t.Run("Slots", func(t *testing.T) {
		env, p := setup(t)
		for i := 0; i < riggedPlays; i++ {
			res, err := env.engine.PlaySlots(ctx, p, 100)
			if err != nil {
				t.Fatalf("Play failed: %v", err)
			}
			if res.Won || res.Payout != 0 {
				t.Fatalf("Flagged player won: %+v", res)
			}
		}
	})

	t.Run("Roulette", func(t *testing.T) {
		env, p := setup(t)
		bets := []RouletteBet{{Type: BetRed}, {Type: BetHigh}, {Type: BetNumber, Number: intp(0)}}
		for i := 0; i < riggedPlays; i++ {
			res, err := env.engine.PlayRoulette(ctx, p, 100, bets[i%len(bets)])
			if err != nil {
				t.Fatalf("Play failed: %v", err)
			}
			if res.Won || res.Payout != 0 {
				t.Fatalf("Flagged player won: %+v", res)
			}
		}
	})

	t.Run("LuckyWheel", func(t *testing.T) {
		env, p := setup(t)
		for i := 0; i < riggedPlays; i++ {
			res, err := env.engine.PlayWheel(ctx, p, 100)
			if err != nil {
				t.Fatalf("Play failed: %v", err)
			}
			if res.Won || res.Payout != 0 {
				t.Fatalf("Flagged player won: %+v", res)
			}
		}
	})

	t.Run("ChickenCross", func(t *testing.T) {
		env, p := setup(t)
		for i := 0; i < riggedPlays; i++ {
			start, err := env.engine.StartChicken(ctx, p, 100)
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			res, err := env.engine.AdvanceChicken(ctx, p, start.Session.Seed)
			if err != nil {
				t.Fatalf("Advance failed: %v", err)
			}
			if res.Session.State != domain.SessionLost {
				t.Fatalf("Flagged player survived: %+v", res.Session)
			}
		}
	})

	t.Run("Coinflip", func(t *testing.T) {
		env, p := setup(t)
		rival := env.player(t, "rival")
		env.fund(t, rival, 10_000_000)

		for i := 0; i < riggedPlays; i++ {
			initiator, accepter := p, rival
			if i%2 == 1 {
				initiator, accepter = rival, p
			}
			created, err := env.engine.CreateChallenge(ctx, initiator, 100)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			res, err := env.engine.AcceptChallenge(ctx, accepter, created.Challenge.ID)
			if err != nil {
				t.Fatalf("Accept failed: %v", err)
			}
			if res.Challenge.WinnerID == p {
				t.Fatalf("Flagged player won challenge %s", created.Challenge.ID)
			}
		}
	})

	t.Run("ClearedPlayerCanWin", func(t *testing.T) {
		env, p := setup(t)
		if err := env.control.ClearReducedLuck(ctx, p, "ops"); err != nil {
			t.Fatalf("Failed to clear flag: %v", err)
		}
		wins := 0
		for i := 0; i < riggedPlays; i++ {
			res, err := env.engine.PlayRoulette(ctx, p, 100, RouletteBet{Type: BetRed})
			if err != nil {
				t.Fatalf("Play failed: %v", err)
			}
			if res.Won {
				wins++
			}
		}
		if wins == 0 {
			t.Error("Expected some wins after clearing the flag")
		}
	})
}
