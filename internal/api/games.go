package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/game"
	"github.com/gorilla/mux"
)

const (
	intentMove     = "MOVE"
	intentCashout  = "CASHOUT"
	intentCreate   = "CREATE"
	intentAccept   = "ACCEPT"
	intentCancel   = "CANCEL"
	defaultListCap = 50
)

type betRequest struct {
	Bet int64 `json:"bet"`
}

type rouletteRequest struct {
	Bet     int64        `json:"bet"`
	BetType game.BetType `json:"betType"`
	Number  *int         `json:"number,omitempty"`
}

type chickenRequest struct {
	Intent string `json:"intent"`
	Seed   *int64 `json:"seed,omitempty"`
	Bet    *int64 `json:"bet,omitempty"`
}

type coinflipRequest struct {
	Intent      string `json:"intent"`
	Bet         *int64 `json:"bet,omitempty"`
	ChallengeID string `json:"challengeId,omitempty"`
}

// GameInfo handles GET /{game}/info
func (h *Handler) GameInfo(w http.ResponseWriter, r *http.Request) {
	g := domain.GameType(mux.Vars(r)["game"])
	info, err := h.engine.Info(g)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// PlaySlots handles POST /slots
func (h *Handler) PlaySlots(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondGameError(w, r, err)
		return
	}

	result, err := h.engine.PlaySlots(r.Context(), principalFrom(r.Context()).PlayerID, req.Bet)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// PlayRoulette handles POST /roulette
func (h *Handler) PlayRoulette(w http.ResponseWriter, r *http.Request) {
	var req rouletteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondGameError(w, r, err)
		return
	}

	bet := game.RouletteBet{Type: game.ParseBetType(string(req.BetType)), Number: req.Number}
	result, err := h.engine.PlayRoulette(r.Context(), principalFrom(r.Context()).PlayerID, req.Bet, bet)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// PlayWheel handles POST /luckywheel
func (h *Handler) PlayWheel(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondGameError(w, r, err)
		return
	}

	result, err := h.engine.PlayWheel(r.Context(), principalFrom(r.Context()).PlayerID, req.Bet)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Chicken handles POST /chickencross.
//
// MOVE with a bet and no seed starts a session, MOVE with a seed advances it
// and CASHOUT with a seed closes it.
func (h *Handler) Chicken(w http.ResponseWriter, r *http.Request) {
	var req chickenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondGameError(w, r, err)
		return
	}

	ctx := r.Context()
	playerID := principalFrom(ctx).PlayerID

	var result *game.ChickenResult
	var err error
	switch intent := strings.ToUpper(req.Intent); {
	case intent == intentMove && req.Seed == nil && req.Bet != nil:
		result, err = h.engine.StartChicken(ctx, playerID, *req.Bet)
	case intent == intentMove && req.Seed != nil && req.Bet == nil:
		result, err = h.engine.AdvanceChicken(ctx, playerID, *req.Seed)
	case intent == intentCashout && req.Seed != nil && req.Bet == nil:
		result, err = h.engine.CashoutChicken(ctx, playerID, *req.Seed)
	case intent == intentMove:
		err = fmt.Errorf("%w: MOVE takes either a bet or a seed", game.ErrInvalidIntent)
	case intent == intentCashout:
		err = fmt.Errorf("%w: CASHOUT takes a seed", game.ErrInvalidIntent)
	default:
		err = fmt.Errorf("%w: %q", game.ErrInvalidIntent, req.Intent)
	}
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetChicken handles GET /chickencross?seed=N
func (h *Handler) GetChicken(w http.ResponseWriter, r *http.Request) {
	seed, ok, err := queryInt(r, "seed")
	if err == nil && !ok {
		err = fmt.Errorf("%w: seed is required", errBadRequest)
	}
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	result, err := h.engine.ChickenSession(r.Context(), principalFrom(r.Context()).PlayerID, seed)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ActiveChicken handles GET /chickencross/active
func (h *Handler) ActiveChicken(w http.ResponseWriter, r *http.Request) {
	ws, err := h.engine.ActiveChicken(r.Context(), principalFrom(r.Context()).PlayerID)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	resp := map[string]interface{}{"active": ws != nil}
	if ws != nil {
		resp["session"] = ws
	}
	respondJSON(w, http.StatusOK, resp)
}

// Coinflip handles POST /coinflip
func (h *Handler) Coinflip(w http.ResponseWriter, r *http.Request) {
	var req coinflipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondGameError(w, r, err)
		return
	}

	ctx := r.Context()
	playerID := principalFrom(ctx).PlayerID

	var result *game.CoinflipResult
	var err error
	status := http.StatusOK
	switch intent := strings.ToUpper(req.Intent); {
	case intent == intentCreate && req.Bet != nil && req.ChallengeID == "":
		result, err = h.engine.CreateChallenge(ctx, playerID, *req.Bet)
		status = http.StatusCreated
	case intent == intentAccept && req.Bet == nil && req.ChallengeID != "":
		result, err = h.engine.AcceptChallenge(ctx, playerID, req.ChallengeID)
	case intent == intentCancel && req.Bet == nil && req.ChallengeID != "":
		result, err = h.engine.CancelChallenge(ctx, playerID, req.ChallengeID)
	case intent == intentCreate:
		err = fmt.Errorf("%w: CREATE takes a bet", game.ErrInvalidIntent)
	case intent == intentAccept, intent == intentCancel:
		err = fmt.Errorf("%w: %s takes a challengeId", game.ErrInvalidIntent, intent)
	default:
		err = fmt.Errorf("%w: %q", game.ErrInvalidIntent, req.Intent)
	}
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, status, result)
}

// ListChallenges handles GET /coinflip
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = defaultListCap
	}

	challenges, err := h.engine.OpenChallenges(r.Context(), int(limit))
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"challenges": challenges})
}
