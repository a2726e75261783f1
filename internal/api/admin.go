package api

import (
	"net/http"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/domain"
	"github.com/gorilla/mux"
)

type grantRequest struct {
	Amount int64 `json:"amount"`
}

type disableRequest struct {
	Reason string `json:"reason"`
}

// SetReducedLuck handles PUT /admin/reduced-luck/{playerId}
func (h *Handler) SetReducedLuck(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["playerId"]
	if err := h.control.SetReducedLuck(r.Context(), playerID, principalFrom(r.Context()).PlayerID); err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"playerId": playerID, "reducedLuck": true})
}

// ClearReducedLuck handles DELETE /admin/reduced-luck/{playerId}
func (h *Handler) ClearReducedLuck(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["playerId"]
	if err := h.control.ClearReducedLuck(r.Context(), playerID, principalFrom(r.Context()).PlayerID); err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"playerId": playerID, "reducedLuck": false})
}

// ListReducedLuck handles GET /admin/reduced-luck
func (h *Handler) ListReducedLuck(w http.ResponseWriter, r *http.Request) {
	players, err := h.control.ReducedLuckPlayers(r.Context())
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	if players == nil {
		players = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"players": players})
}

// DisableGame handles PUT /admin/games/{game}/disabled. The body is optional.
func (h *Handler) DisableGame(w http.ResponseWriter, r *http.Request) {
	var req disableRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.respondGameError(w, r, err)
			return
		}
	}

	g := domain.GameType(mux.Vars(r)["game"])
	if err := h.control.DisableGame(r.Context(), g, req.Reason, principalFrom(r.Context()).PlayerID); err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"game": g, "disabled": true})
}

// EnableGame handles DELETE /admin/games/{game}/disabled
func (h *Handler) EnableGame(w http.ResponseWriter, r *http.Request) {
	g := domain.GameType(mux.Vars(r)["game"])
	if err := h.control.EnableGame(r.Context(), g, principalFrom(r.Context()).PlayerID); err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"game": g, "disabled": false})
}

// ListDisabledGames handles GET /admin/games/disabled
func (h *Handler) ListDisabledGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.control.DisabledGames(r.Context())
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	if games == nil {
		games = []domain.GameType{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

// GrantCredits handles POST /admin/players/{playerId}/grant
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondGameError(w, r, err)
		return
	}

	playerID := mux.Vars(r)["playerId"]
	balance, err := h.ledger.Grant(r.Context(), playerID, req.Amount, principalFrom(r.Context()).PlayerID)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"playerId": playerID, "balance": balance})
}

// AuditEvents handles GET /admin/audit
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	events, err := h.audit.GetEvents(r.Context(), audit.EventFilter{
		PlayerID: r.URL.Query().Get("playerId"),
		Type:     r.URL.Query().Get("type"),
		Limit:    int(limit),
	})
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
