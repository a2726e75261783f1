// Package api exposes the wagering engine over JSON/HTTP
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alexbotov/arcade/internal/audit"
	"github.com/alexbotov/arcade/internal/auth"
	"github.com/alexbotov/arcade/internal/control"
	"github.com/alexbotov/arcade/internal/game"
	"github.com/alexbotov/arcade/internal/ledger"
	"github.com/alexbotov/arcade/internal/metrics"
	"github.com/alexbotov/arcade/internal/rng"
)

const maxBodyBytes = 1 << 16

var errBadRequest = errors.New("bad request")

// Dependencies wires a Handler
type Dependencies struct {
	Auth    *auth.Service
	Ledger  *ledger.Service
	Engine  *game.Engine
	Control *control.Service
	Audit   *audit.Service
	RNG     *rng.Service
	Metrics *metrics.Metrics
	// Hub serves the live-win websocket feed; nil disables the route
	Hub    http.Handler
	Logger *slog.Logger
}

// Handler contains all HTTP handlers
type Handler struct {
	auth    *auth.Service
	ledger  *ledger.Service
	engine  *game.Engine
	control *control.Service
	audit   *audit.Service
	rng     *rng.Service
	metrics *metrics.Metrics
	hub     http.Handler
	logger  *slog.Logger
}

// New creates a new API handler
func New(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		auth:    deps.Auth,
		ledger:  deps.Ledger,
		engine:  deps.Engine,
		control: deps.Control,
		audit:   deps.Audit,
		rng:     deps.RNG,
		metrics: deps.Metrics,
		hub:     deps.Hub,
		logger:  logger.With("component", "api"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondGameError translates a domain error into a status code. Anything
// unrecognised is logged and reported as a generic 500.
func (h *Handler) respondGameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, game.ErrInvalidBet),
		errors.Is(err, game.ErrInvalidBetType),
		errors.Is(err, game.ErrInvalidNumber),
		errors.Is(err, game.ErrInvalidIntent),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, control.ErrInvalidID):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrGameDisabled):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, game.ErrChallengeNotFound),
		errors.Is(err, ledger.ErrPlayerNotFound),
		errors.Is(err, control.ErrUnknownGame):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrSessionActive),
		errors.Is(err, game.ErrSessionClosed),
		errors.Is(err, game.ErrSelfAccept),
		errors.Is(err, game.ErrChallengeTaken):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after request body", errBadRequest)
	}
	return nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int64, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, true, nil
}

// === Health & Info ===

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.rng.HealthCheck()
	status := http.StatusOK
	state := "healthy"
	if err != nil || !result.Healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status": state,
		"rng":    result,
	})
}

// === Account ===

// GetBalance handles GET /balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())

	balance, err := h.ledger.GetBalance(r.Context(), p.PlayerID)
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"playerId": p.PlayerID,
		"balance":  balance,
	})
}

// GetHistory handles GET /history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	rounds, err := h.engine.History(r.Context(), principalFrom(r.Context()).PlayerID, int(limit))
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"rounds": rounds})
}

// GetLedger handles GET /ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	entries, err := h.ledger.Entries(r.Context(), principalFrom(r.Context()).PlayerID, int(limit))
	if err != nil {
		h.respondGameError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
