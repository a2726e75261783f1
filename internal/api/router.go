package api

import (
	"net/http"
	"strings"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

	// Apply global middleware
	r.Use(h.RecoveryMiddleware)
	r.Use(CORSMiddleware)
	r.Use(h.LoggingMiddleware)

	// Public routes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
	if h.hub != nil {
		r.Handle("/ws/wins", h.hub).Methods(http.MethodGet)
	}
	r.HandleFunc("/{game:"+gamePattern()+"}/info", h.GameInfo).Methods(http.MethodGet)

	// Operator routes
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(h.AuthMiddleware, h.AdminMiddleware)

	admin.HandleFunc("/reduced-luck", h.ListReducedLuck).Methods(http.MethodGet)
	admin.HandleFunc("/reduced-luck/{playerId}", h.SetReducedLuck).Methods(http.MethodPut)
	admin.HandleFunc("/reduced-luck/{playerId}", h.ClearReducedLuck).Methods(http.MethodDelete)
	admin.HandleFunc("/games/disabled", h.ListDisabledGames).Methods(http.MethodGet)
	admin.HandleFunc("/games/{game}/disabled", h.DisableGame).Methods(http.MethodPut)
	admin.HandleFunc("/games/{game}/disabled", h.EnableGame).Methods(http.MethodDelete)
	admin.HandleFunc("/players/{playerId}/grant", h.GrantCredits).Methods(http.MethodPost)
	admin.HandleFunc("/audit", h.AuditEvents).Methods(http.MethodGet)

	// Player routes
	protected := r.PathPrefix("").Subrouter()
	protected.Use(h.AuthMiddleware)

	protected.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
	protected.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
	protected.HandleFunc("/ledger", h.GetLedger).Methods(http.MethodGet)

	protected.HandleFunc("/slots", h.PlaySlots).Methods(http.MethodPost)
	protected.HandleFunc("/roulette", h.PlayRoulette).Methods(http.MethodPost)
	protected.HandleFunc("/luckywheel", h.PlayWheel).Methods(http.MethodPost)

	protected.HandleFunc("/chickencross", h.Chicken).Methods(http.MethodPost)
	protected.HandleFunc("/chickencross", h.GetChicken).Methods(http.MethodGet)
	protected.HandleFunc("/chickencross/active", h.ActiveChicken).Methods(http.MethodGet)

	protected.HandleFunc("/coinflip", h.Coinflip).Methods(http.MethodPost)
	protected.HandleFunc("/coinflip", h.ListChallenges).Methods(http.MethodGet)

	return r
}

func gamePattern() string {
	names := make([]string, len(domain.AllGames))
	for i, g := range domain.AllGames {
		names[i] = string(g)
	}
	return strings.Join(names, "|")
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "resource not found")
}
