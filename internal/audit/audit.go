// Package audit records significant events: operator flag changes, grants,
// large wins and settlement failures.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/google/uuid"
)

// Event types
const (
	EventAccountCreated     = "account_created"
	EventBalanceGrant       = "balance_grant"
	EventReducedLuckSet     = "reduced_luck_set"
	EventReducedLuckCleared = "reduced_luck_cleared"
	EventGameDisabled       = "game_disabled"
	EventGameEnabled        = "game_enabled"
	EventLargeWin           = "large_win"
	EventSettlementFailure  = "settlement_failure"
	EventRefund             = "refund"
)

// memoryLimit bounds the in-process event buffer used without a database
const memoryLimit = 1000

// Service provides audit logging functionality. Events always produce an
// slog line; they are also persisted when a database is configured and kept
// in a bounded in-memory buffer otherwise.
type Service struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	recent []*domain.AuditEvent
}

// New creates a new audit service. db may be nil.
func New(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger.With("component", "audit")}
}

// LogEvent records a significant event
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.logger.Log(ctx, slogLevel(event.Severity), event.Description,
		"event_id", event.ID,
		"type", event.Type,
		"player_id", deref(event.PlayerID),
		"actor", event.Actor,
	)

	if s.db == nil {
		s.mu.Lock()
		s.recent = append(s.recent, event)
		if len(s.recent) > memoryLimit {
			s.recent = s.recent[len(s.recent)-memoryLimit:]
		}
		s.mu.Unlock()
		return nil
	}

	data := "{}"
	if len(event.Data) > 0 {
		data = string(event.Data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, severity, timestamp, player_id, actor, description, data, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.ID, event.Type, event.Severity, event.Timestamp, event.PlayerID, event.Actor,
		event.Description, data, event.Component)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Log is a convenience method for logging events. Persistence failures are
// logged and returned; callers treat them as non-fatal.
func (s *Service) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...EventOption) error {
	event := &domain.AuditEvent{
		Type:        eventType,
		Severity:    severity,
		Description: description,
		Component:   "arcade",
	}

	if data != nil {
		if jsonData, err := json.Marshal(data); err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	if err := s.LogEvent(ctx, event); err != nil {
		s.logger.Error("audit event not persisted", "type", eventType, "error", err)
		return err
	}
	return nil
}

// EventOption is a functional option for configuring audit events
type EventOption func(*domain.AuditEvent)

// WithPlayer sets the player ID for the event
func WithPlayer(playerID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.PlayerID = &playerID
	}
}

// WithActor records who triggered the event
func WithActor(actor string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Actor = actor
	}
}

// WithComponent sets the component for the event
func WithComponent(component string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Component = component
	}
}

// EventFilter defines criteria for filtering audit events
type EventFilter struct {
	PlayerID string
	Type     string
	Limit    int
}

// GetEvents retrieves audit events, newest first
func (s *Service) GetEvents(ctx context.Context, filter EventFilter) ([]*domain.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	if s.db == nil {
		return s.recentEvents(filter, limit), nil
	}

	query := `SELECT id, type, severity, timestamp, player_id, actor, description, data, component
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter.PlayerID != "" {
		query += fmt.Sprintf(" AND player_id = $%d", paramIdx)
		args = append(args, filter.PlayerID)
		paramIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", paramIdx)
		args = append(args, filter.Type)
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", paramIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var playerID sql.NullString
		var data string

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp,
			&playerID, &event.Actor, &event.Description, &data, &event.Component)
		if err != nil {
			return nil, err
		}

		if playerID.Valid {
			event.PlayerID = &playerID.String
		}
		if data != "" {
			event.Data = json.RawMessage(data)
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

func (s *Service) recentEvents(filter EventFilter, limit int) []*domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*domain.AuditEvent
	for i := len(s.recent) - 1; i >= 0 && len(events) < limit; i-- {
		e := s.recent[i]
		if filter.PlayerID != "" && deref(e.PlayerID) != filter.PlayerID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		events = append(events, e)
	}
	return events
}

func slogLevel(sev domain.EventSeverity) slog.Level {
	switch sev {
	case domain.SeverityWarning:
		return slog.LevelWarn
	case domain.SeverityError, domain.SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
