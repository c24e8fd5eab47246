package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oncotarget/engine/pkg/uuid"
)

// Service provides audit logging against the audit_event table. All
// operations are append-only; no updates or deletes are supported.
type Service struct {
	db *sql.DB
}

// NewService creates a new audit service backed by db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Log inserts a new audit event. This is the only way to create audit
// events — there is no update or delete path.
func (s *Service) Log(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewV7().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	details := normalizeJSON(event.Details, []byte("{}"))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ActorID, string(event.ActorType), event.Action,
		event.EntityType, event.EntityID, string(details), string(event.Outcome),
		event.TraceID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: log event: %w", err)
	}
	return nil
}

// LogWithDetails is a convenience helper for the common case of structured
// change details.
func (s *Service) LogWithDetails(
	ctx context.Context,
	actorID string,
	actorType ActorType,
	action string,
	entityType *string,
	entityID *string,
	details *EventDetails,
	outcome Outcome,
) error {
	var detailsJSON json.RawMessage
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("audit: marshal details: %w", err)
		}
	}

	return s.Log(ctx, &AuditEvent{
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		Outcome:    outcome,
	})
}

// GetByID retrieves a single audit event by ID.
func (s *Service) GetByID(ctx context.Context, id string) (*AuditEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event WHERE id = ?`, id)
	return scanAuditEvent(row)
}

// ListByActor retrieves the most recent audit events for a specific actor.
func (s *Service) ListByActor(ctx context.Context, actorID string, limit int) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event WHERE actor_id = ? ORDER BY created_at DESC LIMIT ?`, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list by actor: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

// ListByEntity retrieves audit events for a specific entity.
func (s *Service) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC LIMIT ?`,
		entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list by entity: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

// ListByOutcome retrieves audit events filtered by outcome.
func (s *Service) ListByOutcome(ctx context.Context, outcome Outcome, limit, offset int) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event WHERE outcome = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		string(outcome), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit: list by outcome: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

// ListByAction retrieves audit events filtered by action.
func (s *Service) ListByAction(ctx context.Context, action string, limit, offset int) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event WHERE action = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		action, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit: list by action: %w", err)
	}
	defer rows.Close()
	return scanAuditEvents(rows)
}

func scanAuditEvent(row *sql.Row) (*AuditEvent, error) {
	var e AuditEvent
	var actorType, outcome, details string
	if err := row.Scan(&e.ID, &e.ActorID, &actorType, &e.Action, &e.EntityType, &e.EntityID,
		&details, &outcome, &e.TraceID, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("audit: scan event: %w", err)
	}
	e.ActorType = ActorType(actorType)
	e.Outcome = Outcome(outcome)
	e.Details = json.RawMessage(details)
	return &e, nil
}

func scanAuditEvents(rows *sql.Rows) ([]*AuditEvent, error) {
	var events []*AuditEvent
	for rows.Next() {
		var e AuditEvent
		var actorType, outcome, details string
		if err := rows.Scan(&e.ID, &e.ActorID, &actorType, &e.Action, &e.EntityType, &e.EntityID,
			&details, &outcome, &e.TraceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event row: %w", err)
		}
		e.ActorType = ActorType(actorType)
		e.Outcome = Outcome(outcome)
		e.Details = json.RawMessage(details)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func normalizeJSON(raw json.RawMessage, fallback []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}
