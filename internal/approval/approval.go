// Package approval implements the human-gated decision flow required
// before a weight-update proposal can be applied (§4.8) or an operator
// action needs sign-off. A request is created pending, then approved or
// denied exactly once by its named approver, or lapses to expired.
package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/oncotarget/engine/internal/audit"
	"github.com/oncotarget/engine/pkg/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

var (
	ErrNotFound      = errors.New("approval request not found")
	ErrForbidden     = errors.New("approval request does not belong to approver")
	ErrAlreadyClosed = errors.New("approval request is already decided")
	ErrExpired       = errors.New("approval request is expired")
	ErrInvalidDecision = errors.New("invalid approval decision")
)

// Request is a single human-gated approval request.
type Request struct {
	ID           string
	RequestedBy  string
	ApproverID   string
	DecidedBy    *string
	Action       string
	ResourceType *string
	ResourceID   *string
	Payload      json.RawMessage
	Reason       *string
	Status       Status
	ExpiresAt    time.Time
	DecidedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateRequestInput is the input to CreateRequest.
type CreateRequestInput struct {
	RequestedBy  string
	ApproverID   string
	Action       string
	ResourceType *string
	ResourceID   *string
	Payload      json.RawMessage
	Reason       *string
	ExpiresAt    time.Time
}

// Service manages the lifecycle of approval requests.
type Service struct {
	db    *sql.DB
	audit *audit.Service
}

// NewService creates a new approval service backed by db. If auditSvc is
// nil, a default audit.Service against the same db is constructed.
func NewService(db *sql.DB, auditSvc *audit.Service) *Service {
	if auditSvc == nil {
		auditSvc = audit.NewService(db)
	}
	return &Service{db: db, audit: auditSvc}
}

// CreateRequest inserts a new pending approval request — for example, one
// produced by a weight-update proposal awaiting an operator's sign-off.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (*Request, error) {
	if len(input.Payload) == 0 {
		input.Payload = json.RawMessage(`{}`)
	}

	now := time.Now().UTC()
	req := &Request{
		ID:           uuid.NewV7().String(),
		RequestedBy:  input.RequestedBy,
		ApproverID:   input.ApproverID,
		Action:       input.Action,
		ResourceType: input.ResourceType,
		ResourceID:   input.ResourceID,
		Payload:      input.Payload,
		Reason:       input.Reason,
		Status:       StatusPending,
		ExpiresAt:    input.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_request (
			id, requested_by, approver_id, decided_by,
			action, resource_type, resource_id, payload, reason,
			status, expires_at, decided_at, created_at, updated_at
		) VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`,
		req.ID, req.RequestedBy, req.ApproverID, req.Action,
		req.ResourceType, req.ResourceID, []byte(req.Payload), req.Reason,
		string(req.Status), req.ExpiresAt, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	_ = s.audit.LogWithDetails(
		ctx, req.RequestedBy, audit.ActorTypeUser, "approval.requested",
		req.ResourceType, req.ResourceID,
		&audit.EventDetails{Metadata: map[string]any{"approval_id": req.ID, "action": req.Action}},
		audit.OutcomeSuccess,
	)

	return req, nil
}

// DecideRequest records an approve/deny decision for id made by decidedBy,
// who must be the request's named approver.
func (s *Service) DecideRequest(ctx context.Context, id, decision, decidedBy string) error {
	status := decisionToStatus(decision)
	if status == "" {
		return ErrInvalidDecision
	}

	req, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}

	if err := validateDecision(req, decidedBy); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.expireIfNeeded(ctx, req, id, decidedBy, now); err != nil {
		return err
	}

	return s.applyDecision(ctx, req, id, decidedBy, status, now)
}

// GetPendingApprovals returns the pending requests assigned to approverID,
// lazily expiring any whose deadline has passed.
func (s *Service) GetPendingApprovals(ctx context.Context, approverID string) ([]*Request, error) {
	now := time.Now().UTC()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requested_by, approver_id, decided_by,
		       action, resource_type, resource_id, payload, reason,
		       status, expires_at, decided_at, created_at, updated_at
		FROM approval_request
		WHERE approver_id = ? AND status = ?
		ORDER BY created_at ASC
	`, approverID, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, expiredIDs, err := collectPending(rows, now)
	if err != nil {
		return nil, err
	}

	if err := s.markExpired(ctx, expiredIDs, now); err != nil {
		return nil, err
	}

	return items, nil
}

func validateDecision(req *Request, decidedBy string) error {
	if req.ApproverID != decidedBy {
		return ErrForbidden
	}
	if req.Status == StatusExpired {
		return ErrExpired
	}
	if req.Status != StatusPending {
		return ErrAlreadyClosed
	}
	return nil
}

func (s *Service) expireIfNeeded(ctx context.Context, req *Request, id, decidedBy string, now time.Time) error {
	if req.ExpiresAt.After(now) {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE approval_request
		SET status = ?, decided_at = ?, updated_at = ?, decided_by = ?
		WHERE id = ?
	`, string(StatusExpired), now, now, decidedBy, id); err != nil {
		return err
	}

	_ = s.audit.LogWithDetails(
		ctx, decidedBy, audit.ActorTypeUser, "approval.expired",
		req.ResourceType, req.ResourceID,
		&audit.EventDetails{Metadata: map[string]any{"approval_id": id}},
		audit.OutcomeSuccess,
	)

	return ErrExpired
}

func (s *Service) applyDecision(ctx context.Context, req *Request, id, decidedBy string, status Status, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE approval_request
		SET status = ?, decided_by = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND approver_id = ?
	`, string(status), decidedBy, now, now, id, string(StatusPending), decidedBy)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlreadyClosed
	}

	action := "approval.denied"
	if status == StatusApproved {
		action = "approval.approved"
	}

	_ = s.audit.LogWithDetails(
		ctx, decidedBy, audit.ActorTypeUser, action,
		req.ResourceType, req.ResourceID,
		&audit.EventDetails{Metadata: map[string]any{"approval_id": id}},
		audit.OutcomeSuccess,
	)

	return nil
}

func collectPending(rows *sql.Rows, now time.Time) ([]*Request, []string, error) {
	items := make([]*Request, 0)
	expiredIDs := make([]string, 0)
	for rows.Next() {
		item, err := scanRequest(rows)
		if err != nil {
			return nil, nil, err
		}
		if !item.ExpiresAt.After(now) {
			expiredIDs = append(expiredIDs, item.ID)
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return items, expiredIDs, nil
}

func (s *Service) markExpired(ctx context.Context, expiredIDs []string, now time.Time) error {
	for _, id := range expiredIDs {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE approval_request
			SET status = ?, updated_at = ?
			WHERE id = ?
		`, string(StatusExpired), now, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) getByID(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, requested_by, approver_id, decided_by,
		       action, resource_type, resource_id, payload, reason,
		       status, expires_at, decided_at, created_at, updated_at
		FROM approval_request
		WHERE id = ?
	`, id)

	item, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(scan rowScanner) (*Request, error) {
	var (
		item         Request
		decidedByRaw sql.NullString
		resourceType sql.NullString
		resourceID   sql.NullString
		reason       sql.NullString
		payload      []byte
		decidedAtRaw sql.NullTime
	)

	if err := scan.Scan(
		&item.ID,
		&item.RequestedBy,
		&item.ApproverID,
		&decidedByRaw,
		&item.Action,
		&resourceType,
		&resourceID,
		&payload,
		&reason,
		&item.Status,
		&item.ExpiresAt,
		&decidedAtRaw,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	item.Payload = payload
	if decidedByRaw.Valid {
		v := decidedByRaw.String
		item.DecidedBy = &v
	}
	if resourceType.Valid {
		v := resourceType.String
		item.ResourceType = &v
	}
	if resourceID.Valid {
		v := resourceID.String
		item.ResourceID = &v
	}
	if reason.Valid {
		v := reason.String
		item.Reason = &v
	}
	if decidedAtRaw.Valid {
		v := decidedAtRaw.Time
		item.DecidedAt = &v
	}

	return &item, nil
}

func decisionToStatus(decision string) Status {
	switch decision {
	case "approve", "approved":
		return StatusApproved
	case "deny", "denied":
		return StatusDenied
	default:
		return ""
	}
}
