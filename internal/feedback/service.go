package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oncotarget/engine/internal/approval"
	"github.com/oncotarget/engine/pkg/uuid"
)

// Service collects feedback metrics, runs the weight-update proposal
// algorithm, and gates application behind internal/approval (§4.8).
type Service struct {
	db        *sql.DB
	approvals *approval.Service
	cron      *cron.Cron
}

// NewService builds a feedback Service. approvals may be constructed with
// approval.NewService(db, nil) by the caller.
func NewService(db *sql.DB, approvals *approval.Service) *Service {
	return &Service{db: db, approvals: approvals, cron: cron.New()}
}

// StartScheduled registers the weekly metric-collection job (§4.8:
// "scheduled weekly plus event-driven on adapter releases") and starts the
// cron runner. collect is invoked with a background context on each tick.
func (s *Service) StartScheduled(collect func(ctx context.Context)) error {
	_, err := s.cron.AddFunc("0 3 * * 0", func() {
		collect(context.Background())
	})
	if err != nil {
		return fmt.Errorf("feedback: schedule weekly collection: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner, waiting for any in-flight job to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RecordEvent appends a metric observation to the FeedbackEvent log (§3).
func (s *Service) RecordEvent(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewV7().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_event (
			id, event_type, metric_name, metric_value, gene_entity_id,
			cancer_entity_id, evidence_source, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.EventType), string(e.MetricName), e.MetricValue,
		e.GeneEntityID, e.CancerEntityID, e.EvidenceSource, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("feedback: record event: %w", err)
	}
	return nil
}

// ProposeInput carries what CreateProposal needs to run the Bayesian-
// bounded update algorithm and estimate ranking impact.
type ProposeInput struct {
	CurrentWeights       map[string]float64
	ComponentCorrelations map[string]float64
	TriggeringMetrics    map[string]float64
	Trigger              string
	PreviousRanking      []string // gene_entity_id, best first, under CurrentWeights
	ProjectedRanking     []string // gene_entity_id, best first, under the proposed weights
	ApproverID           string
	RequestedBy          string
}

// CreateProposal computes a proposed weight vector, persists the proposal
// row, and opens a human-gated approval request — the proposal is never
// applied until that request is approved (§4.8 Human gate).
func (s *Service) CreateProposal(ctx context.Context, in ProposeInput) (*Proposal, error) {
	proposedWeights := computeWeightUpdate(in.CurrentWeights, in.ComponentCorrelations)
	delta := deltaSummary(in.CurrentWeights, proposedWeights)

	proposal := &Proposal{
		ID:                uuid.NewV7().String(),
		PreviousWeights:   in.CurrentWeights,
		ProposedWeights:   proposedWeights,
		Trigger:           in.Trigger,
		AlgorithmTag:      algorithmTag,
		TriggeringMetrics: in.TriggeringMetrics,
		ProjectedImpact:   computeProjectedImpact(in.PreviousRanking, in.ProjectedRanking),
		CreatedAt:         time.Now().UTC(),
	}

	prevJSON, err := json.Marshal(proposal.PreviousWeights)
	if err != nil {
		return nil, err
	}
	proposedJSON, err := json.Marshal(proposal.ProposedWeights)
	if err != nil {
		return nil, err
	}
	metricsJSON, err := json.Marshal(proposal.TriggeringMetrics)
	if err != nil {
		return nil, err
	}
	impactJSON, err := json.Marshal(proposal.ProjectedImpact)
	if err != nil {
		return nil, err
	}
	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_update_proposal (
			id, previous_weights_json, proposed_weights_json, trigger,
			algorithm_tag, triggering_metrics_json, projected_impact_json,
			approval_request_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`, proposal.ID, string(prevJSON), string(proposedJSON), proposal.Trigger,
		proposal.AlgorithmTag, string(metricsJSON), string(impactJSON), proposal.CreatedAt); err != nil {
		return nil, fmt.Errorf("feedback: insert proposal: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"proposal_id":      proposal.ID,
		"delta_summary":    delta,
		"triggering_metrics": proposal.TriggeringMetrics,
	})
	if err != nil {
		return nil, err
	}

	req, err := s.approvals.CreateRequest(ctx, approval.CreateRequestInput{
		RequestedBy: in.RequestedBy,
		ApproverID:  in.ApproverID,
		Action:      "approve_weight_update",
		Payload:     payload,
		ExpiresAt:   time.Now().UTC().Add(7 * 24 * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("feedback: create approval request: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE weight_update_proposal SET approval_request_id = ? WHERE id = ?
	`, req.ID, proposal.ID); err != nil {
		return nil, fmt.Errorf("feedback: link approval request: %w", err)
	}
	proposal.ApprovalRequestID = &req.ID

	return proposal, nil
}

// ApplyProposal appends a WeightUpdate row once proposalID's approval
// request has been approved, and re-queues every currently-scored
// (gene, cancer) pair for recomputation under the new weights (§4.8).
func (s *Service) ApplyProposal(ctx context.Context, proposalID, approvedBy string) error {
	var previousJSON, proposedJSON, approvalRequestID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT previous_weights_json, proposed_weights_json, approval_request_id
		FROM weight_update_proposal WHERE id = ?
	`, proposalID).Scan(&previousJSON, &proposedJSON, &approvalRequestID)
	if err != nil {
		return fmt.Errorf("feedback: lookup proposal: %w", err)
	}
	if !approvalRequestID.Valid {
		return fmt.Errorf("feedback: proposal %s has no approval request", proposalID)
	}

	var approvalStatus, approvedByOnRequest string
	err = s.db.QueryRowContext(ctx, `
		SELECT status, COALESCE(decided_by, '') FROM approval_request WHERE id = ?
	`, approvalRequestID.String).Scan(&approvalStatus, &approvedByOnRequest)
	if err != nil {
		return fmt.Errorf("feedback: lookup approval request: %w", err)
	}
	if approvalStatus != string(approval.StatusApproved) {
		return fmt.Errorf("feedback: proposal %s is not approved (status=%s)", proposalID, approvalStatus)
	}
	if approvedByOnRequest != approvedBy {
		return fmt.Errorf("feedback: proposal %s was approved by a different operator", proposalID)
	}

	var delta map[string]float64
	var prev, proposed map[string]float64
	if err := json.Unmarshal([]byte(previousJSON.String), &prev); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(proposedJSON.String), &proposed); err != nil {
		return err
	}
	delta = deltaSummary(prev, proposed)
	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("feedback: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO weight_update (
			id, previous_weights_json, new_weights_json, trigger,
			algorithm_tag, approved_by, delta_summary_json, applied_at
		) VALUES (?, ?, ?, 'weight_update_proposal', ?, ?, ?, ?)
	`, uuid.NewV7().String(), previousJSON.String, proposedJSON.String,
		algorithmTag, approvedBy, string(deltaJSON), time.Now().UTC()); err != nil {
		return fmt.Errorf("feedback: insert weight_update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recompute_queue (gene_entity_id, cancer_entity_id, reason, enqueued_at)
		SELECT gene_entity_id, cancer_entity_id, 'weight_update', ?
		FROM target_score WHERE is_current = 1
		ON CONFLICT (gene_entity_id, cancer_entity_id) DO UPDATE SET
			reason = excluded.reason, enqueued_at = excluded.enqueued_at
	`, time.Now().UTC()); err != nil {
		return fmt.Errorf("feedback: requeue current scores: %w", err)
	}

	return tx.Commit()
}
