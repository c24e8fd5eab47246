package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oncotarget/engine/internal/feedback"
)

// FeedbackHandler exposes the weight-update proposal/apply contract (§4.8).
type FeedbackHandler struct {
	feedback *feedback.Service
}

// NewFeedbackHandler builds a FeedbackHandler backed by fb.
func NewFeedbackHandler(fb *feedback.Service) *FeedbackHandler {
	return &FeedbackHandler{feedback: fb}
}

type proposeRequest struct {
	CurrentWeights        map[string]float64 `json:"current_weights"`
	ComponentCorrelations map[string]float64  `json:"component_correlations"`
	TriggeringMetrics     map[string]float64  `json:"triggering_metrics"`
	Trigger               string              `json:"trigger"`
	PreviousRanking       []string            `json:"previous_ranking"`
	ProjectedRanking      []string            `json:"projected_ranking"`
	ApproverID            string              `json:"approver_id"`
	RequestedBy           string              `json:"requested_by"`
}

type applyRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// CreateProposal handles POST /api/v1/feedback/proposals: runs the
// weight-update algorithm and opens a gated approval request.
func (h *FeedbackHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ApproverID == "" || req.RequestedBy == "" {
		writeError(w, http.StatusBadRequest, "approver_id and requested_by are required")
		return
	}

	proposal, err := h.feedback.CreateProposal(r.Context(), feedback.ProposeInput{
		CurrentWeights:        req.CurrentWeights,
		ComponentCorrelations: req.ComponentCorrelations,
		TriggeringMetrics:     req.TriggeringMetrics,
		Trigger:               req.Trigger,
		PreviousRanking:       req.PreviousRanking,
		ProjectedRanking:      req.ProjectedRanking,
		ApproverID:            req.ApproverID,
		RequestedBy:           req.RequestedBy,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, proposal)
}

// ApplyProposal handles POST /api/v1/feedback/proposals/{id}/apply: applies
// a previously approved proposal and re-queues affected scores.
func (h *FeedbackHandler) ApplyProposal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "proposal id is required")
		return
	}

	var req applyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ApprovedBy == "" {
		writeError(w, http.StatusBadRequest, "approved_by is required")
		return
	}

	if err := h.feedback.ApplyProposal(r.Context(), id, req.ApprovedBy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Applied bool `json:"applied"`
	}{Applied: true})
}
