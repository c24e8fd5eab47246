package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oncotarget/engine/internal/approval"
)

// ApprovalHandler exposes the human-gated approval queue (§4.8).
type ApprovalHandler struct {
	approvals *approval.Service
}

// NewApprovalHandler builds an ApprovalHandler backed by approvals.
func NewApprovalHandler(approvals *approval.Service) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

type decideRequest struct {
	Decision   string `json:"decision"`
	DecidedBy  string `json:"decided_by"`
}

// Pending handles GET /api/v1/approvals?approver_id=...: lists the pending
// requests assigned to the given approver.
func (h *ApprovalHandler) Pending(w http.ResponseWriter, r *http.Request) {
	approverID := r.URL.Query().Get("approver_id")
	if approverID == "" {
		writeError(w, http.StatusBadRequest, "approver_id is required")
		return
	}

	pending, err := h.approvals.GetPendingApprovals(r.Context(), approverID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, pending)
}

// Decide handles PUT /api/v1/approvals/{id}: approves or denies a request.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "approval id is required")
		return
	}

	var req decideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Decision == "" || req.DecidedBy == "" {
		writeError(w, http.StatusBadRequest, "decision and decided_by are required")
		return
	}

	err := h.approvals.DecideRequest(r.Context(), id, req.Decision, req.DecidedBy)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, struct {
			Decided bool `json:"decided"`
		}{Decided: true})
	case errors.Is(err, approval.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, approval.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, approval.ErrAlreadyClosed), errors.Is(err, approval.ErrExpired), errors.Is(err, approval.ErrInvalidDecision):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
