package handlers

import (
	"net/http"

	"github.com/oncotarget/engine/internal/scoring"
)

// ScoringHandler exposes the composite scoring recompute contract (§4.7).
type ScoringHandler struct {
	scores *scoring.Service
}

// NewScoringHandler builds a ScoringHandler backed by scores.
func NewScoringHandler(scores *scoring.Service) *ScoringHandler {
	return &ScoringHandler{scores: scores}
}

type recomputeRequest struct {
	CancerEntityID          string `json:"cancer_entity_id"`
	AllowHardExclusionOptIn bool   `json:"allow_hard_exclusion_opt_in"`
}

// Recompute handles POST /api/v1/scoring/recompute: rescores every candidate
// gene in the cancer cohort and returns the new TargetScore rows.
func (h *ScoringHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CancerEntityID == "" {
		writeError(w, http.StatusBadRequest, "cancer_entity_id is required")
		return
	}

	scores, err := h.scores.ScoreCohort(r.Context(), req.CancerEntityID, req.AllowHardExclusionOptIn)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, scores)
}
