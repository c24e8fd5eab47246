package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oncotarget/engine/internal/ingest"
)

// DiscoveryHandler exposes the ingestion pipeline's run_status(id) contract
// (§6): start a discovery run, poll its stage.
type DiscoveryHandler struct {
	runs *ingest.Service
}

// NewDiscoveryHandler builds a DiscoveryHandler backed by runs.
func NewDiscoveryHandler(runs *ingest.Service) *DiscoveryHandler {
	return &DiscoveryHandler{runs: runs}
}

// startDiscoveryRequest is the wire shape of a DiscoveryRequest — dates are
// RFC3339 strings on the wire, *time.Time internally.
type startDiscoveryRequest struct {
	Gene       string   `json:"gene"`
	Mutation   string   `json:"mutation"`
	Cancer     string   `json:"cancer"`
	Aliases    []string `json:"aliases"`
	DateFrom   string   `json:"date_from"`
	DateTo     string   `json:"date_to"`
	MaxResults int      `json:"max_results"`
	Sources    []string `json:"sources"`
}

type startDiscoveryResponse struct {
	RunID string `json:"run_id"`
}

type runStatusResponse struct {
	ID      string `json:"id"`
	Stage   string `json:"stage"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

// Start handles POST /api/v1/discovery: validates the request, starts the
// pipeline run asynchronously, and returns its run id.
func (h *DiscoveryHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startDiscoveryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Gene == "" {
		writeError(w, http.StatusBadRequest, "gene is required")
		return
	}

	in := ingest.DiscoveryRequest{
		Gene:       req.Gene,
		Mutation:   req.Mutation,
		Cancer:     req.Cancer,
		Aliases:    req.Aliases,
		MaxResults: req.MaxResults,
		Sources:    req.Sources,
	}
	if t, ok := parseDate(req.DateFrom); ok {
		in.DateFrom = &t
	}
	if t, ok := parseDate(req.DateTo); ok {
		in.DateTo = &t
	}

	runID, err := h.runs.StartRun(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, startDiscoveryResponse{RunID: runID})
}

// Status handles GET /api/v1/discovery/{id}: run_status(id).
func (h *DiscoveryHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	status, err := h.runs.RunStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runStatusResponse{
		ID: status.ID, Stage: string(status.Stage), Count: status.Count, Message: status.Message,
	})
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
