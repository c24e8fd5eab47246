package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oncotarget/engine/internal/query"
)

// QueryHandler exposes the Query Planner's execute/explain contract (§4.9).
type QueryHandler struct {
	queries *query.Service
}

// NewQueryHandler builds a QueryHandler backed by queries.
func NewQueryHandler(queries *query.Service) *QueryHandler {
	return &QueryHandler{queries: queries}
}

// Execute handles POST /api/v1/queries: runs a Query and returns its Bundle.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var q query.Query
	if !decodeBody(w, r, &q) {
		return
	}
	if q.QueryType == "" {
		writeError(w, http.StatusBadRequest, "query_type is required")
		return
	}

	bundle, err := h.queries.Execute(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// Explain handles GET /api/v1/queries/{id}/explain: returns the persisted
// plan tree for a prior Execute call.
func (h *QueryHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "plan id is required")
		return
	}

	plan, err := h.queries.Explain(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, plan)
}
