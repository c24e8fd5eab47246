package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/oncotarget/engine/internal/api/handlers"
	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/graph"
	"github.com/oncotarget/engine/internal/infra/eventbus"
	"github.com/oncotarget/engine/internal/query"
)

func newQueryHandler(t *testing.T) *handlers.QueryHandler {
	t.Helper()
	db := newTestDB(t)
	docs := document.NewService(db, nil)
	g := graph.NewService(db, eventbus.New())
	return handlers.NewQueryHandler(query.NewService(db, g, docs))
}

func TestQueryHandler_Execute_Similarity(t *testing.T) {
	h := newQueryHandler(t)

	body := bytes.NewBufferString(`{"query_type":"similarity","entities":{"query_text":"KRAS resistance"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", body)
	rr := httptest.NewRecorder()
	h.Execute(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var bundle struct {
		PlanID    string `json:"plan_id"`
		QueryType string `json:"query_type"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if bundle.PlanID == "" {
		t.Fatal("expected non-empty plan id")
	}
	if bundle.QueryType != "similarity" {
		t.Fatalf("unexpected query type: %q", bundle.QueryType)
	}

	router := chi.NewRouter()
	router.Get("/{id}/explain", h.Explain)

	explainReq := httptest.NewRequest(http.MethodGet, "/"+bundle.PlanID+"/explain", nil)
	explainRR := httptest.NewRecorder()
	router.ServeHTTP(explainRR, explainReq)

	if explainRR.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", explainRR.Code, explainRR.Body.String())
	}
}

func TestQueryHandler_Execute_MissingQueryType(t *testing.T) {
	h := newQueryHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	h.Execute(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestQueryHandler_Execute_UnknownQueryType(t *testing.T) {
	h := newQueryHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", bytes.NewBufferString(`{"query_type":"bogus"}`))
	rr := httptest.NewRecorder()
	h.Execute(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestQueryHandler_Explain_UnknownPlan(t *testing.T) {
	h := newQueryHandler(t)

	router := chi.NewRouter()
	router.Get("/{id}/explain", h.Explain)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist/explain", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
