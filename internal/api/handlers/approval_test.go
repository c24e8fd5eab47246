package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oncotarget/engine/internal/api/handlers"
	"github.com/oncotarget/engine/internal/approval"
	"github.com/oncotarget/engine/internal/audit"
)

func newApprovalHandler(t *testing.T) (*handlers.ApprovalHandler, *approval.Service) {
	t.Helper()
	db := newTestDB(t)
	svc := approval.NewService(db, audit.NewService(db))
	return handlers.NewApprovalHandler(svc), svc
}

func TestApprovalHandler_Pending(t *testing.T) {
	h, svc := newApprovalHandler(t)

	_, err := svc.CreateRequest(context.Background(), approval.CreateRequestInput{
		RequestedBy: "scheduler",
		ApproverID:  "operator-1",
		Action:      "approve_weight_update",
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals?approver_id=operator-1", nil)
	rr := httptest.NewRecorder()
	h.Pending(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var pending []approval.Request
	if err := json.Unmarshal(rr.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
}

func TestApprovalHandler_Pending_MissingApproverID(t *testing.T) {
	h, _ := newApprovalHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals", nil)
	rr := httptest.NewRecorder()
	h.Pending(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestApprovalHandler_Decide(t *testing.T) {
	h, svc := newApprovalHandler(t)

	created, err := svc.CreateRequest(context.Background(), approval.CreateRequestInput{
		RequestedBy: "scheduler",
		ApproverID:  "operator-1",
		Action:      "approve_weight_update",
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}

	router := chi.NewRouter()
	router.Put("/{id}", h.Decide)

	body := bytes.NewBufferString(`{"decision":"approve","decided_by":"operator-1"}`)
	req := httptest.NewRequest(http.MethodPut, "/"+created.ID, body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestApprovalHandler_Decide_WrongApprover(t *testing.T) {
	h, svc := newApprovalHandler(t)

	created, err := svc.CreateRequest(context.Background(), approval.CreateRequestInput{
		RequestedBy: "scheduler",
		ApproverID:  "operator-1",
		Action:      "approve_weight_update",
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}

	router := chi.NewRouter()
	router.Put("/{id}", h.Decide)

	body := bytes.NewBufferString(`{"decision":"approve","decided_by":"someone-else"}`)
	req := httptest.NewRequest(http.MethodPut, "/"+created.ID, body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestApprovalHandler_Decide_MissingFields(t *testing.T) {
	h, _ := newApprovalHandler(t)

	router := chi.NewRouter()
	router.Put("/{id}", h.Decide)

	req := httptest.NewRequest(http.MethodPut, "/some-id", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
