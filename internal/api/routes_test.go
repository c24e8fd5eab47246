// Wiring test for NewRouter: validates the public /health route and that
// protected /api/v1/* routes reject unauthenticated requests.
package api

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/oncotarget/engine/internal/infra/sqlite"
)

func TestMain(m *testing.M) {
	// AuthMiddleware reads JWT_SECRET — must be set for protected routes to parse tokens.
	os.Setenv("JWT_SECRET", "test-secret-key-32-chars-min!!!") //nolint:errcheck
	os.Exit(m.Run())
}

// mustOpenAPITestDB opens an in-memory SQLite DB with all migrations applied.
func mustOpenAPITestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("mustOpenAPITestDB: NewDB: %v", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("mustOpenAPITestDB: MigrateUp: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestNewRouter_HealthEndpoint verifies that NewRouter registers the /health route.
func TestNewRouter_HealthEndpoint(t *testing.T) {
	db := mustOpenAPITestDB(t)

	router := NewRouter(db)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("expected body to contain 'ok', got %q", w.Body.String())
	}
}

// TestNewRouter_DiscoveryEndpoint_Unauthorized verifies that POST
// /api/v1/discovery is registered and returns 401 without a JWT — confirming
// the ingestion pipeline route is wired behind AuthMiddleware.
func TestNewRouter_DiscoveryEndpoint_Unauthorized(t *testing.T) {
	db := mustOpenAPITestDB(t)

	router := NewRouter(db)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery",
		strings.NewReader(`{"gene":"KRAS","cancer_type":"PAAD"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated /api/v1/discovery, got %d", w.Code)
	}
}

// TestNewRouter_QueriesEndpoint_Unauthorized confirms the query planner
// route (§4.9) is registered and gated the same way.
func TestNewRouter_QueriesEndpoint_Unauthorized(t *testing.T) {
	db := mustOpenAPITestDB(t)

	router := NewRouter(db)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries",
		strings.NewReader(`{"query_type":"target_prioritization"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated /api/v1/queries, got %d", w.Code)
	}
}
