// HTTP audit middleware for protected routes.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/oncotarget/engine/internal/api/ctxkeys"
	"github.com/oncotarget/engine/internal/audit"
)

// AuditLogger is the minimal contract used by AuditMiddleware. audit.Service
// satisfies this interface.
type AuditLogger interface {
	LogWithDetails(
		ctx context.Context,
		actorID string,
		actorType audit.ActorType,
		action string,
		entityType *string,
		entityID *string,
		details *audit.EventDetails,
		outcome audit.Outcome,
	) error
}

// AuditMiddleware logs protected HTTP requests into audit_event.
// Expected order in router: AuthMiddleware -> AuditMiddleware -> handlers.
func AuditMiddleware(logger AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}

			operatorID, ok := getStringContext(r.Context(), ctxkeys.OperatorID)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			action, entityType, entityID := actionFromRequest(r.Method, r.URL.Path)
			_ = logger.LogWithDetails(
				r.Context(),
				operatorID,
				audit.ActorTypeUser,
				action,
				entityType,
				entityID,
				&audit.EventDetails{Metadata: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status_code": recorder.statusCode,
					"duration_ms": time.Since(start).Milliseconds(),
				}},
				outcomeFromStatus(recorder.statusCode),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func getStringContext(ctx context.Context, key ctxkeys.Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func outcomeFromStatus(statusCode int) audit.Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return audit.OutcomeSuccess
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return audit.OutcomeDenied
	default:
		return audit.OutcomeError
	}
}

// actionFromRequest derives an audit action and optional entity type/id from
// a /api/v1/<resource>[/<id>] request path.
func actionFromRequest(method, path string) (string, *string, *string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "v1" {
		return strings.ToLower(method) + "_request", nil, nil
	}

	entityType := singularEntity(segments[2])
	if entityType == "" {
		return strings.ToLower(method) + "_request", nil, nil
	}

	if len(segments) == 3 {
		return actionForCollection(method, entityType), strPtr(entityType), nil
	}

	entityID := segments[3]
	return actionForEntity(method, entityType), strPtr(entityType), strPtr(entityID)
}

func singularEntity(entity string) string {
	entityMap := map[string]string{
		"discovery": "discovery_run",
		"queries":   "query_plan",
		"scoring":   "target_score",
		"feedback":  "weight_proposal",
		"approvals": "approval_request",
	}

	if value, ok := entityMap[entity]; ok {
		return value
	}
	return ""
}

func actionForCollection(method, entity string) string {
	if method == http.MethodPost {
		return "create_" + entity
	}
	if method == http.MethodGet {
		return "list_" + entity
	}
	return strings.ToLower(method) + "_" + entity
}

func actionForEntity(method, entity string) string {
	switch method {
	case http.MethodGet:
		return "get_" + entity
	case http.MethodPut, http.MethodPatch:
		return "update_" + entity
	case http.MethodDelete:
		return "delete_" + entity
	case http.MethodPost:
		return "create_" + entity
	default:
		return strings.ToLower(method) + "_" + entity
	}
}

func strPtr(v string) *string {
	return &v
}
