// Package api wires the HTTP surface for the oncology target engine: the
// discovery/query/scoring/feedback/approval endpoints over the domain
// services, behind JWT auth and audit logging.
package api

import (
	"context"

	"github.com/oncotarget/engine/internal/api/ctxkeys"
)

// WithOperatorID adds the operator id to the request context.
func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, ctxkeys.OperatorID, operatorID)
}

// GetOperatorID retrieves the operator id injected by AuthMiddleware.
func GetOperatorID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(ctxkeys.OperatorID).(string)
	if !ok || id == "" {
		return "", ErrMissingOperatorID
	}
	return id, nil
}
