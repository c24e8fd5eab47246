// Package ctxkeys holds the context keys shared between the API middleware
// and handlers. Extracted to a leaf package to avoid import cycles between
// api and api/handlers.
package ctxkeys

import "context"

// Key is the named type for all API context keys. Using a named
// type avoids collisions with string keys from other packages at runtime
// (context.Value compares both type and value).
type Key string

const (
	// OperatorID is the context key for the authenticated operator, injected
	// by AuthMiddleware from the JWT's Claims.OperatorID and read by any
	// handler that needs actor identity (approvals, audit logging).
	OperatorID Key = "operator_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
