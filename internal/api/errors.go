package api

import "errors"

// ErrMissingOperatorID is returned when operator_id is missing from context.
var ErrMissingOperatorID = errors.New("missing operator_id in context")
