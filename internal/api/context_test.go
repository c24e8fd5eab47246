package api

import (
	"context"
	"errors"
	"testing"

	"github.com/oncotarget/engine/internal/api/ctxkeys"
)

func TestWithOperatorIDAndGetOperatorID_Success(t *testing.T) {
	t.Parallel()

	ctx := WithOperatorID(context.Background(), "op-123")
	got, err := GetOperatorID(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "op-123" {
		t.Fatalf("expected op-123, got %q", got)
	}
}

func TestGetOperatorID_Missing_ReturnsExpectedError(t *testing.T) {
	t.Parallel()

	_, err := GetOperatorID(context.Background())
	if !errors.Is(err, ErrMissingOperatorID) {
		t.Fatalf("expected ErrMissingOperatorID, got %v", err)
	}
}

func TestGetOperatorID_EmptyValue_ReturnsExpectedError(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), ctxkeys.OperatorID, "")
	_, err := GetOperatorID(ctx)
	if !errors.Is(err, ErrMissingOperatorID) {
		t.Fatalf("expected ErrMissingOperatorID, got %v", err)
	}
}
