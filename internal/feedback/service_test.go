package feedback_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/approval"
	"github.com/oncotarget/engine/internal/feedback"
	"github.com/oncotarget/engine/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.MigrateUp(db))
	return db
}

func TestCreateProposalRequiresApprovalBeforeApply(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	approvals := approval.NewService(db, nil)
	svc := feedback.NewService(db, approvals)

	proposal, err := svc.CreateProposal(ctx, feedback.ProposeInput{
		CurrentWeights:        map[string]float64{"mutation_frequency": 0.5, "dependency": 0.5},
		ComponentCorrelations: map[string]float64{"mutation_frequency": 0.9, "dependency": 0.05},
		TriggeringMetrics:     map[string]float64{"recall_at_n": 0.42},
		Trigger:               "scheduled",
		ApproverID:            "operator-1",
		RequestedBy:           "scheduler",
	})
	require.NoError(t, err)
	require.NotNil(t, proposal.ApprovalRequestID)

	err = svc.ApplyProposal(ctx, proposal.ID, "operator-1")
	require.Error(t, err, "applying before approval must not silently succeed")

	pending, err := approvals.GetPendingApprovals(ctx, "operator-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, approvals.DecideRequest(ctx, pending[0].ID, "approve", "operator-1"))

	require.NoError(t, svc.ApplyProposal(ctx, proposal.ID, "operator-1"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM weight_update`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestRecordEventAppendsRow(t *testing.T) {
	db := newTestDB(t)
	svc := feedback.NewService(db, approval.NewService(db, nil))

	err := svc.RecordEvent(context.Background(), feedback.Event{
		EventType:   feedback.EventTypeScheduled,
		MetricName:  feedback.MetricRecallAtN,
		MetricValue: 0.5,
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM feedback_event`).Scan(&count))
	require.Equal(t, 1, count)
}
