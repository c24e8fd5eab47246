package graph_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/graph"
	"github.com/oncotarget/engine/internal/infra/eventbus"
	"github.com/oncotarget/engine/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.MigrateUp(db))

	geneID := insertEntity(t, db, "Gene", "KRAS")
	cancerID := insertEntity(t, db, "CancerType", "pancreatic adenocarcinoma")
	return &testDB{db: db, geneID: geneID, cancerID: cancerID}
}

type testDB struct {
	db             *sql.DB
	geneID         string
	cancerID       string
}

func insertEntity(t *testing.T, db *sql.DB, entityType, name string) string {
	t.Helper()
	id := name + "-id"
	_, err := db.Exec(`INSERT INTO entity (id, entity_type, canonical_id, name) VALUES (?, ?, ?, ?)`,
		id, entityType, id, name)
	require.NoError(t, err)
	return id
}

func ptrString(s string) *string { return &s }
func ptrInt(i int) *int          { return &i }

// Two agreeing facts, in vitro (0.85) and computational ML (0.50),
// noisy-OR-aggregate to 1 − 0.15·0.50 = 0.925 with no contradiction.
func TestAggregateNoisyOR(t *testing.T) {
	tdb := newTestDB(t)
	svc := graph.NewService(tdb.db, eventbus.New())
	ctx := context.Background()

	_, err := svc.Insert(ctx, graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "mutated_in",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceExperimentalInVitro,
		Source:          graph.Source{PMID: ptrString("111")},
	})
	require.NoError(t, err)

	_, err = svc.Insert(ctx, graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "mutated_in",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceComputationalML,
		Source:          graph.Source{PMID: ptrString("222")},
	})
	require.NoError(t, err)

	result, err := svc.Aggregate(ctx, tdb.geneID, "mutated_in", tdb.cancerID)
	require.NoError(t, err)
	require.InDelta(t, 1-(1-0.85)*(1-0.50), result.AggregateConfidence, 1e-9)
	require.False(t, result.ContradictionFlag)
	require.Equal(t, 2, result.FactCount)
}

// Opposing predicate directions: an in-vivo fact (1.0 × 1.20 × 1.15, capped
// at 1.0) and an in-vitro fact (0.85) net to |1.0 − 0.85| = 0.15, below the
// 0.30 disputed threshold, so both the conflict row and the aggregate are
// DISPUTED.
func TestAggregateOpposingPredicatesDisputed(t *testing.T) {
	tdb := newTestDB(t)
	svc := graph.NewService(tdb.db, eventbus.New())
	ctx := context.Background()

	_, err := svc.Insert(ctx, graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "sensitizes_to",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceExperimentalInVivo,
		Source:          graph.Source{PMID: ptrString("333"), SampleSize: ptrInt(1200)},
		Modifiers:       graph.Modifiers{Replicated: true},
	})
	require.NoError(t, err)

	_, err = svc.Insert(ctx, graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "does_not_sensitize_to",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceExperimentalInVitro,
		Source:          graph.Source{PMID: ptrString("444")},
	})
	require.NoError(t, err)

	conflictRows, err := tdb.db.Query(`SELECT conflict_type, resolution FROM conflict`)
	require.NoError(t, err)
	defer conflictRows.Close()
	var count int
	for conflictRows.Next() {
		var conflictType, resolution string
		require.NoError(t, conflictRows.Scan(&conflictType, &resolution))
		require.Equal(t, "opposing_directionality", conflictType)
		require.Equal(t, "disputed", resolution)
		count++
	}
	require.Equal(t, 1, count)

	result, err := svc.Aggregate(ctx, tdb.geneID, "sensitizes_to", tdb.cancerID)
	require.NoError(t, err)
	require.True(t, result.Disputed)
}

// Supersession: a fact may only have valid_until assigned once.
func TestSupersedeRejectsDoubleSupersession(t *testing.T) {
	tdb := newTestDB(t)
	svc := graph.NewService(tdb.db, eventbus.New())
	ctx := context.Background()

	fact, err := svc.Insert(ctx, graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "mutated_in",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceTextMined,
		Source:          graph.Source{PMID: ptrString("555")},
	})
	require.NoError(t, err)

	replacement := graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "mutated_in",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceDatabaseAssertion,
		Source:          graph.Source{SourceDB: ptrString("COSMIC")},
	}

	_, err = svc.Supersede(ctx, fact.ID, replacement)
	require.NoError(t, err)

	_, err = svc.Supersede(ctx, fact.ID, replacement)
	require.ErrorIs(t, err, graph.ErrAlreadySuperseded)
}

func TestEnqueueRecomputeCoalesces(t *testing.T) {
	tdb := newTestDB(t)
	svc := graph.NewService(tdb.db, eventbus.New())
	ctx := context.Background()

	require.NoError(t, svc.EnqueueRecompute(ctx, tdb.geneID, tdb.cancerID, "reason-a"))
	require.NoError(t, svc.EnqueueRecompute(ctx, tdb.geneID, tdb.cancerID, "reason-b"))

	pending, err := svc.DrainRecompute(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "reason-b", pending[0].Reason)

	pending, err = svc.DrainRecompute(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRetractedEvidenceYieldsZeroConfidence(t *testing.T) {
	tdb := newTestDB(t)
	svc := graph.NewService(tdb.db, eventbus.New())
	ctx := context.Background()

	fact, err := svc.Insert(ctx, graph.InsertInput{
		SubjectEntityID: tdb.geneID,
		Predicate:       "mutated_in",
		ObjectEntityID:  tdb.cancerID,
		EvidenceType:    graph.EvidenceRetraction,
		Modifiers:       graph.Modifiers{Retracted: true},
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, fact.Confidence)
}
