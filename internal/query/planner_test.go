package query_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/graph"
	"github.com/oncotarget/engine/internal/infra/sqlite"
	"github.com/oncotarget/engine/internal/query"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.MigrateUp(db))
	return db
}

func insertEntity(t *testing.T, db *sql.DB, id, entityType, name string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO entity (id, entity_type, canonical_id, name) VALUES (?, ?, ?, ?)`,
		id, entityType, id, name)
	require.NoError(t, err)
}

func insertCurrentScore(t *testing.T, db *sql.DB, id, geneID, cancerID string, composite, confAdj float64, tier string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO target_score (
			id, gene_entity_id, cancer_entity_id, score_version, composite_score,
			confidence_adjusted_score, components_json, weights_json, penalty,
			shortlist_tier, flags_json, warnings_json, is_current, scored_at
		) VALUES (?, ?, ?, 1, ?, ?, ?, '{}', 0, ?, '[]', '[]', 1, ?)
	`, id, geneID, cancerID, composite, confAdj,
		`{"structural_tractability":{"Raw":0.6,"Normalized":0.6,"Weight":0.15,"Available":true}}`,
		tier, time.Now().UTC())
	require.NoError(t, err)
}

func TestExecuteTargetPrioritizationRanksAndCites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertEntity(t, db, "gene-1", "Gene", "BRCA1")
	insertEntity(t, db, "cancer-1", "CancerType", "Breast Cancer")
	insertCurrentScore(t, db, "score-1", "gene-1", "cancer-1", 0.70, 0.65, "primary")

	_, err := db.Exec(`
		INSERT INTO fact (id, subject_entity_id, predicate, object_entity_id, confidence,
			evidence_type, evidence_weight, source_pmid, source_doi, source_db,
			sample_size, study_type, contradiction_flag, valid_from, valid_until)
		VALUES ('fact-1', 'gene-1', 'mutated_in', 'cancer-1', 0.8, 'database_assertion', 1.0,
			'12345', NULL, 'COSMIC', NULL, NULL, 0, ?, NULL)
	`, time.Now().UTC())
	require.NoError(t, err)

	g := graph.NewService(db, nil)
	docs := document.NewService(db, nil)
	svc := query.NewService(db, g, docs)

	bundle, err := svc.Execute(ctx, query.Query{
		QueryType: query.TypeTargetPrioritization,
		Entities:  query.EntityFilter{CancerEntityID: "cancer-1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.PlanID)
	require.Len(t, bundle.Candidates, 1)

	candidate := bundle.Candidates[0]
	require.Equal(t, "gene-1", candidate.GeneEntityID)
	require.Equal(t, "BRCA1", candidate.GeneName)
	require.NotEmpty(t, candidate.Claims)
	require.False(t, candidate.Claims[0].Inferred)
	require.NotEmpty(t, candidate.Claims[0].Sources)
	require.Equal(t, "12345", *candidate.Claims[0].Sources[0].PMID)

	plan, err := svc.Explain(ctx, bundle.PlanID)
	require.NoError(t, err)
	require.Equal(t, query.TypeTargetPrioritization, plan.QueryType)
	require.NotEmpty(t, plan.Steps)
}

func TestAssembleClaimsTagsInferredWhenNoFacts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertEntity(t, db, "gene-2", "Gene", "TP53")
	insertEntity(t, db, "cancer-2", "CancerType", "Lung Cancer")
	insertCurrentScore(t, db, "score-2", "gene-2", "cancer-2", 0.50, 0.45, "secondary")

	g := graph.NewService(db, nil)
	docs := document.NewService(db, nil)
	svc := query.NewService(db, g, docs)

	bundle, err := svc.Execute(ctx, query.Query{
		QueryType: query.TypeEvidenceLookup,
		Entities:  query.EntityFilter{GeneEntityID: "gene-2", CancerEntityID: "cancer-2"},
	})
	require.NoError(t, err)
	require.Len(t, bundle.Candidates, 1)
	require.True(t, bundle.Candidates[0].Claims[0].Inferred)
	require.LessOrEqual(t, bundle.Candidates[0].Claims[0].Confidence, 0.3)
}

func TestPassesConstraintsFiltersByInhibitorSaturation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertEntity(t, db, "gene-3", "Gene", "EGFR")
	insertEntity(t, db, "cancer-3", "CancerType", "NSCLC")
	insertCurrentScore(t, db, "score-3", "gene-3", "cancer-3", 0.80, 0.75, "primary")

	_, err := db.Exec(`INSERT INTO inhibitor_count (gene_entity_id, known_inhibitors, source_version) VALUES (?, ?, ?)`,
		"gene-3", 60, "v1")
	require.NoError(t, err)

	g := graph.NewService(db, nil)
	docs := document.NewService(db, nil)
	svc := query.NewService(db, g, docs)

	bundle, err := svc.Execute(ctx, query.Query{
		QueryType:   query.TypeTargetPrioritization,
		Entities:    query.EntityFilter{CancerEntityID: "cancer-3"},
		Constraints: query.Constraints{MaxInhibitorCount: 50},
	})
	require.NoError(t, err)
	require.Empty(t, bundle.Candidates)
}
