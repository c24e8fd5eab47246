package evidence_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/evidence"
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

func insertEntity(t *testing.T, db *sql.DB, id, entityType, name string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO entity (id, entity_type, canonical_id, name) VALUES (?, ?, ?, ?)`,
		id, entityType, id, name)
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }

func TestUpsertGeneDependencyOverwritesByCanonicalID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertEntity(t, db, "gene-1", "Gene", "KRAS")
	insertEntity(t, db, "cancer-1", "CancerType", "PAAD")

	svc := evidence.NewService(db)
	require.NoError(t, svc.UpsertGeneDependency(ctx, []evidence.GeneDependency{
		{GeneEntityID: "gene-1", CancerEntityID: "cancer-1", DependencyMean: ptr(-0.5), CellLineCount: 10, SourceVersion: "v1"},
	}))
	require.NoError(t, svc.UpsertGeneDependency(ctx, []evidence.GeneDependency{
		{GeneEntityID: "gene-1", CancerEntityID: "cancer-1", DependencyMean: ptr(-1.2), CellLineCount: 20, SourceVersion: "v2"},
	}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM gene_dependency`).Scan(&count))
	require.Equal(t, 1, count, "re-running the adapter must overwrite, not duplicate")

	var mean float64
	var cellLines int
	require.NoError(t, db.QueryRow(`SELECT dependency_mean, cell_line_count FROM gene_dependency`).Scan(&mean, &cellLines))
	require.InDelta(t, -1.2, mean, 1e-9)
	require.Equal(t, 20, cellLines)
}

func TestUpsertMutationFrequencyLeavesMissingValuesNull(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertEntity(t, db, "gene-2", "Gene", "TP53")
	insertEntity(t, db, "cancer-2", "CancerType", "LUAD")

	svc := evidence.NewService(db)
	require.NoError(t, svc.UpsertMutationFrequency(ctx, []evidence.MutationFrequency{
		{GeneEntityID: "gene-2", CancerEntityID: "cancer-2", Frequency: nil, CohortSize: nil, SourceVersion: "v1"},
	}))

	var frequency sql.NullFloat64
	require.NoError(t, db.QueryRow(`SELECT frequency FROM mutation_frequency`).Scan(&frequency))
	require.False(t, frequency.Valid, "unreported frequency must stay NULL, never default to zero")
}

func TestRecordRunDefaultsStatusToOK(t *testing.T) {
	db := newTestDB(t)
	svc := evidence.NewService(db)
	require.NoError(t, svc.RecordRun(context.Background(), evidence.AdapterRun{Source: "depmap", Version: "2024Q4"}))

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM adapter_run WHERE source = 'depmap'`).Scan(&status))
	require.Equal(t, string(evidence.RunStatusOK), status)
}

type fakeAdapter struct {
	source string
	fail   bool
}

func (a fakeAdapter) Source() string { return a.source }
func (a fakeAdapter) Fetch(ctx context.Context, svc *evidence.Service) (evidence.AdapterRun, error) {
	if a.fail {
		return evidence.AdapterRun{}, errors.New("upstream unavailable")
	}
	return evidence.AdapterRun{Source: a.source, Version: "v1", RowCount: 1}, nil
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	r := evidence.NewRegistry(nil)
	require.NoError(t, r.Register(fakeAdapter{source: "depmap"}))
	err := r.Register(fakeAdapter{source: "depmap"})
	require.ErrorIs(t, err, evidence.ErrAdapterAlreadyRegistered)
}

func TestRunAllContinuesAfterOneAdapterFails(t *testing.T) {
	db := newTestDB(t)
	svc := evidence.NewService(db)
	r := evidence.NewRegistry(nil)
	require.NoError(t, r.Register(fakeAdapter{source: "cosmic"}))
	require.NoError(t, r.Register(fakeAdapter{source: "depmap", fail: true}))

	runs, errs := r.RunAll(context.Background(), svc)
	require.Len(t, errs, 1)
	require.Len(t, runs, 1)
	require.Equal(t, "cosmic", runs[0].Source)
}
