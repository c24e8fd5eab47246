package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/oncotarget/engine/internal/infra/sqlite"
)

// TestMigrate_RunsAllMigrations verifies that MigrateUp applies all pending migrations.
func TestMigrate_RunsAllMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v; want nil", err)
	}

	// After migration, schema_migrations table must exist with at least 1 row
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM schema_migrations")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("SELECT COUNT(*) FROM schema_migrations error = %v", err)
	}

	if count == 0 {
		t.Error("schema_migrations has 0 rows after MigrateUp; want > 0")
	}
}

// TestMigrate_Idempotent verifies that running MigrateUp twice does not fail.
// Migrations must be idempotent — re-running on an already-migrated DB is safe.
func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() first run error = %v; want nil", err)
	}

	// Second run must not fail (already-applied migrations are skipped)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second run error = %v; want nil (idempotent)", err)
	}
}

// TestMigrate_CoreTablesCreated verifies that every §3 data-model table
// exists after migration: Paper/Chunk (C2), Entity (C1), Fact/Conflict (C5),
// TargetScore/WeightUpdate (C7), approval/audit (human gate + provenance).
func TestMigrate_CoreTablesCreated(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	for _, table := range []string{
		"paper", "chunk", "entity", "entity_alias", "entity_mention",
		"fact", "conflict", "recompute_queue",
		"target_score", "weight_update", "weight_update_proposal", "feedback_event",
		"approval_request", "audit_event", "discovery_run", "query_plan",
	} {
		assertTableExists(t, db, table)
	}
}

// TestMigrate_ForeignKeyConstraintEnforced verifies that FK constraints are
// active: inserting a Chunk against a nonexistent Paper must fail.
func TestMigrate_ForeignKeyConstraintEnforced(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO chunk (id, paper_id, chunk_index, section_type, content, token_count)
		VALUES ('chunk-1', 'nonexistent-paper', 0, 'Abstract', 'text', 10)
	`)

	if err == nil {
		t.Error("INSERT with non-existent paper_id succeeded; want FK constraint error")
	}
}

// TestMigrate_PaperDOIUnique verifies the partial UNIQUE index on paper.doi
// (§3 invariant: "DOI, when present, is unique across Papers").
func TestMigrate_PaperDOIUnique(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	insert := `INSERT INTO paper (id, doi, title, authors_json, source) VALUES (?, ?, 'T', '[]', 'pubmed')`
	if _, err := db.Exec(insert, "paper-1", "10.1/abc"); err != nil {
		t.Fatalf("first paper insert error = %v", err)
	}

	if _, err := db.Exec(insert, "paper-2", "10.1/abc"); err == nil {
		t.Error("duplicate DOI INSERT succeeded; want UNIQUE constraint error")
	}
}

// TestMigrate_PaperDOINullNotUnique verifies that multiple Papers with a
// NULL DOI are allowed — the uniqueness invariant only binds present values.
func TestMigrate_PaperDOINullNotUnique(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	insert := `INSERT INTO paper (id, title, authors_json, source) VALUES (?, 'T', '[]', 'pubmed')`
	if _, err := db.Exec(insert, "paper-1"); err != nil {
		t.Fatalf("first paper insert error = %v", err)
	}
	if _, err := db.Exec(insert, "paper-2"); err != nil {
		t.Errorf("second NULL-DOI paper insert failed: %v; want success", err)
	}
}

// TestMigrate_ChunkIndexUniquePerPaper verifies UNIQUE(paper_id, chunk_index).
func TestMigrate_ChunkIndexUniquePerPaper(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	if _, err := db.Exec(`INSERT INTO paper (id, title, authors_json, source) VALUES ('paper-1', 'T', '[]', 'pubmed')`); err != nil {
		t.Fatalf("paper insert: %v", err)
	}

	insertChunk := `INSERT INTO chunk (id, paper_id, chunk_index, section_type, content, token_count) VALUES (?, 'paper-1', 0, 'Abstract', 'x', 1)`
	if _, err := db.Exec(insertChunk, "chunk-1"); err != nil {
		t.Fatalf("first chunk insert: %v", err)
	}
	if _, err := db.Exec(insertChunk, "chunk-2"); err == nil {
		t.Error("duplicate (paper_id, chunk_index) INSERT succeeded; want UNIQUE constraint error")
	}
}

// TestMigrate_Version returns the current applied migration version.
func TestMigrate_Version(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v; want nil", err)
	}

	if version == 0 {
		t.Error("MigrationVersion() = 0; want > 0 after MigrateUp")
	}
}

// TestMigrate_OnlyAppliesPending verifies that already-applied migrations are NOT re-run.
func TestMigrate_OnlyAppliesPending(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() first error = %v", err)
	}

	var countBefore int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&countBefore); err != nil {
		t.Fatalf("count before: %v", err)
	}

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second error = %v", err)
	}

	var countAfter int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&countAfter); err != nil {
		t.Fatalf("count after: %v", err)
	}

	if countAfter != countBefore {
		t.Errorf("schema_migrations count changed from %d to %d; want unchanged", countBefore, countAfter)
	}
}

// TestMigrationVersion_NoMigrations verifies version is 0 on fresh DB.
func TestMigrationVersion_NoMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	// Do NOT call MigrateUp — fresh DB

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}

	if version != 0 {
		t.Errorf("MigrationVersion() = %d; want 0 on fresh DB", version)
	}
}

// TestMigrate_OneCurrentTargetScorePerPair verifies the partial unique index
// backing the "exactly one is_current TRUE per (g,c)" invariant (§8).
func TestMigrate_OneCurrentTargetScorePerPair(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	if _, err := db.Exec(`INSERT INTO entity (id, entity_type, canonical_id, name) VALUES ('gene-1', 'Gene', 'HGNC:1', 'KRAS')`); err != nil {
		t.Fatalf("gene entity insert: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO entity (id, entity_type, canonical_id, name) VALUES ('cancer-1', 'CancerType', 'PAAD', 'Pancreatic adenocarcinoma')`); err != nil {
		t.Fatalf("cancer entity insert: %v", err)
	}

	insert := `
		INSERT INTO target_score (
			id, gene_entity_id, cancer_entity_id, score_version, composite_score,
			confidence_adjusted_score, components_json, weights_json, penalty,
			shortlist_tier, flags_json, is_current, scored_at
		) VALUES (?, 'gene-1', 'cancer-1', ?, 0.5, 0.5, '{}', '{}', 0, 'secondary', '[]', 1, datetime('now'))
	`
	if _, err := db.Exec(insert, "ts-1", 1); err != nil {
		t.Fatalf("first target_score insert error = %v", err)
	}

	if _, err := db.Exec(insert, "ts-2", 2); err == nil {
		t.Error("second is_current=1 row for the same (gene,cancer) pair succeeded; want UNIQUE constraint error")
	}
}

// assertTableExists fails the test if the given table doesn't exist in the DB.
func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)

	if err == sql.ErrNoRows {
		t.Errorf("table %q not found in sqlite_master after MigrateUp", tableName)
		return
	}
	if err != nil {
		t.Fatalf("assertTableExists(%q) query error = %v", tableName, err)
	}
}
