package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oncotarget/engine/pkg/uuid"
)

// Service upserts normalized evidence rows into the EntityExtension tables
// and records each adapter invocation. All upserts are idempotent by
// canonical id (the gene/cancer/pathway entity id pair) — re-running an
// adapter against the same source data overwrites the prior row for that
// pair rather than duplicating it (§4.6).
type Service struct {
	db *sql.DB
}

// NewService builds an evidence Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// RecordRun appends an AdapterRun row, assigning an id if the caller left
// one unset.
func (s *Service) RecordRun(ctx context.Context, run AdapterRun) error {
	if run.ID == "" {
		run.ID = uuid.NewV7().String()
	}
	if run.FetchedAt.IsZero() {
		run.FetchedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusOK
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adapter_run (id, source, version, fetched_at, row_count, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.Version, run.FetchedAt, run.RowCount, string(run.Status))
	if err != nil {
		return fmt.Errorf("evidence: record run: %w", err)
	}
	return nil
}

// UpsertGeneDependency upserts CERES-style essentiality scores, joined to a
// cancer type via the cell-line → OncoTree mapping (§4.6).
func (s *Service) UpsertGeneDependency(ctx context.Context, rows []GeneDependency) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gene_dependency (
					gene_entity_id, cancer_entity_id, dependency_mean, dependency_median,
					cell_line_count, source_version, fetched_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (gene_entity_id, cancer_entity_id) DO UPDATE SET
					dependency_mean = excluded.dependency_mean,
					dependency_median = excluded.dependency_median,
					cell_line_count = excluded.cell_line_count,
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.CancerEntityID, r.DependencyMean, r.DependencyMedian,
				r.CellLineCount, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert gene_dependency: %w", err)
			}
		}
		return nil
	})
}

// UpsertMutationFrequency upserts somatic mutation frequencies per
// (gene, cancer type).
func (s *Service) UpsertMutationFrequency(ctx context.Context, rows []MutationFrequency) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mutation_frequency (
					gene_entity_id, cancer_entity_id, frequency, cohort_size, source_version, fetched_at
				) VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (gene_entity_id, cancer_entity_id) DO UPDATE SET
					frequency = excluded.frequency,
					cohort_size = excluded.cohort_size,
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.CancerEntityID, r.Frequency, r.CohortSize, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert mutation_frequency: %w", err)
			}
		}
		return nil
	})
}

// UpsertSurvivalCorrelation upserts survival-correlation statistics per
// (gene, cancer type).
func (s *Service) UpsertSurvivalCorrelation(ctx context.Context, rows []SurvivalCorrelation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO survival_correlation (
					gene_entity_id, cancer_entity_id, correlation, p_value, source_version, fetched_at
				) VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (gene_entity_id, cancer_entity_id) DO UPDATE SET
					correlation = excluded.correlation,
					p_value = excluded.p_value,
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.CancerEntityID, r.Correlation, r.PValue, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert survival_correlation: %w", err)
			}
		}
		return nil
	})
}

// UpsertExpressionSpecificity upserts tumor-vs-normal expression ratios.
func (s *Service) UpsertExpressionSpecificity(ctx context.Context, rows []ExpressionSpecificity) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO expression_specificity (
					gene_entity_id, cancer_entity_id, tumor_normal_ratio, source_version, fetched_at
				) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (gene_entity_id, cancer_entity_id) DO UPDATE SET
					tumor_normal_ratio = excluded.tumor_normal_ratio,
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.CancerEntityID, r.TumorNormalRatio, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert expression_specificity: %w", err)
			}
		}
		return nil
	})
}

// UpsertPathwayMembership upserts gene-to-pathway membership edges.
func (s *Service) UpsertPathwayMembership(ctx context.Context, rows []PathwayMembership) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pathway_membership (
					gene_entity_id, pathway_entity_id, source_version, fetched_at
				) VALUES (?, ?, ?, ?)
				ON CONFLICT (gene_entity_id, pathway_entity_id) DO UPDATE SET
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.PathwayEntityID, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert pathway_membership: %w", err)
			}
		}
		return nil
	})
}

// UpsertGeneStructure upserts structural tractability evidence: solved
// (experimental) structure coverage, predicted-model confidence, and
// pocket druggability.
func (s *Service) UpsertGeneStructure(ctx context.Context, rows []GeneStructure) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gene_structure (
					gene_entity_id, pdb_count, has_experimental, predicted_plddt,
					pocket_druggability, source_version, fetched_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (gene_entity_id) DO UPDATE SET
					pdb_count = excluded.pdb_count,
					has_experimental = excluded.has_experimental,
					predicted_plddt = excluded.predicted_plddt,
					pocket_druggability = excluded.pocket_druggability,
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.PDBCount, boolToInt(r.HasExperimental), r.PredictedPLDDT,
				r.PocketDruggability, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert gene_structure: %w", err)
			}
		}
		return nil
	})
}

// UpsertInhibitorCount upserts the known-inhibitor count per gene.
func (s *Service) UpsertInhibitorCount(ctx context.Context, rows []InhibitorCount) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO inhibitor_count (gene_entity_id, known_inhibitors, source_version, fetched_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (gene_entity_id) DO UPDATE SET
					known_inhibitors = excluded.known_inhibitors,
					source_version = excluded.source_version,
					fetched_at = excluded.fetched_at
			`, r.GeneEntityID, r.KnownInhibitors, r.SourceVersion, time.Now().UTC()); err != nil {
				return fmt.Errorf("evidence: upsert inhibitor_count: %w", err)
			}
		}
		return nil
	})
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
