package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oncotarget/engine/pkg/uuid"
)

// Service computes cohort-wide composite scores and persists versioned
// TargetScore rows (§4.7).
type Service struct {
	db      *sql.DB
	weights map[Component]float64
}

// NewService builds a scoring Service from a weight vector snapshot (keyed
// the same way as infra/config.Config.ScoringWeights).
func NewService(db *sql.DB, weights map[string]float64) *Service {
	w := make(map[Component]float64, len(weights))
	for k, v := range weights {
		w[Component(k)] = v
	}
	return &Service{db: db, weights: w}
}

// ScoreCohort recomputes every candidate gene's score against cancerEntityID,
// inserts a new TargetScore row per gene in a single transaction per gene,
// and flips the previous row's is_current off (§4.7 Versioning).
func (s *Service) ScoreCohort(ctx context.Context, cancerEntityID string, allowHardExclusionOptIn bool) ([]TargetScore, error) {
	cohort, extras, err := s.buildCohortInput(ctx, cancerEntityID)
	if err != nil {
		return nil, fmt.Errorf("scoring: build cohort input: %w", err)
	}
	if len(cohort) == 0 {
		return nil, nil
	}

	normalized := normalizeCohort(cohort)
	geneIDs := sortedGeneIDs(cohort)

	results := make([]TargetScore, 0, len(geneIDs))
	for _, geneID := range geneIDs {
		components := normalized[geneID]
		score, missingCritical, _ := composite(components, s.weights)

		ex := extras[geneID]
		p, penaltyWarnings := penalty(PenaltyInputs{
			KnownInhibitorCount:   ex.knownInhibitors,
			ExpressionSpecificity: ex.expressionRatio,
			HasExperimentalStruct: ex.hasExperimental,
			PredictedPLDDT:        ex.predictedPLDDT,
		})

		adjScore := score - p
		if adjScore < 0 {
			adjScore = 0
		}
		if adjScore > 1 {
			adjScore = 1
		}

		confMult := ex.confidenceMean
		for i := 0; i < missingCritical; i++ {
			confMult *= missingCriticalPenalty
		}
		confAdjScore := adjScore * confMult

		mutationFreqRaw := cohort[geneID][ComponentMutationFrequency].Value
		structuralRaw := cohort[geneID][ComponentStructuralTractability].Value
		tier, tierFlags := classifyTier(
			confAdjScore, mutationFreqRaw, structuralRaw,
			ex.knownInhibitors, components[ComponentInhibitorNovelty].Normalized,
			allowHardExclusionOptIn,
		)

		flags := tierFlags
		if missingCritical > 0 {
			flags = append(flags, "missing_critical_component")
		}
		warnings := penaltyWarnings
		if ex.disputedKG {
			warnings = append(warnings, "disputed_kg_triple")
		}

		ts := TargetScore{
			ID:                      uuid.NewV7().String(),
			GeneEntityID:            geneID,
			CancerEntityID:          cancerEntityID,
			CompositeScore:          adjScore,
			ConfidenceAdjustedScore: confAdjScore,
			Components:              components,
			Weights:                 s.weights,
			Penalty:                 p,
			ShortlistTier:           tier,
			Flags:                   flags,
			Warnings:                warnings,
			IsCurrent:               true,
			ScoredAt:                time.Now().UTC(),
		}

		if err := s.persist(ctx, &ts); err != nil {
			return nil, fmt.Errorf("scoring: persist %s: %w", geneID, err)
		}
		results = append(results, ts)
	}
	return results, nil
}

// persist inserts a new TargetScore row, assigning the next score_version
// for the (gene, cancer) pair and flipping the prior current row's
// is_current to false in the same transaction (§4.7 Versioning). If the
// computed composite_score and components match the existing current row
// exactly, no input has changed: the current row's scored_at is touched in
// place and score_version is left unbumped.
func (s *Service) persist(ctx context.Context, ts *TargetScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	componentsJSON, err := json.Marshal(componentsForJSON(ts.Components))
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}

	var (
		currentID         string
		currentVersion    int
		currentComposite  float64
		currentComponents string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, score_version, composite_score, components_json FROM target_score
		WHERE gene_entity_id = ? AND cancer_entity_id = ? AND is_current = 1
	`, ts.GeneEntityID, ts.CancerEntityID).Scan(&currentID, &currentVersion, &currentComposite, &currentComponents)

	var hasCurrent bool
	switch {
	case err == nil:
		hasCurrent = true
	case errors.Is(err, sql.ErrNoRows):
		hasCurrent = false
	default:
		return fmt.Errorf("lookup current row: %w", err)
	}

	if hasCurrent && currentComposite == ts.CompositeScore && currentComponents == string(componentsJSON) {
		if _, err := tx.ExecContext(ctx, `
			UPDATE target_score SET scored_at = ? WHERE id = ?
		`, ts.ScoredAt, currentID); err != nil {
			return fmt.Errorf("touch unchanged current row: %w", err)
		}
		ts.ID = currentID
		ts.ScoreVersion = currentVersion
		return tx.Commit()
	}

	var prevVersion sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(score_version) FROM target_score
		WHERE gene_entity_id = ? AND cancer_entity_id = ?
	`, ts.GeneEntityID, ts.CancerEntityID).Scan(&prevVersion)
	if err != nil {
		return fmt.Errorf("lookup prev version: %w", err)
	}
	ts.ScoreVersion = int(prevVersion.Int64) + 1

	if _, err := tx.ExecContext(ctx, `
		UPDATE target_score SET is_current = 0
		WHERE gene_entity_id = ? AND cancer_entity_id = ? AND is_current = 1
	`, ts.GeneEntityID, ts.CancerEntityID); err != nil {
		return fmt.Errorf("unset prior current: %w", err)
	}

	weightsJSON, err := json.Marshal(weightsForJSON(ts.Weights))
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	flagsJSON, err := json.Marshal(nonNilStrings(ts.Flags))
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	warningsJSON, err := json.Marshal(nonNilStrings(ts.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO target_score (
			id, gene_entity_id, cancer_entity_id, score_version, composite_score,
			confidence_adjusted_score, components_json, weights_json, penalty,
			shortlist_tier, flags_json, warnings_json, is_current, scored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, ts.ID, ts.GeneEntityID, ts.CancerEntityID, ts.ScoreVersion, ts.CompositeScore,
		ts.ConfidenceAdjustedScore, string(componentsJSON), string(weightsJSON), ts.Penalty,
		string(ts.ShortlistTier), string(flagsJSON), string(warningsJSON), ts.ScoredAt); err != nil {
		return fmt.Errorf("insert target_score: %w", err)
	}

	return tx.Commit()
}

func componentsForJSON(components map[Component]ComponentResult) map[string]ComponentResult {
	out := make(map[string]ComponentResult, len(components))
	for k, v := range components {
		out[string(k)] = v
	}
	return out
}

func weightsForJSON(weights map[Component]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[string(k)] = v
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
