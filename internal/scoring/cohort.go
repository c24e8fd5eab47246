package scoring

import (
	"context"
	"database/sql"
	"fmt"
)

// geneExtras carries the raw, un-normalized fields the penalty rules,
// hard-exclusion rule, and confidence adjustment key off of — kept separate
// from CohortInput because they are not themselves ranked components.
type geneExtras struct {
	knownInhibitors *int
	expressionRatio *float64
	hasExperimental bool
	predictedPLDDT  *float64
	confidenceMean  float64
	disputedKG      bool
}

// buildCohortInput assembles the raw per-component values for every gene
// with at least one evidence row against cancerEntityID, by joining the
// EntityExtension tables populated by internal/evidence (§4.6, §4.7).
func (s *Service) buildCohortInput(ctx context.Context, cancerEntityID string) (CohortInput, map[string]geneExtras, error) {
	geneIDs, err := s.candidateGenes(ctx, cancerEntityID)
	if err != nil {
		return nil, nil, err
	}

	cohort := make(CohortInput, len(geneIDs))
	extras := make(map[string]geneExtras, len(geneIDs))

	for _, geneID := range geneIDs {
		components, ex, err := s.geneComponents(ctx, geneID, cancerEntityID)
		if err != nil {
			return nil, nil, fmt.Errorf("gene %s: %w", geneID, err)
		}
		cohort[geneID] = components
		extras[geneID] = ex
	}
	return cohort, extras, nil
}

// candidateGenes returns every gene entity with a mutation_frequency or
// gene_dependency row against cancerEntityID — the cohort a scoring run
// ranks across (§4.7 Normalization: "full candidate cohort").
func (s *Service) candidateGenes(ctx context.Context, cancerEntityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT gene_entity_id FROM (
			SELECT gene_entity_id FROM mutation_frequency WHERE cancer_entity_id = ?
			UNION
			SELECT gene_entity_id FROM gene_dependency WHERE cancer_entity_id = ?
		)
	`, cancerEntityID, cancerEntityID)
	if err != nil {
		return nil, fmt.Errorf("candidate genes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Service) geneComponents(ctx context.Context, geneID, cancerEntityID string) (map[Component]RawComponent, geneExtras, error) {
	components := make(map[Component]RawComponent, len(AllComponents))
	var ex geneExtras

	var freq sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT frequency FROM mutation_frequency WHERE gene_entity_id = ? AND cancer_entity_id = ?`,
		geneID, cancerEntityID).Scan(&freq)
	if err != nil && err != sql.ErrNoRows {
		return nil, ex, fmt.Errorf("mutation_frequency: %w", err)
	}
	components[ComponentMutationFrequency] = nullableRaw(freq)

	var depMean sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `SELECT dependency_mean FROM gene_dependency WHERE gene_entity_id = ? AND cancer_entity_id = ?`,
		geneID, cancerEntityID).Scan(&depMean)
	if err != nil && err != sql.ErrNoRows {
		return nil, ex, fmt.Errorf("gene_dependency: %w", err)
	}
	components[ComponentDependency] = nullableRaw(depMean)

	var corr sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `SELECT correlation FROM survival_correlation WHERE gene_entity_id = ? AND cancer_entity_id = ?`,
		geneID, cancerEntityID).Scan(&corr)
	if err != nil && err != sql.ErrNoRows {
		return nil, ex, fmt.Errorf("survival_correlation: %w", err)
	}
	if corr.Valid {
		components[ComponentSurvivalCorrelation] = RawComponent{Value: absFloat(corr.Float64), Available: true}
	} else {
		components[ComponentSurvivalCorrelation] = RawComponent{}
	}

	var ratio sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `SELECT tumor_normal_ratio FROM expression_specificity WHERE gene_entity_id = ? AND cancer_entity_id = ?`,
		geneID, cancerEntityID).Scan(&ratio)
	if err != nil && err != sql.ErrNoRows {
		return nil, ex, fmt.Errorf("expression_specificity: %w", err)
	}
	components[ComponentExpressionSpecificity] = nullableRaw(ratio)
	if ratio.Valid {
		v := ratio.Float64
		ex.expressionRatio = &v
	}

	var pdbCount sql.NullInt64
	var hasExperimental int
	var plddt sql.NullFloat64
	var pocket sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT pdb_count, has_experimental, predicted_plddt, pocket_druggability
		FROM gene_structure WHERE gene_entity_id = ?
	`, geneID).Scan(&pdbCount, &hasExperimental, &plddt, &pocket)
	if err != nil && err != sql.ErrNoRows {
		return nil, ex, fmt.Errorf("gene_structure: %w", err)
	}
	if err == nil {
		ex.hasExperimental = hasExperimental != 0
		if plddt.Valid {
			v := plddt.Float64
			ex.predictedPLDDT = &v
		}
		pdbCoverage := 0.0
		if pdbCount.Valid {
			pdbCoverage = float64(pdbCount.Int64) / 5
			if pdbCoverage > 1 {
				pdbCoverage = 1
			}
		}
		plddtNorm := 0.0
		if plddt.Valid {
			plddtNorm = plddt.Float64 / 100
		}
		pocketNorm := 0.0
		if pocket.Valid {
			pocketNorm = pocket.Float64
		}
		structuralRaw := 0.40*pdbCoverage + 0.35*plddtNorm + 0.25*pocketNorm
		components[ComponentStructuralTractability] = RawComponent{Value: structuralRaw, Available: true}
		components[ComponentPocketDetectability] = nullableRaw(pocket)
	} else {
		components[ComponentStructuralTractability] = RawComponent{}
		components[ComponentPocketDetectability] = RawComponent{}
	}

	var knownInhibitors sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT known_inhibitors FROM inhibitor_count WHERE gene_entity_id = ?`, geneID).Scan(&knownInhibitors)
	if err != nil && err != sql.ErrNoRows {
		return nil, ex, fmt.Errorf("inhibitor_count: %w", err)
	}
	if knownInhibitors.Valid {
		v := int(knownInhibitors.Int64)
		ex.knownInhibitors = &v
		components[ComponentInhibitorNovelty] = RawComponent{Value: 1 / (1 + float64(v)), Available: true}
	} else {
		components[ComponentInhibitorNovelty] = RawComponent{}
	}

	var pathwayCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pathway_membership WHERE gene_entity_id = ?`, geneID).Scan(&pathwayCount); err != nil {
		return nil, ex, fmt.Errorf("pathway_membership: %w", err)
	}
	if pathwayCount > 0 {
		components[ComponentPathwayIndependence] = RawComponent{Value: 1 / (1 + float64(pathwayCount)), Available: true}
	} else {
		components[ComponentPathwayIndependence] = RawComponent{}
	}

	var factCount int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fact WHERE subject_entity_id = ? AND object_entity_id = ? AND valid_until IS NULL
	`, geneID, cancerEntityID).Scan(&factCount); err != nil {
		return nil, ex, fmt.Errorf("fact count: %w", err)
	}
	components[ComponentLiteratureNovelty] = RawComponent{Value: 1 / (1 + float64(factCount)), Available: true}

	var avgConfidence sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `
		SELECT AVG(confidence) FROM fact WHERE subject_entity_id = ? AND object_entity_id = ? AND valid_until IS NULL
	`, geneID, cancerEntityID).Scan(&avgConfidence); err != nil {
		return nil, ex, fmt.Errorf("avg confidence: %w", err)
	}
	if avgConfidence.Valid {
		ex.confidenceMean = avgConfidence.Float64
	} else {
		ex.confidenceMean = 1.0
	}

	var disputedCount int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conflict c
		JOIN fact fa ON fa.id = c.fact_id_a
		WHERE fa.subject_entity_id = ? AND fa.object_entity_id = ? AND c.resolution = 'disputed'
	`, geneID, cancerEntityID).Scan(&disputedCount); err != nil {
		return nil, ex, fmt.Errorf("disputed count: %w", err)
	}
	ex.disputedKG = disputedCount > 0

	return components, ex, nil
}

func nullableRaw(v sql.NullFloat64) RawComponent {
	if !v.Valid {
		return RawComponent{}
	}
	return RawComponent{Value: v.Float64, Available: true}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
