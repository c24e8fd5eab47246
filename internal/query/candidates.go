package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// candidateRow is one gene's current scoring snapshot, joined with the
// structural/inhibitor fields the planner's filter step needs (§4.9 step 3).
type candidateRow struct {
	geneEntityID              string
	geneName                  string
	compositeScore            float64
	confidenceAdjustedScore   float64
	shortlistTier             string
	flags                     []string
	structuralTractabilityRaw float64
	knownInhibitors           *int
	hasExperimentalStructure  bool
}

type componentSnapshot struct {
	Raw       float64
	Available bool
}

// candidateRows fetches every current TargetScore for cancerEntityID along
// with the structural/inhibitor data the filter step consults.
func (s *Service) candidateRows(ctx context.Context, cancerEntityID string) ([]candidateRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts.gene_entity_id, e.name, ts.composite_score, ts.confidence_adjusted_score,
		       ts.shortlist_tier, ts.flags_json, ts.components_json,
		       ic.known_inhibitors, gs.has_experimental
		FROM target_score ts
		JOIN entity e ON e.id = ts.gene_entity_id
		LEFT JOIN inhibitor_count ic ON ic.gene_entity_id = ts.gene_entity_id
		LEFT JOIN gene_structure gs ON gs.gene_entity_id = ts.gene_entity_id
		WHERE ts.cancer_entity_id = ? AND ts.is_current = 1
	`, cancerEntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidateRow
	for rows.Next() {
		row, err := scanCandidateRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// currentScore fetches a single gene's current TargetScore row for
// cancerEntityID, if one exists; found is false when the pair has never
// been scored.
func (s *Service) currentScore(ctx context.Context, geneEntityID, cancerEntityID string) (candidateRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ts.gene_entity_id, e.name, ts.composite_score, ts.confidence_adjusted_score,
		       ts.shortlist_tier, ts.flags_json, ts.components_json,
		       ic.known_inhibitors, gs.has_experimental
		FROM target_score ts
		JOIN entity e ON e.id = ts.gene_entity_id
		LEFT JOIN inhibitor_count ic ON ic.gene_entity_id = ts.gene_entity_id
		LEFT JOIN gene_structure gs ON gs.gene_entity_id = ts.gene_entity_id
		WHERE ts.gene_entity_id = ? AND ts.cancer_entity_id = ? AND ts.is_current = 1
	`, geneEntityID, cancerEntityID)

	r, err := scanCandidateRow(row)
	if err == sql.ErrNoRows {
		return candidateRow{geneEntityID: geneEntityID}, false, nil
	}
	if err != nil {
		return candidateRow{}, false, err
	}
	return r, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidateRow(scan rowScanner) (candidateRow, error) {
	var (
		r                candidateRow
		flagsJSON        string
		componentsJSON   string
		knownInhibitors  sql.NullInt64
		hasExperimental  sql.NullInt64
	)
	if err := scan.Scan(&r.geneEntityID, &r.geneName, &r.compositeScore, &r.confidenceAdjustedScore,
		&r.shortlistTier, &flagsJSON, &componentsJSON, &knownInhibitors, &hasExperimental); err != nil {
		return candidateRow{}, err
	}

	if err := json.Unmarshal([]byte(flagsJSON), &r.flags); err != nil {
		return candidateRow{}, fmt.Errorf("query: decode flags: %w", err)
	}

	var components map[string]componentSnapshot
	if err := json.Unmarshal([]byte(componentsJSON), &components); err != nil {
		return candidateRow{}, fmt.Errorf("query: decode components: %w", err)
	}
	if c, ok := components["structural_tractability"]; ok && c.Available {
		r.structuralTractabilityRaw = c.Raw
	}

	if knownInhibitors.Valid {
		n := int(knownInhibitors.Int64)
		r.knownInhibitors = &n
	}
	r.hasExperimentalStructure = hasExperimental.Valid && hasExperimental.Int64 != 0

	return r, nil
}

// passesConstraints applies the filter step's thresholds (§4.9 step 4).
func passesConstraints(r candidateRow, c Constraints) bool {
	if c.MinStructuralTractability > 0 && r.structuralTractabilityRaw < c.MinStructuralTractability {
		return false
	}
	if c.MaxInhibitorCount > 0 && r.knownInhibitors != nil && *r.knownInhibitors > c.MaxInhibitorCount {
		return false
	}
	if c.MinConfidence > 0 && r.confidenceAdjustedScore < c.MinConfidence {
		return false
	}
	return true
}
