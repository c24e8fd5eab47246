package query

import (
	"context"
	"fmt"
)

// factRow is one raw literature fact supporting a gene/cancer claim.
type factRow struct {
	subjectID string
	predicate string
	objectID  string
	pmid      *string
	doi       *string
	sourceDB  *string
}

// assembleClaims gathers every distinct (subject, predicate, object) triple
// linking geneID and cancerID, aggregates its confidence via the Knowledge
// Graph's noisy-OR rule, and cites every contributing fact's source. A gene
// with no supporting facts still gets one claim, tagged INFERRED with
// confidence capped at inferredConfidenceCap (§4.9 step 6).
func (s *Service) assembleClaims(ctx context.Context, geneID, cancerID string, fallbackScore float64) ([]Claim, error) {
	facts, err := s.factsBetween(ctx, geneID, cancerID)
	if err != nil {
		return nil, fmt.Errorf("facts between %s and %s: %w", geneID, cancerID, err)
	}
	if len(facts) == 0 {
		confidence := fallbackScore
		if confidence > inferredConfidenceCap {
			confidence = inferredConfidenceCap
		}
		return []Claim{{
			Predicate:  "composite_score_estimate",
			Value:      fmt.Sprintf("%.3f", fallbackScore),
			Confidence: confidence,
			Inferred:   true,
		}}, nil
	}

	type triple struct{ subject, predicate, object string }
	seen := make(map[triple][]factRow)
	var order []triple
	for _, f := range facts {
		t := triple{f.subjectID, f.predicate, f.objectID}
		if _, ok := seen[t]; !ok {
			order = append(order, t)
		}
		seen[t] = append(seen[t], f)
	}

	claims := make([]Claim, 0, len(order))
	for _, t := range order {
		agg, err := s.graph.Aggregate(ctx, t.subject, t.predicate, t.object)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s/%s/%s: %w", t.subject, t.predicate, t.object, err)
		}
		sources := make([]Citation, 0, len(seen[t]))
		for _, f := range seen[t] {
			sources = append(sources, Citation{PMID: f.pmid, DOI: f.doi, SourceDB: f.sourceDB})
		}
		claims = append(claims, Claim{
			Predicate:  t.predicate,
			Value:      t.object,
			Confidence: agg.AggregateConfidence,
			Inferred:   false,
			Sources:    sources,
		})
	}
	return claims, nil
}

func (s *Service) factsBetween(ctx context.Context, geneID, cancerID string) ([]factRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject_entity_id, predicate, object_entity_id, source_pmid, source_doi, source_db
		FROM fact
		WHERE valid_until IS NULL
		  AND ((subject_entity_id = ? AND object_entity_id = ?)
		    OR (subject_entity_id = ? AND object_entity_id = ?))
	`, geneID, cancerID, cancerID, geneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []factRow
	for rows.Next() {
		var f factRow
		if err := rows.Scan(&f.subjectID, &f.predicate, &f.objectID, &f.pmid, &f.doi, &f.sourceDB); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// weightedMeanConfidence computes overall_confidence as the weighted mean of
// the bundle's confidence_adjusted_score values, weighted by themselves —
// higher-confidence candidates dominate the summary (§4.9 step 8).
func weightedMeanConfidence(candidates []Candidate) float64 {
	var num, den float64
	for _, c := range candidates {
		num += c.ConfidenceAdjustedScore * c.ConfidenceAdjustedScore
		den += c.ConfidenceAdjustedScore
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// caveatsFor collects the bundle's caveats (§4.9 step 8): one when any
// candidate lacks an experimental structure, and one when any candidate's
// confidence-adjusted score is above 0 and below 0.5. No caveat about
// cell-line-only evidence is produced.
func caveatsFor(rows []candidateRow) []string {
	var predictedOnly, lowConfidence bool
	for _, r := range rows {
		if !r.hasExperimentalStructure {
			predictedOnly = true
		}
		if r.confidenceAdjustedScore > 0 && r.confidenceAdjustedScore < 0.5 {
			lowConfidence = true
		}
	}
	var caveats []string
	if predictedOnly {
		caveats = append(caveats, "some structures are predicted-only (no experimental PDB entry)")
	}
	if lowConfidence {
		caveats = append(caveats, "some candidates carry low confidence-adjusted scores")
	}
	return caveats
}
