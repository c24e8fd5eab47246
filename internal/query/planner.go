package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/graph"
	"github.com/oncotarget/engine/pkg/uuid"
)

// Service runs the Query Planner pipeline (§4.9): validate, fetch
// candidates, filter, rank, assemble a cited evidence bundle, and persist
// the plan tree for later reproduction via Explain.
type Service struct {
	db        *sql.DB
	graph     *graph.Service
	documents *document.Service
}

// NewService builds a query Service. Both graph and documents may be shared
// instances already wired elsewhere in the process.
func NewService(db *sql.DB, g *graph.Service, docs *document.Service) *Service {
	return &Service{db: db, graph: g, documents: docs}
}

// Execute runs the plan for q, persists the resulting plan tree, and
// returns the evidence bundle. The returned Bundle.PlanID is the key to
// pass to Explain for reproducibility.
func (s *Service) Execute(ctx context.Context, q Query) (*Bundle, error) {
	if q.Output.TopN <= 0 {
		q.Output.TopN = defaultTopN
	}
	if q.Output.ChunksPerItem <= 0 {
		q.Output.ChunksPerItem = defaultChunksPerItem
	}

	var (
		bundle *Bundle
		steps  []PlanStep
		err    error
	)

	switch q.QueryType {
	case TypeTargetPrioritization:
		bundle, steps, err = s.planTargetPrioritization(ctx, q)
	case TypeEvidenceLookup:
		bundle, steps, err = s.planEvidenceLookup(ctx, q)
	case TypeSimilarity:
		bundle, steps, err = s.planSimilarity(ctx, q)
	default:
		return nil, fmt.Errorf("query: unknown query_type %q", q.QueryType)
	}
	if err != nil {
		return nil, err
	}

	planID := uuid.NewV7().String()
	bundle.PlanID = planID
	bundle.CreatedAt = time.Now().UTC()

	if err := s.persistPlan(ctx, planID, q, steps, bundle); err != nil {
		return nil, fmt.Errorf("query: persist plan: %w", err)
	}

	return bundle, nil
}

// planTargetPrioritization implements §4.9's eight-step pipeline.
func (s *Service) planTargetPrioritization(ctx context.Context, q Query) (*Bundle, []PlanStep, error) {
	var steps []PlanStep

	if q.Entities.CancerEntityID == "" {
		return nil, nil, fmt.Errorf("query: target_prioritization requires entities.cancer_entity_id")
	}
	cancerName, err := s.entityName(ctx, q.Entities.CancerEntityID)
	if err != nil {
		return nil, nil, fmt.Errorf("query: normalize cancer entity: %w", err)
	}
	steps = append(steps, PlanStep{Step: "normalize_entities", Detail: "resolved cancer entity",
		Outcome: map[string]any{"cancer_entity_id": q.Entities.CancerEntityID, "name": cancerName}})

	rows, err := s.candidateRows(ctx, q.Entities.CancerEntityID)
	if err != nil {
		return nil, nil, fmt.Errorf("query: fetch candidates: %w", err)
	}
	steps = append(steps, PlanStep{Step: "fetch_candidates", Detail: "current TargetScore rows for cancer cohort",
		Outcome: map[string]any{"count": len(rows)}})

	filtered := make([]candidateRow, 0, len(rows))
	for _, r := range rows {
		if !passesConstraints(r, q.Constraints) {
			continue
		}
		filtered = append(filtered, r)
	}
	steps = append(steps, PlanStep{Step: "apply_filters", Detail: "structural tractability / inhibitor saturation / confidence floor",
		Outcome: map[string]any{"before": len(rows), "after": len(filtered)}})

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].confidenceAdjustedScore > filtered[j].confidenceAdjustedScore
	})
	steps = append(steps, PlanStep{Step: "rank", Detail: "sorted by composite_score x evidence_confidence"})

	if len(filtered) > q.Output.TopN {
		filtered = filtered[:q.Output.TopN]
	}

	candidates := make([]Candidate, 0, len(filtered))
	for _, r := range filtered {
		claims, err := s.assembleClaims(ctx, r.geneEntityID, q.Entities.CancerEntityID, r.confidenceAdjustedScore)
		if err != nil {
			return nil, nil, fmt.Errorf("query: assemble claims for %s: %w", r.geneEntityID, err)
		}
		excerpts := s.supportingExcerpts(ctx, r.geneName+" "+cancerName, q.Output.ChunksPerItem)
		candidates = append(candidates, Candidate{
			GeneEntityID:            r.geneEntityID,
			GeneName:                r.geneName,
			CompositeScore:          r.compositeScore,
			ConfidenceAdjustedScore: r.confidenceAdjustedScore,
			ShortlistTier:           r.shortlistTier,
			Claims:                  claims,
			Excerpts:                excerpts,
			Flags:                   r.flags,
		})
	}
	steps = append(steps, PlanStep{Step: "assemble_evidence_bundle", Detail: "claims cited or tagged INFERRED; supporting excerpts via hybrid search",
		Outcome: map[string]any{"candidates": len(candidates)}})

	bundle := &Bundle{
		QueryType:         TypeTargetPrioritization,
		Candidates:        candidates,
		OverallConfidence: weightedMeanConfidence(candidates),
		Caveats:           caveatsFor(filtered),
	}
	return bundle, steps, nil
}

// planEvidenceLookup assembles a single candidate's evidence bundle without
// cohort-wide ranking — e.g. "what do we know about gene X in cancer Y".
func (s *Service) planEvidenceLookup(ctx context.Context, q Query) (*Bundle, []PlanStep, error) {
	if q.Entities.GeneEntityID == "" || q.Entities.CancerEntityID == "" {
		return nil, nil, fmt.Errorf("query: evidence_lookup requires entities.gene_entity_id and entities.cancer_entity_id")
	}
	geneName, err := s.entityName(ctx, q.Entities.GeneEntityID)
	if err != nil {
		return nil, nil, fmt.Errorf("query: normalize gene entity: %w", err)
	}
	cancerName, err := s.entityName(ctx, q.Entities.CancerEntityID)
	if err != nil {
		return nil, nil, fmt.Errorf("query: normalize cancer entity: %w", err)
	}
	steps := []PlanStep{{Step: "normalize_entities", Detail: "resolved gene and cancer entities"}}

	row, found, err := s.currentScore(ctx, q.Entities.GeneEntityID, q.Entities.CancerEntityID)
	if err != nil {
		return nil, nil, fmt.Errorf("query: fetch current score: %w", err)
	}
	steps = append(steps, PlanStep{Step: "fetch_score", Detail: "current TargetScore row, if any",
		Outcome: map[string]any{"found": found}})

	claims, err := s.assembleClaims(ctx, q.Entities.GeneEntityID, q.Entities.CancerEntityID, row.confidenceAdjustedScore)
	if err != nil {
		return nil, nil, fmt.Errorf("query: assemble claims: %w", err)
	}
	excerpts := s.supportingExcerpts(ctx, geneName+" "+cancerName, q.Output.ChunksPerItem)
	steps = append(steps, PlanStep{Step: "assemble_evidence_bundle", Detail: "claims cited or tagged INFERRED"})

	candidate := Candidate{
		GeneEntityID:            q.Entities.GeneEntityID,
		GeneName:                geneName,
		CompositeScore:          row.compositeScore,
		ConfidenceAdjustedScore: row.confidenceAdjustedScore,
		ShortlistTier:           row.shortlistTier,
		Claims:                  claims,
		Excerpts:                excerpts,
		Flags:                   row.flags,
	}

	bundle := &Bundle{
		QueryType:         TypeEvidenceLookup,
		Candidates:        []Candidate{candidate},
		OverallConfidence: weightedMeanConfidence([]Candidate{candidate}),
		Caveats:           caveatsFor([]candidateRow{row}),
	}
	return bundle, steps, nil
}

// planSimilarity runs hybrid search alone, with no KG/scoring involvement —
// e.g. "find passages discussing this free-text question".
func (s *Service) planSimilarity(ctx context.Context, q Query) (*Bundle, []PlanStep, error) {
	if q.Entities.QueryText == "" {
		return nil, nil, fmt.Errorf("query: similarity requires entities.query_text")
	}
	results, err := s.documents.Search(ctx, q.Entities.QueryText, nil, q.Output.TopN)
	if err != nil {
		return nil, nil, fmt.Errorf("query: hybrid search: %w", err)
	}
	steps := []PlanStep{{Step: "hybrid_search", Detail: "fused lexical+vector search over document chunks",
		Outcome: map[string]any{"results": len(results)}}}

	excerpts := make([]Excerpt, 0, len(results))
	for _, r := range results {
		excerpts = append(excerpts, Excerpt{PaperID: r.PaperID, ChunkID: r.ChunkID, Snippet: r.Snippet, Score: r.FusedScore})
	}

	bundle := &Bundle{
		QueryType: TypeSimilarity,
		Candidates: []Candidate{{
			Excerpts: excerpts,
		}},
		OverallConfidence: 0,
		Caveats:           []string{"similarity queries return supporting text only, no target score"},
	}
	return bundle, steps, nil
}

// persistPlan writes the plan tree and a compact result summary for later
// reproduction (§4.9: "explain(plan_id) -> plan tree").
func (s *Service) persistPlan(ctx context.Context, planID string, q Query, steps []PlanStep, bundle *Bundle) error {
	requestJSON, err := json.Marshal(q)
	if err != nil {
		return err
	}
	planTreeJSON, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(map[string]any{
		"candidate_count":    len(bundle.Candidates),
		"overall_confidence": bundle.OverallConfidence,
		"caveats":            bundle.Caveats,
	})
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_plan (id, query_type, request_json, plan_tree_json, result_summary_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, planID, string(q.QueryType), string(requestJSON), string(planTreeJSON), string(summaryJSON), time.Now().UTC())
	return err
}

// Explain returns the persisted plan tree for planID (§4.9 reproducibility).
func (s *Service) Explain(ctx context.Context, planID string) (*Plan, error) {
	var (
		queryType     string
		requestJSON   string
		planTreeJSON  string
		summaryJSON   sql.NullString
		createdAtRaw  time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT query_type, request_json, plan_tree_json, result_summary_json, created_at
		FROM query_plan WHERE id = ?
	`, planID).Scan(&queryType, &requestJSON, &planTreeJSON, &summaryJSON, &createdAtRaw)
	if err != nil {
		return nil, fmt.Errorf("query: lookup plan %s: %w", planID, err)
	}

	var q Query
	if err := json.Unmarshal([]byte(requestJSON), &q); err != nil {
		return nil, fmt.Errorf("query: decode request: %w", err)
	}
	var steps []PlanStep
	if err := json.Unmarshal([]byte(planTreeJSON), &steps); err != nil {
		return nil, fmt.Errorf("query: decode plan tree: %w", err)
	}
	var summary map[string]any
	if summaryJSON.Valid {
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("query: decode result summary: %w", err)
		}
	}

	return &Plan{
		ID:            planID,
		QueryType:     Type(queryType),
		Request:       q,
		Steps:         steps,
		ResultSummary: summary,
		CreatedAt:     createdAtRaw,
	}, nil
}

func (s *Service) entityName(ctx context.Context, entityID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM entity WHERE id = ?`, entityID).Scan(&name)
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Service) supportingExcerpts(ctx context.Context, queryText string, k int) []Excerpt {
	results, err := s.documents.Search(ctx, queryText, nil, k)
	if err != nil {
		return nil
	}
	excerpts := make([]Excerpt, 0, len(results))
	for _, r := range results {
		excerpts = append(excerpts, Excerpt{PaperID: r.PaperID, ChunkID: r.ChunkID, Snippet: r.Snippet, Score: r.FusedScore})
	}
	return excerpts
}
