// Package query implements the Query Planner (§4.9): it turns a structured
// Query into an execution plan, runs the plan against the Knowledge Graph,
// Scoring Engine, and hybrid document search, and assembles a cited evidence
// bundle. Every plan is persisted so explain(plan_id) can reproduce it.
package query

import "time"

// Type enumerates the kinds of query the planner accepts.
type Type string

const (
	TypeTargetPrioritization Type = "target_prioritization"
	TypeEvidenceLookup       Type = "evidence_lookup"
	TypeSimilarity           Type = "similarity"
)

// EntityFilter narrows a query to specific named entities.
type EntityFilter struct {
	CancerEntityID string `json:"cancer_entity_id,omitempty"`
	GeneEntityID   string `json:"gene_entity_id,omitempty"`
	QueryText      string `json:"query_text,omitempty"`
}

// Constraints bounds the candidate set a target_prioritization query ranks.
type Constraints struct {
	MinStructuralTractability float64 `json:"min_structural_tractability,omitempty"`
	MaxInhibitorCount         int     `json:"max_inhibitor_count,omitempty"`
	MinConfidence             float64 `json:"min_confidence,omitempty"`
}

// OutputPreferences controls how much of the ranked bundle is returned.
type OutputPreferences struct {
	TopN          int `json:"top_n,omitempty"`
	ChunksPerItem int `json:"chunks_per_item,omitempty"`
}

// Query is the planner's sole input (§4.9).
type Query struct {
	QueryType   Type              `json:"query_type"`
	Entities    EntityFilter      `json:"entities,omitempty"`
	Constraints Constraints       `json:"constraints,omitempty"`
	Output      OutputPreferences `json:"output,omitempty"`
}

// PlanStep is one node in the persisted, reproducible plan tree.
type PlanStep struct {
	Step    string         `json:"step"`
	Detail  string         `json:"detail"`
	Outcome map[string]any `json:"outcome,omitempty"`
}

// Citation is a single traceable source backing a factual claim (§4.9 step 6):
// a PubMed id, DOI, or internal database record id.
type Citation struct {
	PMID     *string `json:"pmid,omitempty"`
	DOI      *string `json:"doi,omitempty"`
	SourceDB *string `json:"source_db,omitempty"`
	FactID   *string `json:"fact_id,omitempty"`
}

// Claim is one factual statement in a candidate's evidence, annotated with
// its sources or, lacking any, tagged INFERRED with confidence capped at 0.3.
type Claim struct {
	Predicate  string     `json:"predicate"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Inferred   bool       `json:"inferred"`
	Sources    []Citation `json:"sources"`
}

// Excerpt is a supporting chunk surfaced by hybrid search for a candidate.
type Excerpt struct {
	PaperID string  `json:"paper_id"`
	ChunkID string  `json:"chunk_id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Candidate is one ranked gene in a target_prioritization bundle.
type Candidate struct {
	GeneEntityID            string    `json:"gene_entity_id"`
	GeneName                string    `json:"gene_name"`
	CompositeScore          float64   `json:"composite_score"`
	ConfidenceAdjustedScore float64   `json:"confidence_adjusted_score"`
	ShortlistTier           string    `json:"shortlist_tier"`
	Claims                  []Claim   `json:"claims"`
	Excerpts                []Excerpt `json:"excerpts"`
	Flags                   []string  `json:"flags"`
}

// Bundle is the planner's emitted output (§4.9 step 8).
type Bundle struct {
	PlanID           string      `json:"plan_id"`
	QueryType        Type        `json:"query_type"`
	Candidates       []Candidate `json:"candidates"`
	OverallConfidence float64    `json:"overall_confidence"`
	Caveats          []string    `json:"caveats"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Plan is the full persisted, explainable execution record (§4.9: "the
// planner exposes explain(plan_id) -> plan tree for reproducibility").
type Plan struct {
	ID            string
	QueryType     Type
	Request       Query
	Steps         []PlanStep
	ResultSummary map[string]any
	CreatedAt     time.Time
}

// inferredConfidenceCap is the maximum confidence an unsourced claim, which
// is always tagged INFERRED, may carry (§4.9 step 6).
const inferredConfidenceCap = 0.3

const (
	defaultTopN          = 10
	defaultChunksPerItem = 3
)
