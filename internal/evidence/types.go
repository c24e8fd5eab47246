// Package evidence pulls and normalizes curated external data — gene
// essentiality, mutation frequency, survival correlation, expression
// specificity, structural tractability, inhibitor counts, and pathway
// membership — into the EntityExtension tables the Scoring Engine reads
// (§4.6). Every adapter is idempotent and versioned: each run records
// (source, version, fetched_at) and upserts by canonical id. A value the
// source does not report is left NULL, never defaulted to zero.
package evidence

import "time"

// RunStatus enumerates an AdapterRun's outcome.
type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// AdapterRun records one invocation of a registered adapter.
type AdapterRun struct {
	ID        string
	Source    string
	Version   string
	FetchedAt time.Time
	RowCount  int
	Status    RunStatus
}

// GeneDependency is a CERES-style essentiality score for a (gene, cancer
// type) pair, joined via the cell-line → OncoTree mapping (§4.6).
type GeneDependency struct {
	GeneEntityID     string
	CancerEntityID   string
	DependencyMean   *float64
	DependencyMedian *float64
	CellLineCount    int
	SourceVersion    string
}

// MutationFrequency is the somatic mutation frequency of a gene within a
// cancer type's sequenced cohort.
type MutationFrequency struct {
	GeneEntityID   string
	CancerEntityID string
	Frequency      *float64
	CohortSize     *int
	SourceVersion  string
}

// SurvivalCorrelation is the correlation between a gene's expression/
// alteration status and patient survival within a cancer type.
type SurvivalCorrelation struct {
	GeneEntityID   string
	CancerEntityID string
	Correlation    *float64
	PValue         *float64
	SourceVersion  string
}

// ExpressionSpecificity is the tumor-vs-normal expression ratio for a gene
// within a cancer type.
type ExpressionSpecificity struct {
	GeneEntityID     string
	CancerEntityID   string
	TumorNormalRatio *float64
	SourceVersion    string
}

// PathwayMembership records a gene's membership in a curated pathway.
type PathwayMembership struct {
	GeneEntityID    string
	PathwayEntityID string
	SourceVersion   string
}

// GeneStructure is structural tractability evidence for a gene: solved
// (experimental) structure coverage, the best predicted-model confidence,
// and pocket druggability.
type GeneStructure struct {
	GeneEntityID        string
	PDBCount            *int
	HasExperimental      bool
	PredictedPLDDT       *float64
	PocketDruggability   *float64
	SourceVersion        string
}

// InhibitorCount is the count of known small-molecule/biologic inhibitors
// of a gene's product, used for the inhibitor-novelty component and the
// saturation penalty (§4.7).
type InhibitorCount struct {
	GeneEntityID    string
	KnownInhibitors *int
	SourceVersion   string
}
