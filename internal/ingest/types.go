// Package ingest implements the multi-stage ingestion pipeline (§4.3):
// Discovery → Dedup → Fetch → Parse → Chunk → Embed → Index, one run per
// DiscoveryRequest, fanned out across enabled sources under bounded
// concurrency and per-source rate limiting.
package ingest

import "time"

// Stage is one of the pipeline's run_status stages (§6).
type Stage string

const (
	StageSearch   Stage = "search"
	StageUpsert   Stage = "upsert"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageNER      Stage = "ner"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// DiscoveryRequest is the inbound request that starts a pipeline run (§6).
type DiscoveryRequest struct {
	Gene       string
	Mutation   string
	Cancer     string
	Aliases    []string
	DateFrom   *time.Time
	DateTo     *time.Time
	MaxResults int
	Sources    []string
}

// RunStatus is the response shape for run_status(id) (§6).
type RunStatus struct {
	ID      string
	Stage   Stage
	Count   int
	Message string
}

// CandidatePaper is a raw discovery hit before dedup/fetch/parse, carrying
// whatever the source adapter could supply up front.
type CandidatePaper struct {
	Source      string
	DOI         *string
	PubMedID    *string
	PMCID       *string
	Title       string
	Abstract    *string
	AuthorsJSON string
	Journal     *string
	PublishedAt *time.Time
	RawPayload  []byte
}

// SourcePriority ranks sources for richest-metadata-wins dedup merges
// (§4.3 Stage 2: "priority: PubMed > Europe PMC > bioRxiv > metadata-only").
var SourcePriority = map[string]int{
	"pubmed":         4,
	"europepmc":      3,
	"biorxiv":        2,
	"crossref":       1,
	"clinicaltrials": 1,
}
