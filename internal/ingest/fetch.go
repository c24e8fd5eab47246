package ingest

import (
	"context"
	"errors"
	"fmt"
)

// FetchTier is the full-text retrieval tier that produced a FetchedContent,
// recorded on the Paper as retrieval_tier (§4.3 Stage 3).
type FetchTier int

const (
	TierPMCStructuredXML FetchTier = iota + 1
	TierOpenAccessPDF
	TierEuropePMCXML
	TierPreprintPDF
	TierCitationGraphPDF
	TierAbstractOnly
)

// ErrFullTextNotAvailable is returned by a FullTextSource when it has
// nothing for the requested paper; the tiered fetcher tries the next tier.
var ErrFullTextNotAvailable = errors.New("ingest: full text not available from this source")

// FetchedContent is the tiered retrieval result for one paper. At most one
// of XML/PDF is populated, matching Tier; the abstract-only tier carries
// neither, and the abstract is read from the CandidatePaper.
type FetchedContent struct {
	Tier FetchTier
	XML  []byte
	PDF  []byte
}

// FullTextSource is one tier of §4.3 Stage 3's retrieval ladder. Concrete
// sources (PMC OA service, Europe PMC full-text API, preprint servers,
// citation-graph OA resolvers) implement this against their own REST
// contract, same as SourceAdapter's discovery contract — the contract itself
// is external.
type FullTextSource interface {
	Tier() FetchTier
	Fetch(ctx context.Context, p CandidatePaper) (*FetchedContent, error)
}

// FetchFullText tries each source in turn and returns the first success
// (§4.3 Stage 3: "tiered, first success wins"). Sources must be supplied in
// ascending tier order. When every source is exhausted and the candidate
// carries an abstract, the abstract-only tier is the guaranteed final
// fallback.
func FetchFullText(ctx context.Context, sources []FullTextSource, p CandidatePaper) (*FetchedContent, error) {
	for _, src := range sources {
		content, err := src.Fetch(ctx, p)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, ErrFullTextNotAvailable) {
			return nil, fmt.Errorf("ingest: fetch via tier %d: %w", src.Tier(), err)
		}
	}

	if p.Abstract != nil && *p.Abstract != "" {
		return &FetchedContent{Tier: TierAbstractOnly}, nil
	}
	return nil, fmt.Errorf("ingest: no full text or abstract available for %q", p.Title)
}
