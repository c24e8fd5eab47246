package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/oncotarget/engine/internal/infra/ratelimit"
)

// SourceAdapter is an external-source discovery adapter. Concrete adapters
// (PubMed, Europe PMC, bioRxiv, crossref, clinical trials...) implement this
// against their own REST contract; the contract itself is external (§6).
type SourceAdapter interface {
	Name() string
	Search(ctx context.Context, queries []string, maxResults int) ([]CandidatePaper, error)
}

// expandQueries builds the per-source query strings from a DiscoveryRequest
// using the explicit expansion rules of §4.3 Stage 1.
func expandQueries(req DiscoveryRequest) []string {
	var queries []string

	if req.Gene != "" {
		terms := append([]string{req.Gene}, req.Aliases...)
		queries = append(queries, strings.Join(terms, " OR "))
	}
	if req.Mutation != "" {
		queries = append(queries, req.Gene+" "+req.Mutation)
	}
	if req.Cancer != "" {
		queries = append(queries, req.Cancer)
	}
	if len(queries) == 0 && req.Gene != "" {
		queries = []string{req.Gene}
	}
	return queries
}

// Discover fans out the expanded query set to every enabled adapter in
// parallel, bounded by the shared rate limiter — "no adapter exceeds its
// declared requests-per-second" (§4.3 Stage 1).
func Discover(ctx context.Context, adapters []SourceAdapter, limiters *ratelimit.Limiters, req DiscoveryRequest) ([]CandidatePaper, []error) {
	queries := expandQueries(req)
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	type result struct {
		papers []CandidatePaper
		err    error
	}

	results := make(chan result, len(adapters))
	for _, adapter := range adapters {
		adapter := adapter
		go func() {
			if err := limiters.Wait(ctx, adapter.Name()); err != nil {
				results <- result{err: fmt.Errorf("ingest: rate limit wait for %s: %w", adapter.Name(), err)}
				return
			}
			papers, err := adapter.Search(ctx, queries, maxResults)
			if err != nil {
				results <- result{err: fmt.Errorf("ingest: discover via %s: %w", adapter.Name(), err)}
				return
			}
			results <- result{papers: papers}
		}()
	}

	var all []CandidatePaper
	var errs []error
	for range adapters {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		all = append(all, r.papers...)
	}
	return all, errs
}
