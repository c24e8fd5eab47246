package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/oncotarget/engine/internal/audit"
	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/extractor"
	"github.com/oncotarget/engine/internal/infra/llm"
	"github.com/oncotarget/engine/internal/infra/ratelimit"
)

// Pipeline runs Discovery through Index for one DiscoveryRequest, fanning
// stages 3-7 out across many papers under bounded concurrency (§4.3
// "Concurrency contract"). A failed stage for one paper never blocks
// others — PaperOutcome.Err records the failure without aborting the run.
type Pipeline struct {
	Adapters       []SourceAdapter
	FullTextSource []FullTextSource
	Limiters       *ratelimit.Limiters
	Documents      *document.Service
	Extractor      *extractor.Service
	Embedder       llm.LLMProvider
	Audit          *audit.Service
	Concurrency    int
	EmbedBatchSize int
}

// PaperOutcome is the per-paper result of running stages 3-7.
type PaperOutcome struct {
	Title   string
	PaperID string
	Tier    FetchTier
	Err     error
}

// Run executes the full pipeline and returns one outcome per paper that
// survived deduplication.
func (p *Pipeline) Run(ctx context.Context, req DiscoveryRequest) ([]PaperOutcome, []DedupDecision, error) {
	candidates, discoveryErrs := Discover(ctx, p.Adapters, p.Limiters, req)
	if len(candidates) == 0 && len(discoveryErrs) > 0 {
		return nil, nil, fmt.Errorf("ingest: discovery produced no candidates: %v", discoveryErrs)
	}

	kept, decisions := Dedup(ctx, p.Documents, candidates)

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	outcomes := make([]PaperOutcome, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, candidate := range kept {
		i, candidate := i, candidate
		g.Go(func() error {
			outcomes[i] = p.processPaper(gctx, candidate)
			return nil
		})
	}
	_ = g.Wait() // per-paper errors are captured in outcomes, never abort the run

	return outcomes, decisions, nil
}

// processPaper runs stages 3-7 for a single candidate. It never returns an
// error itself — failures are captured on the returned PaperOutcome so one
// paper's failure cannot block the others in the fan-out.
func (p *Pipeline) processPaper(ctx context.Context, candidate CandidatePaper) PaperOutcome {
	outcome := PaperOutcome{Title: candidate.Title}

	content, err := FetchFullText(ctx, p.FullTextSource, candidate)
	if err != nil {
		outcome.Err = fmt.Errorf("fetch: %w", err)
		return outcome
	}
	outcome.Tier = content.Tier

	sections, err := p.parse(content, candidate)
	if err != nil {
		outcome.Err = fmt.Errorf("parse: %w", err)
		return outcome
	}

	embedded := p.embed(ctx, sections)
	chunkInputs := BuildChunkInputs(sections, embedded)

	var simhash *uint64
	if candidate.Abstract != nil {
		sig := AbstractSimhash(*candidate.Abstract)
		simhash = &sig
	}

	paperID, err := p.Documents.InsertPaper(ctx, document.NewPaperInput{
		DOI: candidate.DOI, PubMedID: candidate.PubMedID, PMCID: candidate.PMCID,
		Title: candidate.Title, Abstract: candidate.Abstract, AuthorsJSON: candidate.AuthorsJSON,
		Journal: candidate.Journal, PublishedAt: candidate.PublishedAt, Source: candidate.Source,
		RetrievalTier: int(content.Tier), AbstractSimhash: simhash, RawPayload: candidate.RawPayload,
		Chunks: chunkInputs,
	})
	if err != nil {
		outcome.Err = fmt.Errorf("index: %w", err)
		return outcome
	}
	outcome.PaperID = paperID

	if p.Audit != nil {
		entityType := "paper"
		_ = p.Audit.LogWithDetails(ctx, "ingest-pipeline", audit.ActorTypeSystem, "ingest.paper_indexed",
			&entityType, &paperID,
			&audit.EventDetails{Metadata: map[string]any{"source": candidate.Source, "retrieval_tier": int(content.Tier)}},
			audit.OutcomeSuccess)
	}

	if p.Extractor != nil {
		p.extractMentions(ctx, paperID)
	}

	return outcome
}

func (p *Pipeline) parse(content *FetchedContent, candidate CandidatePaper) ([]ParsedSection, error) {
	switch {
	case content.XML != nil:
		return ParseJATS(content.XML)
	case content.PDF != nil:
		return ParsePDF(content.PDF)
	default:
		if candidate.Abstract == nil {
			return nil, fmt.Errorf("abstract-only tier selected but candidate has no abstract")
		}
		return []ParsedSection{{Type: document.SectionAbstract, Content: *candidate.Abstract}}, nil
	}
}

func (p *Pipeline) embed(ctx context.Context, sections []ParsedSection) []EmbeddedChunk {
	if p.Embedder == nil {
		return nil
	}
	chunked := Chunk(sections)
	pending := make([]PendingChunk, len(chunked))
	for i, c := range chunked {
		pending[i] = PendingChunk{Index: i, Content: c.Content}
	}
	return EmbedChunks(ctx, p.Embedder, pending, p.EmbedBatchSize)
}

// extractMentions runs the entity extractor over every chunk of a freshly
// indexed paper, now that InsertPaper has committed and chunk ids exist.
// Extraction failures are silent per §4.4 ("failure in entity lookup is
// silent — the mention is stored without normalization").
func (p *Pipeline) extractMentions(ctx context.Context, paperID string) {
	chunks, err := p.Documents.ChunksByPaper(ctx, paperID)
	if err != nil {
		return
	}
	for _, c := range chunks {
		_, _ = p.Extractor.ExtractAndStore(ctx, c.ID, c.Content)
	}
}
