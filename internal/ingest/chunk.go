package ingest

import (
	"strings"

	"github.com/oncotarget/engine/internal/document"
)

// Sliding-window parameters for narrative sections (§4.3 Stage 5).
const (
	chunkWindowTokens  = 512
	chunkOverlapTokens = 64
)

// ParsedSection is one section Stage 4 (Parse) produced, ready for Stage 5
// (Chunk). Table sections carry their row-groups pre-split; every other
// section type carries its full text in Content.
type ParsedSection struct {
	Type       document.SectionType
	Heading    *string
	Content    string
	RowGroups  []string // only populated for document.SectionTable
	PageNumber *int
}

// countTokens approximates the embedding model's tokenizer with whitespace
// word counting — no tokenizer library ships in the retrieval pack, and
// Ollama's HTTP API exposes no token-counting endpoint, so this is a stdlib
// stand-in (see DESIGN.md).
func countTokens(s string) int {
	return len(strings.Fields(s))
}

// Chunk applies §4.3 Stage 5's section-aware rules: the abstract is always
// one chunk, tables split into one chunk per row-group, figure captions are
// one chunk each, and every other section slides a 512/64-token window over
// its content.
func Chunk(sections []ParsedSection) []document.NewChunkInput {
	var chunks []document.NewChunkInput
	for _, sec := range sections {
		switch sec.Type {
		case document.SectionAbstract, document.SectionFigureCaption:
			chunks = append(chunks, document.NewChunkInput{
				SectionType: sec.Type, SectionHeading: sec.Heading,
				Content: sec.Content, TokenCount: countTokens(sec.Content), PageNumber: sec.PageNumber,
			})
		case document.SectionTable:
			for _, rg := range sec.RowGroups {
				chunks = append(chunks, document.NewChunkInput{
					SectionType: sec.Type, SectionHeading: sec.Heading,
					Content: rg, TokenCount: countTokens(rg), PageNumber: sec.PageNumber,
				})
			}
		default:
			chunks = append(chunks, slidingWindowChunks(sec)...)
		}
	}
	return chunks
}

// slidingWindowChunks windows a narrative section's tokens at
// chunkWindowTokens with chunkOverlapTokens of context carried into the next
// chunk. Both chunks store the shared tokens; retrieval-side consumers
// collapse the duplication when assembling a multi-chunk passage (§4.3
// Stage 5: "consumers deduplicate on retrieval").
func slidingWindowChunks(sec ParsedSection) []document.NewChunkInput {
	tokens := strings.Fields(sec.Content)
	if len(tokens) == 0 {
		return nil
	}

	step := chunkWindowTokens - chunkOverlapTokens
	var out []document.NewChunkInput
	for start := 0; start < len(tokens); start += step {
		end := start + chunkWindowTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		out = append(out, document.NewChunkInput{
			SectionType: sec.Type, SectionHeading: sec.Heading,
			Content: strings.Join(window, " "), TokenCount: len(window), PageNumber: sec.PageNumber,
		})
		if end == len(tokens) {
			break
		}
	}
	return out
}
