package ingest

import (
	"context"

	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/infra/llm"
)

// Default batch sizes for Stage 6 (§4.3: "batch size 32 on CPU, up to 128 on GPU").
const (
	EmbedBatchSizeCPU = 32
	EmbedBatchSizeGPU = 128
)

// PendingChunk is a chunk awaiting embedding, paired with the text to embed.
type PendingChunk struct {
	Index   int
	Content string
}

// EmbeddedChunk is the outcome of embedding one PendingChunk: either Vector
// is populated, or Failed is true and the chunk is left embedding-pending.
type EmbeddedChunk struct {
	Index  int
	Vector []float32
	Failed bool
}

// EmbedChunks embeds content in batches of batchSize, retrying a failed
// batch exactly once before marking every chunk in it as embedding-pending
// and moving on — index insert for those chunks is deferred to the
// reconciler (§4.3 Stage 6).
func EmbedChunks(ctx context.Context, provider llm.LLMProvider, chunks []PendingChunk, batchSize int) []EmbeddedChunk {
	if batchSize <= 0 {
		batchSize = EmbedBatchSizeCPU
	}

	results := make([]EmbeddedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		results = append(results, embedBatchWithRetry(ctx, provider, batch)...)
	}
	return results
}

func embedBatchWithRetry(ctx context.Context, provider llm.LLMProvider, batch []PendingChunk) []EmbeddedChunk {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := provider.Embed(ctx, llm.EmbedRequest{Texts: texts})
	if err != nil {
		vectors, err = provider.Embed(ctx, llm.EmbedRequest{Texts: texts})
	}
	if err != nil || vectors == nil || len(vectors.Embeddings) != len(batch) {
		out := make([]EmbeddedChunk, len(batch))
		for i, c := range batch {
			out[i] = EmbeddedChunk{Index: c.Index, Failed: true}
		}
		return out
	}

	out := make([]EmbeddedChunk, len(batch))
	for i, c := range batch {
		out[i] = EmbeddedChunk{Index: c.Index, Vector: vectors.Embeddings[i]}
	}
	return out
}

// BuildChunkInputs folds embedding results back into NewChunkInput for
// Stage 7's atomic insert. A failed chunk still gets a NewChunkInput with no
// Embedding — InsertPaper stores it pending, so lexical search is available
// immediately and only the vector side waits on the reconciler.
func BuildChunkInputs(sections []ParsedSection, embedded []EmbeddedChunk) []document.NewChunkInput {
	chunked := Chunk(sections)
	vectors := make(map[int][]float32, len(embedded))
	for _, e := range embedded {
		if !e.Failed {
			vectors[e.Index] = e.Vector
		}
	}
	for i := range chunked {
		chunked[i].Embedding = vectors[i]
	}
	return chunked
}

// ApplyReconciledEmbeddings writes embedding results for chunks that were
// already indexed pending (the periodic reconciler's retry path), matching
// each EmbeddedChunk.Index back to pending[Index].ID.
func ApplyReconciledEmbeddings(ctx context.Context, docs *document.Service, pending []document.Chunk, embedded []EmbeddedChunk) error {
	for _, e := range embedded {
		chunkID := pending[e.Index].ID
		if e.Failed {
			if err := docs.MarkEmbeddingFailed(ctx, chunkID); err != nil {
				return err
			}
			continue
		}
		if err := docs.SetEmbedding(ctx, chunkID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}
