package ingest

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/infra/llm"
)

// Reconciler periodically retries embedding for chunks left embedding-
// pending by Stage 6 (§7 error kind 5: a failed embed never blocks
// indexing, but leaves lexical-only chunks until retried).
type Reconciler struct {
	documents *document.Service
	embedder  llm.LLMProvider
	batchSize int
	cron      *cron.Cron
}

// NewReconciler builds a Reconciler. batchSize falls back to
// EmbedBatchSizeCPU when zero.
func NewReconciler(documents *document.Service, embedder llm.LLMProvider, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = EmbedBatchSizeCPU
	}
	return &Reconciler{documents: documents, embedder: embedder, batchSize: batchSize, cron: cron.New()}
}

// Start schedules ReconcileOnce every 15 minutes and runs the cron loop.
func (r *Reconciler) Start() error {
	_, err := r.cron.AddFunc("*/15 * * * *", func() {
		_, _ = r.ReconcileOnce(context.Background(), 500)
	})
	if err != nil {
		return fmt.Errorf("ingest: schedule embedding reconciler: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron runner, waiting for any in-flight tick to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// ReconcileOnce retries embedding for up to limit pending/failed chunks and
// reports how many were recovered.
func (r *Reconciler) ReconcileOnce(ctx context.Context, limit int) (int, error) {
	pending, err := r.documents.PendingEmbeddings(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("ingest: list pending embeddings: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	inputs := make([]PendingChunk, len(pending))
	for i, c := range pending {
		inputs[i] = PendingChunk{Index: i, Content: c.Content}
	}

	embedded := EmbedChunks(ctx, r.embedder, inputs, r.batchSize)
	if err := ApplyReconciledEmbeddings(ctx, r.documents, pending, embedded); err != nil {
		return 0, fmt.Errorf("ingest: apply reconciled embeddings: %w", err)
	}

	recovered := 0
	for _, e := range embedded {
		if !e.Failed {
			recovered++
		}
	}
	return recovered, nil
}
