package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/infra/llm"
	"github.com/oncotarget/engine/internal/ingest"
)

type flakyThenOKProvider struct {
	llm.LLMProvider
	calls int
}

func (f *flakyThenOKProvider) Embed(_ context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("transient embedding failure")
	}
	embeddings := make([][]float32, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = []float32{0.9, 0.1}
	}
	return &llm.EmbedResponse{Embeddings: embeddings}, nil
}

func TestReconcileOnceRecoversPendingChunks(t *testing.T) {
	db := newTestDB(t)
	docs := document.NewService(db, nil)

	_, err := docs.InsertPaper(context.Background(), document.NewPaperInput{
		Title: "Pending Paper", Source: "pubmed", AuthorsJSON: "[]",
		Chunks: []document.NewChunkInput{
			{SectionType: document.SectionAbstract, Content: "text one"},
			{SectionType: document.SectionResults, Content: "text two"},
		},
	})
	require.NoError(t, err)

	r := ingest.NewReconciler(docs, &flakyThenOKProvider{}, 0)
	recovered, err := r.ReconcileOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, recovered)

	remaining, err := docs.PendingEmbeddings(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

type alwaysFailProvider struct{ llm.LLMProvider }

func (alwaysFailProvider) Embed(_ context.Context, _ llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return nil, errors.New("still down")
}

func TestReconcileOnceLeavesChunksFailedWhenEmbedderStillDown(t *testing.T) {
	db := newTestDB(t)
	docs := document.NewService(db, nil)

	_, err := docs.InsertPaper(context.Background(), document.NewPaperInput{
		Title: "Pending Paper", Source: "pubmed", AuthorsJSON: "[]",
		Chunks: []document.NewChunkInput{{SectionType: document.SectionAbstract, Content: "text"}},
	})
	require.NoError(t, err)

	r := ingest.NewReconciler(docs, alwaysFailProvider{}, 0)
	recovered, err := r.ReconcileOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, recovered)

	remaining, err := docs.PendingEmbeddings(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestReconcileOnceIsNoOpWhenNothingPending(t *testing.T) {
	db := newTestDB(t)
	docs := document.NewService(db, nil)
	r := ingest.NewReconciler(docs, &flakyThenOKProvider{}, 0)

	recovered, err := r.ReconcileOnce(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, recovered)
}
