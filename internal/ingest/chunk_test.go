package ingest_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/document"
	"github.com/oncotarget/engine/internal/ingest"
)

func words(n int) string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = "word"
	}
	return strings.Join(tokens, " ")
}

func TestChunkAbstractIsAlwaysOneChunk(t *testing.T) {
	abstract := words(900)
	chunks := ingest.Chunk([]ingest.ParsedSection{
		{Type: document.SectionAbstract, Content: abstract},
	})
	require.Len(t, chunks, 1)
	require.Equal(t, document.SectionAbstract, chunks[0].SectionType)
	require.Equal(t, 900, chunks[0].TokenCount)
}

func TestChunkNarrativeSectionSlidesWithOverlap(t *testing.T) {
	chunks := ingest.Chunk([]ingest.ParsedSection{
		{Type: document.SectionResults, Content: words(1000)},
	})
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		require.Equal(t, 512, c.TokenCount)
	}
	require.LessOrEqual(t, chunks[len(chunks)-1].TokenCount, 512)
}

func TestChunkTableProducesOneChunkPerRowGroup(t *testing.T) {
	chunks := ingest.Chunk([]ingest.ParsedSection{
		{Type: document.SectionTable, RowGroups: []string{"row1: a | b", "row2: c | d", "row3: e | f"}},
	})
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		require.Equal(t, document.SectionTable, c.SectionType)
	}
}

func TestChunkFigureCaptionIsOneChunk(t *testing.T) {
	chunks := ingest.Chunk([]ingest.ParsedSection{
		{Type: document.SectionFigureCaption, Content: "Figure 1. Kaplan-Meier survival curves by mutation status."},
	})
	require.Len(t, chunks, 1)
	require.Equal(t, document.SectionFigureCaption, chunks[0].SectionType)
}

func TestChunkEmptySectionProducesNoChunks(t *testing.T) {
	chunks := ingest.Chunk([]ingest.ParsedSection{
		{Type: document.SectionDiscussion, Content: "   "},
	})
	require.Empty(t, chunks)
}
