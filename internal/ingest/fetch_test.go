package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/ingest"
)

type fakeFullTextSource struct {
	tier    ingest.FetchTier
	content *ingest.FetchedContent
	err     error
}

func (f fakeFullTextSource) Tier() ingest.FetchTier { return f.tier }
func (f fakeFullTextSource) Fetch(ctx context.Context, p ingest.CandidatePaper) (*ingest.FetchedContent, error) {
	return f.content, f.err
}

func TestFetchFullTextReturnsFirstSuccessInTierOrder(t *testing.T) {
	sources := []ingest.FullTextSource{
		fakeFullTextSource{tier: ingest.TierPMCStructuredXML, err: ingest.ErrFullTextNotAvailable},
		fakeFullTextSource{tier: ingest.TierOpenAccessPDF, content: &ingest.FetchedContent{Tier: ingest.TierOpenAccessPDF, PDF: []byte("pdfdata")}},
		fakeFullTextSource{tier: ingest.TierEuropePMCXML, content: &ingest.FetchedContent{Tier: ingest.TierEuropePMCXML, XML: []byte("<article/>")}},
	}

	content, err := ingest.FetchFullText(context.Background(), sources, ingest.CandidatePaper{Title: "t"})
	require.NoError(t, err)
	require.Equal(t, ingest.TierOpenAccessPDF, content.Tier)
}

func TestFetchFullTextFallsBackToAbstractOnly(t *testing.T) {
	sources := []ingest.FullTextSource{
		fakeFullTextSource{tier: ingest.TierPMCStructuredXML, err: ingest.ErrFullTextNotAvailable},
		fakeFullTextSource{tier: ingest.TierOpenAccessPDF, err: ingest.ErrFullTextNotAvailable},
	}
	abstract := "some abstract text"

	content, err := ingest.FetchFullText(context.Background(), sources, ingest.CandidatePaper{Title: "t", Abstract: &abstract})
	require.NoError(t, err)
	require.Equal(t, ingest.TierAbstractOnly, content.Tier)
}

func TestFetchFullTextPropagatesUnexpectedErrors(t *testing.T) {
	sources := []ingest.FullTextSource{
		fakeFullTextSource{tier: ingest.TierPMCStructuredXML, err: errors.New("upstream 500")},
	}
	_, err := ingest.FetchFullText(context.Background(), sources, ingest.CandidatePaper{Title: "t"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ingest.ErrFullTextNotAvailable)
}

func TestFetchFullTextErrorsWhenNothingAvailable(t *testing.T) {
	sources := []ingest.FullTextSource{
		fakeFullTextSource{tier: ingest.TierPMCStructuredXML, err: ingest.ErrFullTextNotAvailable},
	}
	_, err := ingest.FetchFullText(context.Background(), sources, ingest.CandidatePaper{Title: "t"})
	require.Error(t, err)
}
