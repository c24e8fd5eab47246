package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncotarget/engine/internal/document"
)

func TestSectionizeByHeadingSplitsOnKeywordLines(t *testing.T) {
	text := "Abstract\nThis paper studies KRAS.\n\nIntroduction\nPancreatic cancer is aggressive.\n\nResults\nKnockdown reduced viability.\n"
	sections := sectionizeByHeading(text)

	require.Len(t, sections, 3)
	require.Equal(t, document.SectionAbstract, sections[0].Type)
	require.Contains(t, sections[0].Content, "This paper studies KRAS")
	require.Equal(t, document.SectionIntroduction, sections[1].Type)
	require.Equal(t, document.SectionResults, sections[2].Type)
}

func TestMatchHeadingRejectsLongLines(t *testing.T) {
	longLine := "This is a very long sentence that happens to mention results but is clearly body text, not a heading"
	_, ok := matchHeading(longLine)
	require.False(t, ok)
}
