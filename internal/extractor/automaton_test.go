package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAutomatonScanFindsOverlappingAliases(t *testing.T) {
	auto := NewAutomaton([]Candidate{
		{EntityID: "e1", EntityType: "Gene", CanonicalText: "KRAS"},
		{EntityID: "e2", EntityType: "CancerType", CanonicalText: "pancreatic"},
	})

	matches := auto.Scan("KRAS G12D pancreatic adenocarcinoma")

	var foundGene, foundCancer bool
	for _, m := range matches {
		if m.Candidate.EntityID == "e1" {
			foundGene = true
			require.Equal(t, "KRAS", m.Text)
		}
		if m.Candidate.EntityID == "e2" {
			foundCancer = true
		}
	}
	require.True(t, foundGene)
	require.True(t, foundCancer)
}

func TestAutomatonIsCaseInsensitive(t *testing.T) {
	auto := NewAutomaton([]Candidate{{EntityID: "e1", EntityType: "Gene", CanonicalText: "TP53"}})
	matches := auto.Scan("mutation in tp53 was observed")
	require.Len(t, matches, 1)
	require.Equal(t, "tp53", matches[0].Text)
}

func TestAutomatonSkipsSingleCharacterPatterns(t *testing.T) {
	auto := NewAutomaton([]Candidate{{EntityID: "e1", EntityType: "Gene", CanonicalText: "X"}})
	matches := auto.Scan("X marks the spot")
	require.Empty(t, matches)
}

func TestContextGuardDropsUnaccompaniedCollisionProneSymbol(t *testing.T) {
	matches := []Match{{Text: "CAT", Start: 0, End: 3}}
	out := applyContextGuard(matches, func(s string) bool { return s == "CAT" })
	require.Empty(t, out)
}

func TestContextGuardKeepsCollisionProneSymbolWithNearbyEntity(t *testing.T) {
	matches := []Match{
		{Text: "CAT", Start: 0, End: 3},
		{Text: "KRAS", Start: 10, End: 14},
	}
	out := applyContextGuard(matches, func(s string) bool { return s == "CAT" })
	require.Len(t, out, 2)
}

func TestLooksLikeMutationFamilies(t *testing.T) {
	require.True(t, looksLikeMutation("G12D"))
	require.True(t, looksLikeMutation("p.Gly12Asp"))
	require.True(t, looksLikeMutation("c.35G>A"))
	require.True(t, looksLikeMutation("rs121913529"))
	require.False(t, looksLikeMutation("hello"))
}
