package ingest

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/oncotarget/engine/internal/document"
)

// DedupDecision logs one deduplication outcome (§4.3 Stage 2: "each decision
// is logged").
type DedupDecision struct {
	KeptSource     string
	DroppedSource  string
	MatchedBy      string // "doi", "abstract_simhash", "title_trigram"
	ExistingPaperID *string
}

// simhashBits is the fixed width of the abstract similarity signature.
const simhashBits = 64

// AbstractSimhash computes a 64-bit simhash over the abstract's lowercased
// word tokens (§4.3 Stage 2, "abstract similarity signature").
func AbstractSimhash(abstract string) uint64 {
	var weights [simhashBits]int
	for _, tok := range strings.Fields(strings.ToLower(abstract)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		hv := h.Sum64()
		for bit := 0; bit < simhashBits; bit++ {
			if hv&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}
	var sig uint64
	for bit := 0; bit < simhashBits; bit++ {
		if weights[bit] > 0 {
			sig |= 1 << uint(bit)
		}
	}
	return sig
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

// normalizeDOI lowercases and strips the resolver prefix so "https://doi.org/10.1/X"
// and "10.1/X" compare equal (§4.3 Stage 2, check 1).
func normalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	return d
}

// trigrams returns the set of lowercase character trigrams in s.
func trigrams(s string) map[string]struct{} {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	out := make(map[string]struct{})
	for i := 0; i+3 <= len(s); i++ {
		out[s[i:i+3]] = struct{}{}
	}
	return out
}

// trigramJaccard is the Jaccard similarity of a and b's character trigram sets.
func trigramJaccard(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var intersection int
	for t := range ta {
		if _, ok := tb[t]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func firstAuthorSurname(authorsJSON string) string {
	// AuthorsJSON is a JSON array of "Surname, Given" strings; the dedup
	// check only needs the first entry's surname.
	trimmed := strings.TrimPrefix(strings.TrimSpace(authorsJSON), "[")
	parts := strings.SplitN(trimmed, ",", 2)
	first := strings.Trim(parts[0], `"[] `)
	return strings.ToLower(first)
}

func yearOf(t *time.Time) int {
	if t == nil {
		return 0
	}
	return t.Year()
}

const (
	titleTrigramThreshold = 0.92
	publicationYearSlack  = 1
)

// isDuplicateOf applies the three-check cascade, halting at first match
// (§4.3 Stage 2).
func isDuplicateOf(c, existing CandidatePaper) (matchedBy string, ok bool) {
	if c.DOI != nil && existing.DOI != nil && normalizeDOI(*c.DOI) == normalizeDOI(*existing.DOI) {
		return "doi", true
	}
	if c.Abstract != nil && existing.Abstract != nil {
		if hammingDistance(AbstractSimhash(*c.Abstract), AbstractSimhash(*existing.Abstract)) <= 3 {
			return "abstract_simhash", true
		}
	}
	if trigramJaccard(c.Title, existing.Title) >= titleTrigramThreshold &&
		firstAuthorSurname(c.AuthorsJSON) == firstAuthorSurname(existing.AuthorsJSON) &&
		abs(yearOf(c.PublishedAt)-yearOf(existing.PublishedAt)) <= publicationYearSlack {
		return "title_trigram", true
	}
	return "", false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// richerThan reports whether a's source outranks b's in the metadata-
// richness priority order (§4.3 Stage 2).
func richerThan(a, b CandidatePaper) bool {
	return SourcePriority[a.Source] > SourcePriority[b.Source]
}

// merge folds b's identifiers into a, keeping a's richer-source fields but
// filling any gap b can supply (§4.3 Stage 2: "merges IDs, open-access URLs,
// and citation counts").
func merge(a, b CandidatePaper) CandidatePaper {
	if a.DOI == nil {
		a.DOI = b.DOI
	}
	if a.PubMedID == nil {
		a.PubMedID = b.PubMedID
	}
	if a.PMCID == nil {
		a.PMCID = b.PMCID
	}
	if a.Abstract == nil {
		a.Abstract = b.Abstract
	}
	return a
}

// paperAsCandidate adapts an already-ingested Paper to the CandidatePaper
// shape isDuplicateOf compares against.
func paperAsCandidate(p *document.Paper) CandidatePaper {
	return CandidatePaper{
		Source:      p.Source,
		DOI:         p.DOI,
		PubMedID:    p.PubMedID,
		PMCID:       p.PMCID,
		Title:       p.Title,
		Abstract:    p.Abstract,
		AuthorsJSON: p.AuthorsJSON,
		Journal:     p.Journal,
		PublishedAt: p.PublishedAt,
	}
}

// findHistoricalDuplicate applies the abstract-simhash and title-trigram
// checks against already-ingested papers (the DOI check runs separately,
// before this, since it has its own indexed lookup). This is what makes a
// DOI-less paper re-discovered in a later, separate run collapse onto its
// existing row instead of being inserted again.
func findHistoricalDuplicate(ctx context.Context, docs *document.Service, c CandidatePaper) (*document.Paper, string, error) {
	if c.Abstract != nil {
		matches, err := docs.FindBySimilarAbstract(ctx, AbstractSimhash(*c.Abstract))
		if err != nil {
			return nil, "", err
		}
		if len(matches) > 0 {
			return matches[0], "abstract_simhash", nil
		}
	}

	existingPapers, err := docs.FindByTitleCandidates(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, existing := range existingPapers {
		if _, ok := isDuplicateOf(c, paperAsCandidate(existing)); ok {
			return existing, "title_trigram", nil
		}
	}
	return nil, "", nil
}

// Dedup applies the three-check cascade within the discovered batch and
// against already-ingested papers, returning the deduplicated set in
// discovery order and a log of every collapse decision.
func Dedup(ctx context.Context, docs *document.Service, candidates []CandidatePaper) ([]CandidatePaper, []DedupDecision) {
	var kept []CandidatePaper
	var decisions []DedupDecision

	for _, c := range candidates {
		if c.DOI != nil {
			if existing, err := docs.FindByDOI(ctx, normalizeDOI(*c.DOI)); err == nil && existing != nil {
				decisions = append(decisions, DedupDecision{
					KeptSource: existing.Source, DroppedSource: c.Source,
					MatchedBy: "doi", ExistingPaperID: &existing.ID,
				})
				continue
			}
		}

		if existing, matchedBy, err := findHistoricalDuplicate(ctx, docs, c); err == nil && existing != nil {
			decisions = append(decisions, DedupDecision{
				KeptSource: existing.Source, DroppedSource: c.Source,
				MatchedBy: matchedBy, ExistingPaperID: &existing.ID,
			})
			continue
		}

		dupIndex := -1
		var matchedBy string
		for i, k := range kept {
			if by, ok := isDuplicateOf(c, k); ok {
				dupIndex, matchedBy = i, by
				break
			}
		}

		if dupIndex == -1 {
			kept = append(kept, c)
			continue
		}

		if richerThan(c, kept[dupIndex]) {
			decisions = append(decisions, DedupDecision{KeptSource: c.Source, DroppedSource: kept[dupIndex].Source, MatchedBy: matchedBy})
			kept[dupIndex] = merge(c, kept[dupIndex])
		} else {
			decisions = append(decisions, DedupDecision{KeptSource: kept[dupIndex].Source, DroppedSource: c.Source, MatchedBy: matchedBy})
			kept[dupIndex] = merge(kept[dupIndex], c)
		}
	}

	return kept, decisions
}
