package extractor

import "strings"

// node is one trie node in the Aho-Corasick automaton.
type node struct {
	children map[byte]*node
	fail     *node
	// candidates lists every Candidate whose pattern ends at this node,
	// lower-cased pattern may be shared by multiple entity ids (synonyms
	// across entity types collide on text, e.g. "MET" as a gene symbol).
	candidates []Candidate
	// depth is the pattern length ending at this node, used to recover the
	// matched span from the scan position.
	depth int
}

// Automaton is a deterministic multi-pattern matcher scanning in O(n) over
// the chunk text, independent of the number of patterns loaded (§4.4: "O(n)
// scanning"). Matching is case-insensitive; patterns are lower-cased at
// build time and at scan time.
type Automaton struct {
	root *node
	built bool
}

// NewAutomaton builds an automaton from a candidate alias set. Patterns
// shorter than 2 characters are skipped — single-character aliases produce
// unusable noise at document scale.
func NewAutomaton(candidates []Candidate) *Automaton {
	a := &Automaton{root: &node{children: map[byte]*node{}}}
	for _, c := range candidates {
		pattern := strings.ToLower(strings.TrimSpace(c.CanonicalText))
		if len(pattern) < 2 {
			continue
		}
		a.insert(pattern, c)
	}
	a.build()
	return a
}

func (a *Automaton) insert(pattern string, c Candidate) {
	cur := a.root
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		next, ok := cur.children[ch]
		if !ok {
			next = &node{children: map[byte]*node{}}
			cur.children[ch] = next
		}
		cur = next
	}
	cur.depth = len(pattern)
	cur.candidates = append(cur.candidates, c)
}

// build computes failure links breadth-first, the standard Aho-Corasick
// construction, and merges each node's candidates with its failure
// node's so dictionary suffix matches are not missed.
func (a *Automaton) build() {
	var queue []*node
	a.root.fail = a.root
	for _, child := range a.root.children {
		child.fail = a.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for ch, child := range cur.children {
			queue = append(queue, child)
			failTo := cur.fail
			for failTo != a.root {
				if next, ok := failTo.children[ch]; ok {
					child.fail = next
					break
				}
				failTo = failTo.fail
			}
			if child.fail == nil {
				if next, ok := a.root.children[ch]; ok && next != child {
					child.fail = next
				} else {
					child.fail = a.root
				}
			}
			child.candidates = append(child.candidates, child.fail.candidates...)
		}
	}
	a.built = true
}

// Match is one raw hit from Scan before context-guard filtering.
type Match struct {
	Candidate Candidate
	Start     int
	End       int // exclusive
	Text      string // original-case substring of text
}

// Scan walks text once, following failure links on mismatch, and emits a
// Match for every candidate ending at every position.
func (a *Automaton) Scan(text string) []Match {
	lower := strings.ToLower(text)
	cur := a.root
	var matches []Match

	for i := 0; i < len(lower); i++ {
		ch := lower[i]
		for cur != a.root {
			if _, ok := cur.children[ch]; ok {
				break
			}
			cur = cur.fail
		}
		if next, ok := cur.children[ch]; ok {
			cur = next
		} else {
			cur = a.root
		}
		for _, c := range cur.candidates {
			start := i + 1 - cur.depth
			if start < 0 {
				continue
			}
			matches = append(matches, Match{
				Candidate: c,
				Start:     start,
				End:       i + 1,
				Text:      text[start : i+1],
			})
		}
	}
	return matches
}
