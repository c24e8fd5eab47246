package extractor

// applyContextGuard drops mentions of collision-prone short symbols (§4.1:
// "CAT, SET, MAX") unless another biomedical entity mention falls within
// contextWindow characters — the co-occurrence requirement that keeps
// English-word collisions out of the knowledge graph.
func applyContextGuard(matches []Match, isCollisionProne func(string) bool) []Match {
	guarded := make([]bool, len(matches))
	for i, m := range matches {
		if !isCollisionProne(m.Text) {
			continue
		}
		guarded[i] = true
		for j, other := range matches {
			if i == j || isCollisionProne(other.Text) {
				continue
			}
			if withinWindow(m, other, contextWindow) {
				guarded[i] = false
				break
			}
		}
	}

	out := make([]Match, 0, len(matches))
	for i, m := range matches {
		if !guarded[i] {
			out = append(out, m)
		}
	}
	return out
}

func withinWindow(a, b Match, window int) bool {
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	gap := lo - hi
	if gap < 0 {
		gap = 0
	}
	return gap <= window
}
