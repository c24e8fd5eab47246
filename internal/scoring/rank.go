package scoring

import "sort"

// rankNormalize assigns each id a rank/N score across the cohort, top value
// scoring 1.0 (§4.7 Normalization). Ties share the average rank of the tied
// block so equal raw values always normalize to equal scores.
func rankNormalize(values map[string]float64) map[string]float64 {
	n := len(values)
	out := make(map[string]float64, n)
	if n == 0 {
		return out
	}

	ids := make([]string, 0, n)
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return values[ids[i]] < values[ids[j]] })

	i := 0
	for i < n {
		j := i
		for j+1 < n && values[ids[j+1]] == values[ids[i]] {
			j++
		}
		// Average 1-indexed rank across the tied block [i, j].
		avgRank := float64(i+1+j+1) / 2
		normalized := avgRank / float64(n)
		for k := i; k <= j; k++ {
			out[ids[k]] = normalized
		}
		i = j + 1
	}
	return out
}

// clampDependency maps a raw CERES-style essentiality score into the
// biologically meaningful range before inversion (§4.7: "min-max clamped to
// [-2.0, 0.0], then inverted").
func clampDependency(raw float64) float64 {
	if raw < dependencyClampMin {
		raw = dependencyClampMin
	}
	if raw > dependencyClampMax {
		raw = dependencyClampMax
	}
	return raw
}

// invertDependency flips a clamped dependency score so that more essential
// (more negative raw) ranks higher.
func invertDependency(clamped float64) float64 {
	return -clamped
}
