package feedback

import "sort"

// componentCorrelation is one scoring component's Pearson correlation
// against the operator-configured target metric signal (Open Question (c)
// in SPEC_FULL.md: "recall_at_n" or "binding_affinity_r").
type componentCorrelation struct {
	component string
	corr      float64
}

// computeWeightUpdate runs the Bayesian-bounded update algorithm (§4.8):
// components whose correlation exceeds corrHighThreshold are boosted,
// components below corrLowThreshold are decayed, everything else is left
// unchanged; the result is renormalized to sum to 1.0, then each single
// weight's change is clamped to maxSingleWeightDelta, and finally every
// weight is clamped to [minWeight, maxWeight]. The range clamp runs last
// so no weight can end up outside [minWeight, maxWeight].
func computeWeightUpdate(current map[string]float64, correlations map[string]float64) map[string]float64 {
	proposed := make(map[string]float64, len(current))
	for component, w := range current {
		corr := correlations[component]
		switch {
		case corr > corrHighThreshold:
			proposed[component] = w * (1 + corrBoostFactor*corr)
		case corr < corrLowThreshold:
			proposed[component] = w * corrDecayFactor
		default:
			proposed[component] = w
		}
	}

	renormalize(proposed)
	clampDeltas(proposed, current)
	clampRange(proposed)

	return proposed
}

func renormalize(weights map[string]float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return
	}
	for k, w := range weights {
		weights[k] = w / sum
	}
}

func clampDeltas(proposed, current map[string]float64) {
	for k, w := range proposed {
		delta := w - current[k]
		if delta > maxSingleWeightDelta {
			proposed[k] = current[k] + maxSingleWeightDelta
		} else if delta < -maxSingleWeightDelta {
			proposed[k] = current[k] - maxSingleWeightDelta
		}
	}
}

func clampRange(weights map[string]float64) {
	for k, w := range weights {
		if w < minWeight {
			weights[k] = minWeight
		} else if w > maxWeight {
			weights[k] = maxWeight
		}
	}
}

// computeProjectedImpact compares two gene_entity_id rankings (best first)
// and reports every gene whose position shifts by >= significantRankMove
// places — the "projected ranking impact" a proposal must carry (§4.8
// Human gate). Genes present in only one ranking are skipped: they cannot
// be assigned a comparable displacement.
func computeProjectedImpact(previous, projected []string) ProjectedImpact {
	prevRank := make(map[string]int, len(previous))
	for i, id := range previous {
		prevRank[id] = i
	}

	var moves []RankMove
	for i, id := range projected {
		prevPos, ok := prevRank[id]
		if !ok {
			continue
		}
		if abs(prevPos-i) >= significantRankMove {
			moves = append(moves, RankMove{
				GeneEntityID: id,
				PreviousRank: prevPos,
				ProposedRank: i,
			})
		}
	}
	return ProjectedImpact{SignificantMoves: moves}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// deltaSummary computes the per-component weight change for the
// delta_summary_json column and the proposal's human-readable diff.
func deltaSummary(previous, proposed map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(previous))
	keys := make([]string, 0, len(previous))
	for k := range previous {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = proposed[k] - previous[k]
	}
	return out
}
