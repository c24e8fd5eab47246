package scoring

import "sort"

// normalizeCohort rank-normalizes every component across the full candidate
// cohort (§4.7 Normalization), applying the dependency clamp-then-invert
// exception before ranking that one component.
func normalizeCohort(cohort CohortInput) map[string]map[Component]ComponentResult {
	perComponentValues := make(map[Component]map[string]float64, len(AllComponents))
	perComponentAvailable := make(map[Component]map[string]bool, len(AllComponents))

	for _, c := range AllComponents {
		perComponentValues[c] = make(map[string]float64)
		perComponentAvailable[c] = make(map[string]bool)
	}

	for geneID, components := range cohort {
		for _, c := range AllComponents {
			rc, ok := components[c]
			if !ok || !rc.Available {
				continue
			}
			value := rc.Value
			if c == ComponentDependency {
				value = invertDependency(clampDependency(value))
			}
			perComponentValues[c][geneID] = value
			perComponentAvailable[c][geneID] = true
		}
	}

	normalizedByComponent := make(map[Component]map[string]float64, len(AllComponents))
	for _, c := range AllComponents {
		normalizedByComponent[c] = rankNormalize(perComponentValues[c])
	}

	results := make(map[string]map[Component]ComponentResult, len(cohort))
	for geneID, components := range cohort {
		geneResults := make(map[Component]ComponentResult, len(AllComponents))
		for _, c := range AllComponents {
			rc := components[c]
			if !rc.Available {
				geneResults[c] = ComponentResult{Available: false}
				continue
			}
			geneResults[c] = ComponentResult{
				Raw:        rc.Value,
				Normalized: normalizedByComponent[c][geneID],
				Available:  true,
			}
		}
		results[geneID] = geneResults
	}
	return results
}

// composite computes the weighted part of S(g,c) for one gene: the weighted
// sum of available normalized components, renormalized over available
// weight, plus the count of missing critical components (§4.7). Penalties
// and the [0,1] clamp are applied by ScoreCohort.
func composite(components map[Component]ComponentResult, weights map[Component]float64) (score float64, missingCritical int, activeWeight float64) {
	var weightedSum float64
	for _, c := range AllComponents {
		res, ok := components[c]
		if !ok || !res.Available {
			if criticalComponents[c] {
				missingCritical++
			}
			continue
		}
		w := weights[c]
		weightedSum += w * res.Normalized
		activeWeight += w
	}

	if activeWeight == 0 {
		return 0, missingCritical, 0
	}
	score = weightedSum / activeWeight
	return score, missingCritical, activeWeight
}

// PenaltyInputs carries the raw (un-normalized) values the additive penalty
// and hard-exclusion rules key off of (§4.7 Penalties / Shortlisting).
type PenaltyInputs struct {
	KnownInhibitorCount    *int
	ExpressionSpecificity  *float64
	HasExperimentalStruct  bool
	PredictedPLDDT         *float64
}

// penalty computes the additive penalty P(g,c) and the warning set the
// inputs trigger (§4.7 Penalties, Warnings).
func penalty(in PenaltyInputs) (p float64, warnings []string) {
	if in.KnownInhibitorCount != nil && *in.KnownInhibitorCount > inhibitorCountPenaltyThreshold {
		p += penaltyHighInhibitorCount
	}
	if in.ExpressionSpecificity != nil && *in.ExpressionSpecificity < expressionSpecificityPenaltyThreshold {
		p += penaltyLowSpecificity
	}
	if !in.HasExperimentalStruct && (in.PredictedPLDDT == nil || *in.PredictedPLDDT < predictedPLDDTPenaltyThreshold) {
		p += penaltyUnresolvedStructure
	}

	if in.ExpressionSpecificity != nil && *in.ExpressionSpecificity < lowSpecificityWarningThreshold {
		warnings = append(warnings, "low_specificity")
	}
	if !in.HasExperimentalStruct && (in.PredictedPLDDT == nil || *in.PredictedPLDDT < predictedPLDDTPenaltyThreshold) {
		warnings = append(warnings, "structurally_unresolved")
	}
	return p, warnings
}

// classifyTier assigns the shortlist tier from the confidence-adjusted
// score and the hard-exclusion/primary/secondary rules (§4.7 Shortlisting).
// allowHardExclusionOptIn lets an operator request include targets that
// would otherwise be hard-excluded.
func classifyTier(
	adjScore float64,
	mutationFreqRaw float64,
	structuralTractabilityRaw float64,
	inhibitorCount *int,
	inhibitorNoveltyNormalized float64,
	allowHardExclusionOptIn bool,
) (ShortlistTier, []string) {
	var flags []string

	hardExcluded := inhibitorCount != nil && *inhibitorCount > hardExclusionInhibitorCount &&
		inhibitorNoveltyNormalized < hardExclusionNoveltyThreshold
	if hardExcluded && !allowHardExclusionOptIn {
		flags = append(flags, "hard_excluded")
		return TierExcluded, flags
	}

	if adjScore > primaryScoreThreshold &&
		mutationFreqRaw > primaryMutationFreqThreshold &&
		structuralTractabilityRaw > primaryStructuralTractThreshold {
		return TierPrimary, flags
	}
	if adjScore > secondaryScoreThreshold {
		return TierSecondary, flags
	}
	return TierExcluded, flags
}

// sortedGeneIDs returns cohort gene ids in deterministic order for stable
// output and test assertions.
func sortedGeneIDs(cohort CohortInput) []string {
	ids := make([]string, 0, len(cohort))
	for id := range cohort {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
