package feedback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeWeightUpdateBoostsHighCorrelation(t *testing.T) {
	current := map[string]float64{"a": 0.35, "b": 0.35, "c": 0.30}
	correlations := map[string]float64{"a": 0.9, "b": 0.05, "c": 0.2}

	proposed := computeWeightUpdate(current, correlations)

	require.Greater(t, proposed["a"], proposed["b"])

	var sum float64
	for _, w := range proposed {
		sum += w
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestComputeWeightUpdateClampsToRange(t *testing.T) {
	current := map[string]float64{"a": 0.39, "b": 0.01, "c": 0.60}
	correlations := map[string]float64{"a": 0.9, "b": 0.9, "c": 0.05}

	proposed := computeWeightUpdate(current, correlations)

	for _, w := range proposed {
		require.GreaterOrEqual(t, w, minWeight)
		require.LessOrEqual(t, w, maxWeight)
	}
}

func TestComputeProjectedImpactFindsSignificantMoves(t *testing.T) {
	previous := []string{"g1", "g2", "g3", "g4", "g5", "g6"}
	projected := []string{"g6", "g2", "g3", "g4", "g5", "g1"}

	impact := computeProjectedImpact(previous, projected)

	require.Len(t, impact.SignificantMoves, 2)
}
