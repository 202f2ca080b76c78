package fitting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanSquaredError(t *testing.T) {
	assert.InDelta(t, 2.5, MeanSquaredError([]float64{1, 2, 3, 4}, []float64{0, 0, 3, 6}), 1e-12)
	assert.True(t, math.IsNaN(MeanSquaredError(nil, nil)))
}

func TestModelEfficiencyPerfectFit(t *testing.T) {
	obs := []float64{11, 12, 13, 14}
	assert.Equal(t, 1.0, ModelEfficiency(obs, obs))
}

// TestModelEfficiencyDecreasesWithResiduals scales a fixed residual pattern
// up and checks the score never increases.
func TestModelEfficiencyDecreasesWithResiduals(t *testing.T) {
	obs := []float64{11, 12, 13, 14}
	noise := []float64{0.5, -0.3, 0.2, -0.4}

	prev := math.Inf(1)
	for _, scale := range []float64{0, 0.5, 1, 2, 4, 8} {
		pred := make([]float64, len(obs))
		for i := range obs {
			pred[i] = obs[i] + scale*noise[i]
		}
		me := ModelEfficiency(pred, obs)
		assert.Less(t, me, prev+1e-15, "scale %v", scale)
		prev = me
	}
	assert.Less(t, prev, 0.0)
}

func TestModelEfficiencyMeanBaseline(t *testing.T) {
	obs := []float64{11, 12, 13, 14}
	mean := []float64{12.5, 12.5, 12.5, 12.5}
	assert.InDelta(t, 0, ModelEfficiency(mean, obs), 1e-12)
}

func TestModelEfficiencyConstantObservations(t *testing.T) {
	obs := []float64{3, 3, 3}
	assert.Equal(t, 1.0, ModelEfficiency(obs, obs))
	assert.True(t, math.IsInf(ModelEfficiency([]float64{3, 3, 4}, obs), -1))
}
