package response

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/integrate/quad"

	"tracerfit/internal/models"
	"tracerfit/pkg/model"
)

var lags = []float64{1, 2, 3, 4}

// TestExponentialModel compares against reference values of 1/tau*exp(-t/tau)
func TestExponentialModel(t *testing.T) {
	got := Func(Exponential).Curve(lags, []float64{5})
	want := []float64{0.1637461506155964, 0.13406400920712788, 0.1097623272188053, 0.08986579282344431}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-15)
	}
}

func TestDispersionModel(t *testing.T) {
	got := Func(Dispersion).Curve(lags, []float64{30, 0.05})
	want := []float64{9.244018651465891e-61, 1.0328078939613802e-28, 3.426591190556329e-18, 5.055368281422804e-13}
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], 1e-9)
	}
}

func TestExponentialPistonFlowModel(t *testing.T) {
	got := Func(ExponentialPistonFlow).Curve(lags, []float64{30, 1.05})
	want := []float64{0.0, 0.03430695356573644, 0.03312698017837194, 0.03198759148449299}
	assert.Equal(t, 0.0, got[0])
	for i := 1; i < len(want); i++ {
		assert.InDelta(t, want[i], got[i], 1e-15)
	}
}

// TestDensitiesFiniteAndNonNegative sweeps lags across several orders of
// magnitude at the edges of typical parameter ranges.
func TestDensitiesFiniteAndNonNegative(t *testing.T) {
	ts := []float64{1e-3, 1e-2, 0.1, 1, 10, 100, 1e3, 1e4}
	cases := []struct {
		name   string
		f      Func
		params [][]float64
	}{
		{"EM", Exponential, [][]float64{{0.5}, {20}, {90}, {500}}},
		{"EPM", ExponentialPistonFlow, [][]float64{{20, 1}, {20, 3}, {90, 1.01}, {90, 10}}},
		{"DM", Dispersion, [][]float64{{20, 0.001}, {20, 1}, {90, 0.01}, {90, 5}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, p := range tc.params {
				for _, v := range tc.f.Curve(ts, p) {
					assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "params %v gave %v", p, v)
					assert.GreaterOrEqual(t, v, 0.0)
				}
			}
		})
	}
}

// TestMassMatchesClosedForm checks the piecewise rule against the exponential CDF
func TestMassMatchesClosedForm(t *testing.T) {
	for _, tau := range []float64{2, 20, 90} {
		got := Func(Exponential).Mass([]float64{tau}, 0.001, 200.001)
		want := math.Exp(-0.001/tau) - math.Exp(-200.001/tau)
		assert.InDelta(t, want, got, 1e-9, "tau=%v", tau)
	}
}

func TestMassAgreesWithGonumQuad(t *testing.T) {
	params := []float64{30, 0.2}
	f := func(x float64) float64 { return Dispersion(x, params) }

	want := quad.Fixed(f, 0.001, 300.001, 2000, nil, 0)
	got := Func(Dispersion).Mass(params, 0.001, 300.001)
	assert.InDelta(t, want, got, 1e-6)
	assert.InDelta(t, 1.0, got, 1e-3)
}

func TestMassEmptyInterval(t *testing.T) {
	assert.Equal(t, 0.0, Func(Exponential).Mass([]float64{5}, 3, 3))
}

func TestForKind(t *testing.T) {
	for _, k := range []model.Kind{model.Dispersion, model.Exponential, model.ExponentialPistonFlow} {
		f, err := ForKind(k)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}

	_, err := ForKind(model.PistonFlow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}
