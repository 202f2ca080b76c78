package confidence

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"tracerfit/internal/models"
	"tracerfit/pkg/fitting"
	"tracerfit/pkg/forward"
	"tracerfit/pkg/interpolation"
	"tracerfit/pkg/model"
)

func createTestObservations() models.ObservationSet {
	return models.ObservationSet{
		Time:          []float64{1974.41, 1975.81, 1976.31, 1980.5},
		Concentration: []float64{11, 12, 13, 14},
	}
}

// TestResampleWithinOneSigma verifies every draw lies inside the population
// standard deviation band and that observation times are preserved.
func TestResampleWithinOneSigma(t *testing.T) {
	obs := createTestObservations()
	s := stat.PopStdDev(obs.Concentration, nil)
	require.InDelta(t, 1.1180, s, 1e-4)

	sets := Resample(obs, 100, 7)
	require.Len(t, sets, 100)
	for _, set := range sets {
		assert.Equal(t, obs.Time, set.Time)
		for j, c := range set.Concentration {
			assert.GreaterOrEqual(t, c, obs.Concentration[j]-s)
			assert.LessOrEqual(t, c, obs.Concentration[j]+s)
		}
	}
	assert.NotEqual(t, sets[0].Concentration, sets[1].Concentration)
	assert.Equal(t, []float64{11, 12, 13, 14}, obs.Concentration, "input must not change")
}

// TestResampleUsesPopulationSpread checks that draws fill the population
// band and never reach the wider n-1 band.
func TestResampleUsesPopulationSpread(t *testing.T) {
	obs := createTestObservations()
	pop := stat.PopStdDev(obs.Concentration, nil)
	sample := stat.StdDev(obs.Concentration, nil)
	require.Greater(t, sample, pop)

	widest := 0.0
	for _, set := range Resample(obs, 400, 11) {
		for j, c := range set.Concentration {
			widest = math.Max(widest, math.Abs(c-obs.Concentration[j]))
		}
	}
	assert.LessOrEqual(t, widest, pop)
	assert.Greater(t, widest, 0.9*pop)
}

func TestResampleIsSeeded(t *testing.T) {
	obs := createTestObservations()
	assert.Equal(t, Resample(obs, 5, 42), Resample(obs, 5, 42))
	assert.NotEqual(t, Resample(obs, 5, 42), Resample(obs, 5, 43))
}

func TestResampleSingleObservation(t *testing.T) {
	obs := models.ObservationSet{Time: []float64{1980}, Concentration: []float64{5}}
	for _, set := range Resample(obs, 3, 1) {
		assert.Equal(t, []float64{5}, set.Concentration)
	}
}

func TestReduceAllInsideBand(t *testing.T) {
	samples := [][]float64{{54, 0.5}, {56, 0.52}, {55, 0.49}}
	acc := Reduce([]float64{55, 0.5}, samples, 0.1, 1.96, 0.95)

	require.Len(t, acc, 2)
	assert.Equal(t, 0.95, acc[0].Level)
	assert.InDelta(t, 49.5, acc[0].Lower, 1e-9)
	assert.InDelta(t, 60.5, acc[0].Upper, 1e-9)
	assert.InDelta(t, 1.0, acc[0].StdDev, 1e-9)
	assert.InDelta(t, 0.45, acc[1].Lower, 1e-9)
}

func TestReduceOutsideBand(t *testing.T) {
	samples := [][]float64{{40}, {55}, {56}, {70}}
	acc := Reduce([]float64{55}, samples, 0.1, 1.96, 0.95)

	sd := stat.StdDev([]float64{40, 55, 56, 70}, nil)
	assert.InDelta(t, 0.5, acc[0].Level, 1e-12)
	assert.InDelta(t, 55-1.96*sd, acc[0].Lower, 1e-9)
	assert.InDelta(t, 55+1.96*sd, acc[0].Upper, 1e-9)
}

// TestReduceIntervalContainsEstimate covers both branches, negative and zero
// estimates.
func TestReduceIntervalContainsEstimate(t *testing.T) {
	cases := []struct {
		fitted  float64
		samples []float64
	}{
		{55, []float64{55, 55.1}},
		{55, []float64{10, 90}},
		{-3, []float64{-3.1, -2.9}},
		{-3, []float64{-10, 5}},
		{0, []float64{0, 0}},
		{0, []float64{-1, 1}},
	}
	for _, tc := range cases {
		samples := make([][]float64, len(tc.samples))
		for i, v := range tc.samples {
			samples[i] = []float64{v}
		}
		acc := Reduce([]float64{tc.fitted}, samples, 0.1, 1.96, 0.95)
		assert.True(t, acc[0].Contains(tc.fitted), "fitted %v samples %v -> %+v", tc.fitted, tc.samples, acc[0])
	}
}

func exponentialScenario(t *testing.T) (models.InputSeries, models.ObservationSet, *model.ParameterSpace, fitting.Options) {
	t.Helper()
	in := models.InputSeries{Time: make([]float64, 12), Amplitude: make([]float64, 12)}
	for i := range in.Time {
		in.Time[i] = 0.01 + float64(i)
		in.Amplitude[i] = 10.01 + float64(i)
	}
	fwd := forward.Options{StartYear: 1950, Decay: 0.056}

	p, err := forward.New(model.Exponential, in, fwd)
	require.NoError(t, err)
	pred, err := p.Predict([]float64{55})
	require.NoError(t, err)
	dates := []float64{1955.5, 1960.2, 1968.7, 1985.3}
	conc, err := interpolation.Interpolate(dates, pred.Output.X, pred.Output.Y)
	require.NoError(t, err)

	space, err := model.NewParameterSpace(model.Exponential, []model.Bound{{Lower: 20, Upper: 90}}, 0)
	require.NoError(t, err)
	return in, models.ObservationSet{Time: dates, Concentration: conc}, space, fitting.Options{Forward: fwd}
}

// TestEstimateIndependentOfWorkerCount runs the same seeded pass with one
// and four workers.
func TestEstimateIndependentOfWorkerCount(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping confidence pass in short mode")
	}
	in, obs, space, fitOpts := exponentialScenario(t)

	opts := DefaultOptions()
	opts.Replicates = 12
	opts.Seed = 3

	opts.Workers = 1
	serial, err := NewEstimator(opts, fitOpts).Estimate(context.Background(), in, obs, space, []float64{55})
	require.NoError(t, err)

	opts.Workers = 4
	parallel, err := NewEstimator(opts, fitOpts).Estimate(context.Background(), in, obs, space, []float64{55})
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	require.Len(t, serial, 1)
	// tightened refits cannot leave the band
	assert.Equal(t, 0.95, serial[0].Level)
	assert.True(t, serial[0].Contains(55))
}

func TestEstimateWithOriginalBounds(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping confidence pass in short mode")
	}
	in, obs, space, fitOpts := exponentialScenario(t)

	opts := DefaultOptions()
	opts.Replicates = 8
	opts.Workers = 2
	opts.TightenBounds = false

	acc, err := NewEstimator(opts, fitOpts).Estimate(context.Background(), in, obs, space, []float64{55})
	require.NoError(t, err)
	require.Len(t, acc, 1)
	assert.True(t, acc[0].Contains(55))
	assert.Greater(t, acc[0].Level, 0.0)
	assert.LessOrEqual(t, acc[0].Level, 0.95)
}

func TestEstimateRejectsMismatchedEstimate(t *testing.T) {
	in, obs, space, fitOpts := exponentialScenario(t)
	_, err := NewEstimator(DefaultOptions(), fitOpts).Estimate(context.Background(), in, obs, space, []float64{55, 1})
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestEstimateStopsOnCancelledContext(t *testing.T) {
	in, obs, space, fitOpts := exponentialScenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEstimator(DefaultOptions(), fitOpts).Estimate(ctx, in, obs, space, []float64{55})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkersDefault(t *testing.T) {
	e := NewEstimator(Options{}, fitting.Options{})
	assert.GreaterOrEqual(t, e.Workers(), 1)
	assert.Equal(t, 3, NewEstimator(Options{Workers: 3}, fitting.Options{}).Workers())
}

// TestEstimateReportsNonConvergedRefits caps every refit at one iteration and
// expects one aggregated warning instead of a record per refit.
func TestEstimateReportsNonConvergedRefits(t *testing.T) {
	in, obs, space, fitOpts := exponentialScenario(t)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fitOpts.MaxIterations = 1
	fitOpts.Logger = log

	opts := DefaultOptions()
	opts.Replicates = 6
	opts.Workers = 2
	opts.Logger = log

	_, err := NewEstimator(opts, fitOpts).Estimate(context.Background(), in, obs, space, []float64{55})
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 0, strings.Count(out, "fit.not_converged"))
	assert.Equal(t, 1, strings.Count(out, "confidence.not_converged"))
	assert.Contains(t, out, "refits=6")
	assert.Contains(t, out, "not_converged=6")
}
