// Package tracer is the entry point of the tracer method: it prepares the
// annual input, fits every configured transit-time model and optionally
// estimates the uncertainty of the fitted parameters.
package tracer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tracerfit/internal/logger"
	"tracerfit/internal/models"
	"tracerfit/pkg/confidence"
	"tracerfit/pkg/fitting"
	"tracerfit/pkg/ingest"
	"tracerfit/pkg/model"
)

// TritiumHalfLife is the half-life of tritium in years
const TritiumHalfLife = 12.32

// DecayConstant converts a half-life into a decay constant. A non-positive
// half-life disables decay.
func DecayConstant(halfLife float64) float64 {
	if halfLife <= 0 || math.IsInf(halfLife, 1) {
		return 0
	}
	return math.Ln2 / halfLife
}

// ModelConfig describes one model to fit: its kind, one bound pair per
// parameter and an optional mixing fraction.
type ModelConfig struct {
	Kind   string        `yaml:"kind"`
	Bounds []model.Bound `yaml:"bounds"`
	Mixing float64       `yaml:"mixing,omitempty"`
}

// Space validates the configuration and builds its parameter space
func (c ModelConfig) Space() (*model.ParameterSpace, error) {
	kind, err := model.ParseKind(c.Kind)
	if err != nil {
		return nil, err
	}
	return model.NewParameterSpace(kind, c.Bounds, c.Mixing)
}

// Params holds the settings shared by every model fit of a run
type Params struct {
	// Decay is the decay constant of the tracer
	Decay float64

	// Fitting configures the optimizer and the forward model. Its start year
	// and decay are set by the run.
	Fitting fitting.Options

	// Confidence configures the uncertainty pass
	Confidence confidence.Options

	// Logger receives run diagnostics. Defaults to logger.L().
	Logger *slog.Logger
}

// DefaultParams returns the settings for tritium
func DefaultParams() *Params {
	return &Params{
		Decay:      DecayConstant(TritiumHalfLife),
		Confidence: confidence.DefaultOptions(),
	}
}

// Method runs the tracer method for a list of model configurations
type Method struct {
	params *Params
	log    *slog.Logger
}

// NewMethod creates a method with the given settings. nil uses DefaultParams.
func NewMethod(params *Params) *Method {
	if params == nil {
		params = DefaultParams()
	}
	l := params.Logger
	if l == nil {
		l = logger.L()
	}
	return &Method{params: params, log: l}
}

// Workers returns the number of concurrent refits a confidence pass uses,
// with the zero setting resolved.
func (m *Method) Workers() int {
	return confidence.NewEstimator(m.params.Confidence, m.params.Fitting).Workers()
}

// Run fits every configuration against the observations.
//
// Parameters:
//   - raw: monthly input records; aggregated with ingest.PrepareAnnualInput
//   - obs: dated observations
//   - infiltration: infiltration fraction of the summer months
//   - configs: the models to fit, in order
//   - withUncertainty: also run the confidence pass for each fit
//
// Returns:
//   - one result per configuration, in configuration order
//   - a models.ErrConfiguration error when any configuration is invalid,
//     detected before any fitting starts
func (m *Method) Run(ctx context.Context, raw ingest.MonthlyInput, obs models.ObservationSet,
	infiltration float64, configs []ModelConfig, withUncertainty bool) ([]*fitting.FittingResult, error) {
	spaces, err := Spaces(configs)
	if err != nil {
		return nil, err
	}

	input, err := ingest.PrepareAnnualInput(raw, infiltration)
	if err != nil {
		return nil, err
	}

	return m.fitAll(ctx, input, raw.StartYear(), obs, spaces, withUncertainty)
}

// RunAnnual is Run for input that is already an annual series whose time
// axis counts years from startYear.
func (m *Method) RunAnnual(ctx context.Context, input models.InputSeries, startYear int, obs models.ObservationSet,
	configs []ModelConfig, withUncertainty bool) ([]*fitting.FittingResult, error) {
	spaces, err := Spaces(configs)
	if err != nil {
		return nil, err
	}
	return m.fitAll(ctx, input, startYear, obs, spaces, withUncertainty)
}

// Spaces validates every configuration and returns their parameter spaces.
// The error names the offending configuration.
func Spaces(configs []ModelConfig) ([]*model.ParameterSpace, error) {
	if len(configs) == 0 {
		return nil, models.NewOpError("model configs", models.ErrConfiguration, fmt.Errorf("no models configured"))
	}
	spaces := make([]*model.ParameterSpace, len(configs))
	for i, c := range configs {
		s, err := c.Space()
		if err != nil {
			return nil, fmt.Errorf("model %d (%s): %w", i+1, c.Kind, err)
		}
		spaces[i] = s
	}
	return spaces, nil
}

func (m *Method) fitAll(ctx context.Context, input models.InputSeries, startYear int, obs models.ObservationSet,
	spaces []*model.ParameterSpace, withUncertainty bool) ([]*fitting.FittingResult, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	fitOpts := m.params.Fitting
	fitOpts.Forward.StartYear = float64(startYear)
	fitOpts.Forward.Decay = m.params.Decay
	if fitOpts.Logger == nil {
		fitOpts.Logger = m.log
	}

	confOpts := m.params.Confidence
	if confOpts.Logger == nil {
		confOpts.Logger = m.log
	}
	estimator := confidence.NewEstimator(confOpts, fitOpts)

	m.log.Info("tracer.start", "models", len(spaces), "start_year", startYear, "years", input.Len(),
		"observations", obs.Len(), "decay", m.params.Decay, "uncertainty", withUncertainty)

	results := make([]*fitting.FittingResult, 0, len(spaces))
	for _, space := range spaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()

		fitter, err := fitting.NewFitter(input, obs, space, fitOpts)
		if err != nil {
			return nil, err
		}
		res, err := fitter.Fit()
		if err != nil {
			return nil, fmt.Errorf("fitting %s: %w", space.Kind(), err)
		}

		if withUncertainty {
			acc, err := estimator.Estimate(ctx, input, obs, space, res.Params)
			if err != nil {
				return nil, fmt.Errorf("estimating %s accuracy: %w", space.Kind(), err)
			}
			if res, err = res.WithAccuracy(acc); err != nil {
				return nil, err
			}
		}

		m.log.Info("tracer.model", "model", space.Kind(), "params", res.Params, "mse", res.MSE,
			"me", res.ModelEfficiency, "converged", res.Converged, "elapsed", time.Since(started))
		results = append(results, res)
	}
	return results, nil
}
