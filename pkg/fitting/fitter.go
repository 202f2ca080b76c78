// Package fitting estimates the parameters of a transit-time model by
// minimizing the mean squared error between predicted and observed tracer
// concentrations.
package fitting

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/optimize"

	"tracerfit/internal/logger"
	"tracerfit/internal/models"
	"tracerfit/pkg/forward"
	"tracerfit/pkg/interpolation"
	"tracerfit/pkg/model"
)

// Defaults used when Options leaves a field zero
const (
	DefaultMaxIterations = 200
	DefaultPrecision     = 2

	// curvePrecision is the number of decimals stored diagnostic curves keep
	curvePrecision = 4

	// scorePrecision is the number of decimals reported MSE and ME keep
	scorePrecision = 3
)

// Options configures a Fitter
type Options struct {
	// Forward configures the forward model (start year, decay, horizon)
	Forward forward.Options

	// MaxIterations caps the optimizer's major iterations
	MaxIterations int

	// Precision is the number of decimals the winning parameters are rounded to
	Precision int

	// Logger receives fit diagnostics. Defaults to logger.L().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Precision <= 0 {
		o.Precision = DefaultPrecision
	}
	if o.Logger == nil {
		o.Logger = logger.L()
	}
	return o
}

// Solution is the raw outcome of one optimizer run
type Solution struct {
	// X is the best parameter vector found, in model units
	X []float64

	// F is the objective value at X
	F float64

	// Converged is false when the run stopped on a limit or failure
	Converged bool

	// Status is the optimizer's termination status
	Status string

	Iterations  int
	Evaluations int
}

// Evaluation is a single forward-model evaluation scored against the
// observations
type Evaluation struct {
	Prediction      forward.Prediction
	Interpolated    []float64
	MSE             float64
	ModelEfficiency float64
}

// Fitter fits one ParameterSpace to one observation set. It owns a private
// copy of the input, scaled by (1 - mixing) when a mixing fraction is set.
type Fitter struct {
	space     *model.ParameterSpace
	obs       models.ObservationSet
	predictor forward.Predictor
	opts      Options
}

// NewFitter prepares a fit.
//
// Parameters:
//   - input: the forcing series; copied, never modified
//   - obs: the observations to fit against
//   - space: model kind, bounds and mixing fraction
//   - opts: forward-model and optimizer settings
//
// Returns:
//   - the fitter, or an error for invalid data or configuration
func NewFitter(input models.InputSeries, obs models.ObservationSet, space *model.ParameterSpace, opts Options) (*Fitter, error) {
	if space == nil {
		return nil, models.NewOpError("fitter", models.ErrConfiguration, fmt.Errorf("nil parameter space"))
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	scaled := input.Clone()
	if beta := space.Mixing(); beta != 0 {
		for i := range scaled.Amplitude {
			scaled.Amplitude[i] *= 1 - beta
		}
	}

	opts = opts.withDefaults()
	predictor, err := forward.New(space.Kind(), scaled, opts.Forward)
	if err != nil {
		return nil, err
	}

	return &Fitter{
		space:     space,
		obs:       obs,
		predictor: predictor,
		opts:      opts,
	}, nil
}

// Space returns the parameter space being fitted
func (f *Fitter) Space() *model.ParameterSpace { return f.space }

// Evaluate runs the forward model at params and scores the prediction
func (f *Fitter) Evaluate(params []float64) (*Evaluation, error) {
	pred, err := f.predictor.Predict(params)
	if err != nil {
		return nil, err
	}
	at, err := interpolation.Interpolate(f.obs.Time, pred.Output.X, pred.Output.Y)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Prediction:      pred,
		Interpolated:    at,
		MSE:             MeanSquaredError(at, f.obs.Concentration),
		ModelEfficiency: ModelEfficiency(at, f.obs.Concentration),
	}, nil
}

// Objective returns the mean squared error at params. Evaluations that fail
// or are not finite score +Inf so the optimizer steps away from them.
func (f *Fitter) Objective(params []float64) float64 {
	pred, err := f.predictor.Predict(params)
	if err != nil {
		return math.Inf(1)
	}
	at, err := interpolation.Interpolate(f.obs.Time, pred.Output.X, pred.Output.Y)
	if err != nil {
		return math.Inf(1)
	}
	mse := MeanSquaredError(at, f.obs.Concentration)
	if math.IsNaN(mse) {
		return math.Inf(1)
	}
	return mse
}

// Minimize runs a bounded Nelder-Mead search seeded at the parameter
// space's initial guess. Bounds are enforced by optimizing over z with
// x = lower + (upper-lower) * logistic(z), so every trial point is feasible.
func (f *Fitter) Minimize() (*Solution, error) {
	b := newBoxTransform(f.space.Bounds())
	x0 := f.space.InitialGuess()

	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			return f.Objective(b.toModel(z))
		},
	}
	settings := &optimize.Settings{
		MajorIterations: f.opts.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 25,
		},
	}
	method := &optimize.NelderMead{SimplexSize: 0.5}

	res, err := optimize.Minimize(problem, b.toFree(x0), settings, method)
	if res == nil {
		return nil, models.NewOpError("minimize", models.ErrNumerical, err)
	}

	sol := &Solution{
		X:           b.toModel(res.X),
		F:           res.F,
		Status:      res.Status.String(),
		Converged:   err == nil && converged(res.Status),
		Iterations:  res.Stats.MajorIterations,
		Evaluations: res.Stats.FuncEvaluations,
	}
	if err != nil {
		sol.Status = fmt.Sprintf("%s: %v", sol.Status, err)
	}
	return sol, nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.NotTerminated, optimize.Failure, optimize.IterationLimit,
		optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return false
	}
	return true
}

// Fit minimizes the objective, rounds the winning parameters and evaluates
// the model once more at them to build the result. A run that did not
// converge is reported as-is with Converged set to false.
func (f *Fitter) Fit() (*FittingResult, error) {
	log := f.opts.Logger.With("model", f.space.Kind())
	log.Debug("fit.start", "bounds", f.space.Bounds(), "initial", f.space.InitialGuess())

	sol, err := f.Minimize()
	if err != nil {
		return nil, err
	}
	if !sol.Converged {
		log.Warn("fit.not_converged", "status", sol.Status, "iterations", sol.Iterations)
	}

	params := f.roundParams(sol.X)
	eval, err := f.Evaluate(params)
	if err != nil {
		return nil, fmt.Errorf("evaluating fitted parameters %v: %w", params, err)
	}

	log.Debug("fit.done", "params", params, "mse", eval.MSE, "me", eval.ModelEfficiency,
		"iterations", sol.Iterations, "evaluations", sol.Evaluations)

	return &FittingResult{
		Kind:             f.space.Kind(),
		Mixing:           f.space.Mixing(),
		Observations:     f.obs,
		Output:           roundCurve(eval.Prediction.Output, curvePrecision),
		ResponseFunction: roundCurve(eval.Prediction.Response, curvePrecision),
		Params:           params,
		MSE:              scalar.Round(eval.MSE, scorePrecision),
		ModelEfficiency:  scalar.Round(eval.ModelEfficiency, scorePrecision),
		Converged:        sol.Converged,
		Status:           sol.Status,
		Iterations:       sol.Iterations,
		Evaluations:      sol.Evaluations,
	}, nil
}

// FitParams is Minimize followed by rounding, without the final evaluation
// and without logging. The confidence estimator only needs the parameters of
// each refit and whether the search converged.
func (f *Fitter) FitParams() ([]float64, bool, error) {
	sol, err := f.Minimize()
	if err != nil {
		return nil, false, err
	}
	return f.roundParams(sol.X), sol.Converged, nil
}

// roundParams rounds to the configured precision and clips back into the
// bounds, since rounding may push a value just outside them.
func (f *Fitter) roundParams(x []float64) []float64 {
	bounds := f.space.Bounds()
	out := make([]float64, len(x))
	for i, v := range x {
		r := scalar.Round(v, f.opts.Precision)
		out[i] = math.Min(math.Max(r, bounds[i].Lower), bounds[i].Upper)
	}
	return out
}

func roundCurve(c models.Curve, prec int) models.Curve {
	if c.Len() == 0 {
		return models.Curve{}
	}
	out := models.Curve{X: make([]float64, len(c.X)), Y: make([]float64, len(c.Y))}
	for i := range c.X {
		out.X[i] = scalar.Round(c.X[i], prec)
	}
	for i := range c.Y {
		out.Y[i] = scalar.Round(c.Y[i], prec)
	}
	return out
}
