package forward

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"tracerfit/internal/models"
	"tracerfit/pkg/convolution"
	"tracerfit/pkg/response"
)

// LagOrigin is the first lag of every grid. It is offset from zero because
// the dispersion model is singular at t = 0.
const LagOrigin = 0.001

// timePrecision is the number of decimals output times are rounded to
const timePrecision = 2

// ConvolutionPredictor convolves the input series with a response function
// sampled on an adaptively widened lag grid.
type ConvolutionPredictor struct {
	input models.InputSeries
	g     response.Func
	opts  Options
}

// NewConvolution builds a convolution predictor over a private copy of input
func NewConvolution(input models.InputSeries, g response.Func, opts Options) *ConvolutionPredictor {
	return &ConvolutionPredictor{
		input: input.Clone(),
		g:     g,
		opts:  opts.withDefaults(),
	}
}

// Predict evaluates the model at params (transit time first).
//
// The lag grid starts as [0.001, 1.001] and is widened until it captures
// HorizonMass of the response function; the (optionally decay weighted)
// density is then convolved in full mode with the input amplitude. Output
// times start at min(lag)+min(input time)+StartYear with unit spacing.
func (p *ConvolutionPredictor) Predict(params []float64) (Prediction, error) {
	if p.input.Len() == 0 {
		return Prediction{}, models.NewOpError("convolution", models.ErrDataValidity, fmt.Errorf("empty input series"))
	}
	lags, err := Horizon(p.g, params, p.opts.HorizonMass, p.opts.MaxHorizon)
	if err != nil {
		return Prediction{}, err
	}

	density := p.g.Curve(lags, params)
	weights := density
	if p.opts.Decay != 0 {
		weights = make([]float64, len(density))
		for i, t := range lags {
			weights[i] = density[i] * math.Exp(-t*p.opts.Decay)
		}
	}

	y := convolution.Full(p.input.Amplitude, weights)

	start := lags[0] + floats.Min(p.input.Time)
	x := make([]float64, len(y))
	for i := range x {
		x[i] = scalar.Round(start+float64(i), timePrecision) + p.opts.StartYear
	}

	return Prediction{
		Output:   models.Curve{X: x, Y: y},
		Response: models.Curve{X: lags, Y: density},
	}, nil
}

// Horizon returns the lag grid LagOrigin, LagOrigin+1, ... for g at params.
// Starting from two points, the grid is extended to (length + tau) + 1
// points until more than mass of the distribution lies inside it. A grid
// longer than maxLen is reported as models.ErrNumerical.
func Horizon(g response.Func, params []float64, mass float64, maxLen int) ([]float64, error) {
	if len(params) == 0 {
		return nil, models.NewOpError("lag horizon", models.ErrConfiguration, fmt.Errorf("no parameters"))
	}
	tau := params[0]
	if !(tau > 0) || math.IsInf(tau, 0) {
		return nil, models.NewOpError("lag horizon", models.ErrNumerical, fmt.Errorf("transit time %g is not positive", tau))
	}

	n := 2
	captured := g.Mass(params, LagOrigin, lagAt(n-1))
	for !(captured > mass) {
		next := int(math.Ceil(float64(n) + tau + 1 - LagOrigin))
		if next <= n {
			next = n + 1
		}
		if next > maxLen {
			return nil, models.NewOpError("lag horizon", models.ErrNumerical,
				fmt.Errorf("only %.4f of the response mass within %d lags (params %v)", captured, n, params))
		}
		// grids share their origin, so only the new segment needs integrating
		captured += g.Mass(params, lagAt(n-1), lagAt(next-1))
		n = next
	}

	lags := make([]float64, n)
	for i := range lags {
		lags[i] = lagAt(i)
	}
	return lags, nil
}

func lagAt(i int) float64 { return LagOrigin + float64(i) }
