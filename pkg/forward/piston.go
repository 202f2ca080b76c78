package forward

import (
	"fmt"
	"math"

	"tracerfit/internal/models"
)

// PistonFlowPredictor implements the piston-flow model in closed form: every
// parcel travels exactly tau, so the output is the input shifted by tau and
// attenuated by decay over tau.
type PistonFlowPredictor struct {
	input models.InputSeries
	opts  Options
}

// NewPistonFlow builds a piston-flow predictor over a private copy of input
func NewPistonFlow(input models.InputSeries, opts Options) *PistonFlowPredictor {
	return &PistonFlowPredictor{input: input.Clone(), opts: opts.withDefaults()}
}

// Predict shifts the input by params[0] and applies decay. The response
// curve of the prediction is empty.
func (p *PistonFlowPredictor) Predict(params []float64) (Prediction, error) {
	if len(params) != 1 {
		return Prediction{}, models.NewOpError("piston flow", models.ErrConfiguration,
			fmt.Errorf("expected 1 parameter, got %d", len(params)))
	}
	tau := params[0]

	factor := 1.0
	if p.opts.Decay != 0 {
		factor = math.Exp(-tau * p.opts.Decay)
	}

	x := make([]float64, p.input.Len())
	y := make([]float64, p.input.Len())
	for i := range x {
		x[i] = p.input.Time[i] + tau + p.opts.StartYear
		y[i] = p.input.Amplitude[i] * factor
	}
	return Prediction{Output: models.Curve{X: x, Y: y}}, nil
}
