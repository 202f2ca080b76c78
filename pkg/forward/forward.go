// Package forward turns a candidate parameter vector into a predicted output
// concentration curve.
//
// Two predictors exist: ConvolutionPredictor convolves the input with a
// sampled response function, PistonFlowPredictor shifts the input in time.
// Both satisfy Predictor so the fitting code never needs to know which one it
// is driving.
package forward

import (
	"fmt"

	"tracerfit/internal/models"
	"tracerfit/pkg/model"
	"tracerfit/pkg/response"
)

// Default horizon settings
const (
	// DefaultHorizonMass is the share of the response function's mass the
	// lag grid must capture before it is used.
	DefaultHorizonMass = 0.99

	// DefaultMaxHorizon caps the lag grid length.
	DefaultMaxHorizon = 10000
)

// Options configures a predictor
type Options struct {
	// StartYear is added to every output time
	StartYear float64

	// Decay is the radioactive decay constant per time unit; 0 disables decay
	Decay float64

	// HorizonMass is the minimum captured response mass (default 0.99)
	HorizonMass float64

	// MaxHorizon is the longest lag grid allowed (default 10000)
	MaxHorizon int
}

func (o Options) withDefaults() Options {
	if o.HorizonMass <= 0 || o.HorizonMass >= 1 {
		o.HorizonMass = DefaultHorizonMass
	}
	if o.MaxHorizon <= 0 {
		o.MaxHorizon = DefaultMaxHorizon
	}
	return o
}

// Prediction is the result of one forward-model evaluation
type Prediction struct {
	// Output is the predicted (time, concentration) curve
	Output models.Curve

	// Response is the discretized (lag, density) response function. It is
	// empty for piston flow.
	Response models.Curve
}

// Predictor evaluates a forward model at a parameter vector
type Predictor interface {
	Predict(params []float64) (Prediction, error)
}

// New selects the predictor for a model kind. The input series is copied.
func New(kind model.Kind, input models.InputSeries, opts Options) (Predictor, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	switch kind {
	case model.PistonFlow:
		return NewPistonFlow(input, opts), nil
	case model.Dispersion, model.Exponential, model.ExponentialPistonFlow:
		g, err := response.ForKind(kind)
		if err != nil {
			return nil, err
		}
		return NewConvolution(input, g, opts), nil
	default:
		return nil, models.NewOpError("forward model", models.ErrConfiguration,
			fmt.Errorf("model type not found: %q", kind))
	}
}
