package fitting

import (
	"fmt"

	"tracerfit/internal/models"
	"tracerfit/pkg/model"
)

// ParamAccuracy is the uncertainty attached to one fitted parameter
type ParamAccuracy struct {
	// Level is the confidence level of the interval
	Level float64 `yaml:"level"`

	// Lower and Upper bound the confidence interval
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`

	// StdDev is the spread of the parameter across resampled refits
	StdDev float64 `yaml:"std_dev"`
}

// Contains reports whether v lies inside the interval
func (a ParamAccuracy) Contains(v float64) bool { return v >= a.Lower && v <= a.Upper }

// FittingResult aggregates everything known about the best fit of one model
// configuration.
type FittingResult struct {
	// Kind is the fitted model
	Kind model.Kind `yaml:"model"`

	// Mixing is the mixing fraction (beta) the input was scaled by
	Mixing float64 `yaml:"mixing"`

	// Observations are the observations the model was fitted against
	Observations models.ObservationSet `yaml:"-"`

	// Output is the predicted (time, concentration) curve at Params
	Output models.Curve `yaml:"-"`

	// ResponseFunction is the (lag, density) curve at Params; empty for
	// piston flow
	ResponseFunction models.Curve `yaml:"-"`

	// Params holds the winning parameters, rounded
	Params []float64 `yaml:"params"`

	// MSE is the mean squared error at Params
	MSE float64 `yaml:"mse"`

	// ModelEfficiency is the goodness-of-fit score at Params
	ModelEfficiency float64 `yaml:"model_efficiency"`

	// Converged is false when the optimizer stopped on a limit or failure
	Converged bool `yaml:"converged"`

	// Status is the optimizer's termination status
	Status string `yaml:"status"`

	// Iterations and Evaluations count optimizer work
	Iterations  int `yaml:"iterations"`
	Evaluations int `yaml:"evaluations"`

	// Accuracy holds one entry per parameter when uncertainty was estimated
	Accuracy []ParamAccuracy `yaml:"accuracy,omitempty"`
}

// WithAccuracy returns a copy of r carrying acc. The receiver is unchanged.
func (r *FittingResult) WithAccuracy(acc []ParamAccuracy) (*FittingResult, error) {
	if len(acc) != len(r.Params) {
		return nil, models.NewOpError("params accuracy", models.ErrNumerical,
			fmt.Errorf("%d accuracy entries for %d parameters", len(acc), len(r.Params)))
	}
	cp := *r
	cp.Params = append([]float64(nil), r.Params...)
	cp.Accuracy = append([]ParamAccuracy(nil), acc...)
	return &cp, nil
}

// ParamNames returns the display names of Params
func (r *FittingResult) ParamNames() []string { return r.Kind.ParamNames() }
