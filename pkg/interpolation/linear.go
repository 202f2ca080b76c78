// Package interpolation evaluates a sampled curve at arbitrary abscissae.
//
// Observations are usually only a few irregularly dated points while the
// forward model produces a regular curve, so predictions are read off the
// curve at the observation dates.
package interpolation

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"tracerfit/internal/models"
)

// Linear is a piecewise-linear interpolant. Queries left of the first knot
// return the first ordinate and queries right of the last knot return the
// last ordinate.
type Linear struct {
	pl     interp.PiecewiseLinear
	value  float64
	single bool
}

// NewLinear fits a piecewise-linear interpolant through (xs, ys).
//
// Parameters:
//   - xs: strictly increasing abscissae
//   - ys: ordinates, same length as xs
//
// Returns:
//   - the interpolant, or an error wrapping models.ErrDataValidity
func NewLinear(xs, ys []float64) (*Linear, error) {
	if len(xs) != len(ys) {
		return nil, models.NewOpError("interpolation", models.ErrDataValidity,
			fmt.Errorf("%d abscissae but %d ordinates", len(xs), len(ys)))
	}
	switch len(xs) {
	case 0:
		return nil, models.NewOpError("interpolation", models.ErrDataValidity, fmt.Errorf("no knots"))
	case 1:
		return &Linear{value: ys[0], single: true}, nil
	}

	// gonum panics on unordered knots, so reject them here
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, models.NewOpError("interpolation", models.ErrDataValidity,
				fmt.Errorf("abscissae not strictly increasing at index %d", i))
		}
	}

	l := &Linear{}
	if err := l.pl.Fit(xs, ys); err != nil {
		return nil, models.NewOpError("interpolation", models.ErrDataValidity, err)
	}
	return l, nil
}

// Predict returns the interpolated value at x
func (l *Linear) Predict(x float64) float64 {
	if l.single {
		return l.value
	}
	return l.pl.Predict(x)
}

// At evaluates the interpolant at every x in xs
func (l *Linear) At(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = l.Predict(x)
	}
	return out
}

// Interpolate is a convenience wrapper fitting (xs, ys) and evaluating it at query.
func Interpolate(query, xs, ys []float64) ([]float64, error) {
	l, err := NewLinear(xs, ys)
	if err != nil {
		return nil, err
	}
	return l.At(query), nil
}
