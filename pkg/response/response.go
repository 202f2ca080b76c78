// Package response implements the transit-time distributions (response
// functions g(t)) of the lumped-parameter models.
//
// Every function takes a lag time t > 0 and the model parameters in the
// order defined by model.Kind.ParamNames and returns a probability density.
package response

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"tracerfit/internal/models"
	"tracerfit/pkg/model"
)

// Func is the unit-response density of one model family
type Func func(t float64, params []float64) float64

// Exponential is the exponential model: g(t) = 1/tau * exp(-t/tau)
func Exponential(t float64, params []float64) float64 {
	tau := params[0]
	return math.Exp(-t/tau) / tau
}

// ExponentialPistonFlow is the exponential-piston-flow model. eta >= 1 is the
// ratio of the total volume to the volume with exponentially distributed
// transit times; no mass arrives before tau*(1-1/eta).
func ExponentialPistonFlow(t float64, params []float64) float64 {
	tau, eta := params[0], params[1]
	if t < tau*(1-1/eta) {
		return 0
	}
	return eta / tau * math.Exp(-eta*t/tau+eta-1)
}

// Dispersion is the dispersion model with dispersion parameter Pd:
//
//	g(t) = (4*pi*Pd*t/tau)^-0.5 * 1/t * exp(-(1-t/tau)^2 / (4*Pd*t/tau))
//
// t must be strictly positive.
func Dispersion(t float64, params []float64) float64 {
	tau, pd := params[0], params[1]
	r := t / tau
	a := 4 * pd * r
	e := -(1 - r) * (1 - r) / a
	if e < -745 {
		// exp underflows to zero before the prefactor can matter
		return 0
	}
	return math.Exp(e) / (math.Sqrt(math.Pi*a) * t)
}

// ForKind returns the response function of a convolution-based model.
// PistonFlow has no density and is rejected.
func ForKind(kind model.Kind) (Func, error) {
	switch kind {
	case model.Dispersion:
		return Dispersion, nil
	case model.Exponential:
		return Exponential, nil
	case model.ExponentialPistonFlow:
		return ExponentialPistonFlow, nil
	default:
		return nil, models.NewOpError("response function", models.ErrConfiguration,
			fmt.Errorf("no response function for model %q", kind))
	}
}

// Curve evaluates f at every lag in ts.
func (f Func) Curve(ts, params []float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = f(t, params)
	}
	return out
}

// legendreOrder is the number of Gauss-Legendre nodes per unit lag interval
const legendreOrder = 16

var unitNodes, unitWeights = legendreRule(legendreOrder)

func legendreRule(n int) ([]float64, []float64) {
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, 0, 1)
	return x, w
}

// Mass integrates f over [lo, hi]. The interval is split into segments of at
// most one lag unit, each integrated with a fixed Gauss-Legendre rule, so
// narrow peaks of the dispersion model are not stepped over.
func (f Func) Mass(params []float64, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	total := 0.0
	for a := lo; a < hi; a++ {
		b := math.Min(a+1, hi)
		w := b - a
		seg := 0.0
		for i, x := range unitNodes {
			seg += unitWeights[i] * f(a+x*w, params)
		}
		total += seg * w
	}
	return total
}
