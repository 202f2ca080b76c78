package model

import (
	"fmt"
	"math"

	"tracerfit/internal/models"
)

// Bound is a closed [Lower, Upper] interval for one free parameter
type Bound struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Mid returns the midpoint of the interval
func (b Bound) Mid() float64 { return (b.Lower + b.Upper) / 2 }

// Contains reports whether v lies within the interval
func (b Bound) Contains(v float64) bool { return v >= b.Lower && v <= b.Upper }

// ParameterSpace holds a model kind, its parameter bounds and the optional
// mixing fraction. It is immutable once built.
type ParameterSpace struct {
	kind    Kind
	bounds  []Bound
	mixing  float64
	initial []float64
}

// NewParameterSpace validates the configuration and derives the initial guess
// as the midpoint of every bound.
//
// Parameters:
//   - kind: the model to fit
//   - bounds: one interval per free parameter, in the model's parameter order
//   - mixing: fraction of the input attributed to a secondary pathway, 0 when unused
//
// Returns:
//   - the parameter space, or an error wrapping models.ErrConfiguration
func NewParameterSpace(kind Kind, bounds []Bound, mixing float64) (*ParameterSpace, error) {
	if err := validate(kind, bounds, mixing); err != nil {
		return nil, models.NewOpError("parameter space", models.ErrConfiguration, err)
	}

	ps := &ParameterSpace{
		kind:    kind,
		bounds:  append([]Bound(nil), bounds...),
		mixing:  mixing,
		initial: make([]float64, len(bounds)),
	}
	for i, b := range bounds {
		ps.initial[i] = b.Mid()
	}
	return ps, nil
}

func validate(kind Kind, bounds []Bound, mixing float64) error {
	if !kind.Valid() {
		return fmt.Errorf("model type not found: %q (expected PFM, EM, EPM or DM)", kind)
	}
	if len(bounds) == 0 {
		return fmt.Errorf("no parameter bounds given for %s", kind)
	}
	if len(bounds) != kind.NumParams() {
		return fmt.Errorf("%s takes %d parameter(s), got %d bound pair(s)", kind, kind.NumParams(), len(bounds))
	}
	for i, b := range bounds {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
			return fmt.Errorf("bound %d is not finite", i)
		}
		if b.Lower > b.Upper {
			return fmt.Errorf("bound %d has lower %g above upper %g", i, b.Lower, b.Upper)
		}
	}
	if math.IsNaN(mixing) || mixing < 0 || mixing > 1 {
		return fmt.Errorf("mixing fraction %g outside [0, 1]", mixing)
	}

	// Transit time divides every response function.
	if bounds[0].Lower <= 0 {
		return fmt.Errorf("transit time bound must be positive, got lower %g", bounds[0].Lower)
	}
	switch kind {
	case ExponentialPistonFlow:
		if bounds[1].Lower < 1 {
			return fmt.Errorf("eta must be >= 1, got lower %g", bounds[1].Lower)
		}
	case Dispersion:
		if bounds[1].Lower <= 0 {
			return fmt.Errorf("dispersion parameter must be positive, got lower %g", bounds[1].Lower)
		}
	}
	return nil
}

// Kind returns the model kind
func (p *ParameterSpace) Kind() Kind { return p.kind }

// Mixing returns the mixing fraction (beta); 0 means unused
func (p *ParameterSpace) Mixing() float64 { return p.mixing }

// NumParams returns the number of free parameters
func (p *ParameterSpace) NumParams() int { return len(p.bounds) }

// Bounds returns a copy of the parameter bounds
func (p *ParameterSpace) Bounds() []Bound { return append([]Bound(nil), p.bounds...) }

// InitialGuess returns a copy of the bound midpoints
func (p *ParameterSpace) InitialGuess() []float64 { return append([]float64(nil), p.initial...) }

// Tightened returns a space with the same kind and mixing fraction whose
// bounds are center*(1-band) .. center*(1+band) per parameter, clipped to
// the current bounds.
func (p *ParameterSpace) Tightened(center []float64, band float64) (*ParameterSpace, error) {
	if len(center) != len(p.bounds) {
		return nil, models.NewOpError("tighten bounds", models.ErrConfiguration,
			fmt.Errorf("expected %d values, got %d", len(p.bounds), len(center)))
	}

	bounds := make([]Bound, len(center))
	for i, c := range center {
		lo, hi := c*(1-band), c*(1+band)
		if lo > hi {
			lo, hi = hi, lo
		}
		lo = math.Max(lo, p.bounds[i].Lower)
		hi = math.Min(hi, p.bounds[i].Upper)
		if lo > hi {
			// center lies outside the original bounds; collapse onto the nearest edge
			edge := math.Min(math.Max(c, p.bounds[i].Lower), p.bounds[i].Upper)
			lo, hi = edge, edge
		}
		bounds[i] = Bound{Lower: lo, Upper: hi}
	}
	return NewParameterSpace(p.kind, bounds, p.mixing)
}

func (p *ParameterSpace) String() string {
	return fmt.Sprintf("%s%v beta=%g", p.kind, p.bounds, p.mixing)
}
