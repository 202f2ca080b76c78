package models

// InputSeries is the forcing function of a transit-time model, typically the
// annual tracer input concentration.
type InputSeries struct {
	// Time is the time ordinate relative to the start year
	Time []float64

	// Amplitude is the input concentration at each Time
	Amplitude []float64
}

// Clone returns a deep copy of the series so callers can scale it without
// affecting the original.
func (s InputSeries) Clone() InputSeries {
	return InputSeries{
		Time:      append([]float64(nil), s.Time...),
		Amplitude: append([]float64(nil), s.Amplitude...),
	}
}

// Len returns the number of samples in the series
func (s InputSeries) Len() int { return len(s.Time) }

// Validate checks that the series is non-empty and its channels are aligned
func (s InputSeries) Validate() error {
	if len(s.Time) == 0 {
		return NewOpError("input series", ErrDataValidity, errEmpty)
	}
	if len(s.Time) != len(s.Amplitude) {
		return NewOpError("input series", ErrDataValidity, errMisaligned(len(s.Time), len(s.Amplitude)))
	}
	return nil
}

// ObservationSet holds the sparse, irregularly dated observations a model is
// fitted against. It is never mutated by the fitting code.
type ObservationSet struct {
	// Time is the observation date as a (possibly fractional) year
	Time []float64

	// Concentration is the observed tracer concentration
	Concentration []float64
}

// Clone returns a deep copy of the observations
func (o ObservationSet) Clone() ObservationSet {
	return ObservationSet{
		Time:          append([]float64(nil), o.Time...),
		Concentration: append([]float64(nil), o.Concentration...),
	}
}

// Len returns the number of observations
func (o ObservationSet) Len() int { return len(o.Time) }

// Validate checks that the observations are non-empty and aligned
func (o ObservationSet) Validate() error {
	if len(o.Time) == 0 {
		return NewOpError("observations", ErrDataValidity, errEmpty)
	}
	if len(o.Time) != len(o.Concentration) {
		return NewOpError("observations", ErrDataValidity, errMisaligned(len(o.Time), len(o.Concentration)))
	}
	return nil
}

// Curve is a pair of aligned sequences, used both for predicted output
// (time, concentration) and for a discretized response function
// (lag, density).
type Curve struct {
	X []float64
	Y []float64
}

// Len returns the number of points on the curve
func (c Curve) Len() int { return len(c.X) }
