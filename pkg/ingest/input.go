// Package ingest reads tracer input and observation files and turns monthly
// input records into the annual series the transit-time models consume.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"tracerfit/internal/models"
)

// MonthlyInput is the raw tracer input: one record per calendar month
type MonthlyInput struct {
	// Dates holds the first day of each month, in UTC
	Dates []time.Time

	// Concentration is the tracer concentration in precipitation
	Concentration []float64

	// Precipitation is the monthly precipitation amount
	Precipitation []float64
}

// Len returns the number of monthly records
func (m MonthlyInput) Len() int { return len(m.Dates) }

// StartYear returns the first calendar year covered by the records
func (m MonthlyInput) StartYear() int {
	if len(m.Dates) == 0 {
		return 0
	}
	start := m.Dates[0].Year()
	for _, d := range m.Dates[1:] {
		start = min(start, d.Year())
	}
	return start
}

// Validate checks that the records are aligned, finite, consecutive months
// and cover whole calendar years starting in January.
func (m MonthlyInput) Validate() error {
	fail := func(err error) error { return models.NewOpError("monthly input", models.ErrDataValidity, err) }

	if len(m.Dates) == 0 {
		return fail(errors.New("no records"))
	}
	if len(m.Concentration) != len(m.Dates) || len(m.Precipitation) != len(m.Dates) {
		return fail(fmt.Errorf("channel lengths differ (%d dates, %d concentrations, %d precipitations)",
			len(m.Dates), len(m.Concentration), len(m.Precipitation)))
	}
	for i := range m.Dates {
		if math.IsNaN(m.Concentration[i]) || math.IsInf(m.Concentration[i], 0) ||
			math.IsNaN(m.Precipitation[i]) || math.IsInf(m.Precipitation[i], 0) {
			return fail(fmt.Errorf("non-finite value for %s", m.Dates[i].Format("2006-01")))
		}
		if i == 0 {
			continue
		}
		if want := m.Dates[i-1].AddDate(0, 1, 0); !sameMonth(m.Dates[i], want) {
			return fail(fmt.Errorf("expected %s after %s, got %s", want.Format("2006-01"),
				m.Dates[i-1].Format("2006-01"), m.Dates[i].Format("2006-01")))
		}
	}
	if m.Dates[0].Month() != time.January || len(m.Dates)%12 != 0 {
		return fail(fmt.Errorf("records must cover whole calendar years, got %d months from %s",
			len(m.Dates), m.Dates[0].Format("2006-01")))
	}
	return nil
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// InfiltrationRate returns the infiltration weight of a calendar month:
// alpha from April to September, 1 otherwise.
func InfiltrationRate(month time.Month, alpha float64) float64 {
	if month >= time.April && month <= time.September {
		return alpha
	}
	return 1
}

// PrepareAnnualInput aggregates monthly records into one input value per
// calendar year.
//
// Each month is weighted by its precipitation times its infiltration rate
// (see InfiltrationRate). The annual value is the weighted mean of the
// monthly concentrations. The returned time axis counts years from the
// first one: 0, 1, 2, ...
//
// Parameters:
//   - in: validated monthly records covering whole years
//   - alpha: infiltration fraction of the summer months, in [0, 1]
//
// Returns:
//   - the annual input series, or an error for invalid records or alpha
func PrepareAnnualInput(in MonthlyInput, alpha float64) (models.InputSeries, error) {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return models.InputSeries{}, models.NewOpError("annual input", models.ErrConfiguration,
			fmt.Errorf("infiltration fraction %g outside [0, 1]", alpha))
	}
	if err := in.Validate(); err != nil {
		return models.InputSeries{}, err
	}

	years := in.Len() / 12
	out := models.InputSeries{
		Time:      make([]float64, years),
		Amplitude: make([]float64, years),
	}

	weights := make([]float64, 12)
	for y := 0; y < years; y++ {
		lo := y * 12
		for m := range weights {
			weights[m] = in.Precipitation[lo+m] * InfiltrationRate(in.Dates[lo+m].Month(), alpha)
		}
		total := floats.Sum(weights)
		if total == 0 {
			return models.InputSeries{}, models.NewOpError("annual input", models.ErrDataValidity,
				fmt.Errorf("no weighted precipitation in %d", in.Dates[lo].Year()))
		}
		out.Time[y] = float64(y)
		out.Amplitude[y] = floats.Dot(in.Concentration[lo:lo+12], weights) / total
	}
	return out, nil
}
