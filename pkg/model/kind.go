// Package model describes which transit-time model is fitted and over which
// parameter ranges.
package model

import (
	"fmt"
	"strings"

	"tracerfit/internal/models"
)

// Kind identifies a lumped-parameter transit-time model
type Kind string

const (
	// Dispersion is the dispersion model (DM): mean transit time and
	// dispersion parameter.
	Dispersion Kind = "DM"

	// Exponential is the exponential model (EM): mean transit time.
	Exponential Kind = "EM"

	// ExponentialPistonFlow is the exponential-piston-flow model (EPM): mean
	// transit time and the ratio of total to exponentially mixed volume.
	ExponentialPistonFlow Kind = "EPM"

	// PistonFlow is the piston-flow model (PFM): a pure time shift by the
	// mean transit time.
	PistonFlow Kind = "PFM"
)

// Kinds lists every supported model in a stable order
var Kinds = []Kind{Dispersion, Exponential, ExponentialPistonFlow, PistonFlow}

var aliases = map[string]Kind{
	"dm":                      Dispersion,
	"dispersion":              Dispersion,
	"em":                      Exponential,
	"exponential":             Exponential,
	"epm":                     ExponentialPistonFlow,
	"exponential-piston-flow": ExponentialPistonFlow,
	"pfm":                     PistonFlow,
	"piston-flow":             PistonFlow,
}

// ParseKind maps a short code ("EM") or a long name ("exponential") to a Kind.
func ParseKind(s string) (Kind, error) {
	k, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", models.NewOpError("model kind", models.ErrConfiguration,
			fmt.Errorf("model type not found: %q (expected PFM, EM, EPM or DM)", s))
	}
	return k, nil
}

// NumParams returns how many free parameters the model has
func (k Kind) NumParams() int {
	switch k {
	case Dispersion, ExponentialPistonFlow:
		return 2
	case Exponential, PistonFlow:
		return 1
	default:
		return 0
	}
}

// ParamNames returns display names for the model's parameters
func (k Kind) ParamNames() []string {
	switch k {
	case Dispersion:
		return []string{"transit_time", "dispersion"}
	case ExponentialPistonFlow:
		return []string{"transit_time", "eta"}
	case Exponential, PistonFlow:
		return []string{"transit_time"}
	default:
		return nil
	}
}

// Valid reports whether k is one of the supported kinds
func (k Kind) Valid() bool { return k.NumParams() > 0 }

func (k Kind) String() string { return string(k) }
