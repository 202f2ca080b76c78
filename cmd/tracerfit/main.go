// Command tracerfit fits lumped-parameter transit-time models to tracer
// observations.
package main

import (
	"errors"
	"fmt"
	"os"

	"tracerfit/internal/models"
)

// Exit codes by error kind
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitData          = 3
	exitNumerical     = 4
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return exitConfiguration
	case errors.Is(err, models.ErrDataValidity), errors.Is(err, models.ErrFileFormat):
		return exitData
	case errors.Is(err, models.ErrNumerical):
		return exitNumerical
	default:
		return exitFailure
	}
}
