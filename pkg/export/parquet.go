// Package export writes fitting results to disk: Parquet tables for the
// curves and parameters, and a YAML summary.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"tracerfit/pkg/fitting"
)

// Parquet file names written by WriteParquet
const (
	FitsFile       = "fits.parquet"
	ParametersFile = "parameters.parquet"
	OutputsFile    = "outputs.parquet"
	ResponsesFile  = "responses.parquet"
)

// FitRow is the summary of one fitted model
type FitRow struct {
	// ModelIndex is the position of the model configuration, from 0
	ModelIndex int32 `parquet:"model_index,snappy"`

	// Model is the model kind (DM, EM, EPM, PFM)
	Model string `parquet:"model,snappy"`

	// Mixing is the mixing fraction the input was scaled by
	Mixing float64 `parquet:"mixing,snappy"`

	MSE             float64 `parquet:"mse,snappy"`
	ModelEfficiency float64 `parquet:"model_efficiency,snappy"`

	// Converged is false when the optimizer stopped on a limit
	Converged bool `parquet:"converged,snappy"`

	// Status is the optimizer termination status
	Status string `parquet:"status,snappy"`

	Iterations int32 `parquet:"iterations,snappy"`
}

// ParameterRow is one fitted parameter, with its confidence interval when
// one was estimated
type ParameterRow struct {
	ModelIndex int32   `parquet:"model_index,snappy"`
	Model      string  `parquet:"model,snappy"`
	Name       string  `parquet:"name,snappy"`
	Value      float64 `parquet:"value,snappy"`

	// Level, Lower, Upper and StdDev are null without an uncertainty pass
	Level  *float64 `parquet:"level,optional,snappy"`
	Lower  *float64 `parquet:"lower,optional,snappy"`
	Upper  *float64 `parquet:"upper,optional,snappy"`
	StdDev *float64 `parquet:"std_dev,optional,snappy"`
}

// CurvePoint is one point of a predicted output curve or of a discretized
// response function
type CurvePoint struct {
	ModelIndex int32   `parquet:"model_index,snappy"`
	Model      string  `parquet:"model,snappy"`
	X          float64 `parquet:"x,snappy"`
	Y          float64 `parquet:"y,snappy"`
}

// FitRows flattens results into one FitRow each
func FitRows(results []*fitting.FittingResult) []FitRow {
	rows := make([]FitRow, 0, len(results))
	for i, r := range results {
		rows = append(rows, FitRow{
			ModelIndex:      int32(i),
			Model:           string(r.Kind),
			Mixing:          r.Mixing,
			MSE:             r.MSE,
			ModelEfficiency: r.ModelEfficiency,
			Converged:       r.Converged,
			Status:          r.Status,
			Iterations:      int32(r.Iterations),
		})
	}
	return rows
}

// ParameterRows flattens results into one ParameterRow per parameter
func ParameterRows(results []*fitting.FittingResult) []ParameterRow {
	var rows []ParameterRow
	for i, r := range results {
		names := r.ParamNames()
		for j, v := range r.Params {
			row := ParameterRow{ModelIndex: int32(i), Model: string(r.Kind), Name: names[j], Value: v}
			if j < len(r.Accuracy) {
				acc := r.Accuracy[j]
				row.Level, row.Lower, row.Upper, row.StdDev = &acc.Level, &acc.Lower, &acc.Upper, &acc.StdDev
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// OutputRows flattens the predicted output curves
func OutputRows(results []*fitting.FittingResult) []CurvePoint {
	var rows []CurvePoint
	for i, r := range results {
		for j := range r.Output.X {
			rows = append(rows, CurvePoint{ModelIndex: int32(i), Model: string(r.Kind), X: r.Output.X[j], Y: r.Output.Y[j]})
		}
	}
	return rows
}

// ResponseRows flattens the response function curves. Piston-flow results
// contribute no rows.
func ResponseRows(results []*fitting.FittingResult) []CurvePoint {
	var rows []CurvePoint
	for i, r := range results {
		for j := range r.ResponseFunction.X {
			rows = append(rows, CurvePoint{
				ModelIndex: int32(i),
				Model:      string(r.Kind),
				X:          r.ResponseFunction.X[j],
				Y:          r.ResponseFunction.Y[j],
			})
		}
	}
	return rows
}

// WriteParquet writes the fits, parameters, outputs and responses tables
// into dir, creating it if needed.
func WriteParquet(dir string, results []*fitting.FittingResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeParquetFile(filepath.Join(dir, FitsFile), FitRows(results)); err != nil {
		return err
	}
	if err := writeParquetFile(filepath.Join(dir, ParametersFile), ParameterRows(results)); err != nil {
		return err
	}
	if err := writeParquetFile(filepath.Join(dir, OutputsFile), OutputRows(results)); err != nil {
		return err
	}
	return writeParquetFile(filepath.Join(dir, ResponsesFile), ResponseRows(results))
}

// writeParquetFile writes rows to a Parquet file whose schema is inferred
// from the struct tags of T.
func writeParquetFile[T any](outputPath string, rows []T) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file %s: %w", outputPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer for %s: %w", outputPath, err)
	}
	return nil
}
