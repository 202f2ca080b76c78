package export

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracerfit/internal/models"
	"tracerfit/pkg/fitting"
	"tracerfit/pkg/model"
)

func createTestResults() []*fitting.FittingResult {
	return []*fitting.FittingResult{
		{
			Kind:             model.Exponential,
			Params:           []float64{55},
			MSE:              0.001,
			ModelEfficiency:  0.999,
			Converged:        true,
			Status:           "FunctionConvergence",
			Iterations:       42,
			Output:           models.Curve{X: []float64{1950, 1951, 1952}, Y: []float64{0.1, 0.2, 0.3}},
			ResponseFunction: models.Curve{X: []float64{0.001, 1.001}, Y: []float64{0.018, 0.0178}},
			Accuracy:         []fitting.ParamAccuracy{{Level: 0.95, Lower: 49.5, Upper: 60.5, StdDev: 0.8}},
		},
		{
			Kind:   model.PistonFlow,
			Mixing: 0.2,
			Params: []float64{12.3},
			Output: models.Curve{X: []float64{1962.3}, Y: []float64{5}},
		},
	}
}

func readParquet[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[T](file)
	defer reader.Close()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	return rows[:n]
}

func TestParameterRowsStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(ParameterRow))
	for _, col := range []string{"model_index", "model", "name", "value", "level", "lower", "upper", "std_dev"} {
		_, ok := schema.Lookup(col)
		assert.True(t, ok, "Column %s should exist in schema", col)
	}
}

func TestParameterRows(t *testing.T) {
	rows := ParameterRows(createTestResults())
	require.Len(t, rows, 2)

	assert.Equal(t, "transit_time", rows[0].Name)
	require.NotNil(t, rows[0].Lower)
	assert.Equal(t, 49.5, *rows[0].Lower)
	assert.Equal(t, 0.8, *rows[0].StdDev)

	assert.Equal(t, int32(1), rows[1].ModelIndex)
	assert.Equal(t, "PFM", rows[1].Model)
	assert.Nil(t, rows[1].Level)
}

func TestCurveRows(t *testing.T) {
	results := createTestResults()
	assert.Len(t, OutputRows(results), 4)

	responses := ResponseRows(results)
	require.Len(t, responses, 2, "piston flow has no response function")
	assert.Equal(t, "EM", responses[0].Model)
	assert.Equal(t, 1.001, responses[1].X)
}

func TestWriteParquet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "parquet")
	results := createTestResults()
	require.NoError(t, WriteParquet(dir, results))

	fits := readParquet[FitRow](t, filepath.Join(dir, FitsFile))
	assert.Equal(t, FitRows(results), fits)

	params := readParquet[ParameterRow](t, filepath.Join(dir, ParametersFile))
	require.Len(t, params, 2)
	assert.Equal(t, 55.0, params[0].Value)
	require.NotNil(t, params[0].Upper)
	assert.Equal(t, 60.5, *params[0].Upper)
	assert.Nil(t, params[1].Upper)

	outputs := readParquet[CurvePoint](t, filepath.Join(dir, OutputsFile))
	assert.Equal(t, OutputRows(results), outputs)

	responses := readParquet[CurvePoint](t, filepath.Join(dir, ResponsesFile))
	assert.Len(t, responses, 2)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.yaml")
	summary := Summary{StartYear: 1950, Decay: 0.0563, Results: createTestResults()}
	require.NoError(t, WriteYAML(path, summary))

	got, err := ReadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 1950, got.StartYear)
	require.Len(t, got.Results, 2)

	em := got.Results[0]
	assert.Equal(t, model.Exponential, em.Kind)
	assert.Equal(t, []float64{55}, em.Params)
	assert.Equal(t, summary.Results[0].Accuracy, em.Accuracy)
	assert.True(t, em.Converged)
	assert.Empty(t, em.Output.X, "curves are not part of the summary")

	assert.Equal(t, 0.2, got.Results[1].Mixing)
}

func TestReadYAMLMissingFile(t *testing.T) {
	_, err := ReadYAML(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
