package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputSeriesCloneIsIndependent(t *testing.T) {
	in := InputSeries{Time: []float64{0, 1}, Amplitude: []float64{10, 20}}
	cp := in.Clone()
	cp.Amplitude[0] = 99

	assert.Equal(t, 10.0, in.Amplitude[0], "original must not change")
	assert.Equal(t, 2, cp.Len())
}

func TestValidateSeries(t *testing.T) {
	require.NoError(t, InputSeries{Time: []float64{0}, Amplitude: []float64{1}}.Validate())

	err := InputSeries{}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataValidity))

	err = ObservationSet{Time: []float64{1, 2}, Concentration: []float64{1}}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataValidity))
	assert.Contains(t, err.Error(), "2 vs 1")
}

func TestOpErrorUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewOpError("parameter space", ErrConfiguration, cause)

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNumerical))

	var op *OpError
	require.True(t, errors.As(err, &op))
	assert.Equal(t, "parameter space", op.Op)
	assert.Equal(t, "parameter space: configuration error: root", err.Error())
}
