package aggregate

import (
	"math"
	"testing"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestReduce_SingleVectorIsIdentity(t *testing.T) {
	v := []float32{0.6, 0.8, 0}
	got, err := Reduce([][]float32{v})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.8, 0}, toF64(got), 1e-6)
}

func TestReduce_MeanThenNormalize(t *testing.T) {
	frames := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{1, 0, 0, 0},
	}
	got, err := Reduce(frames)
	require.NoError(t, err)
	// mean = (.5, .25, .25, 0), norm = sqrt(.375)
	n := math.Sqrt(0.375)
	assert.InDeltaSlice(t, []float64{0.5 / n, 0.25 / n, 0.25 / n, 0}, toF64(got), 1e-6)
	assert.InDelta(t, 1.0, norm(got), 1e-6)
}

func TestReduce_Errors(t *testing.T) {
	_, err := Reduce(nil)
	require.ErrorIs(t, err, lenserr.ErrEmptyInput)

	_, err = Reduce([][]float32{{1, 0}, {-1, 0}})
	require.ErrorIs(t, err, lenserr.ErrDegenerateVector)

	_, err = Reduce([][]float32{{1, 0}, {1, 0, 0}})
	require.ErrorIs(t, err, lenserr.ErrDimensionMismatch)

	_, err = Reduce([][]float32{{float32(math.NaN()), 1}})
	require.ErrorIs(t, err, lenserr.ErrDegenerateVector)
}

func TestReduce_UnscaledFrames(t *testing.T) {
	got, err := Reduce([][]float32{{3, 0}, {0, 4}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, toF64(got), 1e-6)
}

func TestReduce_DoesNotModifyInput(t *testing.T) {
	frames := [][]float32{{1, 0}, {0, 1}}
	_, err := Reduce(frames)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, frames)
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
