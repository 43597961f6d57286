// Package aggregate reduces per-frame embeddings to one vector per video.
package aggregate

import (
	"math"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
	"github.com/hyperjump/medialens/pkg/utils"
)

// minNorm is the smallest mean norm that can still be renormalized.
const minNorm = 1e-12

// Reduce averages vectors component-wise and scales the mean to unit length.
// All vectors must have the same length. Temporal order is not preserved.
func Reduce(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, lenserr.New(lenserr.CodeAggregateEmptyInput, lenserr.ErrEmptyInput, "no vectors to aggregate")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, lenserr.New(lenserr.CodeAggregateEmptyInput, lenserr.ErrEmptyInput, "vectors are empty")
	}

	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, lenserr.New(lenserr.CodeVectorDimension, lenserr.ErrDimensionMismatch,
				"frame vector dimension mismatch", append(lenserr.Dimension(dim, len(v)), lenserr.Field("frame", i))...)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	n := float64(len(vectors))
	out := make([]float32, dim)
	for j, x := range sum {
		out[j] = float32(x / n)
	}
	norm := utils.NormalizeL2(out)
	if norm < minNorm || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, lenserr.New(lenserr.CodeAggregateDegenerate, lenserr.ErrDegenerateVector,
			"mean vector cannot be normalized", lenserr.Field("norm", norm), lenserr.Field("frames", len(vectors)))
	}
	return out, nil
}
