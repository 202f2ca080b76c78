package fitting

import (
	"math"

	"tracerfit/pkg/model"
)

// boxTransform maps an unconstrained vector z onto the box given by bounds
// through a logistic function, which lets an unconstrained method search a
// bounded space. z = 0 corresponds to the midpoint of every bound.
type boxTransform struct {
	lower []float64
	width []float64
}

func newBoxTransform(bounds []model.Bound) boxTransform {
	b := boxTransform{lower: make([]float64, len(bounds)), width: make([]float64, len(bounds))}
	for i, bd := range bounds {
		b.lower[i] = bd.Lower
		b.width[i] = bd.Upper - bd.Lower
	}
	return b
}

func (b boxTransform) toModel(z []float64) []float64 {
	x := make([]float64, len(z))
	for i, v := range z {
		x[i] = b.lower[i] + b.width[i]/(1+math.Exp(-v))
	}
	return x
}

// logitLimit keeps toFree finite for points on the bounds
const logitLimit = 1e-9

func (b boxTransform) toFree(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		if b.width[i] == 0 {
			continue
		}
		u := (v - b.lower[i]) / b.width[i]
		u = math.Min(math.Max(u, logitLimit), 1-logitLimit)
		z[i] = math.Log(u / (1 - u))
	}
	return z
}
