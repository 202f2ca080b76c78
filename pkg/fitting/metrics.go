package fitting

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanSquaredError returns the mean of the squared residuals between
// predicted and observed values. Both slices must have the same length.
func MeanSquaredError(predicted, observed []float64) float64 {
	if len(observed) == 0 {
		return math.NaN()
	}
	return sumSquaredResiduals(predicted, observed) / float64(len(observed))
}

// ModelEfficiency returns the Nash-Sutcliffe style model efficiency
//
//	ME = 1 - sum((pred-obs)^2) / sum((obs-mean(obs))^2)
//
// 1 is a perfect fit; values <= 0 mean the observation mean predicts as well
// or better. With constant observations the score is 1 for an exact fit and
// -Inf otherwise.
func ModelEfficiency(predicted, observed []float64) float64 {
	residual := sumSquaredResiduals(predicted, observed)

	mean := stat.Mean(observed, nil)
	baseline := 0.0
	for _, o := range observed {
		d := o - mean
		baseline += d * d
	}

	if baseline == 0 {
		if residual == 0 {
			return 1
		}
		return math.Inf(-1)
	}
	return 1 - residual/baseline
}

func sumSquaredResiduals(predicted, observed []float64) float64 {
	s := 0.0
	for i, o := range observed {
		d := predicted[i] - o
		s += d * d
	}
	return s
}
