// Package convolution computes full-mode discrete convolutions of an input
// signal with a sampled response function.
package convolution

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fftThreshold is the len(a)*len(b) product above which Full switches from
// the direct sum to the FFT.
const fftThreshold = 1 << 16

// Full returns the full discrete convolution of a and b:
//
//	y[k] = sum_j a[j] * b[k-j],  k = 0 .. len(a)+len(b)-2
//
// with implicit zero padding. Empty inputs yield an empty result.
func Full(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return []float64{}
	}
	if len(a)*len(b) > fftThreshold {
		return FullFFT(a, b)
	}
	return FullDirect(a, b)
}

// FullDirect evaluates the convolution sum term by term
func FullDirect(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return []float64{}
	}
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

// FullFFT computes the convolution as a pointwise product in the frequency
// domain. Both sequences are zero padded to a power of two no shorter than
// the full output.
func FullFFT(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return []float64{}
	}
	n := len(a) + len(b) - 1
	size := nextPow2(n)

	// Create a new FFT object from Gonum
	fft := fourier.NewFFT(size)

	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	ca := fft.Coefficients(nil, pa)
	cb := fft.Coefficients(nil, pb)
	for i := range ca {
		ca[i] *= cb[i]
	}

	// Sequence is unnormalized: a round trip scales by size
	seq := fft.Sequence(nil, ca)
	out := make([]float64, n)
	scale := 1 / float64(size)
	for i := range out {
		out[i] = seq[i] * scale
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
