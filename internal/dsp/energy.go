// internal/dsp/energy.go
// Package dsp implements the signal-level building blocks of the whistle
// counter: short-term block energy and the adaptive noise floor.
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrEmptyBlock indicates a block with no samples reached the energy estimator
	ErrEmptyBlock = errors.New("block must contain at least one sample")
)

// energyEpsilon keeps the value under the square root strictly positive so
// that digital silence yields a tiny non-zero energy instead of zero.
const energyEpsilon = 1e-12

// RMS returns the root-mean-square energy of one block of samples,
// sqrt(mean(x^2) + epsilon). Samples should be normalized to -1.0 to 1.0.
// An empty block is a precondition violation from the capture layer.
func RMS(samples []float32) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptyBlock
	}
	return rmsNoCheck(samples), nil
}

// RMSNoCheck computes block energy without the precondition check for hot
// path usage. Caller MUST ensure samples is non-empty.
func RMSNoCheck(samples []float32) float64 {
	return rmsNoCheck(samples)
}

func rmsNoCheck(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(samples)) + energyEpsilon)
}
