// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// MaxSlice gets the maximum value and indices of the maximum values in
// a slice of float64.
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i, value := range values {
		if value > max {
			max = value
			indices = []int{i}
		} else if value == max && i != 0 {
			indices = append(indices, i)
		}
	}
	return
}

// Argmax returns the index of the first maximum value in values
func Argmax(values []float64) int {
	return floats.MaxIdx(values)
}

// Max calculates and returns the maximum float64 in a list
func Max(values ...float64) float64 {
	return floats.Max(values)
}

// Summary returns the maximum, minimum, and mean of values. All three
// are zero if values is empty.
func Summary(values []float64) (max, min, mean float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	return floats.Max(values), floats.Min(values), stat.Mean(values, nil)
}
