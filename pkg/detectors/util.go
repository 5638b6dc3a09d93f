package detectors

import (
	"math"
	"sort"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortFloats(v []float64) { sort.Float64s(v) }

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	var acc float64
	for _, x := range v {
		d := x - m
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(v)))
}
