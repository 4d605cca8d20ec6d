package metrics

import "math"

// Welford computes the running mean and sample variance of a series using Welford's online algorithm.
type Welford struct {
	mean  float64
	m2    float64
	count uint64
}

// Update adds val to the series.
func (w *Welford) Update(val float64) {
	w.count++
	delta := val - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (val - w.mean)
}

// Get returns the mean and sample variance of the series.
// The variance is NaN until the series holds two values.
func (w *Welford) Get() (mean, variance float64, count uint64) {
	if w.count < 2 {
		return w.mean, math.NaN(), w.count
	}
	return w.mean, w.m2 / float64(w.count-1), w.count
}
