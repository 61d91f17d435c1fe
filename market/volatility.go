package market

import (
	"errors"
	"math"
)

// ErrInvalidInput marks a non-finite sample. The sample is discarded and the
// window is left untouched.
var ErrInvalidInput = errors.New("invalid input sample")

// VolatilityEstimator keeps a fixed-size window of the most recent log returns
// and exposes their sample variance. Owned exclusively by one strategy runner
// per instrument; Update is called once per cycle.
type VolatilityEstimator struct {
	capacity int
	floor    float64

	returns  []float64 // ring buffer
	head     int
	count    int
	variance float64
}

// NewVolatilityEstimator creates an estimator with the given window capacity.
// floor is returned as the variance estimate while fewer than 2 samples exist.
func NewVolatilityEstimator(capacity int, floor float64) *VolatilityEstimator {
	if capacity < 2 {
		capacity = 2
	}
	if floor <= 0 {
		floor = 1e-12
	}
	return &VolatilityEstimator{
		capacity: capacity,
		floor:    floor,
		returns:  make([]float64, capacity),
		variance: floor,
	}
}

// Update pushes the newest log return, evicting the oldest when the window is
// full, and returns the recomputed sample variance. Non-finite input is
// rejected with ErrInvalidInput and the previous estimate is returned.
func (v *VolatilityEstimator) Update(logReturn float64) (float64, error) {
	if math.IsNaN(logReturn) || math.IsInf(logReturn, 0) {
		return v.variance, ErrInvalidInput
	}

	v.returns[v.head] = logReturn
	v.head = (v.head + 1) % v.capacity
	if v.count < v.capacity {
		v.count++
	}

	v.variance = v.sampleVariance()
	return v.variance, nil
}

// Variance returns the cached estimate without mutating the window.
func (v *VolatilityEstimator) Variance() float64 {
	return v.variance
}

// Count returns the number of samples currently in the window.
func (v *VolatilityEstimator) Count() int {
	return v.count
}

func (v *VolatilityEstimator) sampleVariance() float64 {
	if v.count < 2 {
		return v.floor
	}
	sum := 0.0
	for i := 0; i < v.count; i++ {
		sum += v.returns[i]
	}
	mean := sum / float64(v.count)

	sq := 0.0
	for i := 0; i < v.count; i++ {
		d := v.returns[i] - mean
		sq += d * d
	}
	variance := sq / float64(v.count)
	if variance < v.floor {
		return v.floor
	}
	return variance
}

// HorizonVariance scales the per-step return variance to a price-unit variance
// over the quoting horizon: mid^2 * (varStep/dt) * max(1, horizonSeconds).
// dt is the sampling interval in seconds.
func HorizonVariance(varStep, mid, dtSeconds, horizonSeconds float64) float64 {
	dt := math.Max(1.0, dtSeconds)
	perSec := varStep / dt
	return mid * mid * perSec * math.Max(1.0, horizonSeconds)
}
