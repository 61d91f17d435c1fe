package inventory

import (
	"math"
	"time"
)

// FillDetector infers fills from position changes between cycles when the
// gateway does not push fill events. The position itself is never cached as
// ground truth: the runner reads it fresh from the gateway every cycle and
// only the previous observation is kept here, for delta detection.
type FillDetector struct {
	epsilon  float64
	havePrev bool
	prev     float64
	prevTs   time.Time
}

// NewFillDetector builds a detector; epsilon absorbs exchange rounding noise
// in reported position sizes.
func NewFillDetector(epsilon float64) *FillDetector {
	if epsilon <= 0 {
		epsilon = 1e-9
	}
	return &FillDetector{epsilon: epsilon}
}

// Observe records the freshly read position and reports whether a fill
// occurred since the previous observation, along with the signed delta.
// The first observation never reports a fill.
func (d *FillDetector) Observe(position float64, now time.Time) (filled bool, delta float64) {
	if !d.havePrev {
		d.havePrev = true
		d.prev = position
		d.prevTs = now
		return false, 0
	}

	delta = position - d.prev
	d.prev = position
	d.prevTs = now

	if math.Abs(delta) <= d.epsilon {
		return false, 0
	}
	return true, delta
}

// Last returns the most recent observation.
func (d *FillDetector) Last() (position float64, ts time.Time, ok bool) {
	return d.prev, d.prevTs, d.havePrev
}
