package order

import (
	"math"
	"time"

	"perp-trader-go/strategy/stoikov"
)

// State represents the per-instrument quoting lifecycle.
type State string

const (
	// StatePassive rests a two-sided quote without crossing the spread.
	StatePassive State = "PASSIVE"
	// StateFillPressure tightens quotes and allows crossing after a period
	// without fills, to force inventory turnover. Best effort, not a
	// guarantee of a fill.
	StateFillPressure State = "FILL_PRESSURE"
)

// TimeInForce matches the exchange's order TIF modes.
type TimeInForce string

const (
	// TifAlo (add-liquidity-only) rests post-only, never crossing.
	TifAlo TimeInForce = "Alo"
	// TifGtc may cross the book.
	TifGtc TimeInForce = "Gtc"
	// TifIoc is used by the directional path's marketable orders.
	TifIoc TimeInForce = "Ioc"
)

// Lifecycle is the per-instrument order state machine. Owned exclusively by
// one strategy runner; never shared across instruments. A process restart
// loses this state by design: correctness is recovered by the unconditional
// cancel-all at the start of every cycle.
type Lifecycle struct {
	params stoikov.Params

	state         State
	lastFill      time.Time
	pressureSince time.Time
	outstanding   []string

	// cycles completed with orders left resting and no fill in between
	restingCycles int
}

// NewLifecycle starts in PASSIVE. now seeds lastFill so a fresh runner does
// not enter fill pressure before it has quoted at all.
func NewLifecycle(params stoikov.Params, now time.Time) *Lifecycle {
	return &Lifecycle{
		params:   params,
		state:    StatePassive,
		lastFill: now,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	return l.state
}

// LastFill returns the timestamp of the most recent fill (or construction).
func (l *Lifecycle) LastFill() time.Time {
	return l.lastFill
}

// Outstanding returns the order IDs left resting by the previous cycle.
func (l *Lifecycle) Outstanding() []string {
	return l.outstanding
}

// RecordFill is called whenever the gateway reports a fill for this
// instrument, or when the runner infers one from a position change.
func (l *Lifecycle) RecordFill(now time.Time) {
	l.lastFill = now
	l.restingCycles = 0
}

// RecordResting registers the orders left resting at the end of a cycle.
func (l *Lifecycle) RecordResting(ids []string) {
	l.outstanding = append(l.outstanding[:0], ids...)
	if len(ids) > 0 {
		l.restingCycles++
	} else {
		l.restingCycles = 0
	}
}

// Step evaluates the state machine at the top of a cycle and returns the
// state the cycle should quote under.
//
//	PASSIVE -> FILL_PRESSURE  when now-lastFill > targetFillSeconds and at
//	                          least one full cycle elapsed with resting
//	                          unfilled orders.
//	FILL_PRESSURE -> PASSIVE  on the first fill, or after maxPressureSeconds.
func (l *Lifecycle) Step(now time.Time) State {
	fillAge := now.Sub(l.lastFill).Seconds()

	switch l.state {
	case StatePassive:
		if fillAge > l.params.TargetFillSeconds && l.restingCycles >= 1 {
			l.state = StateFillPressure
			l.pressureSince = now
		}
	case StateFillPressure:
		if fillAge <= l.params.TargetFillSeconds {
			// a fill was recorded since entering pressure
			l.state = StatePassive
		} else if now.Sub(l.pressureSince).Seconds() > l.params.MaxPressureSeconds {
			// runaway guard: do not quote aggressively forever
			l.state = StatePassive
			l.lastFill = now
			l.restingCycles = 0
		}
	}
	return l.state
}

// Shape applies the state's quoting mode to a freshly computed quote.
// In FILL_PRESSURE the half-spread is tightened by the configured factor
// (still respecting MinSpreadBps), sizes grow toward the configured multiple
// and the TIF switches to one that may cross the book. Suppressed sides
// (size 0) stay suppressed.
func (l *Lifecycle) Shape(q stoikov.QuoteState, mid float64) (stoikov.QuoteState, TimeInForce) {
	if l.state != StateFillPressure {
		return q, TifAlo
	}

	minHalf := mid * (l.params.MinSpreadBps / 10000.0) / 2.0
	half := math.Max(minHalf, q.HalfSpread*l.params.PressureSpreadFactor)

	q.HalfSpread = half
	q.SpreadBps = half * 2.0 / mid * 10000.0
	q.BidPx = q.Reservation - half
	q.AskPx = q.Reservation + half
	q.BidSize *= l.params.PressureSizeMult
	q.AskSize *= l.params.PressureSizeMult
	return q, TifGtc
}
