package stoikov

import (
	"math"
)

// QuoteState is the per-cycle output of the quote model. Derived fresh each
// cycle; carries no identity beyond logging.
type QuoteState struct {
	Reservation float64
	HalfSpread  float64 // price units
	SpreadBps   float64 // realized full spread, bps of mid
	BidPx       float64
	AskPx       float64
	BidSize     float64
	AskSize     float64
}

// Model computes reservation price and spread from inventory, variance and
// the strategy risk parameters (Avellaneda-Stoikov).
type Model struct {
	p Params
}

// New validates params and builds a Model. Gamma/kappa out of range is a
// construction error, never a call-time one.
func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{p: p}, nil
}

// Params returns the immutable parameters.
func (m *Model) Params() Params {
	return m.p
}

// Compute derives the quote for the current cycle.
//
//	reservation = mid - position*gamma*variance
//	rawSpread   = gamma*variance + (2/gamma)*ln(1 + gamma/kappa)
//
// The spread is clamped in bps of mid to [MinSpreadBps, MaxSpreadBps] before
// halving. variance is expected in price units (see market.HorizonVariance).
func (m *Model) Compute(mid, position, variance float64) QuoteState {
	p := m.p

	reservation := mid - position*p.Gamma*variance
	rawSpread := p.Gamma*variance + (2.0/p.Gamma)*math.Log(1.0+p.Gamma/p.Kappa)

	spreadBps := clamp(rawSpread/mid*10000.0, p.MinSpreadBps, p.MaxSpreadBps)
	halfSpread := mid * (spreadBps / 10000.0) / 2.0

	// Size skew: linear in the inventory ratio, continuous and monotonic,
	// reaching exactly zero on the increasing side at the position cap.
	invRatio := clamp(position/p.MaxAbsPosition, -1.0, 1.0)
	bidSize := p.OrderSize * math.Max(0.0, 1.0-invRatio)
	askSize := p.OrderSize * math.Max(0.0, 1.0+invRatio)

	// Hard floor beneath the skew: at or past the cap the increasing side is
	// suppressed outright.
	if position >= p.MaxAbsPosition {
		bidSize = 0
	}
	if position <= -p.MaxAbsPosition {
		askSize = 0
	}

	return QuoteState{
		Reservation: reservation,
		HalfSpread:  halfSpread,
		SpreadBps:   spreadBps,
		BidPx:       reservation - halfSpread,
		AskPx:       reservation + halfSpread,
		BidSize:     bidSize,
		AskSize:     askSize,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
