package risk

import (
	"math"

	"go.uber.org/zap"

	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/metrics"
	"perp-trader-go/strategy/stoikov"
)

// ClampTarget clamps any target quantity to [-maxAbs, +maxAbs]. Idempotent.
func ClampTarget(target, maxAbs float64) float64 {
	return math.Max(math.Min(target, maxAbs), -maxAbs)
}

// PassesMinNotional reports whether a rebalance trade clears the minimum
// notional gate. Trades below the gate are skipped entirely to avoid
// fee/dust churn.
func PassesMinNotional(delta, markPx, minTradeNotionalUSD float64) bool {
	return math.Abs(delta)*markPx >= minTradeNotionalUSD
}

// Limiter applies hard exposure limits to proposed quotes. Shared by the
// market-making and directional paths; position is always the gateway's most
// recent read and is never mutated here.
type Limiter struct {
	instrument string
	maxAbs     float64
	log        *logger.Logger
}

// NewLimiter builds a limiter for one instrument.
func NewLimiter(instrument string, maxAbsPosition float64, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.Nop()
	}
	return &Limiter{instrument: instrument, maxAbs: maxAbsPosition, log: log}
}

// Apply re-asserts the position cap on a shaped quote. Upstream shaping (the
// fill-pressure size multiplier in particular) can push a side beyond the
// remaining capacity; sizes are shrunk to capacity and the increasing side is
// suppressed outright at or past the cap. Logs the clamped decision distinctly
// from the proposed one.
func (l *Limiter) Apply(q stoikov.QuoteState, position float64) stoikov.QuoteState {
	proposed := q

	// 硬上限：到达仓位上限时增仓方向直接归零
	if position >= l.maxAbs {
		q.BidSize = 0
	}
	if position <= -l.maxAbs {
		q.AskSize = 0
	}

	// 按剩余容量收敛增仓方向的下单量
	if q.BidSize > 0 {
		headroom := l.maxAbs - position
		if headroom < q.BidSize {
			q.BidSize = math.Max(0, headroom)
		}
	}
	if q.AskSize > 0 {
		headroom := l.maxAbs + position
		if headroom < q.AskSize {
			q.AskSize = math.Max(0, headroom)
		}
	}

	if q.BidSize != proposed.BidSize || q.AskSize != proposed.AskSize {
		metrics.RiskClamps.WithLabelValues(l.instrument).Inc()
		l.log.Info("risk clamp applied",
			zap.Float64("position", position),
			zap.Float64("proposed_bid_sz", proposed.BidSize),
			zap.Float64("proposed_ask_sz", proposed.AskSize),
			zap.Float64("clamped_bid_sz", q.BidSize),
			zap.Float64("clamped_ask_sz", q.AskSize))
	}
	return q
}

// MaxAbsPosition returns the hard cap.
func (l *Limiter) MaxAbsPosition() float64 {
	return l.maxAbs
}
