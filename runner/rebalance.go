package runner

import (
	"context"
	"math"

	"go.uber.org/zap"

	"perp-trader-go/config"
	"perp-trader-go/gateway"
	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/risk"
	"perp-trader-go/strategy/directional"
)

// RebalanceResult records what one directional pass did (or why it declined).
type RebalanceResult struct {
	Side     directional.Side
	Target   float64
	Position float64
	Delta    float64
	MarkPx   float64
	Executed bool
	Reason   string
}

// Rebalancer is the forecast-driven directional path. It runs as a one-shot
// pass (typically cron-scheduled), fully independent of the quoting runners:
// no shared state, only the common gateway.
type Rebalancer struct {
	cfg config.RebalanceConfig
	gw  gateway.Gateway
	log *logger.Logger
}

// NewRebalancer builds the directional path for the configured asset.
func NewRebalancer(cfg config.RebalanceConfig, gw gateway.Gateway, log *logger.Logger) *Rebalancer {
	if log == nil {
		log = logger.Nop()
	}
	return &Rebalancer{cfg: cfg, gw: gw, log: log.WithInstrument(cfg.Asset)}
}

// Execute turns one forecast into at most one market order:
//
//  1. gate and size the forecast into a target position
//  2. clamp the target to the hard exposure cap
//  3. read position and mark price fresh from the gateway
//  4. skip when the adjustment notional is below the dust gate
//  5. re-assert 1x cross leverage, clear resting orders, send a marketable
//     IOC sized to close the gap
//
// Leverage is re-asserted every pass because the exchange-side setting can be
// changed out-of-band.
func (r *Rebalancer) Execute(ctx context.Context, f directional.Forecast) (RebalanceResult, error) {
	decision := directional.Decide(f, r.cfg.Signal)
	target := risk.ClampTarget(decision.TargetPosition, r.cfg.Signal.MaxAbsPosition)

	res := RebalanceResult{Side: decision.Side, Target: target, Reason: decision.Reason}

	snap, err := r.gw.TopOfBook(ctx, r.cfg.Asset)
	if err != nil {
		return res, err
	}
	position, err := r.gw.Position(ctx, r.cfg.Asset)
	if err != nil {
		return res, err
	}
	res.Position = position
	res.MarkPx = snap.Mid
	res.Delta = target - position

	r.log.Info("rebalance decision",
		zap.String("side", string(decision.Side)),
		zap.String("reason", decision.Reason),
		zap.Float64("expected_return_pct", f.ExpectedReturnPct),
		zap.Float64("confidence", f.Confidence),
		zap.Float64("target", target),
		zap.Float64("position", position),
		zap.Float64("delta", res.Delta),
		zap.Float64("mark_px", snap.Mid))

	if !risk.PassesMinNotional(res.Delta, snap.Mid, r.cfg.MinTradeNotionalUSD) {
		res.Reason = "adjustment below min notional"
		r.log.Info("rebalance skipped",
			zap.Float64("notional_usd", math.Abs(res.Delta)*snap.Mid),
			zap.Float64("min_notional_usd", r.cfg.MinTradeNotionalUSD))
		return res, nil
	}

	if err := r.gw.UpdateLeverage(ctx, r.cfg.Asset, 1, true); err != nil {
		return res, err
	}
	if _, err := r.gw.CancelAll(ctx, r.cfg.Asset); err != nil {
		return res, err
	}
	oid, err := r.gw.MarketOrder(ctx, r.cfg.Asset, res.Delta, r.cfg.SlippagePct)
	if err != nil {
		return res, err
	}

	res.Executed = true
	r.log.Info("rebalance executed",
		zap.String("order_id", oid),
		zap.Float64("size", res.Delta),
		zap.Float64("slippage_pct", r.cfg.SlippagePct))
	return res, nil
}
