package runner

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"perp-trader-go/config"
	"perp-trader-go/gateway"
	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/inventory"
	"perp-trader-go/market"
	"perp-trader-go/metrics"
	"perp-trader-go/order"
	"perp-trader-go/risk"
	"perp-trader-go/strategy/stoikov"
)

// SnapshotSource 可选的行情快照来源（WS订阅），优先于REST轮询。
type SnapshotSource interface {
	Latest(instrument string) (market.Snapshot, bool)
}

// Runner drives the quoting cycle for a single instrument. One Runner per
// instrument, one goroutine per Runner; state is never shared across
// instruments. Cycles fire on a fixed interval and are strictly
// non-overlapping: if the previous cycle is still in flight the tick is
// skipped, never queued.
type Runner struct {
	instrument string
	cfg        config.InstrumentConfig

	gw   gateway.Gateway
	feed SnapshotSource

	model     *stoikov.Model
	vol       *market.VolatilityEstimator
	fills     *inventory.FillDetector
	lifecycle *order.Lifecycle
	limiter   *risk.Limiter

	clock risk.Clock
	log   *logger.Logger

	busy    atomic.Bool
	lastMid float64
}

// New builds a runner. feed may be nil, in which case every cycle polls the
// gateway for top of book.
func New(instrument string, cfg config.InstrumentConfig, gw gateway.Gateway, feed SnapshotSource, clock risk.Clock, log *logger.Logger) (*Runner, error) {
	model, err := stoikov.New(cfg.Quote)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = risk.NowUTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		instrument: instrument,
		cfg:        cfg,
		gw:         gw,
		feed:       feed,
		model:      model,
		vol:        market.NewVolatilityEstimator(cfg.Quote.WindowSize, cfg.Quote.VarianceFloor),
		fills:      inventory.NewFillDetector(cfg.FillEpsilon),
		lifecycle:  order.NewLifecycle(cfg.Quote, clock.Now()),
		limiter:    risk.NewLimiter(instrument, cfg.Quote.MaxAbsPosition, log),
		clock:      clock,
		log:        log.WithInstrument(instrument),
	}, nil
}

// Run blocks until ctx is done, executing one cycle per poll interval. On
// shutdown it makes a best-effort cancel-all so no orders are left resting.
func (r *Runner) Run(ctx context.Context) {
	interval := time.Duration(r.cfg.PollIntervalSec * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("runner started",
		zap.Float64("poll_interval_sec", r.cfg.PollIntervalSec),
		zap.Float64("gamma", r.cfg.Quote.Gamma),
		zap.Float64("kappa", r.cfg.Quote.Kappa))

	// 启动即执行一次，不等首个tick
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs one cycle unless the previous one is still in flight.
func (r *Runner) tick(ctx context.Context) {
	if !r.busy.CompareAndSwap(false, true) {
		metrics.CyclesSkipped.WithLabelValues(r.instrument, "busy").Inc()
		r.log.Warn("previous cycle still running, tick skipped")
		return
	}
	defer r.busy.Store(false)

	start := r.clock.Now()
	r.runCycle(ctx)
	metrics.CycleDuration.WithLabelValues(r.instrument).Observe(r.clock.Now().Sub(start).Seconds())
}

// runCycle is the cancel-then-place quoting cycle. Any gateway failure aborts
// the remainder of the cycle; the next cycle re-derives everything from fresh
// reads, so an abort is always safe.
func (r *Runner) runCycle(ctx context.Context) {
	now := r.clock.Now()

	snap, err := r.snapshot(ctx)
	if err != nil {
		if errors.Is(err, market.ErrStaleData) {
			// 行情过期：整周期跳过，不撤单不下单
			metrics.CyclesSkipped.WithLabelValues(r.instrument, "stale").Inc()
			r.log.Warn("market data stale, cycle skipped", zap.Time("snapshot_ts", snap.Ts))
			return
		}
		r.cycleError("snapshot", err)
		return
	}

	position, err := r.gw.Position(ctx, r.instrument)
	if err != nil {
		r.cycleError("position", err)
		return
	}

	if filled, delta := r.fills.Observe(position, now); filled {
		r.lifecycle.RecordFill(now)
		metrics.FillsDetected.WithLabelValues(r.instrument).Inc()
		r.log.Info("fill inferred from position delta",
			zap.Float64("delta", delta),
			zap.Float64("position", position))
	}

	varStep := r.updateVolatility(snap.Mid)
	variance := market.HorizonVariance(varStep, snap.Mid, r.cfg.PollIntervalSec, r.cfg.Quote.HorizonSeconds)

	state := r.lifecycle.Step(now)
	metrics.SetLifecycleState(r.instrument, state == order.StateFillPressure)

	quote := r.model.Compute(snap.Mid, position, variance)
	shaped, tif := r.lifecycle.Shape(quote, snap.Mid)
	final := r.limiter.Apply(shaped, position)

	metrics.UpdateQuoteMetrics(r.instrument, final.Reservation, final.SpreadBps, position, variance)

	bidPx, askPx := alignPrices(final, snap, r.cfg.TickSize, state, position)

	// 撤单失败则放弃本周期：残留挂单下个周期再清
	canceled, err := r.gw.CancelAll(ctx, r.instrument)
	if err != nil {
		r.cycleError("cancel", err)
		return
	}
	if canceled > 0 {
		metrics.OrdersCanceled.WithLabelValues(r.instrument).Add(float64(canceled))
	}

	resting := r.placeQuotes(ctx, final, bidPx, askPx, tif)
	r.lifecycle.RecordResting(resting)

	r.log.Info("cycle decision",
		zap.String("state", string(state)),
		zap.Float64("mid", snap.Mid),
		zap.Float64("position", position),
		zap.Float64("variance", variance),
		zap.Float64("reservation", final.Reservation),
		zap.Float64("spread_bps", final.SpreadBps),
		zap.Float64("bid_px", bidPx),
		zap.Float64("bid_sz", final.BidSize),
		zap.Float64("ask_px", askPx),
		zap.Float64("ask_sz", final.AskSize),
		zap.String("tif", string(tif)),
		zap.Int("canceled", canceled),
		zap.Int("placed", len(resting)))

	metrics.CyclesTotal.WithLabelValues(r.instrument).Inc()
}

// snapshot prefers the WS feed when it holds a fresh book, falling back to a
// gateway poll. Freshness is checked either way.
func (r *Runner) snapshot(ctx context.Context) (market.Snapshot, error) {
	maxAge := time.Duration(r.cfg.StaleAfterSec * float64(time.Second))
	now := r.clock.Now()

	if r.feed != nil {
		if snap, ok := r.feed.Latest(r.instrument); ok && snap.Valid() {
			if err := snap.CheckFresh(now, maxAge); err == nil {
				return snap, nil
			}
			// WS落后时回退REST
		}
	}

	snap, err := r.gw.TopOfBook(ctx, r.instrument)
	if err != nil {
		return snap, err
	}
	if !snap.Valid() {
		return snap, market.ErrStaleData
	}
	return snap, snap.CheckFresh(now, maxAge)
}

// updateVolatility feeds the latest mid-to-mid log return into the rolling
// window and returns the per-step variance. The first cycle has no previous
// mid, so it contributes nothing and the floor applies.
func (r *Runner) updateVolatility(mid float64) float64 {
	if r.lastMid > 0 {
		if _, err := r.vol.Update(math.Log(mid / r.lastMid)); err != nil {
			metrics.CycleErrors.WithLabelValues(r.instrument, "invalid_sample").Inc()
			r.log.Warn("log return sample discarded", zap.Error(err), zap.Float64("mid", mid))
		}
	}
	r.lastMid = mid
	return r.vol.Variance()
}

// placeQuotes submits the surviving sides. Per-side failures are logged and do
// not block the other side.
func (r *Runner) placeQuotes(ctx context.Context, q stoikov.QuoteState, bidPx, askPx float64, tif order.TimeInForce) []string {
	var resting []string

	if q.BidSize >= r.cfg.MinOrderSize && q.BidSize > 0 {
		metrics.QuotesGenerated.WithLabelValues(r.instrument, "bid").Inc()
		id, err := r.gw.PlaceOrder(ctx, gateway.Request{
			Instrument: r.instrument,
			Side:       gateway.SideBuy,
			Price:      bidPx,
			Size:       q.BidSize,
			Tif:        tif,
		})
		if err != nil {
			r.cycleError("place_bid", err)
		} else {
			metrics.OrdersPlaced.WithLabelValues(r.instrument, "bid").Inc()
			resting = append(resting, id)
		}
	}

	if q.AskSize >= r.cfg.MinOrderSize && q.AskSize > 0 {
		metrics.QuotesGenerated.WithLabelValues(r.instrument, "ask").Inc()
		id, err := r.gw.PlaceOrder(ctx, gateway.Request{
			Instrument: r.instrument,
			Side:       gateway.SideSell,
			Price:      askPx,
			Size:       q.AskSize,
			Tif:        tif,
		})
		if err != nil {
			r.cycleError("place_ask", err)
		} else {
			metrics.OrdersPlaced.WithLabelValues(r.instrument, "ask").Inc()
			resting = append(resting, id)
		}
	}

	return resting
}

// alignPrices snaps the raw quote prices onto the tick grid and the live book.
//
// Passive quotes must rest: the bid is held below the best ask and the ask
// above the best bid, each by one tick. Under fill pressure the
// position-reducing side may instead be pushed to touch the opposite best so
// a Gtc order crosses immediately.
func alignPrices(q stoikov.QuoteState, snap market.Snapshot, tick float64, state order.State, position float64) (bidPx, askPx float64) {
	bidPx = roundDownToTick(q.BidPx, tick)
	askPx = roundUpToTick(q.AskPx, tick)

	if state == order.StateFillPressure {
		if position > 0 {
			askPx = math.Min(askPx, roundDownToTick(snap.BestBid, tick))
		}
		if position < 0 {
			bidPx = math.Max(bidPx, roundUpToTick(snap.BestAsk, tick))
		}
	} else {
		bidPx = math.Min(bidPx, roundDownToTick(snap.BestAsk-tick, tick))
		askPx = math.Max(askPx, roundUpToTick(snap.BestBid+tick, tick))
	}

	bidPx = math.Max(tick, bidPx)
	askPx = math.Max(bidPx+tick, askPx)
	return bidPx, askPx
}

func roundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	return math.Floor(px/tick+1e-9) * tick
}

func roundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	return math.Ceil(px/tick-1e-9) * tick
}

// cycleError logs a degraded cycle and bumps the error counter by failure kind.
func (r *Runner) cycleError(stage string, err error) {
	kind := "other"
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		kind = "timeout"
	case errors.Is(err, gateway.ErrRejected):
		kind = "rejected"
	}
	metrics.CycleErrors.WithLabelValues(r.instrument, kind).Inc()
	r.log.Error("cycle degraded", zap.String("stage", stage), zap.Error(err))
}

// shutdown cancels any resting orders with a short deadline.
func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := r.gw.CancelAll(ctx, r.instrument); err != nil {
		r.log.Error("shutdown cancel-all failed", zap.Error(err))
	} else {
		r.log.Info("runner stopped", zap.Int("canceled", n))
	}
}

// Lifecycle exposes the state machine for inspection in tests.
func (r *Runner) Lifecycle() *order.Lifecycle {
	return r.lifecycle
}

// Cycle runs exactly one quoting cycle. Used by tests and the one-shot CLI.
func (r *Runner) Cycle(ctx context.Context) {
	r.tick(ctx)
}
