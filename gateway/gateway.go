package gateway

import (
	"context"
	"errors"
	"time"

	"perp-trader-go/market"
	"perp-trader-go/order"
)

var (
	// ErrTimeout marks a gateway call that exceeded its bounded timeout.
	// The cycle aborts after logging; retry happens on the next scheduled
	// cycle via the idempotent cancel-then-place pattern.
	ErrTimeout = errors.New("gateway timeout")
	// ErrRejected marks an exchange-level rejection of a request.
	ErrRejected = errors.New("gateway rejected")
)

// Side of an order request.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Request is a single order submission.
type Request struct {
	Instrument string
	Side       Side
	Price      float64
	Size       float64
	Tif        order.TimeInForce
	ReduceOnly bool
	ClientID   string // cloid; generated when empty
}

// Fill is one execution reported by the exchange.
type Fill struct {
	Instrument string
	Size       float64
	Price      float64
	Time       time.Time
}

// Gateway is the authenticated exchange access consumed by the strategy
// runners. All calls are synchronous with a bounded timeout and return either
// a success payload or a typed failure (ErrTimeout / ErrRejected).
type Gateway interface {
	// TopOfBook returns the current best bid/ask/mid for the instrument.
	TopOfBook(ctx context.Context, instrument string) (market.Snapshot, error)
	// Position returns the signed position, read fresh from the exchange.
	Position(ctx context.Context, instrument string) (float64, error)
	// CancelAll cancels every resting order this account holds on the
	// instrument and returns how many were canceled.
	CancelAll(ctx context.Context, instrument string) (int, error)
	// PlaceOrder submits a limit order and returns its exchange order ID.
	PlaceOrder(ctx context.Context, req Request) (string, error)
	// MarketOrder submits a marketable IOC order sized |size|, buying when
	// size > 0. slippage bounds the limit price around mid.
	MarketOrder(ctx context.Context, instrument string, size, slippage float64) (string, error)
	// UpdateLeverage re-asserts the leverage setting. Idempotent; called
	// every directional cycle rather than once, since the exchange-side
	// setting can be reset out-of-band.
	UpdateLeverage(ctx context.Context, instrument string, leverage int, cross bool) error
	// LastFillAge returns the time since this account's most recent fill on
	// the instrument. Reports a very large age when no fill exists.
	LastFillAge(ctx context.Context, instrument string) (time.Duration, error)
}
