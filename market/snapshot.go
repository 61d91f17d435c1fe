package market

import (
	"errors"
	"time"
)

// ErrStaleData marks a snapshot older than the configured threshold.
// A cycle that sees it must skip entirely: no orders placed or canceled.
var ErrStaleData = errors.New("stale market data")

// Snapshot is the top-of-book view captured once per cycle.
// Never mutated after capture.
type Snapshot struct {
	BestBid float64
	BestAsk float64
	Mid     float64
	Ts      time.Time
}

// Valid reports whether the snapshot carries a usable two-sided book.
func (s Snapshot) Valid() bool {
	return s.BestBid > 0 && s.BestAsk > 0 && s.BestAsk >= s.BestBid && s.Mid > 0
}

// CheckFresh returns ErrStaleData when the snapshot is older than maxAge.
func (s Snapshot) CheckFresh(now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}
	if now.Sub(s.Ts) > maxAge {
		return ErrStaleData
	}
	return nil
}
