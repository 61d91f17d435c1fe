package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotValid(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"ok", Snapshot{BestBid: 99, BestAsk: 101, Mid: 100, Ts: now}, true},
		{"zero bid", Snapshot{BestBid: 0, BestAsk: 101, Mid: 100, Ts: now}, false},
		{"crossed", Snapshot{BestBid: 102, BestAsk: 101, Mid: 100, Ts: now}, false},
		{"zero mid", Snapshot{BestBid: 99, BestAsk: 101, Mid: 0, Ts: now}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.snap.Valid())
		})
	}
}

func TestSnapshotCheckFresh(t *testing.T) {
	now := time.Now()
	snap := Snapshot{BestBid: 99, BestAsk: 101, Mid: 100, Ts: now.Add(-3 * time.Second)}

	assert.NoError(t, snap.CheckFresh(now, 5*time.Second))
	assert.ErrorIs(t, snap.CheckFresh(now, 2*time.Second), ErrStaleData)
	// zero maxAge disables the check
	assert.NoError(t, snap.CheckFresh(now, 0))
}
