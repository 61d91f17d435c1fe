package stoikov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	p := DefaultParams()
	p.MaxAbsPosition = 1.0
	p.OrderSize = 0.1
	return p
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero gamma", func(p *Params) { p.Gamma = 0 }},
		{"negative gamma", func(p *Params) { p.Gamma = -0.1 }},
		{"zero kappa", func(p *Params) { p.Kappa = 0 }},
		{"inverted spread bounds", func(p *Params) { p.MinSpreadBps = 50; p.MaxSpreadBps = 10 }},
		{"zero order size", func(p *Params) { p.OrderSize = 0 }},
		{"zero cap", func(p *Params) { p.MaxAbsPosition = 0 }},
		{"pressure factor >= 1", func(p *Params) { p.PressureSpreadFactor = 1.0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testParams()
			tc.mutate(&p)
			_, err := New(p)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(testParams())
	assert.NoError(t, err)
}

func TestComputeOrderingAndSpreadBounds(t *testing.T) {
	m, err := New(testParams())
	require.NoError(t, err)

	mid := 65000.0
	variance := 2.0e3 // price-unit horizon variance

	for _, pos := range []float64{-1.0, -0.6, -0.1, 0, 0.1, 0.6, 1.0} {
		q := m.Compute(mid, pos, variance)

		assert.LessOrEqual(t, q.BidPx, q.Reservation, "pos=%v", pos)
		assert.LessOrEqual(t, q.Reservation, q.AskPx, "pos=%v", pos)

		realized := (q.AskPx - q.BidPx) / mid * 10000.0
		assert.GreaterOrEqual(t, realized, m.Params().MinSpreadBps-1e-9, "pos=%v", pos)
		assert.LessOrEqual(t, realized, m.Params().MaxSpreadBps+1e-9, "pos=%v", pos)

		assert.GreaterOrEqual(t, q.BidSize, 0.0)
		assert.GreaterOrEqual(t, q.AskSize, 0.0)
	}
}

func TestComputeReservationSkew(t *testing.T) {
	m, err := New(testParams())
	require.NoError(t, err)

	mid := 100.0
	variance := 10.0

	// Long inventory pulls the reservation below mid, short pushes it above.
	long := m.Compute(mid, 0.5, variance)
	short := m.Compute(mid, -0.5, variance)
	flat := m.Compute(mid, 0, variance)

	assert.Less(t, long.Reservation, mid)
	assert.Greater(t, short.Reservation, mid)
	assert.Equal(t, mid, flat.Reservation)
}

func TestComputeSizeSkewIsMonotonic(t *testing.T) {
	m, err := New(testParams())
	require.NoError(t, err)

	prevBid := m.Compute(100, -1.0, 1.0).BidSize
	for _, pos := range []float64{-0.75, -0.5, -0.25, 0, 0.25, 0.5, 0.75, 1.0} {
		q := m.Compute(100, pos, 1.0)
		assert.LessOrEqual(t, q.BidSize, prevBid, "bid size must shrink as position grows (pos=%v)", pos)
		prevBid = q.BidSize
	}
}

func TestComputeSuppressesSideAtCap(t *testing.T) {
	m, err := New(testParams())
	require.NoError(t, err)

	atMax := m.Compute(100, 1.0, 1.0)
	assert.Equal(t, 0.0, atMax.BidSize, "bid must be exactly zero at +cap")
	assert.Greater(t, atMax.AskSize, 0.0)

	atMin := m.Compute(100, -1.0, 1.0)
	assert.Equal(t, 0.0, atMin.AskSize, "ask must be exactly zero at -cap")
	assert.Greater(t, atMin.BidSize, 0.0)

	// Past the cap the hard rule still holds.
	past := m.Compute(100, 1.3, 1.0)
	assert.Equal(t, 0.0, past.BidSize)
}

func TestComputeFlatSizesSymmetric(t *testing.T) {
	m, err := New(testParams())
	require.NoError(t, err)

	q := m.Compute(100, 0, 1.0)
	assert.Equal(t, m.Params().OrderSize, q.BidSize)
	assert.Equal(t, m.Params().OrderSize, q.AskSize)
}
