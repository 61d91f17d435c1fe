package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader-go/config"
	"perp-trader-go/market"
	"perp-trader-go/strategy/directional"
)

func testRebalanceCfg() config.RebalanceConfig {
	return config.RebalanceConfig{
		Asset:               "BTC",
		MinTradeNotionalUSD: 50,
		SlippagePct:         0.01,
		Signal:              directional.DefaultConfig(),
	}
}

func TestRebalanceExecutesMarketOrder(t *testing.T) {
	gw := &mockGateway{snap: market.Snapshot{BestBid: 99999, BestAsk: 100001, Mid: 100000}}
	rb := NewRebalancer(testRebalanceCfg(), gw, nil)

	res, err := rb.Execute(context.Background(), directional.Forecast{
		ExpectedReturnPct: 0.50,
		Confidence:        0.60,
		HorizonHours:      24,
	})
	require.NoError(t, err)

	assert.True(t, res.Executed)
	assert.Equal(t, directional.Long, res.Side)
	assert.InDelta(t, 0.5, res.Target, 1e-12)
	require.Len(t, gw.marketSizes, 1)
	assert.InDelta(t, 0.5, gw.marketSizes[0], 1e-12)
	assert.Equal(t, 1, gw.leverageCalls, "leverage re-asserted every pass")
}

func TestRebalanceSkipsLowConfidence(t *testing.T) {
	gw := &mockGateway{snap: market.Snapshot{BestBid: 99999, BestAsk: 100001, Mid: 100000}, position: 0}
	rb := NewRebalancer(testRebalanceCfg(), gw, nil)

	res, err := rb.Execute(context.Background(), directional.Forecast{
		ExpectedReturnPct: 0.80,
		Confidence:        0.40,
	})
	require.NoError(t, err)

	assert.False(t, res.Executed)
	assert.Equal(t, directional.Flat, res.Side)
	assert.Empty(t, gw.marketSizes)
}

func TestRebalanceSkipsBelowMinNotional(t *testing.T) {
	// target 0.5 vs position 0.4996: delta 0.0004 * $100k = $40 < $50 gate
	gw := &mockGateway{snap: market.Snapshot{BestBid: 99999, BestAsk: 100001, Mid: 100000}, position: 0.4996}
	rb := NewRebalancer(testRebalanceCfg(), gw, nil)

	res, err := rb.Execute(context.Background(), directional.Forecast{
		ExpectedReturnPct: 0.50,
		Confidence:        0.60,
	})
	require.NoError(t, err)

	assert.False(t, res.Executed)
	assert.Equal(t, "adjustment below min notional", res.Reason)
	assert.Empty(t, gw.marketSizes)
	assert.Zero(t, gw.leverageCalls, "no exchange mutation on a skipped pass")
}

func TestRebalanceShortTarget(t *testing.T) {
	gw := &mockGateway{snap: market.Snapshot{BestBid: 99999, BestAsk: 100001, Mid: 100000}, position: 0.2}
	rb := NewRebalancer(testRebalanceCfg(), gw, nil)

	res, err := rb.Execute(context.Background(), directional.Forecast{
		ExpectedReturnPct: -2.0, // saturates intensity at 1.0
		Confidence:        0.90,
	})
	require.NoError(t, err)

	assert.True(t, res.Executed)
	assert.Equal(t, directional.Short, res.Side)
	assert.InDelta(t, -1.0, res.Target, 1e-12)
	require.Len(t, gw.marketSizes, 1)
	assert.InDelta(t, -1.2, gw.marketSizes[0], 1e-12)
}
