package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorFloorBeforeTwoSamples(t *testing.T) {
	est := NewVolatilityEstimator(30, 1e-8)

	assert.Equal(t, 1e-8, est.Variance())

	v, err := est.Update(0.001)
	require.NoError(t, err)
	assert.Equal(t, 1e-8, v, "single sample should still return the floor")
}

func TestEstimatorRejectsNonFinite(t *testing.T) {
	est := NewVolatilityEstimator(10, 1e-8)
	_, err := est.Update(0.001)
	require.NoError(t, err)
	_, err = est.Update(0.002)
	require.NoError(t, err)
	before := est.Variance()

	_, err = est.Update(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = est.Update(math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// 窗口不能被污染
	assert.Equal(t, before, est.Variance())
	assert.Equal(t, 2, est.Count())
}

func TestEstimatorConstantReturnsConvergeToFloor(t *testing.T) {
	est := NewVolatilityEstimator(20, 1e-10)
	var v float64
	for i := 0; i < 40; i++ {
		var err error
		v, err = est.Update(0.0005)
		require.NoError(t, err)
	}
	assert.Equal(t, 1e-10, v, "constant returns should converge to the floor variance")
}

func TestEstimatorSingleOutlierDoesNotDominate(t *testing.T) {
	est := NewVolatilityEstimator(30, 1e-12)
	for i := 0; i < 20; i++ {
		_, err := est.Update(0.0001)
		require.NoError(t, err)
	}
	outlier := 0.05
	v, err := est.Update(outlier)
	require.NoError(t, err)

	// 21 samples, one outlier: variance stays well below outlier^2
	assert.Less(t, v, outlier*outlier/4)
	assert.Greater(t, v, 0.0)
}

func TestEstimatorEvictsOldest(t *testing.T) {
	est := NewVolatilityEstimator(5, 1e-12)
	for i := 0; i < 5; i++ {
		_, _ = est.Update(0.01)
	}
	// push the big samples out of the window
	var v float64
	for i := 0; i < 5; i++ {
		v, _ = est.Update(0.0)
	}
	assert.Equal(t, 1e-12, v, "old samples must be evicted once capacity is exceeded")
	assert.Equal(t, 5, est.Count())
}

func TestHorizonVariance(t *testing.T) {
	// varStep=1e-8 over 10s poll, 30s horizon at mid 100
	got := HorizonVariance(1e-8, 100, 10, 30)
	want := 100.0 * 100.0 * (1e-8 / 10.0) * 30.0
	assert.InDelta(t, want, got, 1e-12)

	// dt and horizon floored at 1s
	got = HorizonVariance(1e-8, 100, 0, 0)
	want = 100.0 * 100.0 * 1e-8
	assert.InDelta(t, want, got, 1e-12)
}
