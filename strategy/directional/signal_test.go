package directional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideFlatOnLowConfidence(t *testing.T) {
	cfg := Config{MaxAbsPosition: 1.0, ConfidenceThreshold: 0.52, MinAbsReturnPct: 0.10}

	for _, ret := range []float64{-5, -0.5, 0, 0.5, 5} {
		d := Decide(Forecast{ExpectedReturnPct: ret, Confidence: 0.40}, cfg)
		assert.Equal(t, Flat, d.Side, "ret=%v", ret)
		assert.Equal(t, 0.0, d.TargetPosition)
	}
}

func TestDecideFlatOnSmallReturn(t *testing.T) {
	cfg := DefaultConfig()
	d := Decide(Forecast{ExpectedReturnPct: 0.05, Confidence: 0.9}, cfg)
	assert.Equal(t, Flat, d.Side)
	assert.Equal(t, "expected return too small", d.Reason)
}

func TestDecideLinearSizing(t *testing.T) {
	cfg := Config{MaxAbsPosition: 1.0, ConfidenceThreshold: 0.52, MinAbsReturnPct: 0.10}

	d := Decide(Forecast{ExpectedReturnPct: 0.50, Confidence: 0.60}, cfg)
	assert.Equal(t, Long, d.Side)
	assert.InDelta(t, 0.5, d.TargetPosition, 1e-12)

	d = Decide(Forecast{ExpectedReturnPct: -0.50, Confidence: 0.60}, cfg)
	assert.Equal(t, Short, d.Side)
	assert.InDelta(t, -0.5, d.TargetPosition, 1e-12)
}

func TestDecideIntensitySaturates(t *testing.T) {
	cfg := Config{MaxAbsPosition: 2.0, ConfidenceThreshold: 0.5, MinAbsReturnPct: 0.10}

	// Intensity caps at 1.0 above 1.0% expected return.
	d := Decide(Forecast{ExpectedReturnPct: 3.0, Confidence: 0.8}, cfg)
	assert.Equal(t, 2.0, d.TargetPosition)

	d = Decide(Forecast{ExpectedReturnPct: -3.0, Confidence: 0.8}, cfg)
	assert.Equal(t, -2.0, d.TargetPosition)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MaxAbsPosition: 0, ConfidenceThreshold: 0.5}.Validate())
	assert.Error(t, Config{MaxAbsPosition: 1, ConfidenceThreshold: 1.5}.Validate())
	assert.Error(t, Config{MaxAbsPosition: 1, ConfidenceThreshold: 0.5, MinAbsReturnPct: -1}.Validate())
}
