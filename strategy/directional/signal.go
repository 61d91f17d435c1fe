package directional

import (
	"fmt"
	"math"
)

// Side of the target decision.
type Side string

const (
	Flat  Side = "FLAT"
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Forecast is the value object supplied by the external forecasting
// component once per directional cycle.
type Forecast struct {
	ExpectedReturnPct float64 `json:"expected_return_pct"`
	Confidence        float64 `json:"confidence"`
	HorizonHours      int     `json:"horizon_hours"`
}

// TargetDecision is produced by Decide, consumed once by the risk limiter,
// then discarded.
type TargetDecision struct {
	Side           Side
	TargetPosition float64
	Reason         string
}

// Config gates and sizes the directional signal.
type Config struct {
	MaxAbsPosition      float64 `yaml:"maxAbsPosition"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	MinAbsReturnPct     float64 `yaml:"minAbsReturnPct"`
}

// DefaultConfig matches the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAbsPosition:      1.0,
		ConfidenceThreshold: 0.55,
		MinAbsReturnPct:     0.10,
	}
}

// Validate rejects configuration errors at startup.
func (c Config) Validate() error {
	if c.MaxAbsPosition <= 0 {
		return fmt.Errorf("directional: maxAbsPosition must be > 0, got %v", c.MaxAbsPosition)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("directional: confidenceThreshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.MinAbsReturnPct < 0 {
		return fmt.Errorf("directional: minAbsReturnPct must be >= 0, got %v", c.MinAbsReturnPct)
	}
	return nil
}

// Decide converts a forecast into a target position via threshold gating and
// linear sizing. Intensity saturates at 1.0% expected return.
func Decide(f Forecast, cfg Config) TargetDecision {
	if f.Confidence < cfg.ConfidenceThreshold {
		return TargetDecision{Side: Flat, TargetPosition: 0, Reason: "confidence below threshold"}
	}
	if math.Abs(f.ExpectedReturnPct) < cfg.MinAbsReturnPct {
		return TargetDecision{Side: Flat, TargetPosition: 0, Reason: "expected return too small"}
	}

	intensity := math.Min(math.Abs(f.ExpectedReturnPct)/1.0, 1.0)
	target := cfg.MaxAbsPosition * intensity

	if f.ExpectedReturnPct > 0 {
		return TargetDecision{Side: Long, TargetPosition: target, Reason: "positive expected return"}
	}
	return TargetDecision{Side: Short, TargetPosition: -target, Reason: "negative expected return"}
}
