package stoikov

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned at construction for out-of-range parameters.
// Never surfaced at quote time.
var ErrInvalidConfig = errors.New("invalid stoikov config")

// Params holds the per-strategy risk parameters of the quote model.
// Immutable per strategy instance.
type Params struct {
	Gamma          float64 `yaml:"gamma"`        // inventory aversion
	Kappa          float64 `yaml:"kappa"`        // book liquidity
	MinSpreadBps   float64 `yaml:"minSpreadBps"` // full spread floor, bps of mid
	MaxSpreadBps   float64 `yaml:"maxSpreadBps"` // full spread cap, bps of mid
	OrderSize      float64 `yaml:"orderSize"`    // base size per side
	MaxAbsPosition float64 `yaml:"maxAbsPosition"`

	// Fill-pressure tunables. The aggressiveness curve is deliberately
	// configuration, not a formula.
	TargetFillSeconds    float64 `yaml:"targetFillSeconds"`
	PressureSpreadFactor float64 `yaml:"pressureSpreadFactor"` // < 1 tightens
	PressureSizeMult     float64 `yaml:"pressureSizeMult"`     // >= 1 grows size
	MaxPressureSeconds   float64 `yaml:"maxPressureSeconds"`

	// Volatility window.
	WindowSize     int     `yaml:"windowSize"`
	VarianceFloor  float64 `yaml:"varianceFloor"`
	HorizonSeconds float64 `yaml:"horizonSeconds"`
}

// DefaultParams returns the parameters used on testnet.
func DefaultParams() Params {
	return Params{
		Gamma:                0.1,
		Kappa:                1.5,
		MinSpreadBps:         4,
		MaxSpreadBps:         60,
		OrderSize:            0.01,
		MaxAbsPosition:       0.2,
		TargetFillSeconds:    30,
		PressureSpreadFactor: 0.5,
		PressureSizeMult:     1.5,
		MaxPressureSeconds:   180,
		WindowSize:           120,
		VarianceFloor:        2.5e-7,
		HorizonSeconds:       30,
	}
}

// Validate rejects configuration errors at construction time.
func (p Params) Validate() error {
	if p.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be > 0, got %v", ErrInvalidConfig, p.Gamma)
	}
	if p.Kappa <= 0 {
		return fmt.Errorf("%w: kappa must be > 0, got %v", ErrInvalidConfig, p.Kappa)
	}
	if p.MinSpreadBps <= 0 || p.MaxSpreadBps <= 0 || p.MinSpreadBps > p.MaxSpreadBps {
		return fmt.Errorf("%w: spread bounds %v..%v", ErrInvalidConfig, p.MinSpreadBps, p.MaxSpreadBps)
	}
	if p.OrderSize <= 0 {
		return fmt.Errorf("%w: orderSize must be > 0", ErrInvalidConfig)
	}
	if p.MaxAbsPosition <= 0 {
		return fmt.Errorf("%w: maxAbsPosition must be > 0", ErrInvalidConfig)
	}
	if p.TargetFillSeconds <= 0 {
		return fmt.Errorf("%w: targetFillSeconds must be > 0", ErrInvalidConfig)
	}
	if p.PressureSpreadFactor <= 0 || p.PressureSpreadFactor >= 1 {
		return fmt.Errorf("%w: pressureSpreadFactor must be in (0,1)", ErrInvalidConfig)
	}
	if p.PressureSizeMult < 1 {
		return fmt.Errorf("%w: pressureSizeMult must be >= 1", ErrInvalidConfig)
	}
	if p.MaxPressureSeconds <= 0 {
		return fmt.Errorf("%w: maxPressureSeconds must be > 0", ErrInvalidConfig)
	}
	if p.WindowSize < 2 {
		return fmt.Errorf("%w: windowSize must be >= 2", ErrInvalidConfig)
	}
	return nil
}
