package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/strategy/directional"
	"perp-trader-go/strategy/stoikov"
)

// AppConfig holds the main runtime configuration. Loaded once at startup;
// never hot-reloaded mid-run.
type AppConfig struct {
	Env         string                      `yaml:"env"`
	MetricsAddr string                      `yaml:"metricsAddr"`
	Log         logger.Config               `yaml:"log"`
	Gateway     GatewayConfig               `yaml:"gateway"`
	Instruments map[string]InstrumentConfig `yaml:"instruments"`
	Rebalance   RebalanceConfig             `yaml:"rebalance"`
}

// GatewayConfig 交易所访问配置；密钥交由外部签名组件管理。
type GatewayConfig struct {
	BaseURL       string  `yaml:"baseURL"`
	Account       string  `yaml:"account"`
	Vault         string  `yaml:"vault"`
	DryRun        bool    `yaml:"dryRun"`
	CallTimeoutMs int     `yaml:"callTimeoutMs"`
	RestRate      float64 `yaml:"restRate"`
	RestBurst     int     `yaml:"restBurst"`
}

// InstrumentConfig describes one quoted instrument. Immutable per run.
type InstrumentConfig struct {
	TickSize        float64        `yaml:"tickSize"`
	MinOrderSize    float64        `yaml:"minOrderSize"`
	PollIntervalSec float64        `yaml:"pollIntervalSec"`
	StaleAfterSec   float64        `yaml:"staleAfterSec"`
	FillEpsilon     float64        `yaml:"fillEpsilon"`
	Quote           stoikov.Params `yaml:"quote"`
}

// RebalanceConfig drives the directional path.
type RebalanceConfig struct {
	Asset               string             `yaml:"asset"`
	MinTradeNotionalUSD float64            `yaml:"minTradeNotionalUSD"`
	SlippagePct         float64            `yaml:"slippagePct"`
	Signal              directional.Config `yaml:"signal"`
}

// Load reads YAML config from path and applies validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides account fields from env
// vars if present (the .env names the original deployment used).
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("HL_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("HL_ACCOUNT_ADDRESS"); v != "" {
		cfg.Gateway.Account = v
	}
	if v := os.Getenv("HL_VAULT_ADDRESS"); v != "" {
		cfg.Gateway.Vault = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present. Any violation is fatal at
// startup, never detected at quote time.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return errors.New("gateway.baseURL is required")
	}
	if !cfg.Gateway.DryRun && cfg.Gateway.Account == "" {
		return errors.New("gateway.account is required in live mode (or HL_ACCOUNT_ADDRESS)")
	}
	if len(cfg.Instruments) == 0 && cfg.Rebalance.Asset == "" {
		return errors.New("at least one instrument or a rebalance asset is required")
	}
	for name, ic := range cfg.Instruments {
		if ic.TickSize <= 0 {
			return fmt.Errorf("instrument %s: tickSize must be > 0", name)
		}
		if ic.MinOrderSize < 0 {
			return fmt.Errorf("instrument %s: minOrderSize must be >= 0", name)
		}
		if ic.PollIntervalSec <= 0 {
			return fmt.Errorf("instrument %s: pollIntervalSec must be > 0", name)
		}
		if ic.StaleAfterSec <= 0 {
			return fmt.Errorf("instrument %s: staleAfterSec must be > 0", name)
		}
		if err := ic.Quote.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", name, err)
		}
	}
	if cfg.Rebalance.Asset != "" {
		if cfg.Rebalance.MinTradeNotionalUSD < 0 {
			return errors.New("rebalance.minTradeNotionalUSD must be >= 0")
		}
		if cfg.Rebalance.SlippagePct < 0 {
			return errors.New("rebalance.slippagePct must be >= 0")
		}
		if err := cfg.Rebalance.Signal.Validate(); err != nil {
			return err
		}
	}
	return nil
}
