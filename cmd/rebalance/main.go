package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"perp-trader-go/config"
	"perp-trader-go/gateway"
	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/runner"
	"perp-trader-go/strategy/directional"
)

// One-shot directional rebalance, meant to run from cron: read one forecast,
// adjust the position at most once, exit. Exit code 0 covers both "executed"
// and "nothing to do".
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	forecastPath := flag.String("forecast", "-", "预测JSON文件路径，- 表示stdin")
	live := flag.Bool("live", false, "真实下单（默认 dry-run）")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if !*live {
		cfg.Gateway.DryRun = true
	}
	if cfg.Rebalance.Asset == "" {
		log.Fatalf("配置缺少 rebalance.asset")
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	forecast, err := readForecast(*forecastPath)
	if err != nil {
		log.Fatalf("读取预测失败: %v", err)
	}

	var signer gateway.Signer
	gw, err := gateway.NewHyperliquidClient(gateway.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		Account:     cfg.Gateway.Account,
		Vault:       cfg.Gateway.Vault,
		DryRun:      cfg.Gateway.DryRun,
		CallTimeout: time.Duration(cfg.Gateway.CallTimeoutMs) * time.Millisecond,
		RestRate:    cfg.Gateway.RestRate,
		RestBurst:   cfg.Gateway.RestBurst,
	}, signer, zlog)
	if err != nil {
		log.Fatalf("初始化gateway失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rb := runner.NewRebalancer(cfg.Rebalance, gw, zlog)
	res, err := rb.Execute(ctx, forecast)
	if err != nil {
		zlog.Error("rebalance failed", zap.Error(err))
		os.Exit(1)
	}

	zlog.Info("rebalance done",
		zap.Bool("executed", res.Executed),
		zap.String("side", string(res.Side)),
		zap.Float64("target", res.Target),
		zap.Float64("position", res.Position),
		zap.Float64("delta", res.Delta),
		zap.String("reason", res.Reason))
}

func readForecast(path string) (directional.Forecast, error) {
	var f directional.Forecast
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, err
	}
	return f, nil
}
