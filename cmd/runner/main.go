package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"perp-trader-go/config"
	"perp-trader-go/gateway"
	"perp-trader-go/infrastructure/logger"
	"perp-trader-go/metrics"
	"perp-trader-go/risk"
	"perp-trader-go/runner"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	live := flag.Bool("live", false, "真实下单（默认 dry-run，只读行情+日志）")
	noWS := flag.Bool("noWS", false, "禁用WS行情订阅，仅REST轮询")
	flag.Parse()

	// .env 里放账户地址等，缺失时忽略
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if !*live {
		cfg.Gateway.DryRun = true
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
		zlog.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
	}

	// 签名组件由部署侧注入；未注入时只能 dry-run
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var feed runner.SnapshotSource
	if !*noWS {
		instruments := make([]string, 0, len(cfg.Instruments))
		for name := range cfg.Instruments {
			instruments = append(instruments, name)
		}
		ws := gateway.NewWSFeed(cfg.Gateway.BaseURL, instruments, zlog)
		go ws.Run(ctx)
		feed = ws
	}

	// 配置改动只告警，不热加载
	watcher := config.Watcher{Path: *cfgPath, Log: zlog}
	go func() { _ = watcher.Start(ctx) }()

	var wg sync.WaitGroup
	for name, ic := range cfg.Instruments {
		r, err := runner.New(name, ic, gw, feed, risk.NowUTC, zlog)
		if err != nil {
			log.Fatalf("初始化runner失败 %s: %v", name, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(ctx)
		}()
	}

	zlog.Info("runner process up",
		zap.String("env", cfg.Env),
		zap.Bool("dry_run", cfg.Gateway.DryRun),
		zap.Int("instruments", len(cfg.Instruments)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	wg.Wait()
	zlog.Info("runner process exit")
}
