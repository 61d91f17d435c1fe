package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"perp-trader-go/config"
	"perp-trader-go/gateway"
	"perp-trader-go/infrastructure/logger"
)

// 紧急清理：撤掉全部挂单，必要时市价平仓。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	asset := flag.String("asset", "", "标的（留空则处理配置里全部instrument）")
	flatten := flag.Bool("flatten", false, "撤单后市价平仓")
	live := flag.Bool("live", false, "真实执行（默认 dry-run）")
	flag.Parse()

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

	var assets []string
	if *asset != "" {
		assets = []string{*asset}
	} else {
		for name := range cfg.Instruments {
			assets = append(assets, name)
		}
		if cfg.Rebalance.Asset != "" {
			assets = append(assets, cfg.Rebalance.Asset)
		}
	}
	if len(assets) == 0 {
		log.Fatalf("没有可处理的标的")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, a := range dedupe(assets) {
		fmt.Printf("🔸 %s: 撤销全部挂单...\n", a)
		n, err := gw.CancelAll(ctx, a)
		if err != nil {
			log.Printf("%s 撤单失败: %v", a, err)
			continue
		}
		fmt.Printf("✅ %s: 已撤 %d 单\n", a, n)

		if !*flatten {
			continue
		}
		pos, err := gw.Position(ctx, a)
		if err != nil {
			log.Printf("%s 查询仓位失败: %v", a, err)
			continue
		}
		if pos == 0 {
			fmt.Printf("✅ %s: 无持仓\n", a)
			continue
		}
		fmt.Printf("🔸 %s: 市价平仓 %.6f...\n", a, pos)
		if _, err := gw.MarketOrder(ctx, a, -pos, 0.02); err != nil {
			log.Printf("%s 平仓失败: %v", a, err)
			continue
		}
		fmt.Printf("✅ %s: 平仓订单已提交\n", a)
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
