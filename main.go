package main

import (
	"context"
	"log"

	"trade_assistant/internal/agent/planner"
	"trade_assistant/internal/agent/risk"
	"trade_assistant/internal/config"
	httpapi "trade_assistant/internal/http"
	"trade_assistant/internal/logger"
	"trade_assistant/internal/market"
	"trade_assistant/internal/orchestrator"
	"trade_assistant/internal/scheduler"
	"trade_assistant/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	gateway, err := market.NewGateway(cfg.MarketProvider, market.Options{
		BaseURL:    cfg.MarketBaseURL,
		QuoteAsset: cfg.MarketQuoteAsset,
		Timeout:    cfg.MarketTimeout(),
		Logger:     zlog.Named("market"),
	})
	if err != nil {
		zlog.Fatal("初始化行情源失败", zap.Error(err))
	}
	zlog.Info("行情源已就绪", zap.String("provider", cfg.MarketProvider), zap.String("base_url", cfg.MarketBaseURL))

	planCfg := planner.DefaultConfig()
	planCfg.DefaultLeverage = cfg.DefaultLeverage
	planCfg.RecoveryMove = cfg.PlanRecoveryMove
	planCfg.AdverseMove = cfg.PlanAdverseMove
	planCfg.ConservativeOffset = cfg.PlanConservativeOffset
	planCfg.NearTargetRatio = cfg.PlanNearTargetRatio
	generator := planner.New(planCfg, gateway, risk.New())

	// 调用审计（可选）
	var (
		recorder orchestrator.Recorder
		lister   httpapi.InvocationLister
	)
	if cfg.JournalEnabled {
		journal, err := store.NewSQLiteJournal(cfg.SQLiteDSN)
		if err != nil {
			zlog.Fatal("初始化数据库失败", zap.Error(err))
		}
		defer journal.Close()

		if err := journal.Init(context.Background()); err != nil {
			zlog.Fatal("数据库迁移失败", zap.Error(err))
		}
		recorder, lister = journal, journal

		sched := scheduler.New(journal, cfg.JournalPruneInterval(), cfg.JournalRetention(), zlog.Named("scheduler"))
		sched.Start()
		defer sched.Stop()
	} else {
		zlog.Info("调用审计未启用，设置 JOURNAL_ENABLED=true 开启")
	}

	service := orchestrator.New(gateway, generator, recorder, zlog.Named("tools"))
	router := httpapi.NewRouter(service, lister, cfg.RequestTimeout(), zlog.Named("http"))

	zlog.Info("策略服务启动", zap.String("addr", cfg.HTTPAddr), zap.Float64("default_leverage", cfg.DefaultLeverage))
	if err := router.Run(cfg.HTTPAddr); err != nil {
		zlog.Fatal("启动服务失败", zap.Error(err))
	}
}
