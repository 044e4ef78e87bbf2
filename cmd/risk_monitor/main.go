package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/utrading/utrading-risk-monitor/config"
	"github.com/utrading/utrading-risk-monitor/internal/cache"
	"github.com/utrading/utrading-risk-monitor/internal/cleaner"
	"github.com/utrading/utrading-risk-monitor/internal/dal"
	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/dispatcher"
	"github.com/utrading/utrading-risk-monitor/internal/feed"
	"github.com/utrading/utrading-risk-monitor/internal/manager"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/internal/nats"
	"github.com/utrading/utrading-risk-monitor/internal/processor"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
	"github.com/utrading/utrading-risk-monitor/internal/scheduler"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
	"github.com/utrading/utrading-risk-monitor/pkg/sigproc"
)

func main() {
	var configFile, envFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.StringVar(&envFile, "env", ".env", "dotenv file with secrets")
	flag.Parse()

	// .env 需在配置加载前读取
	if err := config.LoadEnv(envFile); err != nil {
		panic("load env failed: " + err.Error())
	}

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("risk_monitor service starting...")

	// 初始化指标
	monitor.InitMetrics()

	// 初始化数据库
	dal.InitMysqlDB(cfg.MySQL)
	dal.AutoMigrate(dal.MySQL())
	dao.InitDAO(dal.MySQL())

	// 价格缓存预热
	priceCache := cache.NewPriceCache()
	if prices, err := dao.Price().List(); err != nil {
		logger.Warn().Err(err).Msg("warm price cache failed")
	} else {
		priceCache.Warm(prices)
	}

	// 已提交事件加载到去重缓存（防止重启后重复分发）
	dedup := cache.NewDedupCache(24 * time.Hour)
	if err := dedup.LoadFromDB(dao.AlertEvent()); err != nil {
		logger.Warn().Err(err).Msg("failed to load alert events to dedup cache")
	}

	// 初始化 NATS
	publisher, err := nats.NewPublisher(cfg.NATS.Endpoint, cfg.NATS.AlertSubject, cfg.NATS.MetricsSubject)
	if err != nil {
		logger.Fatal().Err(err).Msg("init nats publisher failed")
	}

	eventDispatcher := dispatcher.New(publisher, dedup, 64)

	// 评估引擎
	levels := risk.Levels{
		Low:    cfg.RiskLevels.Low,
		Medium: cfg.RiskLevels.Medium,
		High:   cfg.RiskLevels.High,
	}
	if err = levels.Validate(); err != nil {
		logger.Warn().Err(err).Msg("fallback to default risk levels")
		levels = risk.DefaultLevels()
	}
	engine := risk.NewEngine(levels)

	riskManager := manager.NewRiskManager(engine, priceCache, eventDispatcher)
	riskManager.SetDefaultFrequency(cfg.RiskMonitor.DefaultFrequency)
	riskManager.SetEnabledFunc(func() bool {
		return config.Get().RiskMonitor.AlertMonitorEnabled
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	riskManager.Start(ctx)

	// 价格管道：feed -> 消息队列 -> 价格处理器 -> 批量写入
	batchWriter := processor.NewBatchWriter(nil)
	batchWriter.Start()

	priceProcessor := processor.NewPriceProcessor(priceCache, batchWriter, riskManager)
	messageQueue := processor.NewMessageQueue(1000, priceProcessor)
	messageQueue.Start()

	var priceFeed *feed.PriceFeed
	var feedRef monitor.FeedRef
	if cfg.RiskMonitor.PriceFeedEnabled {
		priceFeed = feed.NewPriceFeed(feed.Config{
			URL:    cfg.RiskMonitor.PriceWSURL,
			Assets: cfg.RiskMonitor.PriceAssets,
		}, messageQueue)
		priceFeed.Start(ctx)
		feedRef = priceFeed
	}

	// 定时评估
	sched := scheduler.New()
	if err = sched.AddJob(cfg.RiskMonitor.EvaluateSchedule, scheduler.NewEvaluateJob(riskManager, manager.TriggerSchedule, time.Minute)); err != nil {
		logger.Fatal().Err(err).Msg("register evaluate job failed")
	}
	sched.Start()

	// 数据清理
	dataCleaner := cleaner.NewCleaner(cleaner.DefaultInterval, cleaner.DefaultRetention, cleaner.DefaultMaxEvents)
	dataCleaner.Start()

	// 初始化健康检查服务器
	healthServer := monitor.NewHealthServer(cfg.RiskMonitor.HealthServerAddr, riskManager, feedRef, publisher)
	if err = healthServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Str("health_addr", cfg.RiskMonitor.HealthServerAddr).
		Str("schedule", cfg.RiskMonitor.EvaluateSchedule).
		Bool("price_feed", cfg.RiskMonitor.PriceFeedEnabled).
		Bool("alert_monitor", cfg.RiskMonitor.AlertMonitorEnabled).
		Msg("risk_monitor service started successfully")

	// 优雅关闭，全部组件关闭后 main 才返回
	stopped := make(chan struct{})
	sigproc.GracefulShutdown(30*time.Second, func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		// 停止定时任务
		sched.Stop()
		dataCleaner.Stop()

		// 停止价格源
		if priceFeed != nil {
			priceFeed.Close()
		}
		messageQueue.Stop()

		// 等待当前评估结束
		cancel()
		riskManager.Close()

		// 关闭健康检查服务器
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		healthServer.Stop(shutdownCtx)

		// 关闭配置重载
		config.Stop()

		// 刷新未落库的价格
		batchWriter.Stop()

		// 等待在途分发
		eventDispatcher.Close()
		publisher.Close()

		// 关闭数据库
		dal.CloseMySQL()

		logger.Info().Msg("risk_monitor service stopped")
		close(stopped)
	})

	<-stopped
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetService("risk_monitor").
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
