package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/danya2271/LocalLLMTradingBot/internal/alert"
	"github.com/danya2271/LocalLLMTradingBot/internal/config"
	"github.com/danya2271/LocalLLMTradingBot/internal/core"
	"github.com/danya2271/LocalLLMTradingBot/internal/engine"
	"github.com/danya2271/LocalLLMTradingBot/internal/exchange/okx"
	"github.com/danya2271/LocalLLMTradingBot/internal/llm"
	"github.com/danya2271/LocalLLMTradingBot/internal/marketdata"
	"github.com/danya2271/LocalLLMTradingBot/internal/risk"
	"github.com/danya2271/LocalLLMTradingBot/internal/settings"
	"github.com/danya2271/LocalLLMTradingBot/internal/telemetry"
	"github.com/danya2271/LocalLLMTradingBot/pkg/logging"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// .env is optional; real deployments export variables directly
	_ = godotenv.Load()

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	bootLogger, _ := logging.NewZapLogger("INFO")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", "config", *configFile, "error", err)
	}

	logger, err := logging.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		bootLogger.Fatal("Failed to initialize logger", "error", err)
	}
	defer logger.Sync()

	logger.Info("Starting trading bot",
		"pair", cfg.Trading.DefaultPair,
		"provider", cfg.Decision.Provider,
		"demo", cfg.Exchange.Demo)

	store, err := settings.OpenSQLiteStore(cfg.App.SettingsDBPath, settings.Defaults{
		TradingPair: cfg.Trading.DefaultPair,
		Slippage: settings.Slippage{
			BuyPct:  decimal.NewFromFloat(cfg.Trading.BuySlippagePct),
			SellPct: decimal.NewFromFloat(cfg.Trading.SellSlippagePct),
		},
		WaitSeconds: cfg.Trading.DefaultWaitSeconds,
		DataWindows: map[string]int{"1m": 40, "5m": 20, "15m": 15, "1H": 0},
	})
	if err != nil {
		logger.Fatal("Failed to open settings store", "path", cfg.App.SettingsDBPath, "error", err)
	}
	defer store.Close()

	exchange, err := okx.New(&cfg.Exchange, logger)
	if err != nil {
		logger.Fatal("Failed to initialize exchange adapter", "error", err)
	}

	decider := newDecisionClient(cfg, logger)

	alerts := alert.NewManager(logger)
	defer alerts.Stop()
	telegram := alert.NewTelegramChannel(cfg.Telegram.BotToken, cfg.Telegram.UserIDs, "")
	if cfg.Telegram.BotToken != "" {
		alerts.AddChannel(telegram)
	}

	metrics := telemetry.GetMetrics()
	calc := risk.NewCalculator(
		decimal.NewFromFloat(cfg.Trading.StopMultiplier),
		decimal.NewFromFloat(cfg.Trading.ProfitMultiplier),
		decimal.NewFromFloat(cfg.Trading.MinNotional),
		logger,
	)
	executor := engine.NewExecutor(exchange, calc, metrics, logger)
	collector := marketdata.NewCollector(exchange, cfg.Trading.ATRBar, cfg.Trading.ATRWindow, logger)
	prompt := &llm.PromptBuilder{TradeFractionPct: int(cfg.Trading.TradeFraction * 100)}

	cycle := engine.NewCycle(
		store,
		collector,
		prompt,
		decider,
		executor,
		alerts,
		metrics,
		decimal.NewFromFloat(cfg.Trading.TradeFraction),
		cfg.Trading.DefaultWaitSeconds,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *telemetry.Server
	if cfg.Telemetry.EnableMetrics {
		metricsServer = telemetry.NewServer(cfg.Telemetry.MetricsPort, logger)
		metricsServer.Start()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cycle.Run(ctx)
	})
	if cfg.Telegram.BotToken != "" {
		poller := alert.NewPoller(
			cfg.Telegram.BotToken,
			cfg.Telegram.UserIDs,
			cfg.Telegram.PollTimeoutSeconds,
			"",
			telegram,
			store,
			logger,
		)
		g.Go(func() error {
			return poller.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Application stopped with error", "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Stop(shutdownCtx)
	}

	logger.Info("Shutdown complete")
}

func newDecisionClient(cfg *config.Config, logger core.ILogger) core.DecisionClient {
	timeout := time.Duration(cfg.Decision.TimeoutSeconds) * time.Second
	switch cfg.Decision.Provider {
	case "gemini":
		return llm.NewGeminiClient(cfg.Decision.BaseURL, cfg.Decision.Model, cfg.Decision.APIKey, timeout, logger)
	default:
		return llm.NewOllamaClient(cfg.Decision.BaseURL, cfg.Decision.Model, timeout, logger)
	}
}
