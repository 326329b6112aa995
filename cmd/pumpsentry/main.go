package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pumpsentry/internal/binance"
	"pumpsentry/internal/config"
	"pumpsentry/internal/engine"
	"pumpsentry/internal/feed"
	"pumpsentry/internal/filters"
	"pumpsentry/internal/logger"
	"pumpsentry/internal/models"
	"pumpsentry/internal/storage"
	"pumpsentry/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	windows, err := cfg.DetectionWindows()
	if err != nil {
		logger.Fatal("Invalid detection windows: %v", err)
	}

	store, err := storage.New(cfg.Storage.MaxAlerts, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := binance.NewClient(cfg.Binance.FuturesRestURL, binance.ClientConfig{
		Timeout:         cfg.Binance.Timeout,
		RequestsPerSec:  cfg.Binance.RequestsPerSec,
		MaxRetryElapsed: cfg.Binance.MaxRetryElapsed,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Fetching USDT perpetual symbols from Binance futures...")
	symbols, err := client.PerpetualSymbols(ctx)
	if err != nil {
		logger.Fatal("Failed to discover symbols: %v", err)
	}
	if len(symbols) == 0 {
		logger.Fatal("Symbol discovery returned no tradable USDT perpetuals")
	}
	logger.Info("Tracking %d USDT perpetual symbols", len(symbols))

	pipeline := &filters.Pipeline{
		Volume: filters.NewVolumeFilter(client,
			cfg.Filters.Volume.WindowMin, cfg.Filters.Volume.LookbackMin,
			cfg.Filters.Volume.MinVolumeUSDT, cfg.Filters.Volume.MinSpikeRatio),
		Spread: filters.NewSpreadLiquidityFilter(client,
			cfg.Filters.Spread.MaxSpreadPct, cfg.Filters.Spread.DepthLimit,
			cfg.Filters.Spread.MinBidNotional),
		OI: filters.NewOpenInterestStat(client, cfg.Filters.OpenInterest.Window, symbols),
	}

	var notifier engine.Notifier
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, store)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.ListenForCommands(ctx)
		notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	eng := engine.New(engine.Config{
		Windows:  windows,
		Cooldown: cfg.Detection.AlertCooldown,
	}, symbols, pipeline, notifier, store)

	logger.Info("Starting detection engine (%d windows, cooldown: %v, %d symbols)",
		len(windows), cfg.Detection.AlertCooldown, eng.TrackedSymbols())

	stream := feed.NewStream(cfg.Binance.FuturesWSURL, func(tick models.Tick) {
		eng.Ingest(ctx, tick)
	})

	consecutiveFailures := 0
	stream.OnDisconnect = func(err error) {
		consecutiveFailures++
		if consecutiveFailures == 1 && telegramClient != nil {
			if sendErr := telegramClient.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
	}
	stream.OnConnect = func() {
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Feed loop ended: %v", err)
	}

	eng.Drain()
	logger.Info("Service stopped")
}
