package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/latencymon/internal/config"
	"github.com/rewired-gh/latencymon/internal/espn"
	"github.com/rewired-gh/latencymon/internal/kalshi"
	"github.com/rewired-gh/latencymon/internal/logger"
	"github.com/rewired-gh/latencymon/internal/models"
	"github.com/rewired-gh/latencymon/internal/monitor"
	"github.com/rewired-gh/latencymon/internal/notify"
	"github.com/rewired-gh/latencymon/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file (empty for environment only)")
	envPath    = flag.String("env", ".env", "Path to .env file with credentials")
)

func main() {
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
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

	espnClient := espn.NewClient(cfg.ESPN.BaseURL, espn.ClientConfig{
		Timeout:    cfg.ESPN.Timeout,
		MaxRetries: cfg.ESPN.MaxRetries,
		RateLimit:  cfg.ESPN.RateLimit,
	})

	keyPEM, err := cfg.Kalshi.PrivateKeyPEM()
	if err != nil {
		logger.Fatal("Failed to load Kalshi credentials: %v", err)
	}
	signer, err := kalshi.NewSigner(cfg.Kalshi.APIKeyID, keyPEM)
	if err != nil {
		logger.Fatal("Failed to initialize Kalshi signer: %v", err)
	}
	kalshiClient := kalshi.NewClient(cfg.Kalshi.WSURL, signer)

	events := make(chan models.Event, cfg.Monitor.EventBuffer)
	prices := &monitor.PriceCell{}
	correlator := monitor.NewCorrelator(cfg.Monitor.WinProbThreshold, prices)
	poller := monitor.NewPoller(cfg.ESPN.GameID, espnClient, correlator, cfg.ESPN.PollInterval, events)

	notifiers := []notify.Notifier{notify.NewConsole(os.Stdout)}
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase, correlator)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifiers = append(notifiers, telegramClient)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}
	dispatcher := notify.NewDispatcher(notifiers...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting latency monitor (game: %s, market: %s, threshold: %.3f, whale threshold: $%.0f)",
		cfg.ESPN.GameID,
		cfg.Kalshi.MarketTicker,
		cfg.Monitor.WinProbThreshold,
		cfg.Monitor.WhaleThreshold,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx, events) })
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return runMarketListener(gctx, kalshiClient, cfg, prices, events) })
	g.Go(func() error { return runWhaleMonitor(gctx, kalshiClient, cfg, events) })

	if err := g.Wait(); err != nil {
		logger.Error("Monitor exited with error: %v", err)
	}
	logger.Info("Service stopped")
}

// runMarketListener subscribes and runs the listener. A failed subscription is
// reported and leaves the other loops running.
func runMarketListener(ctx context.Context, client *kalshi.Client, cfg *config.Config, prices *monitor.PriceCell, events chan<- models.Event) error {
	sub, err := client.SubscribeOrderbook(ctx, cfg.Kalshi.MarketTicker, cfg.Kalshi.OrderbookChannel)
	if err != nil {
		reportStartup(ctx, events, monitor.SourceOrderbook, err)
		return nil
	}
	defer sub.Close()
	return monitor.NewMarketListener(cfg.Kalshi.MarketTicker, sub, prices, events).Run(ctx)
}

func runWhaleMonitor(ctx context.Context, client *kalshi.Client, cfg *config.Config, events chan<- models.Event) error {
	sub, err := client.SubscribeTrades(ctx, cfg.Kalshi.TradeTickers)
	if err != nil {
		reportStartup(ctx, events, monitor.SourceWhales, err)
		return nil
	}
	defer sub.Close()
	return monitor.NewWhaleMonitor(sub, cfg.Monitor.WhaleThreshold, events).Run(ctx)
}

func reportStartup(ctx context.Context, events chan<- models.Event, source string, err error) {
	if ctx.Err() != nil {
		return
	}
	logger.Error("Failed to start %s stream: %v", source, err)
	select {
	case events <- models.NewErrorEvent(source, err):
	case <-ctx.Done():
	}
}
