package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dealerpulse/pulse/internal/config"
	"github.com/dealerpulse/pulse/internal/engine"
	"github.com/dealerpulse/pulse/internal/journal"
	"github.com/dealerpulse/pulse/internal/logger"
	"github.com/dealerpulse/pulse/internal/metrics"
	"github.com/dealerpulse/pulse/internal/notify"
	transporthttp "github.com/dealerpulse/pulse/internal/transport/http"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	eng := engine.New(engine.Config{
		MaxCards:        cfg.Engine.MaxCards,
		MaxThreadEvents: cfg.Engine.MaxThreadEvents,
		MaxThreads:      cfg.Engine.MaxThreads,
		BundleWindow:    cfg.Engine.BundleWindow,
		SweepInterval:   cfg.Engine.SweepInterval,
	})

	if cfg.Journal.Enabled {
		jrnl, err := journal.Open(cfg.Journal.DBPath, cfg.Journal.MaxRows)
		if err != nil {
			logger.Fatal("Failed to open ingest journal: %v", err)
		}
		defer func() {
			if err := jrnl.Close(); err != nil {
				logger.Error("Failed to close journal: %v", err)
			}
		}()
		eng.SetJournal(jrnl)
		logger.Info("Ingest journal enabled at %s", cfg.Journal.DBPath)
	}

	var notifier transporthttp.Notifier
	if cfg.Telegram.Enabled {
		client, err := notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = client
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var recorder transporthttp.Recorder
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		recorder = m
		eng.SetSweepRecorder(m)
		go func() {
			logger.Info("Metrics listening on %s", cfg.Metrics.Listen)
			if err := m.Serve(cfg.Metrics.Listen); err != nil {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	eng.Start(ctx)
	logger.Info("Pulse engine started (max_cards: %d, bundle_window: %v, sweep_interval: %v)",
		cfg.Engine.MaxCards, cfg.Engine.BundleWindow, cfg.Engine.SweepInterval)

	srv := transporthttp.NewServer(eng, notifier, recorder)
	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP API listening on %s", cfg.Server.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown: %v", err)
	}
	if m != nil {
		if err := m.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown: %v", err)
		}
	}
	logger.Info("Service stopped")
}
