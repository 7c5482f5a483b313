package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tickflow/config"
	"tickflow/internal/api"
	"tickflow/internal/channel"
	"tickflow/internal/dashboard"
	"tickflow/internal/feed"
	"tickflow/internal/metrics"
	"tickflow/internal/pipeline"
	"tickflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	symbol := flag.String("symbol", "", "Symbol to select at startup (defaults to the backend's first symbol)")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Tickflow.Name,
		"version":     cfg.Tickflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting tickflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	metrics.Init()
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer)
	defer channels.Close()

	go channels.StartMetricsReporting(ctx)

	client := api.NewClient(cfg.API)

	startSymbol := *symbol
	if startSymbol == "" {
		symbols, err := client.GetSymbols(ctx)
		if err != nil {
			log.WithError(err).Error("failed to list backend symbols")
			os.Exit(1)
		}
		if len(symbols) == 0 {
			log.Error("backend serves no symbols and no -symbol flag was given")
			os.Exit(1)
		}
		startSymbol = symbols[0].Symbol
	}

	manager := feed.NewManager(cfg, channels, client)

	controller, err := pipeline.NewController(cfg, channels.Raw, client, manager)
	if err != nil {
		log.WithError(err).Error("failed to create pipeline controller")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	if err := manager.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start feed manager")
		os.Exit(1)
	}

	if err := controller.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start pipeline controller")
		manager.Stop()
		os.Exit(1)
	}

	controller.Select(startSymbol)

	server := dashboard.NewServer(cfg.Dashboard, controller, manager, client)
	if server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx, cfg.Tickflow.Name); err != nil {
				log.WithError(err).Warn("dashboard server exited with error")
			}
		}()
	}

	log.WithFields(logger.Fields{"symbol": startSymbol}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping feed manager")
	manager.Stop()

	log.Info("stopping pipeline controller")
	controller.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("tickflow stopped")
}
