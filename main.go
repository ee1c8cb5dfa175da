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

	"feeflow/config"
	"feeflow/internal/channel"
	"feeflow/internal/fees"
	"feeflow/internal/ledger"
	"feeflow/internal/metrics"
	"feeflow/internal/server"
	"feeflow/logger"
	"feeflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	feesPath := flag.String("fees", "config/fees.yml", "Path to fee schedule file")

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
		"service": cfg.Feeflow.Name,
		"version": cfg.Feeflow.Version,
	}).Info("starting feeflow")

	sched, err := config.LoadSchedule(*feesPath)
	if err != nil {
		if config.IsProductionLike(config.AppEnvironment()) {
			log.WithError(err).Error("failed to load fee schedule")
			os.Exit(1)
		}
		log.WithError(err).Warn("failed to load fee schedule, falling back to built-in defaults")
		sched = fees.DefaultSchedule()
	}

	resolver, err := fees.NewResolver(sched)
	if err != nil {
		log.WithError(err).Error("fee schedule rejected")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	metrics.Configure(cfg.Metrics)
	if cfg.Metrics.Listen != "" {
		metrics.Init(cfg.Metrics.Listen)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	channels := channel.NewChannels(cfg.Channels.AuditBuffer)
	defer channels.Close()

	channels.StartMetricsReporting(ctx)
	metrics.StartChannelSizeMetrics(ctx, channels, 5*time.Second)

	store := ledger.NewStore()

	var snapshotFetcher *ledger.SnapshotFetcher
	if cfg.Ledger.Snapshot.Enabled && cfg.Storage.S3.Enabled {
		snapshotFetcher, err = ledger.NewSnapshotFetcher(cfg, store)
		if err != nil {
			log.WithError(err).Error("failed to create snapshot fetcher")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("volume snapshots disabled; accounts start in the lowest tier")
	}

	var feed *ledger.Feed
	if cfg.Ledger.Feed.Enabled {
		feed = ledger.NewFeed(cfg, store)
	}

	var quoteWriter *writer.QuoteWriter
	if cfg.Audit.Enabled && cfg.Storage.S3.Enabled {
		quoteWriter, err = writer.NewQuoteWriter(cfg, channels.Audit)
		if err != nil {
			log.WithError(err).Error("failed to create audit writer")
			os.Exit(1)
		}
	} else {
		log.WithComponent("main").Info("audit trail disabled; skipping writer")
	}

	srv, err := server.NewServer(cfg.Server, resolver, store, channels, log)
	if err != nil {
		log.WithError(err).Error("failed to create quote API server")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	if snapshotFetcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := snapshotFetcher.Start(ctx); err != nil {
				log.WithError(err).Warn("snapshot fetcher failed to start")
			}
		}()
	}

	if feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := feed.Start(ctx); err != nil {
				log.WithError(err).Warn("ledger feed failed to start")
			}
		}()
	}

	if quoteWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := quoteWriter.Start(ctx); err != nil {
				log.WithError(err).Warn("audit writer failed to start")
			}
		}()
	}

	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("quote API server failed")
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				seen, rejected := store.Stats()
				metrics.ReportLedgerStoreMetrics(log, metrics.LedgerStoreMetrics{
					Accounts:    store.Len(),
					UpdatesSeen: seen,
					Rejected:    rejected,
				})
				if quoteWriter != nil {
					metrics.ReportWriter(log, "audit_writer", quoteWriter.Stats())
				}
			}
		}
	}()

	time.Sleep(2 * time.Second)
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			log.Info("reload signal received, reloading fee schedule")
			next, err := config.LoadSchedule(*feesPath)
			if err != nil {
				log.WithError(err).Warn("fee schedule reload failed, keeping current schedule")
				continue
			}
			if err := resolver.Swap(next); err != nil {
				log.WithError(err).Warn("fee schedule rejected, keeping current schedule")
				continue
			}
			log.Info("fee schedule reloaded")
			continue
		}

		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		break
	}

	log.Info("starting graceful shutdown")
	cancel()

	if quoteWriter != nil {
		log.Info("stopping audit writer")
		quoteWriter.Stop()
	}

	if feed != nil {
		log.Info("stopping ledger feed")
		feed.Stop()
	}

	if snapshotFetcher != nil {
		log.Info("stopping snapshot fetcher")
		snapshotFetcher.Stop()
	}

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

	log.Info("feeflow stopped")
}
