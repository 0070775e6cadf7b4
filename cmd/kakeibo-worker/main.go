package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	applog "kakeibo/internal/log"
	"kakeibo/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting kakeibo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != string(backend.SheetsBackend) {
		logger.Error("The worker mirrors the spreadsheet; set DATA_BACKEND=sheets", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	source, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	mirror := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer mirror.Close()

	syncWorker := worker.NewSyncWorker(source.Store, mirror, logger)

	// A stale or missing mirror is refreshed before anything else runs.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx, cfg.SyncMaxAge); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	archiver := worker.NewArchiver(source.Store, cfg.Options(), cfg.ArchiveDir, logger)
	scheduler, err := worker.NewScheduler(cfg.ArchiveSchedule, archiver)
	if err != nil {
		logger.Error("Invalid archive schedule", "error", err, "schedule", cfg.ArchiveSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Archive scheduled", "schedule", cfg.ArchiveSchedule, "next", scheduler.Next())

	if err := syncWorker.Start(ctx, cfg.SyncInterval); err != nil {
		logger.Error("Failed to start periodic sync", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			client, err := amqp.WaitForConnection(gctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()
			logger.Info("Consuming change events", "queue", cfg.AMQPQueue)
			return client.ConsumeRecordChanged(gctx, syncWorker.HandleRecordChanged)
		})
	} else {
		logger.Info("AMQP disabled; relying on periodic sync", "interval", cfg.SyncInterval)
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		return syncWorker.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
