package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-helper/internal/async"
	"github.com/joseph-ayodele/invoice-helper/internal/common"
	"github.com/joseph-ayodele/invoice-helper/internal/export"
	"github.com/joseph-ayodele/invoice-helper/internal/ingest"
	"github.com/joseph-ayodele/invoice-helper/internal/ocr"
	"github.com/joseph-ayodele/invoice-helper/internal/pipeline"
	"github.com/joseph-ayodele/invoice-helper/internal/reference"
	repo "github.com/joseph-ayodele/invoice-helper/internal/repository"
	"github.com/joseph-ayodele/invoice-helper/internal/server"
)

func main() {
	common.LoadDotEnv()
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(cfg.Daemon.InboxDir, 0o755); err != nil {
		logger.Error("failed to create inbox", "dir", cfg.Daemon.InboxDir, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hs := server.NewHealthServer(logger)

	var runs export.RunRecorder
	if cfg.Database.DSN != "" {
		db, err := repo.Open(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer repo.Close(db, logger)
		runLog := repo.NewRunLogRepository(db, logger)
		if err := runLog.Migrate(ctx); err != nil {
			logger.Error("failed to migrate run log", "error", err)
			os.Exit(1)
		}
		runs = runLog
		go hs.Watch(ctx, server.ServiceRunLog, 30*time.Second, func(ctx context.Context) error {
			return repo.HealthCheck(ctx, db, 3*time.Second, logger)
		})
	}

	proc := pipeline.NewFromConfig(cfg,
		ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger),
		export.NewService(cfg.Output.Dir, runs, logger),
		logger,
	)

	seen := ingest.NewSeenSet()
	queue := async.NewQueue(async.HandlerFunc(func(ctx context.Context, job async.Job) error {
		// reloaded per invoice so edits to the workbook apply without a restart
		wb, err := reference.LoadWorkbook(cfg.Reference.WorkbookPath, logger)
		if err != nil {
			seen.Forget(job.Hash)
			return err
		}
		res, err := proc.Process(ctx, job.Path, wb.Tables, pipeline.Options{})
		var abort *pipeline.AbortError
		switch {
		case errors.As(err, &abort):
			logger.Warn("invoice aborted", "path", job.Path, "stage", abort.Stage, "reason", abort.Reason)
			return nil
		case err != nil:
			seen.Forget(job.Hash)
			return err
		}
		logger.Info("invoice done",
			"path", job.Path,
			"status", res.Validation.Status,
			"entries", len(res.Entries),
			"backup_dir", res.BackupDir)
		return nil
	}), logger, async.WithQueueSize(64), async.WithProcessTimeout(5*time.Minute))

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Daemon.InboxDir},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    cfg.Daemon.Debounce,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.Daemon.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Daemon.GRPCAddr, "error", err)
		os.Exit(1)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- hs.Serve(ctx, lis) }()

	hs.SetServing("", true)
	hs.SetServing(server.ServiceInbox, true)
	logger.Info("invoicehelperd watching", "inbox", cfg.Daemon.InboxDir, "addr", cfg.Daemon.GRPCAddr)

loop:
	for {
		select {
		case p, ok := <-events:
			if !ok {
				break loop
			}
			hash, first, dup, err := seen.Check(p)
			if err != nil {
				logger.Warn("skipping unreadable invoice", "path", p, "error", err)
				continue
			}
			if dup {
				logger.Info("skipping duplicate invoice", "path", p, "first_seen", first)
				continue
			}
			if err := queue.Enqueue(ctx, async.Job{Path: p, Hash: hash}); err != nil {
				logger.Warn("failed to enqueue invoice", "path", p, "error", err)
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warn("watcher reported an error", "error", err)
		case err := <-serveErr:
			if err != nil {
				logger.Error("health server stopped", "error", err)
				stop()
			}
		}
	}

	hs.SetServing(server.ServiceInbox, false)
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
