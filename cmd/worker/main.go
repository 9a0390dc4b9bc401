package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	accessapp "github.com/printpass/backend/internal/application/access"
	pipelineapp "github.com/printpass/backend/internal/application/pipeline"
	"github.com/printpass/backend/internal/infrastructure/auth"
	"github.com/printpass/backend/internal/infrastructure/composer"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/logger"
	"github.com/printpass/backend/internal/infrastructure/persistence"
	"github.com/printpass/backend/internal/infrastructure/queue"
	"github.com/printpass/backend/internal/infrastructure/rasterizer"
	"github.com/printpass/backend/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting PrintPass worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("concurrency", cfg.Queue.Concurrency),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	taskQueue, err := queue.NewRedisQueue(&cfg.Redis, cfg.Queue.KeyPrefix)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			log.Error("Error closing queue", zap.Error(err))
		}
	}()

	objectStorage, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if err := objectStorage.EnsureBucket(context.Background()); err != nil {
		log.Fatal("Failed to ensure storage bucket", zap.Error(err))
	}

	pageRasterizer, err := rasterizer.NewChromedpRasterizer(cfg.Rasterizer, log)
	if err != nil {
		log.Fatal("Failed to initialize rasterizer", zap.Error(err))
	}
	defer func() {
		if err := pageRasterizer.Close(); err != nil {
			log.Error("Error closing rasterizer", zap.Error(err))
		}
	}()

	// Repositories
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	tokenRepo := persistence.NewGormPrintTokenRepository(db.DB)
	offlineRepo := persistence.NewGormOfflineTokenRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	docRepo := persistence.NewGormDocumentRepository(db.DB)
	jobRepo := persistence.NewGormRenderJobRepository(db.DB)

	// Application services
	renderService := pipelineapp.NewRenderService(jobRepo, taskQueue, pageRasterizer, objectStorage, nil, log)
	mergeService := pipelineapp.NewMergeService(jobRepo, docRepo, entryRepo, objectStorage,
		composer.NewPdfcpuComposer(log), log)
	signer := auth.NewOfflineSigner(cfg.Offline)
	tokenService := accessapp.NewTokenService(entryRepo, tokenRepo, auditRepo, docRepo, objectStorage, cfg.Tokens, log)
	offlineService := accessapp.NewOfflineService(entryRepo, offlineRepo, tokenRepo, auditRepo, docRepo,
		objectStorage, signer, cfg.Offline, cfg.Tokens.RetentionAfter, log)

	worker := queue.NewWorker(taskQueue, cfg.Queue, log)
	worker.Register(pipelineapp.TaskTypeRenderPage, renderService.HandlePageTask)
	worker.Register(pipelineapp.TaskTypeMergeJob, mergeService.HandleMergeTask)
	worker.OnDeadTask(mergeService.HandleDeadTask)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	log.Info("Worker started",
		zap.Int("max_attempts", cfg.Queue.MaxAttempts),
		zap.Duration("poll_interval", cfg.Queue.PollInterval),
	)

	// Token janitor. Expired print tokens and offline tokens past retention
	// are swept on a fixed interval.
	go runJanitor(ctx, cfg.Tokens.GCInterval, tokenService, offlineService, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down worker...")

	cancel()

	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("Worker exited gracefully")
	case <-time.After(30 * time.Second):
		log.Warn("Worker shutdown timed out, exiting")
	}
}

func runJanitor(ctx context.Context, interval time.Duration, tokenService *accessapp.TokenService, offlineService *accessapp.OfflineService, log *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := tokenService.PurgeExpiredTokens(ctx); err != nil {
				log.Error("Print token purge failed", zap.Error(err))
			}
			if _, err := offlineService.PurgeExpiredTokens(ctx); err != nil {
				log.Error("Offline token purge failed", zap.Error(err))
			}
		}
	}
}
