package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	accessapp "github.com/printpass/backend/internal/application/access"
	pipelineapp "github.com/printpass/backend/internal/application/pipeline"
	"github.com/printpass/backend/internal/infrastructure/auth"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/logger"
	"github.com/printpass/backend/internal/infrastructure/persistence"
	"github.com/printpass/backend/internal/infrastructure/queue"
	"github.com/printpass/backend/internal/infrastructure/storage"
	"github.com/printpass/backend/internal/interfaces/http/handler"
	"github.com/printpass/backend/internal/interfaces/http/middleware"
	"github.com/printpass/backend/internal/interfaces/http/router"
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

	log.Info("Starting PrintPass API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
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
	log.Info("Database connected")

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

	// Repositories
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	tokenRepo := persistence.NewGormPrintTokenRepository(db.DB)
	offlineRepo := persistence.NewGormOfflineTokenRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)
	docRepo := persistence.NewGormDocumentRepository(db.DB)
	jobRepo := persistence.NewGormRenderJobRepository(db.DB)

	// Application services. The API process never rasterizes; page tasks are
	// consumed by the worker binary, so no rasterizer is wired here.
	signer := auth.NewOfflineSigner(cfg.Offline)
	tokenService := accessapp.NewTokenService(entryRepo, tokenRepo, auditRepo, docRepo, objectStorage, cfg.Tokens, log)
	offlineService := accessapp.NewOfflineService(entryRepo, offlineRepo, tokenRepo, auditRepo, docRepo,
		objectStorage, signer, cfg.Offline, cfg.Tokens.RetentionAfter, log)
	reconciler := pipelineapp.NewReconciler(jobRepo, taskQueue, cfg.Reconciler, log)
	renderService := pipelineapp.NewRenderService(jobRepo, taskQueue, nil, objectStorage, reconciler, log)

	// HTTP handlers
	accessHandler := handler.NewAccessHandler(tokenService)
	offlineHandler := handler.NewOfflineHandler(offlineService)
	jobHandler := handler.NewJobHandler(renderService)
	systemHandler := handler.NewSystemHandler(db)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	// Health endpoints stay outside the owner-scoped API surface
	systemHandler.RegisterRoutes(engine.Group(""))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.OwnerAuth())
	r.Register(accessHandler).
		Register(jobHandler).
		RegisterIf(offlineHandler.Enabled(), offlineHandler)
	r.Setup()

	if offlineHandler.Enabled() {
		log.Info("Offline redemption enabled",
			zap.Duration("default_ttl", cfg.Offline.DefaultTTL),
			zap.Duration("max_ttl", cfg.Offline.MaxTTL))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
