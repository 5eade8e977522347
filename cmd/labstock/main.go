package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/app"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/inventory"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/platform/cache"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/studentmode"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, summary cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)

	inventoryRepo := inventory.NewRepository(dbpool)
	summaryCache := cache.NewJSONCache(redisClient, cfg.SummaryCacheTTL)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, summaryCache, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	throttle := studentmode.NewThrottle(studentmode.ThrottleConfig{
		MaxFailures: cfg.StudentMaxFailures,
		Window:      cfg.StudentFailWindow,
		Lockout:     cfg.StudentLockout,
	})
	go throttle.Run(ctx, time.Minute)

	credentialRepo := studentmode.NewRepository(dbpool)
	studentService := studentmode.NewService(credentialRepo, throttle, inventoryService, auditLogger, cfg.StudentFailDelay)
	studentHandler := studentmode.NewHandler(logger, studentService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		InventoryHandler:   inventoryHandler,
		StudentModeHandler: studentHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
