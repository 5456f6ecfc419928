package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storepay/internal/bootstrap"
	"storepay/internal/config"
	cronpkg "storepay/internal/cron"
	"storepay/internal/events"
	"storepay/internal/middleware"
	"storepay/internal/notify"
	"storepay/internal/repository"
	"storepay/internal/router"
	"storepay/internal/service"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and scheduled jobs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// --- Logger ---
	logger, err := newLogger(cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		return err
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		return fmt.Errorf("bootstrap database schema: %w", err)
	}

	// --- Callback cache (Redis with in-memory fallback) ---
	callbackCache, cacheErr := middleware.NewCallbackCache(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		cfg.Redis.CallbackTTL,
	)
	if cacheErr != nil {
		logger.Warn("Redis unavailable for callback cache, using in-memory fallback", zap.Error(cacheErr))
	}

	// --- Events and operator reports ---
	publisher, err := events.NewPublisher(cfg.AMQP.URL, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	notifier, err := notify.New(cfg.Telegram.Token, cfg.Telegram.ReportChat, logger)
	if err != nil {
		return err
	}

	// --- Payment service ---
	payments := service.NewPaymentService(
		repository.NewStore(db),
		config.NewEnvProvider(),
		publisher,
		notifier,
		logger,
	)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, payments, callbackCache, logger, cfg.API.Key, cfg.API.HashFile, cfg.JWT.Secret)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg.Payment, payments, notifier, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting storepay server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	notify.Drain(shutdownCtx, notifier)

	logger.Info("Server exited")
	return nil
}
