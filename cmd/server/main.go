package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/internal/logging"
	"streamvault/internal/router"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Server.Env, cfg.Server.LogLevel, os.Stderr)

	if cfg.IsProduction() && cfg.JWT.AccessSecret == "change-me-in-production" {
		logger.Error("JWT_ACCESS_SECRET must be set in production")
		os.Exit(1)
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Error("database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.SeedPaymentConfig(ctx, db); err != nil {
		logger.Error("seed payment config", "error", err)
		os.Exit(1)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis", "error", err)
		os.Exit(1)
	}

	engine, cleanup := router.Setup(ctx, cfg, db, rdb, logger)
	defer cleanup()
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env, "sandbox", cfg.Gateway.Sandbox)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	logger.Info("server stopped")
}
