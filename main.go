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

	"lppm/pkg/config"
	"lppm/pkg/logging"
	"lppm/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	jwtSecret []byte        // from JWT_SECRET (dev fallback in config)
	tokenTTL  time.Duration // lifetime of login tokens
	logger    = zap.NewNop()
)

func main() {
	loader, err := config.NewLoader()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, level, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger = log

	if cfg.InsecureSecret() {
		logger.Warn("JWT_SECRET not set, using development secret")
	}
	jwtSecret = []byte(cfg.JWTSecret)
	tokenTTL = cfg.TokenTTL

	// `lppm migrate` runs AutoMigrate and seeding then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		cfg.DBAutoMigrate = true
		if err := initDB(cfg); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		logger.Info("migration and seeding completed")
		return
	}

	if err := initDB(cfg); err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	wireServices(cfg)

	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", zap.Error(err))
			return
		}
		if err := logging.SetLevel(level, next.LogLevel); err != nil {
			logger.Warn("log level not changed", zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("log_level", next.LogLevel))
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), ginLogger(logger))
	setupRoutes(r)
	metrics.Register(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.GinMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
