package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/companion-labs/voicerelay/internal/adapter/llm"
	"github.com/companion-labs/voicerelay/internal/adapter/stt"
	"github.com/companion-labs/voicerelay/internal/adapter/tts"
	"github.com/companion-labs/voicerelay/internal/cache"
	"github.com/companion-labs/voicerelay/internal/config"
	"github.com/companion-labs/voicerelay/internal/service"
	"github.com/companion-labs/voicerelay/internal/store"
	handler "github.com/companion-labs/voicerelay/internal/transport/http"
	"github.com/companion-labs/voicerelay/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting voice relay",
		zap.Int("port", cfg.HTTPPort),
		zap.String("database", cfg.DatabasePath),
		zap.String("tts_cache", cfg.CacheDir))

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	// Initialize artifact cache
	artifacts, err := cache.New(cfg.CacheDir)
	if err != nil {
		logger.Fatal("failed to initialize artifact cache", zap.Error(err))
	}

	// Initialize adapters
	if cfg.AnthropicKey == "" {
		logger.Warn("no completion API key configured, turns will use fallback replies")
	}
	llmClient := llm.NewClient(cfg.AnthropicURL, cfg.AnthropicKey, cfg.AnthropicModel, cfg.AnthropicVersion, cfg.CompletionTimeout)
	ttsClient := tts.NewClient(cfg.FishURL, cfg.FishKey, cfg.FishVoiceID, cfg.FishTTSModel, cfg.SynthesisTimeout, artifacts)
	sttClient := stt.NewClient()

	// Initialize service
	svc := service.New(db, sttClient, llmClient, ttsClient, artifacts, cfg, logger)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	handler.NewHandler(svc, logger).RegisterRoutes(e)
	ws.NewServer(svc, logger).RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("voice relay started", zap.Int("port", cfg.HTTPPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down voice relay")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", zap.Error(err))
	}

	logger.Info("voice relay stopped")
}
