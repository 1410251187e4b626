package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/leasing-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/leasing-ai-platform/internal/app/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, awsCfg, err := mainconfig.Environment(ctx, "api")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting leasing-ai-platform API server",
		"port", cfg.Port,
		"session_backend", cfg.SessionBackend,
		"llm_provider", cfg.LLMProvider,
	)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger, AWS: &awsCfg})
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	app.Start(bgCtx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancelBackground()
	app.Drain()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
