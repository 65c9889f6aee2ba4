package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/punchlist/internal/config"
	"github.com/dukerupert/punchlist/internal/database"
	"github.com/dukerupert/punchlist/internal/logging"
	"github.com/dukerupert/punchlist/internal/server"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to read config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if v, err := database.SchemaVersion(db); err == nil {
		logger.Info("database ready", "path", cfg.DBPath, "schema_version", v)
	}

	blobs, err := cfg.OpenBlobStore()
	if err != nil {
		logger.Error("failed to open photo storage", "driver", cfg.BlobDriver, "error", err)
		os.Exit(1)
	}

	srv := server.New(db, server.Options{
		Blobs:          blobs,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		StaticDir:      cfg.StaticDir,
		WSOrigins:      cfg.WSOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
		// Photo uploads need more time than plain JSON calls.
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Shutdown leaves upgraded connections alone; close them explicitly.
	httpServer.RegisterOnShutdown(srv.Hub().Close)

	go func() {
		logger.Info("punchlist running", "addr", "http://localhost:"+cfg.Port, "blob_driver", cfg.BlobDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
