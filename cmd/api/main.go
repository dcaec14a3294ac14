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

	"furnishAi/internal/config"
	"furnishAi/internal/events"
	"furnishAi/internal/llm"
	"furnishAi/internal/media"
	"furnishAi/internal/server"
	"furnishAi/internal/storage"
	"furnishAi/internal/studio"
	"furnishAi/internal/vision"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	ctx := context.Background()
	store, err := storage.NewStore(ctx, storage.Options{
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		TTL:         cfg.SessionTTL,
	})
	if err != nil {
		logger.Error("failed to init store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	mediaStore, backend, err := media.Open(ctx, media.Config{
		Bucket:          cfg.Media.Bucket,
		Region:          cfg.Media.Region,
		Endpoint:        cfg.Media.Endpoint,
		PublicURL:       cfg.Media.PublicURL,
		KeyPrefix:       cfg.Media.KeyPrefix,
		ForcePathStyle:  cfg.Media.ForcePathStyle,
		AccessKeyID:     cfg.Media.AccessKeyID,
		SecretAccessKey: cfg.Media.SecretAccessKey,
	}, cfg.MediaDir)
	if err != nil {
		logger.Error("failed to init media storage", "error", err)
		os.Exit(1)
	}
	logger.Info("media storage ready", "backend", backend)

	var models llm.ContentGenerator
	client, err := llm.New(ctx, llm.Config{
		APIKey:     cfg.AI.APIKey,
		UseVertex:  cfg.AI.UseVertex,
		Project:    cfg.AI.Project,
		Location:   cfg.AI.Location,
		Timeout:    cfg.AI.Timeout,
		RatePerSec: cfg.AI.RatePerSec,
		Burst:      cfg.AI.Burst,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("gemini not configured; suggestion and blend requests will fail", "hint", "set GEMINI_API_KEY")
		models = llm.Unconfigured()
	case err != nil:
		logger.Error("failed to init gemini client", "error", err)
		os.Exit(1)
	default:
		logger.Info("gemini ready", "text_model", cfg.AI.TextModel, "image_model", cfg.AI.ImageModel, "vertex", cfg.AI.UseVertex)
		models = client
	}

	broker := events.NewBroker()
	svc := studio.New(studio.Deps{
		Store:     store,
		Media:     mediaStore,
		Suggester: vision.NewSuggester(models, cfg.AI.TextModel, cfg.Retailer, logger),
		Blender:   vision.NewBlender(models, cfg.AI.ImageModel, vision.NewProductFetcher(nil), logger),
		Events:    broker,
		Logger:    logger,
		Models:    cfg.AI.Models,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go svc.SweepOrphans(sweepCtx, time.Minute)

	var staticFS http.Handler
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		staticFS = http.FileServer(http.Dir(cfg.StaticDir))
	}
	srv := server.New(cfg.Port, studio.Handler{Service: svc, Logger: logger}, broker, staticFS)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		logger.Info("shutting down server")
		stopSweep()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
