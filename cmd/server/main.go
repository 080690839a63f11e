package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vrewcraft/backend/internal/api"
	"github.com/vrewcraft/backend/internal/config"
	"github.com/vrewcraft/backend/internal/db"
	"github.com/vrewcraft/backend/internal/engine"
	"github.com/vrewcraft/backend/internal/journal"
	"github.com/vrewcraft/backend/internal/logging"
	"github.com/vrewcraft/backend/internal/media"
	"github.com/vrewcraft/backend/internal/metrics"
	"github.com/vrewcraft/backend/internal/progress"
	"github.com/vrewcraft/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting vrewcraft backend",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"videos_dir", logging.SanitizePath(cfg.VideosDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := journal.NewRepository(database.Conn())

	contentStore, err := store.New(cfg.VideosDir(), cfg.PublicPrefix())
	if err != nil {
		return fmt.Errorf("failed to initialize content store: %w", err)
	}

	hub := progress.NewHub(logging.WithComponent(logger, "progress"))
	defer hub.Close()

	prober := media.NewFFprobe(cfg.FFprobeBin(), cfg.ProbeTimeout(),
		logging.WithComponent(logger, "ffprobe"))
	doctor := media.NewDoctor(cfg.FFmpegBin(), cfg.FFprobeBin(),
		logging.WithComponent(logger, "doctor"))
	caps := doctor.Refresh(context.Background())
	logger.Info("media tool check",
		"ffmpeg", caps.FFmpeg,
		"ffprobe", caps.FFprobe,
		"ffmpeg_version", caps.FFmpegVersion,
	)
	cutter := engine.NewFFmpegCutter(cfg.FFmpegBin(), cfg.ProcessTimeout(),
		logging.WithComponent(logger, "ffmpeg"))

	eng := engine.New(engine.Config{
		Store:   contentStore,
		Prober:  prober,
		Cutter:  cutter,
		Hub:     hub,
		Journal: repo,
		Logger:  logging.WithComponent(logger, "engine"),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mtr := metrics.New(registry)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		PublicPrefix:   cfg.PublicPrefix(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		PingInterval:   cfg.PingInterval(),
		Store:          contentStore,
		Engine:         eng,
		Prober:         prober,
		Doctor:         doctor,
		Hub:            hub,
		Journal:        repo,
		Metrics:        mtr,
		Registry:       registry,
		Logger:         logger,
		StartTime:      startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	hub.Close()

	logger.Info("shutdown complete")
	return nil
}
