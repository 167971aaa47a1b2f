package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/config"
	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/jobs/inmemory"
	"github.com/dvloznov/txnflow/internal/logger"
	"github.com/dvloznov/txnflow/internal/parser"
	"github.com/dvloznov/txnflow/internal/pipeline"
	fsstore "github.com/dvloznov/txnflow/internal/store/firestore"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.yaml in cwd)")
	flag.Parse()

	log := logger.New("worker")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log = logger.NewWithLevel("worker", cfg.Log.Level)
	ctx := context.Background()

	if cfg.Firestore.ProjectID == "" {
		log.Fatal().Msg("A Firestore project is required: the worker shares its store with the API")
	}
	fs, err := fsstore.New(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Firestore")
	}
	defer fs.Close()

	var oracle classify.Provider
	if cfg.Oracle.Enabled {
		o, err := classify.NewGeminiOracle(ctx, cfg.Oracle.Model, fs, log)
		if err != nil {
			log.Warn().Err(err).Msg("Oracle unavailable - continuing without AI classification")
		} else {
			oracle = o
		}
	}

	dedupOpts := dedup.DefaultOptions()
	dedupOpts.AutoRejectThreshold = cfg.Dedup.AutoRejectThreshold
	dedupOpts.AmbiguousThreshold = cfg.Dedup.AmbiguousThreshold
	dedupOpts.UseDatetime = cfg.Dedup.UseDatetime

	ingestor := pipeline.NewIngestor(parser.New(log), fs, fs, fs, oracle, dedupOpts, log)

	// In production the in-memory queue would be replaced with Cloud Tasks
	// or Pub/Sub so the API and worker can run as separate services.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, jobStore)

	log.Info().Msg("Starting worker service")

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := pipeline.NewIngestJobHandler(ingestor, jobStore, log)
	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
