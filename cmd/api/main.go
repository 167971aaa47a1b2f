package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/txnflow/internal/api"
	"github.com/dvloznov/txnflow/internal/api/handlers"
	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/config"
	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/jobs/inmemory"
	"github.com/dvloznov/txnflow/internal/logger"
	"github.com/dvloznov/txnflow/internal/parser"
	"github.com/dvloznov/txnflow/internal/pipeline"
	"github.com/dvloznov/txnflow/internal/store"
	fsstore "github.com/dvloznov/txnflow/internal/store/firestore"
	"github.com/dvloznov/txnflow/internal/store/memory"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.yaml in cwd)")
	flag.Parse()

	log := logger.New("api")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log = logger.NewWithLevel("api", cfg.Log.Level)
	ctx := context.Background()

	// Stores: Firestore when a project is configured, in-memory otherwise.
	var transactions store.TransactionStore
	var mappings store.MappingStore
	if cfg.Firestore.ProjectID != "" {
		fs, err := fsstore.New(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Firestore")
		}
		defer fs.Close()
		transactions, mappings = fs, fs
	} else {
		log.Warn().Msg("No Firestore project configured - using in-memory store, data is lost on restart")
		mem := memory.New()
		transactions, mappings = mem, mem
	}

	// Classification oracle is optional; without it the cascade stops at
	// the mapping tiers.
	var oracle classify.Provider
	if cfg.Oracle.Enabled {
		o, err := classify.NewGeminiOracle(ctx, cfg.Oracle.Model, mappings, log)
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

	ingestor := pipeline.NewIngestor(parser.New(log), transactions, mappings, mappings, oracle, dedupOpts, log)

	// Job infrastructure for async ingestion. The in-memory queue keeps
	// single-instance deployments simple; swap for Cloud Tasks or Pub/Sub
	// when scaling out.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job workers")
		handler := pipeline.NewIngestJobHandler(ingestor, jobStore, log)
		if err := jobQueue.Start(workerCtx, handler); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - async ingestion is disabled")
	}

	router := api.NewRouter(api.Handlers{
		Uploads:      handlers.NewUploadsHandler(ingestor, jobQueue, cfg.GCS.Bucket, cfg.Jobs.MaxRetries, log),
		Transactions: handlers.NewTransactionsHandler(transactions, mappings, ingestor, log),
		Mappings:     handlers.NewMappingsHandler(mappings, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
