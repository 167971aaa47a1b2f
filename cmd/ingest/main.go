package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/config"
	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/logger"
	"github.com/dvloznov/txnflow/internal/parser"
	"github.com/dvloznov/txnflow/internal/pipeline"
	"github.com/dvloznov/txnflow/internal/store"
	fsstore "github.com/dvloznov/txnflow/internal/store/firestore"
	"github.com/dvloznov/txnflow/internal/store/memory"
)

// One-shot ingestion: parse local export files straight into the store.
// Without a Firestore project this is a dry run against an in-memory store,
// useful for checking how a new export format parses and classifies.
func main() {
	var (
		configPath = flag.String("config", "", "Path to config file (default: config.yaml in cwd)")
		profileID  = flag.String("profile", "", "Profile ID the transactions belong to")
	)
	flag.Parse()

	log := logger.New("ingest")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log = logger.NewWithLevel("ingest", cfg.Log.Level)

	if *profileID == "" {
		log.Fatal().Msg("--profile is required")
	}
	if flag.NArg() == 0 {
		log.Fatal().Msg("Usage: ingest --profile <id> <file.xlsx|file.csv> ...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

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
		log.Warn().Msg("No Firestore project configured - dry run against an in-memory store")
		mem := memory.New()
		transactions, mappings = mem, mem
	}

	var oracle classify.Provider
	if cfg.Oracle.Enabled && cfg.Firestore.ProjectID != "" {
		o, err := classify.NewGeminiOracle(ctx, cfg.Oracle.Model, mappings, log)
		if err != nil {
			log.Warn().Err(err).Msg("Oracle unavailable - continuing without AI classification")
		} else {
			oracle = o
		}
	}

	files := make([]pipeline.File, 0, flag.NArg())
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to read file")
		}
		files = append(files, pipeline.File{Name: filepath.Base(path), Data: data})
	}

	ingestor := pipeline.NewIngestor(parser.New(log), transactions, mappings, mappings, oracle, dedup.DefaultOptions(), log)

	res, err := ingestor.IngestFiles(ctx, *profileID, files)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal().Err(err).Msg("Failed to print result")
	}
}
