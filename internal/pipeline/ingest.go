package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/parser"
	"github.com/dvloznov/txnflow/internal/store"
)

// Ingestor wires the parsing, classification, dedup and persistence steps
// into a runnable ingestion pipeline for one profile.
type Ingestor struct {
	parser       *parser.Parser
	transactions store.TransactionStore
	mappings     store.MappingStore
	merchants    classify.MerchantMappings
	oracle       classify.Provider
	dedupOpts    dedup.Options
	log          zerolog.Logger
}

// NewIngestor creates an Ingestor. The oracle may be nil, in which case the
// classification cascade stops at the mapping tiers.
func NewIngestor(
	p *parser.Parser,
	transactions store.TransactionStore,
	mappings store.MappingStore,
	merchants classify.MerchantMappings,
	oracle classify.Provider,
	opts dedup.Options,
	log zerolog.Logger,
) *Ingestor {
	return &Ingestor{
		parser:       p,
		transactions: transactions,
		mappings:     mappings,
		merchants:    merchants,
		oracle:       oracle,
		dedupOpts:    opts,
		log:          log,
	}
}

// IngestResult summarizes one ingestion run. Count is the number of rows
// parsed across all files, before duplicate filtering.
type IngestResult struct {
	Count        int                 `json:"count"`
	Stored       int                 `json:"stored"`
	Duplicates   int                 `json:"duplicates"`
	Ambiguous    int                 `json:"ambiguous"`
	Cancelled    int                 `json:"cancelled"`
	SkippedRows  int                 `json:"skippedRows"`
	SkippedFiles []SkippedFile       `json:"skippedFiles,omitempty"`
	Transactions []model.Transaction `json:"transactions"`
	Flagged      []model.Transaction `json:"ambiguousTransactions,omitempty"`
}

// IngestFile runs the full pipeline for a single upload.
func (in *Ingestor) IngestFile(ctx context.Context, profileID, fileName string, data []byte) (*IngestResult, error) {
	return in.IngestFiles(ctx, profileID, []File{{Name: fileName, Data: data}})
}

// IngestFiles runs the full pipeline for a batch of uploads. The batch is
// merged as one stream so cancellations and duplicates are matched across
// files.
func (in *Ingestor) IngestFiles(ctx context.Context, profileID string, files []File) (*IngestResult, error) {
	if profileID == "" {
		return nil, fmt.Errorf("IngestFiles: profile ID is required")
	}
	if err := validateFiles(files); err != nil {
		return nil, fmt.Errorf("IngestFiles: %w", err)
	}

	state := &PipelineState{
		ProfileID: profileID,
		Files:     files,
	}

	p := NewPipeline(
		&ParseFilesStep{Parser: in.parser, Log: in.log},
		&LoadMappingsStep{Mappings: in.mappings},
		&ClassifyStep{Merchants: in.merchants, Oracle: in.oracle, Log: in.log},
		&LoadExistingStep{Transactions: in.transactions},
		&MergeStep{Options: in.dedupOpts},
		&PersistStep{Transactions: in.transactions},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("IngestFiles: %w", err)
	}

	res := &IngestResult{
		Count:        len(state.Batch),
		Stored:       len(state.Merge.Accepted) + len(state.Merge.Ambiguous),
		Duplicates:   len(state.Merge.Duplicates),
		Ambiguous:    len(state.Merge.Ambiguous),
		Cancelled:    len(state.Merge.CancelledIDs),
		SkippedRows:  state.SkippedRows,
		SkippedFiles: state.SkippedFiles,
		Transactions: state.Merge.Accepted,
		Flagged:      state.Merge.Ambiguous,
	}

	in.log.Info().
		Str("profileID", profileID).
		Int("files", len(files)).
		Int("parsed", res.Count).
		Int("stored", res.Stored).
		Int("duplicates", res.Duplicates).
		Int("ambiguous", res.Ambiguous).
		Int("cancelled", res.Cancelled).
		Msg("Ingestion finished")
	return res, nil
}
