package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/parser"
	"github.com/dvloznov/txnflow/internal/store"
)

// Step 1: ParseFilesStep parses every upload into draft transactions.
// Per-file failures are recorded and skipped rather than failing the batch.
type ParseFilesStep struct {
	Parser *parser.Parser
	Log    zerolog.Logger
}

func (s *ParseFilesStep) Execute(_ context.Context, state *PipelineState) error {
	for _, file := range state.Files {
		res, err := s.Parser.Parse(file.Name, file.Data, state.ProfileID)
		if err != nil {
			s.Log.Warn().Err(err).Str("file", file.Name).Msg("Skipping unparseable file")
			state.SkippedFiles = append(state.SkippedFiles, SkippedFile{
				Name:   file.Name,
				Reason: err.Error(),
			})
			continue
		}
		state.Batch = append(state.Batch, res.Transactions...)
		state.SkippedRows += res.Skipped
	}
	if len(state.Batch) == 0 && len(state.SkippedFiles) == len(state.Files) {
		return fmt.Errorf("ParseFilesStep: no file in the batch could be parsed")
	}

	// A multi-file batch merges as one stream, ordered by datetime.
	sort.Slice(state.Batch, func(i, j int) bool {
		return state.Batch[i].SortKey() < state.Batch[j].SortKey()
	})
	return nil
}

// Step 2: LoadMappingsStep snapshots the mapping tiers for this run.
type LoadMappingsStep struct {
	Mappings store.MappingStore
}

func (s *LoadMappingsStep) Execute(ctx context.Context, state *PipelineState) error {
	personal, err := s.Mappings.PersonalMappings(ctx, state.ProfileID)
	if err != nil {
		return fmt.Errorf("LoadMappingsStep: personal mappings: %w", err)
	}
	keyword, err := s.Mappings.KeywordMappings(ctx)
	if err != nil {
		return fmt.Errorf("LoadMappingsStep: keyword mappings: %w", err)
	}
	state.Mappings = classify.Mappings{Personal: personal, Keyword: keyword}
	return nil
}

// Step 3: ClassifyStep assigns categories to drafts the file itself did not
// categorize.
type ClassifyStep struct {
	Merchants classify.MerchantMappings
	Oracle    classify.Provider
	Log       zerolog.Logger
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	classifier := classify.New(state.Mappings, s.Merchants, s.Oracle, s.Log)
	for i := range state.Batch {
		txn := &state.Batch[i]
		if txn.Category != "" {
			continue
		}
		res := classifier.Classify(ctx, txn.OriginalText, txn.Amount)
		txn.Category = res.Category
		txn.Name = res.Name
		txn.Confidence = res.Confidence
		txn.NeedsReview = txn.NeedsReview || res.NeedsReview
		txn.ClassificationReason = res.Reason
		// AICategory tracks the last category the cascade assigned, so a
		// user override leaves it behind as the machine's opinion.
		if res.Source != "" {
			txn.AICategory = res.Category
		}
	}
	return nil
}

// Step 4: LoadExistingStep reads the profile's stored set for duplicate and
// cancellation matching. The snapshot is not transactional: a concurrent
// upload for the same profile can slip a duplicate past this merge.
type LoadExistingStep struct {
	Transactions store.TransactionStore
}

func (s *LoadExistingStep) Execute(ctx context.Context, state *PipelineState) error {
	existing, err := s.Transactions.GetTransactions(ctx, state.ProfileID, store.TransactionFilter{})
	if err != nil {
		return fmt.Errorf("LoadExistingStep: %w", err)
	}
	state.Existing = existing
	return nil
}

// Step 5: MergeStep runs cancellation matching and duplicate scoring.
type MergeStep struct {
	Options dedup.Options
}

func (s *MergeStep) Execute(_ context.Context, state *PipelineState) error {
	state.Merge = dedup.Merge(state.Batch, state.Existing, s.Options)
	return nil
}

// Step 6: PersistStep applies the merge outcome in one store batch: deletes
// for cancelled originals, sets for accepted and flagged records.
type PersistStep struct {
	Transactions store.TransactionStore
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	save := make([]model.Transaction, 0, len(state.Merge.Accepted)+len(state.Merge.Ambiguous))
	save = append(save, state.Merge.Accepted...)
	save = append(save, state.Merge.Ambiguous...)

	if err := s.Transactions.MergeTransactions(ctx, state.ProfileID, save, state.Merge.RemovedExistingIDs); err != nil {
		return fmt.Errorf("PersistStep: %w", err)
	}
	return nil
}
