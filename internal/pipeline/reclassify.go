package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/txnflow/internal/classify"
	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/store"
)

// ReclassifyScope selects which stored transactions a reclassification run
// may touch.
type ReclassifyScope string

const (
	// ScopeNeedsReview retries only transactions flagged for review.
	ScopeNeedsReview ReclassifyScope = "needsReview"
	// ScopeLowConfidence retries transactions below the confidence threshold.
	ScopeLowConfidence ReclassifyScope = "lowConfidence"
	// ScopeAll retries every eligible transaction.
	ScopeAll ReclassifyScope = "all"
)

// DefaultLowConfidence is the cutoff for ScopeLowConfidence.
const DefaultLowConfidence = 0.7

// ReclassifyResult summarizes one reclassification run.
type ReclassifyResult struct {
	Examined int `json:"examined"`
	Updated  int `json:"updated"`
}

// Reclassify re-runs the mapping tiers over the profile's stored
// transactions. Only records still in the fallback category are eligible;
// user-confirmed categories are never overwritten, and the remote oracle is
// never consulted. Threshold applies to ScopeLowConfidence only; pass 0 for
// the default.
func (in *Ingestor) Reclassify(ctx context.Context, profileID string, scope ReclassifyScope, threshold float64) (*ReclassifyResult, error) {
	if profileID == "" {
		return nil, fmt.Errorf("Reclassify: profile ID is required")
	}
	switch scope {
	case ScopeNeedsReview, ScopeLowConfidence, ScopeAll:
	case "":
		scope = ScopeNeedsReview
	default:
		return nil, fmt.Errorf("Reclassify: unknown scope %q", scope)
	}
	if threshold <= 0 {
		threshold = DefaultLowConfidence
	}

	personal, err := in.mappings.PersonalMappings(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("Reclassify: personal mappings: %w", err)
	}
	keyword, err := in.mappings.KeywordMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reclassify: keyword mappings: %w", err)
	}
	classifier := classify.NewReclassifier(classify.Mappings{Personal: personal, Keyword: keyword}, in.merchants, in.log)

	existing, err := in.transactions.GetTransactions(ctx, profileID, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("Reclassify: %w", err)
	}

	res := &ReclassifyResult{}
	var changed []model.Transaction
	for _, txn := range existing {
		if txn.UserConfirmed || txn.Category != model.CategoryOther {
			continue
		}
		switch scope {
		case ScopeNeedsReview:
			if !txn.NeedsReview {
				continue
			}
		case ScopeLowConfidence:
			if txn.Confidence >= threshold {
				continue
			}
		}
		res.Examined++

		out := classifier.Classify(ctx, txn.OriginalText, txn.Amount)
		if out.Category == txn.Category {
			continue
		}
		txn.Category = out.Category
		txn.Name = out.Name
		txn.Confidence = out.Confidence
		txn.NeedsReview = out.NeedsReview
		txn.ClassificationReason = out.Reason
		if out.Source != "" {
			txn.AICategory = out.Category
		}
		changed = append(changed, txn)
		res.Updated++
	}

	if len(changed) > 0 {
		if err := in.transactions.SaveTransactions(ctx, profileID, changed); err != nil {
			return nil, fmt.Errorf("Reclassify: %w", err)
		}
	}

	in.log.Info().
		Str("profileID", profileID).
		Str("scope", string(scope)).
		Int("examined", res.Examined).
		Int("updated", res.Updated).
		Msg("Reclassification finished")
	return res, nil
}
