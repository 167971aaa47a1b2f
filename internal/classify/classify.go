// Package classify assigns a spending category to transaction text through an
// ordered cascade of mapping providers: personal mapping, keyword mapping,
// built-in keyword table, global merchant mapping, then an optional remote
// oracle. The first provider that answers wins.
package classify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/normalize"
)

// LargeAmountThreshold marks transactions that always need a human look when
// they end up unclassified.
const LargeAmountThreshold = 1_000_000

// Tier confidence constants for the cascade.
const (
	ConfidencePersonal = 0.95
	ConfidenceKeyword  = 0.90
	ConfidenceBuiltin  = 0.80
	ConfidenceGlobal   = 0.85
	ConfidenceOracle   = 0.85
	ConfidenceDefault  = 0.30

	// ConfidenceReclassify is the fallback confidence when re-running
	// already-stored transactions through the mapping tiers.
	ConfidenceReclassify = 0.50
)

// Match is one provider's answer for a piece of transaction text.
type Match struct {
	Category   string
	Confidence float64
	Reason     string
}

// Provider is one tier of the classification cascade.
type Provider interface {
	// Name identifies the tier in logs and audit strings.
	Name() string
	// Lookup returns a category match for the text, or ok=false when this
	// tier has no answer. Providers absorb their own failures: a broken
	// tier answers ok=false, never an error.
	Lookup(ctx context.Context, text string) (Match, bool)
}

// Result is the final classification outcome for a transaction. Source is
// the name of the tier that answered, empty for the default outcome.
type Result struct {
	Category    string
	Name        string
	Confidence  float64
	NeedsReview bool
	Reason      string
	Source      string
}

// Mappings carries the caller-supplied mapping snapshots for one batch.
// Personal is keyed by the trimmed, case-folded transaction text; Keyword is
// keyed by substring.
type Mappings struct {
	Personal map[string]string
	Keyword  map[string]string
}

// MerchantMappings is the global merchant-name mapping store. Implementations
// key entries by the normalized merchant name (normalize.Merchant) on both
// read and write.
type MerchantMappings interface {
	MerchantCategory(ctx context.Context, merchantName string) (string, bool, error)
	SaveMerchantCategory(ctx context.Context, merchantName, category string) error
}

// Classifier runs the cascade over a fixed provider order.
type Classifier struct {
	providers   []Provider
	defaultConf float64
	log         zerolog.Logger
}

// New builds the standard ingest cascade. merchants and oracle may be nil,
// which drops the corresponding tiers.
func New(mappings Mappings, merchants MerchantMappings, oracle Provider, log zerolog.Logger) *Classifier {
	providers := []Provider{
		&personalProvider{mappings: mappings.Personal},
		&keywordProvider{mappings: mappings.Keyword},
		&builtinProvider{},
	}
	if merchants != nil {
		providers = append(providers, &globalProvider{store: merchants, log: log})
	}
	if oracle != nil {
		providers = append(providers, oracle)
	}
	return &Classifier{providers: providers, defaultConf: ConfidenceDefault, log: log}
}

// NewReclassifier builds the cascade used when re-running stored
// transactions: mapping tiers only, no built-in table and no oracle, and a
// milder default confidence since these records already passed ingest once.
func NewReclassifier(mappings Mappings, merchants MerchantMappings, log zerolog.Logger) *Classifier {
	providers := []Provider{
		&personalProvider{mappings: mappings.Personal},
		&keywordProvider{mappings: mappings.Keyword},
	}
	if merchants != nil {
		providers = append(providers, &globalProvider{store: merchants, log: log})
	}
	return &Classifier{providers: providers, defaultConf: ConfidenceReclassify, log: log}
}

// Classify resolves category, display name, confidence and review flag for
// one piece of transaction text. It never fails: every error path degrades to
// the default low-confidence outcome.
func (c *Classifier) Classify(ctx context.Context, text string, amount int64) Result {
	res := Result{
		Category:    model.CategoryOther,
		Confidence:  c.defaultConf,
		NeedsReview: true,
		Reason:      "매칭 규칙 없음 - 검토 필요",
	}

	for _, p := range c.providers {
		match, ok := p.Lookup(ctx, text)
		if !ok {
			continue
		}
		res.Category = match.Category
		res.Confidence = match.Confidence
		res.NeedsReview = false
		res.Reason = match.Reason
		res.Source = p.Name()
		c.log.Debug().
			Str("tier", p.Name()).
			Str("text", text).
			Str("category", match.Category).
			Float64("confidence", match.Confidence).
			Msg("Classification tier matched")
		break
	}

	res.Name = displayName(text)

	// Large unclassified transactions always need a human look.
	if amount > LargeAmountThreshold && res.Category == model.CategoryOther {
		res.NeedsReview = true
		res.Confidence = ConfidenceDefault
		res.Reason = fmt.Sprintf("큰 금액(%d원)이지만 카테고리 매칭 없음 - 검토 필요", amount)
	}

	return res
}

// displayName picks the unified brand label when one matches, otherwise a
// cleaned-up form of the raw text.
func displayName(text string) string {
	if display, ok := normalize.DisplayName(text); ok {
		return display
	}
	return normalize.CleanLabel(text)
}

// personalProvider answers from the user's own confirmed name→category map.
type personalProvider struct {
	mappings map[string]string
}

func (p *personalProvider) Name() string { return "personal" }

func (p *personalProvider) Lookup(_ context.Context, text string) (Match, bool) {
	category, ok := p.mappings[normalize.Key(text)]
	if !ok {
		return Match{}, false
	}
	return Match{
		Category:   category,
		Confidence: ConfidencePersonal,
		Reason:     fmt.Sprintf("사용자가 이전에 설정한 카테고리 (%s)", category),
	}, true
}

// keywordProvider answers from the manually curated substring→category map
// shared across all profiles.
type keywordProvider struct {
	mappings map[string]string
}

func (p *keywordProvider) Name() string { return "keyword" }

func (p *keywordProvider) Lookup(_ context.Context, text string) (Match, bool) {
	lower := normalize.Key(text)
	for keyword, category := range p.mappings {
		if keyword == "" {
			continue
		}
		if containsFold(lower, keyword) {
			return Match{
				Category:   category,
				Confidence: ConfidenceKeyword,
				Reason:     fmt.Sprintf("키워드 매핑: %q -> %q", keyword, category),
			}, true
		}
	}
	return Match{}, false
}

// globalProvider answers from the oracle-populated merchant mapping, keyed by
// the normalized merchant name.
type globalProvider struct {
	store MerchantMappings
	log   zerolog.Logger
}

func (p *globalProvider) Name() string { return "global" }

func (p *globalProvider) Lookup(ctx context.Context, text string) (Match, bool) {
	category, ok, err := p.store.MerchantCategory(ctx, text)
	if err != nil {
		p.log.Warn().Err(err).Str("text", text).Msg("Global merchant mapping lookup failed")
		return Match{}, false
	}
	if !ok {
		return Match{}, false
	}
	return Match{
		Category:   category,
		Confidence: ConfidenceGlobal,
		Reason:     fmt.Sprintf("전역 가맹점 매핑 적용 (%s)", category),
	}, true
}
