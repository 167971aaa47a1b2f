package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/normalize"
)

// DefaultModelName is the Gemini model used for merchant classification.
const DefaultModelName = "gemini-2.5-flash"

// transferVocabulary lists transfer-style tokens that make model
// classification pointless; such texts stay on the rule tiers.
var transferVocabulary = []string{"이체", "송금", "입금", "출금", "계좌이체", "자동이체"}

// contentGenerator is the slice of the genai client the oracle needs. Kept
// small so tests can swap in a mock model.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOracle is the last cascade tier: it asks Gemini for a category and
// persists confirmed answers into the global merchant mapping so later
// batches resolve without another model call.
type GeminiOracle struct {
	models    contentGenerator
	modelName string
	limiter   *RateLimiter
	merchants MerchantMappings
	log       zerolog.Logger
}

// NewGeminiOracle creates a Gemini-backed oracle. Credentials come from the
// environment the same way the rest of the Google stack picks them up. An
// empty modelName selects DefaultModelName.
func NewGeminiOracle(ctx context.Context, modelName string, merchants MerchantMappings, log zerolog.Logger) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiOracle: create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModelName
	}
	return NewGeminiOracleWithModel(client.Models, modelName, merchants, log), nil
}

// NewGeminiOracleWithModel wires the oracle onto an existing model client.
func NewGeminiOracleWithModel(models contentGenerator, modelName string, merchants MerchantMappings, log zerolog.Logger) *GeminiOracle {
	return &GeminiOracle{
		models:    models,
		modelName: modelName,
		limiter:   NewRateLimiter(),
		merchants: merchants,
		log:       log,
	}
}

// SourceOracle is the tier name the oracle reports in classification
// results.
const SourceOracle = "oracle"

func (o *GeminiOracle) Name() string { return SourceOracle }

// Lookup asks the model for a category. Any failure, an out-of-vocabulary
// answer, or an active cool-down makes the tier pass silently.
func (o *GeminiOracle) Lookup(ctx context.Context, text string) (Match, bool) {
	if isTransferText(text) {
		return Match{}, false
	}

	var category string
	err := o.limiter.Do(func() error {
		var callErr error
		category, callErr = o.classifyMerchant(ctx, text)
		return callErr
	})
	if err != nil {
		if !errors.Is(err, ErrCoolingDown) {
			o.log.Warn().Err(err).Str("text", text).Msg("Oracle classification failed")
		}
		return Match{}, false
	}
	if !model.ValidCategory(category) || category == model.CategoryOther {
		return Match{}, false
	}

	if o.merchants != nil {
		if err := o.merchants.SaveMerchantCategory(ctx, text, category); err != nil {
			o.log.Warn().Err(err).Str("text", text).Msg("Persisting oracle category failed")
		}
	}

	return Match{
		Category:   category,
		Confidence: ConfidenceOracle,
		Reason:     fmt.Sprintf("AI 분류 (%s)", category),
	}, true
}

func (o *GeminiOracle) classifyMerchant(ctx context.Context, text string) (string, error) {
	prompt := "당신은 한국 개인 가계부의 거래 분류기입니다.\n\n" +
		"다음 거래 내역 텍스트를 아래 카테고리 중 정확히 하나로 분류하세요:\n" +
		strings.Join(model.Categories, ", ") + "\n\n" +
		"거래 내역: " + normalize.Merchant(text) + "\n\n" +
		"규칙:\n" +
		"- 카테고리 이름만 출력하세요. 다른 텍스트, 따옴표, 마크다운 없이.\n" +
		"- 확신이 없으면 \"기타\"를 출력하세요.\n"

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := o.models.GenerateContent(ctx, o.modelName, contents, nil)
	if err != nil {
		return "", classifyGenaiError(err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("classifyMerchant: empty response from model")
	}
	return cleanModelAnswer(answer), nil
}

// classifyGenaiError maps genai quota rejections onto QuotaError, honoring
// the server's RetryInfo delay when present.
func classifyGenaiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("classifyMerchant: generate content: %w", err)
	}
	if apiErr.Code != 429 {
		return fmt.Errorf("classifyMerchant: generate content: %w", err)
	}
	return &QuotaError{RetryDelay: retryDelayFromDetails(apiErr.Details)}
}

func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, d := range details {
		t, _ := d["@type"].(string)
		if !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if raw == "" {
			continue
		}
		if delay, err := time.ParseDuration(raw); err == nil {
			return delay
		}
	}
	return 0
}

// cleanModelAnswer strips fences and quotes the model may wrap around the
// bare category name.
func cleanModelAnswer(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	s = strings.Trim(s, `"'`)
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func isTransferText(text string) bool {
	for _, word := range transferVocabulary {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
