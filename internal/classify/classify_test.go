package classify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/txnflow/internal/model"
)

type mockMerchants struct {
	categories map[string]string
	saved      map[string]string
}

func newMockMerchants() *mockMerchants {
	return &mockMerchants{
		categories: map[string]string{},
		saved:      map[string]string{},
	}
}

func (m *mockMerchants) MerchantCategory(_ context.Context, name string) (string, bool, error) {
	cat, ok := m.categories[name]
	return cat, ok, nil
}

func (m *mockMerchants) SaveMerchantCategory(_ context.Context, name, category string) error {
	m.saved[name] = category
	return nil
}

type mockGenerator struct {
	answer string
	err    error
	calls  int
}

func (m *mockGenerator) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: m.answer}}}},
		},
	}, nil
}

func TestClassifyPersonalMapping(t *testing.T) {
	c := New(Mappings{
		Personal: map[string]string{"스타벅스 강남점": "식비"},
	}, nil, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "  스타벅스 강남점  ", 5500)
	if res.Category != "식비" {
		t.Errorf("category = %q, want 식비", res.Category)
	}
	if res.Confidence != ConfidencePersonal {
		t.Errorf("confidence = %v, want %v", res.Confidence, ConfidencePersonal)
	}
	if res.NeedsReview {
		t.Error("personal mapping match should not need review")
	}
}

func TestClassifyKeywordMapping(t *testing.T) {
	c := New(Mappings{
		Keyword: map[string]string{"넷플릭스": "유흥"},
	}, nil, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "넷플릭스 월구독", 17000)
	if res.Category != "유흥" || res.Confidence != ConfidenceKeyword {
		t.Errorf("got (%q, %v), want (유흥, %v)", res.Category, res.Confidence, ConfidenceKeyword)
	}
}

func TestClassifyBuiltinKeywords(t *testing.T) {
	c := New(Mappings{}, nil, nil, zerolog.Nop())

	tests := []struct {
		text     string
		category string
	}{
		{"스타벅스 역삼점", "식비"},
		{"GS25 서초점", "식비"},
		{"카카오택시", "교통비"},
		{"GS칼텍스 주유", "주유비"},
		{"쿠팡 로켓배송", "쇼핑"},
		{"CGV 용산", "유흥"},
		{"서울대학교병원", "의료"},
	}
	for _, tt := range tests {
		res := c.Classify(context.Background(), tt.text, 10000)
		if res.Category != tt.category {
			t.Errorf("Classify(%q) category = %q, want %q", tt.text, res.Category, tt.category)
		}
		if res.Confidence != ConfidenceBuiltin {
			t.Errorf("Classify(%q) confidence = %v, want %v", tt.text, res.Confidence, ConfidenceBuiltin)
		}
	}
}

func TestClassifyPersonalWinsOverBuiltin(t *testing.T) {
	c := New(Mappings{
		Personal: map[string]string{"스타벅스 역삼점": "교육"},
	}, nil, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "스타벅스 역삼점", 5500)
	if res.Category != "교육" || res.Confidence != ConfidencePersonal {
		t.Errorf("got (%q, %v), want personal mapping to win", res.Category, res.Confidence)
	}
}

func TestClassifyGlobalMapping(t *testing.T) {
	merchants := newMockMerchants()
	merchants.categories["동네수선집"] = "쇼핑"

	c := New(Mappings{}, merchants, nil, zerolog.Nop())
	res := c.Classify(context.Background(), "동네수선집", 12000)
	if res.Category != "쇼핑" || res.Confidence != ConfidenceGlobal {
		t.Errorf("got (%q, %v), want (쇼핑, %v)", res.Category, res.Confidence, ConfidenceGlobal)
	}
}

func TestClassifyDefault(t *testing.T) {
	c := New(Mappings{}, nil, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "알수없는상호", 9000)
	if res.Category != model.CategoryOther {
		t.Errorf("category = %q, want %q", res.Category, model.CategoryOther)
	}
	if res.Confidence != ConfidenceDefault {
		t.Errorf("confidence = %v, want %v", res.Confidence, ConfidenceDefault)
	}
	if !res.NeedsReview {
		t.Error("unmatched text must need review")
	}
}

func TestClassifyLargeAmountNeedsReview(t *testing.T) {
	c := New(Mappings{}, nil, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "알수없는상호", 2_000_000)
	if !res.NeedsReview {
		t.Error("large unclassified amount must need review")
	}
	if res.Confidence != ConfidenceDefault {
		t.Errorf("confidence = %v, want %v", res.Confidence, ConfidenceDefault)
	}
	if !strings.Contains(res.Reason, "큰 금액") {
		t.Errorf("reason = %q, want large-amount notice", res.Reason)
	}
}

func TestClassifyLargeAmountMatchedKeepsTier(t *testing.T) {
	c := New(Mappings{}, nil, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "현대백화점 본점", 1_500_000)
	if res.Category != "쇼핑" || res.NeedsReview {
		t.Errorf("got (%q, review=%v); matched large amounts keep their tier", res.Category, res.NeedsReview)
	}
}

func TestReclassifierSkipsBuiltin(t *testing.T) {
	c := NewReclassifier(Mappings{}, nil, zerolog.Nop())

	res := c.Classify(context.Background(), "스타벅스 역삼점", 5500)
	if res.Category != model.CategoryOther {
		t.Errorf("category = %q, want %q (built-in table disabled)", res.Category, model.CategoryOther)
	}
	if res.Confidence != ConfidenceReclassify {
		t.Errorf("confidence = %v, want %v", res.Confidence, ConfidenceReclassify)
	}
}

func TestOracleSkipsTransferText(t *testing.T) {
	gen := &mockGenerator{answer: "식비"}
	o := NewGeminiOracleWithModel(gen, DefaultModelName, nil, zerolog.Nop())

	if _, ok := o.Lookup(context.Background(), "홍길동 계좌이체"); ok {
		t.Error("transfer text must not reach the oracle")
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times for transfer text, want 0", gen.calls)
	}
}

func TestOraclePersistsCategory(t *testing.T) {
	gen := &mockGenerator{answer: "식비"}
	merchants := newMockMerchants()
	o := NewGeminiOracleWithModel(gen, DefaultModelName, merchants, zerolog.Nop())

	match, ok := o.Lookup(context.Background(), "동네김밥집")
	if !ok {
		t.Fatal("expected oracle match")
	}
	if match.Category != "식비" || match.Confidence != ConfidenceOracle {
		t.Errorf("got (%q, %v), want (식비, %v)", match.Category, match.Confidence, ConfidenceOracle)
	}
	if merchants.saved["동네김밥집"] != "식비" {
		t.Errorf("saved mappings = %v, want 동네김밥집 -> 식비", merchants.saved)
	}
}

func TestOracleRejectsUnknownCategory(t *testing.T) {
	gen := &mockGenerator{answer: "우주여행"}
	o := NewGeminiOracleWithModel(gen, DefaultModelName, nil, zerolog.Nop())

	if _, ok := o.Lookup(context.Background(), "동네김밥집"); ok {
		t.Error("out-of-vocabulary answer must not produce a match")
	}
}

func TestOracleQuotaStartsCooldown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	gen := &mockGenerator{err: genai.APIError{
		Code: 429,
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "30s"},
		},
	}}
	o := NewGeminiOracleWithModel(gen, DefaultModelName, nil, zerolog.Nop())
	o.limiter = NewRateLimiterWithClock(clock)

	if _, ok := o.Lookup(context.Background(), "동네김밥집"); ok {
		t.Fatal("quota rejection must not produce a match")
	}
	if gen.calls != 1 {
		t.Fatalf("model calls = %d, want 1", gen.calls)
	}

	// Inside the window the model is not touched again.
	now = now.Add(10 * time.Second)
	gen.answer, gen.err = "식비", nil
	if _, ok := o.Lookup(context.Background(), "다른김밥집"); ok {
		t.Error("call inside cool-down window must pass silently")
	}
	if gen.calls != 1 {
		t.Errorf("model calls = %d during cool-down, want 1", gen.calls)
	}

	// After the server-suggested delay calls flow again.
	now = now.Add(25 * time.Second)
	if _, ok := o.Lookup(context.Background(), "다른김밥집"); !ok {
		t.Error("call after cool-down window should reach the model")
	}
}

func TestRateLimiterDefaultCooldown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiterWithClock(func() time.Time { return now })

	if err := r.Do(func() error { return &QuotaError{} }); err == nil {
		t.Fatal("expected quota error to propagate")
	}

	now = now.Add(DefaultCooldown - time.Second)
	if err := r.Do(func() error { return nil }); err != ErrCoolingDown {
		t.Errorf("err = %v, want ErrCoolingDown", err)
	}

	now = now.Add(2 * time.Second)
	if err := r.Do(func() error { return nil }); err != nil {
		t.Errorf("err = %v after cool-down, want nil", err)
	}
}

func TestCleanModelAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"식비", "식비"},
		{"  식비\n", "식비"},
		{"\"식비\"", "식비"},
		{"```\n식비\n```", "식비"},
		{"식비\n설명이 더 붙은 경우", "식비"},
	}
	for _, tt := range tests {
		if got := cleanModelAnswer(tt.raw); got != tt.want {
			t.Errorf("cleanModelAnswer(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
