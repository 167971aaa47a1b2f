package normalize

import "testing"

func TestMerchant(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "branch suffix stripped",
			input: "스타벅스 강남점",
			want:  "스타벅스",
		},
		{
			name:  "bare brand unchanged",
			input: "스타벅스",
			want:  "스타벅스",
		},
		{
			name:  "corporate prefix stripped",
			input: "주식회사 스타벅스",
			want:  "스타벅스",
		},
		{
			name:  "card issuer prefix stripped",
			input: "신한카드 맥도날드 평내점",
			want:  "맥도날드",
		},
		{
			name:  "approval number stripped",
			input: "이마트 승인번호: 12345678",
			want:  "이마트",
		},
		{
			name:  "lower cased",
			input: "GS칼텍스",
			want:  "gs칼텍스",
		},
		{
			name:  "whitespace collapsed",
			input: "  김밥  천국  ",
			want:  "김밥 천국",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merchant(tt.input)
			if got != tt.want {
				t.Errorf("Merchant(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMerchantBranchEqualsBare(t *testing.T) {
	// A branch-suffixed label must collapse onto the same mapping key as the
	// bare brand so both hit the same global merchant mapping entry.
	if Merchant("스타벅스 강남점") != Merchant("스타벅스") {
		t.Errorf("branch name %q and bare name %q map to different keys",
			Merchant("스타벅스 강남점"), Merchant("스타벅스"))
	}
}

func TestKey(t *testing.T) {
	if got := Key("  Starbucks Coffee "); got != "starbucks coffee" {
		t.Errorf("Key() = %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"스타벅스 강남점", "카페/음료", true},
		{"맥도날드 평내점", "패스트푸드", true},
		{"GS25 호평점", "편의점", true},
		{"동네 식당", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := DisplayName(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("DisplayName(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"신한카드 김밥천국 승인번호: 998877", "김밥천국"},
		{"김밥천국", "김밥천국"},
		{"카드", "카드"}, // stripping everything falls back to the input
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanLabel(tt.input); got != tt.want {
				t.Errorf("CleanLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
