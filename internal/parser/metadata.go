package parser

import (
	"regexp"
	"strings"
)

// SourceMetadata identifies which card or account an export came from.
type SourceMetadata struct {
	CardName      string
	CardNumber    string
	AccountNumber string
}

// issuerKeywords maps tokens seen in export headers and filenames to the
// issuer label we display.
var issuerKeywords = []struct {
	token string
	label string
}{
	{"국민은행", "KB국민은행"},
	{"신한은행", "신한은행"},
	{"우리은행", "우리은행"},
	{"하나은행", "하나은행"},
	{"카카오뱅크", "카카오뱅크"},
	{"토스뱅크", "토스뱅크"},
	{"카카오", "카카오뱅크"},
	{"토스", "토스뱅크"},
	{"삼성", "삼성카드"},
	{"신한", "신한카드"},
	{"현대", "현대카드"},
	{"롯데", "롯데카드"},
	{"하나", "하나카드"},
	{"우리", "우리카드"},
	{"국민", "KB카드"},
	{"kb", "KB카드"},
	{"bc", "BC카드"},
	{"농협", "NH농협"},
	{"nh", "NH농협"},
}

var digitRunRe = regexp.MustCompile(`\d{4,}`)

// ScanMetadata inspects the leading rows of a sheet plus the filename for
// issuer names and card/account numbers. Issuers print these above the
// transaction table, so only the first few rows are consulted.
func ScanMetadata(sheet Sheet, filename string) SourceMetadata {
	const maxScan = 10
	var meta SourceMetadata

	for i, row := range sheet.Rows {
		if i >= maxScan {
			break
		}
		for _, cell := range row {
			applyCell(&meta, cell)
		}
	}
	if meta.CardName == "" {
		if label, ok := issuerFromText(filename); ok {
			meta.CardName = label
		}
	}
	if meta.CardNumber == "" {
		if run := digitRunRe.FindString(filename); len(run) >= 4 {
			meta.CardNumber = lastFour(run)
		}
	}
	return meta
}

func applyCell(meta *SourceMetadata, cell string) {
	text := strings.TrimSpace(cell)
	if text == "" {
		return
	}
	lower := strings.ToLower(text)

	if meta.CardName == "" {
		if label, ok := issuerFromText(lower); ok {
			meta.CardName = label
		}
	}

	// Card and account numbers are usually printed in dashed groups;
	// join the digits before slicing so the suffix comes from the full
	// number, not the first group.
	digits := digitsOf(text)
	if len(digits) < 4 {
		return
	}
	switch {
	case strings.Contains(lower, "카드") || strings.Contains(lower, "card"):
		if meta.CardNumber == "" {
			meta.CardNumber = lastFour(digits)
		}
	case strings.Contains(lower, "계좌") || strings.Contains(lower, "account"):
		if meta.AccountNumber == "" {
			meta.AccountNumber = digits
		}
	case len(digits) == 4 && digits == text:
		// A bare four-digit cell near the top is almost always a masked
		// card suffix.
		if meta.CardNumber == "" {
			meta.CardNumber = digits
		}
	}
}

func digitsOf(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func issuerFromText(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range issuerKeywords {
		if strings.Contains(lower, kw.token) {
			return kw.label, true
		}
	}
	return "", false
}

func lastFour(run string) string {
	if len(run) <= 4 {
		return run
	}
	return run[len(run)-4:]
}
