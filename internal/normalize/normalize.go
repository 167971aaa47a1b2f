// Package normalize canonicalizes Korean merchant and transaction labels so
// they can be used as stable mapping keys. The same normalization must be
// applied when writing and when reading the global merchant mapping, or
// lookups silently miss.
package normalize

import (
	"regexp"
	"strings"
)

var (
	corpPrefixRe = regexp.MustCompile(`(?i)^(주식회사|유한회사|합자회사|합명회사|\(주\)|\(유\))\s*`)
	bankPrefixRe = regexp.MustCompile(`(?i)^(삼성|신한|kb|국민|현대|롯데|하나|bc|우리|nh|농협|카카오|토스|국민은행|신한은행|우리은행|하나은행|kb국민|kb국민은행)\s*`)
	bankTokenRe  = regexp.MustCompile(`(?i)\s*(카드|은행|뱅크|bank|card)\s*`)

	branchSuffixRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+[가-힣a-zA-Z0-9\s]*점\s*$`),
		regexp.MustCompile(`(?i)\s+[가-힣a-zA-Z0-9\s]*지점\s*$`),
		regexp.MustCompile(`(?i)\s+[가-힣a-zA-Z0-9\s]*매장\s*$`),
		regexp.MustCompile(`(?i)\s+[가-힣a-zA-Z0-9\s]*센터\s*$`),
		regexp.MustCompile(`(?i)\s+[가-힣a-zA-Z0-9\s]*본점\s*$`),
	}

	approvalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*승인번호\s*:?\s*\d+`),
		regexp.MustCompile(`(?i)\s*거래번호\s*:?\s*\d+`),
		regexp.MustCompile(`(?i)\s*승인\s*:?\s*\d+`),
	}

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// regions feed the "<region>점" suffix strip, e.g. "맥도날드 평내점" → "맥도날드".
var regions = []string{
	"평내", "호평", "마석", "강남", "강북", "서울", "부산", "대구", "인천", "광주", "대전", "울산",
	"수원", "성남", "고양", "용인", "부천", "안산", "안양", "남양주", "화성", "평택", "의정부",
	"시흥", "김포", "광명", "군포", "이천", "양주", "오산", "구리", "안성", "포천", "의왕", "하남",
	"여주", "양평", "동두천", "과천", "가평", "연천", "hongdae", "gangnam", "myeongdong",
}

var regionRes = buildRegionRes()

func buildRegionRes() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(regions))
	for _, r := range regions {
		res = append(res, regexp.MustCompile(`(?i)\s+`+regexp.QuoteMeta(r)+`\s*점\s*$`))
	}
	return res
}

// Merchant canonicalizes a merchant name into a mapping key: corporate and
// card/bank prefixes stripped, branch/outlet suffixes stripped, approval
// phrases removed, whitespace collapsed, lower-cased.
func Merchant(name string) string {
	n := strings.TrimSpace(name)

	n = corpPrefixRe.ReplaceAllString(n, "")
	n = bankPrefixRe.ReplaceAllString(n, "")
	n = bankTokenRe.ReplaceAllString(n, "")

	for _, re := range branchSuffixRes {
		n = re.ReplaceAllString(n, "")
	}
	for _, re := range regionRes {
		n = re.ReplaceAllString(n, "")
	}
	for _, re := range approvalRes {
		n = re.ReplaceAllString(n, "")
	}

	n = whitespaceRe.ReplaceAllString(strings.TrimSpace(n), " ")
	return strings.ToLower(n)
}

// Key folds free text into the personal-mapping key form.
func Key(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// displayNames maps brand keywords to a unified display label, smoothing over
// per-issuer spelling differences of the same merchant.
var displayNames = []struct {
	keyword string
	display string
}{
	{"스타벅스", "카페/음료"}, {"투썸", "카페/음료"}, {"이디야", "카페/음료"},
	{"카페베네", "카페/음료"}, {"할리스", "카페/음료"},
	{"맥도날드", "패스트푸드"}, {"롯데리아", "패스트푸드"}, {"버거킹", "패스트푸드"},
	{"맘스터치", "패스트푸드"}, {"kfc", "패스트푸드"},
	{"쿠팡", "온라인쇼핑"}, {"11번가", "온라인쇼핑"}, {"지마켓", "온라인쇼핑"},
	{"g마켓", "온라인쇼핑"}, {"옥션", "온라인쇼핑"}, {"인터파크", "온라인쇼핑"},
	{"네이버쇼핑", "온라인쇼핑"}, {"티몬", "온라인쇼핑"}, {"위메프", "온라인쇼핑"},
	{"이마트", "대형마트"}, {"롯데마트", "대형마트"}, {"홈플러스", "대형마트"},
	{"코스트코", "대형마트"}, {"트레이더스", "대형마트"},
	{"gs25", "편의점"}, {"cu", "편의점"}, {"세븐일레븐", "편의점"}, {"이마트24", "편의점"},
	{"배달의민족", "배달앱"}, {"배민", "배달앱"}, {"요기요", "배달앱"}, {"쿠팡이츠", "배달앱"},
	{"카카오택시", "택시"}, {"우버", "택시"},
	{"티머니", "교통카드"}, {"선불카드", "교통카드"},
	{"kt", "통신비"}, {"skt", "통신비"}, {"lg", "통신비"}, {"lg유플러스", "통신비"},
	{"한국전력", "전기요금"}, {"한전", "전기요금"},
}

// DisplayName returns the unified display label for a known brand, matched by
// case-folded substring. ok is false when no brand keyword matches.
func DisplayName(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, e := range displayNames {
		if strings.Contains(lower, e.keyword) {
			return e.display, true
		}
	}
	return "", false
}

// CleanLabel strips issuer prefixes and approval phrases from a label while
// keeping its original case, for use as a display name. Falls back to the
// input when stripping leaves nothing.
func CleanLabel(text string) string {
	n := bankPrefixRe.ReplaceAllString(text, "")
	n = bankTokenRe.ReplaceAllString(n, "")
	for _, re := range approvalRes {
		n = re.ReplaceAllString(n, "")
	}
	n = whitespaceRe.ReplaceAllString(strings.TrimSpace(n), " ")
	if n == "" {
		return text
	}
	return n
}
