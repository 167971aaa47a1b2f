package classify

import (
	"context"
	"fmt"
	"strings"
)

// builtinKeywords maps each category to the merchant keywords that imply it.
// Matching is a case-folded substring scan; the first category whose list
// contains a hit wins, so ordering within builtinOrder matters.
var builtinKeywords = map[string][]string{
	"식비": {
		"스타벅스", "투썸", "이디야", "카페베네", "할리스", "탐앤탐스", "카페", "커피", "음료", "라떼", "아메리카노",
		"맥도날드", "롯데리아", "버거킹", "맘스터치", "kfc", "서브웨이", "도미노", "피자헛", "피자알볼로",
		"치킨", "교촌", "bbq", "bhc", "네네", "처갓집",
		"피자", "피자나라", "피자스쿨",
		"배달", "배민", "배달의민족", "요기요", "쿠팡이츠", "우아한형제들", "배달통",
		"식당", "레스토랑", "한식", "중식", "일식", "양식", "돈까스", "냉면", "국수", "국수면", "라면", "우동", "김밥", "분식",
		"삼겹살", "갈비", "족발", "보쌈", "족발보쌈", "생선회", "회식", "회집", "횟집", "초밥", "찜", "탕", "찌개",
		"편의점", "gs25", "cu", "세븐일레븐", "이마트24", "미니스톱",
	},
	"교통비": {
		"지하철", "버스", "택시", "카카오택시", "우버", "티머니", "교통카드", "선불카드",
		"주차", "주차장", "주차요금", "고속도로", "톨게이트", "하이패스", "하이웨이",
		"ktx", "srt", "기차", "철도", "항공", "비행기", "렌터카", "카셰어링", "쏘카", "그린카",
	},
	"주유비": {
		"주유소", "gs칼텍스", "sk에너지", "s-oil", "현대오일뱅크", "주유", "휘발유", "경유",
		"lpg", "lng", "셀프주유소", "주유비", "연료", "가스충전", "cng",
	},
	"쇼핑": {
		"쿠팡", "11번가", "옥션", "지마켓", "인터파크", "아마존", "네이버쇼핑", "티몬", "위메프",
		"당근마켓", "번개장터", "중고나라", "중고거래",
		"이마트", "롯데마트", "홈플러스", "코스트코", "트레이더스", "마트", "할인마트",
		"백화점", "롯데백화점", "신세계", "현대백화점", "갤러리아", "하이마트", "전자랜드", "g마켓",
		"다이소", "아성다이소", "잡화점", "100원", "백원샵", "원샵", "원스토어",
		"의류", "의상", "패션", "신발", "가방", "시계", "액세서리", "옷가게", "의류매장",
		"생활용품", "화장품", "세제", "샴푸", "비누",
	},
	"통신비": {
		"kt", "skt", "lg", "lg유플러스", "통신", "요금", "이동통신", "휴대폰", "스마트폰",
		"통신요금", "통신비", "요금제", "데이터", "인터넷", "와이파이", "wifi",
		"네이버", "카카오", "구글", "애플", "아이폰", "갤럭시",
	},
	"공과금": {
		"전기", "가스", "수도", "전기요금", "가스요금", "수도요금", "한전", "한국전력",
		"지역난방", "난방", "관리비", "아파트관리비", "월세", "전세", "보증금",
		"tv수신료", "방송수신료", "케이블", "iptv",
	},
	"보험": {
		"보험", "삼성화재", "현대해상", "db손해보험", "한화손해보험", "롯데손해보험",
		"생명보험", "손해보험", "건강보험", "의료보험", "자동차보험", "화재보험",
	},
	"의료": {
		"병원", "약국", "의원", "치과", "안과", "처방약", "의약품", "진료", "검진", "건강검진",
		"치료", "수술", "입원", "외래", "응급실", "한의원", "한방", "물리치료",
	},
	"교육": {
		"학원", "교재", "도서", "서적", "책방", "서점", "교육", "과외", "입시",
		"어학원", "영어학원", "수학학원", "과학학원", "예체능", "미술", "음악", "체육",
		"유치원", "어린이집", "대학교", "등록금", "수강료", "강의", "온라인강의", "인강",
	},
	"유흥": {
		"술집", "주점", "바", "펜", "클럽", "노래방", "pc방", "오락실", "게임", "게임방",
		"영화", "영화관", "cgv", "롯데시네마", "메가박스", "콘서트", "공연", "뮤지컬",
	},
	"급여": {
		"급여", "월급", "월급여", "급여이체", "월급이체", "월급여이체", "급여입금", "월급입금", "월급여입금",
	},
	"용돈": {
		"용돈", "이체", "송금", "계좌이체", "입금", "출금", "이체수수료",
	},
	"저축/투자": {
		"적금", "예금", "정기예금", "정기적금", "적립식", "펀드", "주식", "투자", "증권",
		"계좌", "입출금", "자동이체", "자동납입",
	},
	"대출/이자": {
		"대출", "이자", "대출이자", "대출상환", "대출원금", "카드론",
		"신용대출", "담보대출", "주택대출", "전세자금", "자동차대출",
	},
	"세금": {
		"세금", "소득세", "부가세", "종합소득세", "지방세", "자동차세", "재산세",
		"납세", "세무서", "국세청",
	},
}

// builtinOrder fixes the scan order across categories so results are stable.
var builtinOrder = []string{
	"식비", "교통비", "주유비", "쇼핑", "통신비", "공과금", "보험", "의료",
	"교육", "유흥", "급여", "용돈", "저축/투자", "대출/이자", "세금",
}

// builtinProvider matches transaction text against the built-in keyword table.
type builtinProvider struct{}

func (p *builtinProvider) Name() string { return "builtin" }

func (p *builtinProvider) Lookup(_ context.Context, text string) (Match, bool) {
	lower := strings.ToLower(text)
	for _, category := range builtinOrder {
		for _, keyword := range builtinKeywords[category] {
			if strings.Contains(lower, keyword) {
				return Match{
					Category:   category,
					Confidence: ConfidenceBuiltin,
					Reason:     fmt.Sprintf("키워드 매칭: %q", keyword),
				}, true
			}
		}
	}
	return Match{}, false
}

func containsFold(lowerText, keyword string) bool {
	return strings.Contains(lowerText, strings.ToLower(keyword))
}
