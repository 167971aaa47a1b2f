package parser

import "strings"

// Header vocabularies, in Korean and English, as they appear across the bank
// and card exports we have seen. Matching is a case-folded substring test
// against the header cell.
var (
	dateWords = []string{
		"날짜", "date", "일자", "거래일", "거래시각", "거래일시", "승인일", "승인일시",
		"이용일", "이용일시", "사용일", "사용일시", "time", "datetime", "timestamp",
		"적용일", "결제일",
	}
	nameWords = []string{
		"항목", "내용", "name", "item", "설명", "거래내역", "거래내용", "상호",
		"가맹점", "사용처", "이용처", "업체", "가맹점명", "상호명",
	}
	amountWords = []string{
		"금액", "amount", "지출", "수입", "이용금액", "거래금액", "승인금액", "결제금액",
		"사용금액", "출금", "입금", "잔액", "balance", "price", "가격",
	}
	txnNumberWords = []string{"거래번호", "transaction", "no", "번호"}
	typeWords      = []string{"구분", "type", "분류"}
	statusWords    = []string{"구분", "type", "분류", "상태", "status", "거래구분"}
	categoryWords  = []string{"카테고리", "category", "분류"}
	memoWords      = []string{"메모", "memo", "비고", "설명", "description"}

	incomeWords  = []string{"수입", "입금"}
	expenseWords = []string{"지출", "출금"}

	cancelWords = []string{"취소", "환불", "반품", "승인취소", "cancel", "refund"}
	incomeTypeValues  = []string{"수입", "income", "+"}
	expenseTypeValues = []string{"지출", "expense", "-"}
)

// columnMap records which column index serves each field, -1 when absent.
type columnMap struct {
	date      int
	name      int
	amount    int
	income    int
	expense   int
	txnNumber int
	typeCol   int
	status    int
	category  int
	memo      int
}

// mapColumns resolves a header row into field indices. The first header
// matching a field's vocabulary wins that field.
func mapColumns(header []string) columnMap {
	cols := columnMap{
		date: -1, name: -1, amount: -1, income: -1, expense: -1,
		txnNumber: -1, typeCol: -1, status: -1, category: -1, memo: -1,
	}
	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		if h == "" {
			continue
		}
		if cols.date == -1 && matchesAny(h, dateWords) && !strings.Contains(h, "시간") {
			cols.date = i
		}
		if cols.name == -1 && matchesAny(h, nameWords) {
			cols.name = i
		}
		if cols.income == -1 && matchesAny(h, incomeWords) && !matchesAny(h, expenseWords) {
			cols.income = i
		}
		if cols.expense == -1 && matchesAny(h, expenseWords) && !matchesAny(h, incomeWords) {
			cols.expense = i
		}
		if cols.amount == -1 && matchesAny(h, amountWords) {
			cols.amount = i
		}
		if cols.txnNumber == -1 && matchesAny(h, txnNumberWords) {
			cols.txnNumber = i
		}
		if cols.typeCol == -1 && matchesAny(h, typeWords) {
			cols.typeCol = i
		}
		if cols.status == -1 && matchesAny(h, statusWords) {
			cols.status = i
		}
		if cols.category == -1 && matchesAny(h, categoryWords) {
			cols.category = i
		}
		if cols.memo == -1 && matchesAny(h, memoWords) {
			cols.memo = i
		}
	}
	return cols
}

// headerScore counts how many core fields a candidate header row resolves.
// Rows that look like data resolve nothing.
func headerScore(row []string) int {
	return headerScoreOf(mapColumns(row))
}

func matchesAny(header string, words []string) bool {
	for _, w := range words {
		if strings.Contains(header, w) {
			return true
		}
	}
	return false
}

func containsCancelWord(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range cancelWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func equalsAny(value string, values []string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range values {
		if v == candidate {
			return true
		}
	}
	return false
}
