package parser

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/txnflow/internal/model"
)

// KB card exports do not follow the generic header layout: the table header
// sits on the seventh row under a metadata block, and the column names are
// fixed phrases.
const (
	kbHeaderRow = 6
	kbDataRow   = 7
)

// isKBCardSheet detects the KB layout: a filename hint, issuer metadata, or
// the characteristic column set on the expected header row.
func isKBCardSheet(sheet Sheet, filename string, meta SourceMetadata) bool {
	lower := strings.ToLower(filename)
	if strings.Contains(lower, "kb") || strings.Contains(lower, "국민") {
		return true
	}
	if strings.Contains(meta.CardName, "KB") {
		return true
	}
	if len(sheet.Rows) <= kbHeaderRow {
		return false
	}
	header := sheet.Rows[kbHeaderRow]
	hits := 0
	for _, want := range []string{"이용일", "이용시간", "이용하신곳", "국내이용금액"} {
		for _, cell := range header {
			if strings.Contains(cell, want) {
				hits++
				break
			}
		}
	}
	return hits >= 3
}

type kbColumns struct {
	date      int
	timeOfDay int
	merchant  int
	amount    int
	approval  int
	status    int
}

func mapKBColumns(header []string) kbColumns {
	cols := kbColumns{date: -1, timeOfDay: -1, merchant: -1, amount: -1, approval: -1, status: -1}
	for i, cell := range header {
		h := strings.TrimSpace(cell)
		switch {
		case cols.date == -1 && strings.Contains(h, "이용일") &&
			!strings.Contains(h, "시간") && !strings.Contains(h, "결제예정일"):
			cols.date = i
		case cols.timeOfDay == -1 && strings.Contains(h, "이용시간"):
			cols.timeOfDay = i
		case cols.merchant == -1 && (strings.Contains(h, "이용하신곳") ||
			(strings.Contains(h, "가맹점") && !strings.Contains(h, "정보"))):
			cols.merchant = i
		case cols.amount == -1 && strings.Contains(h, "국내이용금액") &&
			!strings.Contains(h, "해외") && !strings.Contains(h, "할인"):
			cols.amount = i
		case cols.approval == -1 && strings.Contains(h, "승인번호"):
			cols.approval = i
		case cols.status == -1 && strings.Contains(h, "상태"):
			cols.status = i
		}
	}
	return cols
}

// parseKBCardSheet reads the fixed KB layout into draft transactions.
func parseKBCardSheet(sheet Sheet, profileID string, meta SourceMetadata) ([]model.Transaction, int) {
	if len(sheet.Rows) <= kbDataRow {
		return nil, 0
	}
	cols := mapKBColumns(sheet.Rows[kbHeaderRow])
	if cols.date < 0 || cols.amount < 0 {
		return nil, 0
	}

	sourceFile := strings.TrimSpace(meta.CardName + " " + meta.CardNumber)

	var txns []model.Transaction
	skipped := 0
	for _, row := range sheet.Rows[kbDataRow:] {
		date, _, ok := parseDateCell(cellAt(row, cols.date))
		name := strings.TrimSpace(cellAt(row, cols.merchant))
		amount, amountOK := parseAmount(cellAt(row, cols.amount), true)
		if !ok || name == "" || !amountOK || amount == 0 {
			skipped++
			continue
		}

		timeOfDay := kbTimeOfDay(cellAt(row, cols.timeOfDay))
		datetime := date + " 00:00:00"
		if timeOfDay != "" {
			datetime = date + " " + timeOfDay
		}

		status := cellAt(row, cols.status)
		cancelled := containsCancelWord(status) || containsCancelWord(name) || amount < 0

		abs := amount
		if abs < 0 {
			abs = -abs
		}

		txns = append(txns, model.Transaction{
			ID:                  uuid.NewString(),
			ProfileID:           profileID,
			Date:                date,
			Datetime:            datetime,
			Type:                model.TypeExpense,
			Name:                name,
			Amount:              abs,
			OriginalAmount:      amount,
			TransactionNumber:   strings.TrimSpace(cellAt(row, cols.approval)),
			OriginalText:        name,
			IsCancelled:         cancelled,
			SourceFile:          sourceFile,
			SourceCardName:      meta.CardName,
			SourceCardNumber:    meta.CardNumber,
			SourceAccountNumber: meta.AccountNumber,
		})
	}
	return txns, skipped
}

// kbTimeOfDay accepts either a clock string or an Excel day fraction.
func kbTimeOfDay(cell string) string {
	s := strings.TrimSpace(cell)
	if s == "" {
		return ""
	}
	if t := normalizeTime(s); t != "" {
		return t
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if t, ok := dayFractionTime(f); ok {
			return t
		}
	}
	return ""
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
