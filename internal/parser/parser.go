// Package parser turns bank and card export files (.xlsx, .xls, .csv) into
// draft transactions. Column layouts vary wildly between issuers, so the
// generic path resolves columns through a header vocabulary with positional
// fallbacks; the KB card layout gets a dedicated sub-parser.
package parser

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/txnflow/internal/model"
)

// Parser decodes export files into draft transactions. Drafts carry no
// category unless the file itself had one; classification happens later.
type Parser struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Result is the outcome of parsing one file.
type Result struct {
	Transactions []model.Transaction
	// Skipped counts rows that were present but unusable (no date, no
	// name, or no amount).
	Skipped  int
	Metadata SourceMetadata
}

// Parse decodes one export file for a profile.
func (p *Parser) Parse(filename string, data []byte, profileID string) (*Result, error) {
	wb, err := Decode(filename, data)
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}

	sheet := selectSheet(wb)
	meta := ScanMetadata(sheet, filename)

	var txns []model.Transaction
	var skipped int
	if isKBCardSheet(sheet, filename, meta) {
		txns, skipped = parseKBCardSheet(sheet, profileID, meta)
	} else {
		txns, skipped = p.parseGeneric(sheet, filename, profileID, meta)
	}

	p.log.Info().
		Str("file", filename).
		Str("sheet", sheet.Name).
		Int("parsed", len(txns)).
		Int("skipped", skipped).
		Msg("Parsed export file")

	return &Result{Transactions: txns, Skipped: skipped, Metadata: meta}, nil
}

func (p *Parser) parseGeneric(sheet Sheet, filename, profileID string, meta SourceMetadata) ([]model.Transaction, int) {
	headerRow, cols := findHeader(sheet.Rows)
	if headerRow < 0 {
		return nil, len(sheet.Rows)
	}

	var txns []model.Transaction
	skipped := 0
	for _, row := range sheet.Rows[headerRow+1:] {
		txn, ok := p.parseRow(row, cols, profileID)
		if !ok {
			if !rowEmpty(row) {
				skipped++
			}
			continue
		}
		txn.SourceFile = filename
		txn.SourceCardName = meta.CardName
		txn.SourceCardNumber = meta.CardNumber
		txn.SourceAccountNumber = meta.AccountNumber
		txns = append(txns, txn)
	}
	return txns, skipped
}

func (p *Parser) parseRow(row []string, cols columnMap, profileID string) (model.Transaction, bool) {
	date, timeOfDay, dateOK := parseDateCell(cellAt(row, cols.date))
	if !dateOK && len(row) > 0 {
		// Exports without a recognizable date header keep the date in the
		// first column anyway.
		date, timeOfDay, dateOK = parseDateCell(row[0])
	}

	name := strings.TrimSpace(cellAt(row, cols.name))
	if name == "" && len(row) > 1 {
		if candidate := strings.TrimSpace(row[1]); candidate != "" {
			if _, numeric := parseAmount(candidate, false); !numeric {
				name = candidate
			}
		}
	}

	amount, txnType, amountOK := p.resolveAmount(row, cols)

	if !dateOK || name == "" || !amountOK || amount == 0 {
		return model.Transaction{}, false
	}

	datetime := date + " 00:00:00"
	if timeOfDay != "" {
		datetime = date + " " + timeOfDay
	}

	description := strings.TrimSpace(cellAt(row, cols.memo))
	originalText := strings.TrimSpace(name + " " + description)

	cancelled := amount < 0 || containsCancelWord(name)
	if status := cellAt(row, cols.status); containsCancelWord(status) {
		cancelled = true
	}

	abs := amount
	if abs < 0 {
		abs = -abs
	}

	txn := model.Transaction{
		ID:                uuid.NewString(),
		ProfileID:         profileID,
		Date:              date,
		Datetime:          datetime,
		Type:              txnType,
		Name:              name,
		Amount:            abs,
		OriginalAmount:    amount,
		Description:       description,
		TransactionNumber: strings.TrimSpace(cellAt(row, cols.txnNumber)),
		OriginalText:      originalText,
		IsCancelled:       cancelled,
	}

	// A category column in the file outranks every classification tier.
	if category := strings.TrimSpace(cellAt(row, cols.category)); category != "" && model.ValidCategory(category) {
		txn.Category = category
		txn.Confidence = 1.0
		txn.ClassificationReason = "파일에 지정된 카테고리"
	}

	if typeCell := cellAt(row, cols.typeCol); typeCell != "" {
		switch {
		case equalsAny(typeCell, incomeTypeValues):
			txn.Type = model.TypeIncome
		case equalsAny(typeCell, expenseTypeValues):
			txn.Type = model.TypeExpense
		}
	}

	return txn, true
}

// resolveAmount walks the amount sources in precedence order: dedicated
// income/expense columns, the mapped amount column, then a scan for any
// plausible numeric cell.
func (p *Parser) resolveAmount(row []string, cols columnMap) (int64, model.TransactionType, bool) {
	if cols.income >= 0 {
		if v, ok := parseAmount(cellAt(row, cols.income), false); ok && v != 0 {
			return v, model.TypeIncome, true
		}
	}
	if cols.expense >= 0 {
		if v, ok := parseAmount(cellAt(row, cols.expense), false); ok && v != 0 {
			return v, model.TypeExpense, true
		}
	}
	if cols.amount >= 0 {
		if v, ok := parseAmount(cellAt(row, cols.amount), false); ok {
			return v, model.TypeExpense, true
		}
	}
	// Last resort: any sufficiently large numeric cell. The floor keeps
	// quantity-like columns from masquerading as amounts.
	for i, cell := range row {
		if i == cols.date || i == cols.txnNumber {
			continue
		}
		if v, ok := parseAmount(cell, false); ok && v > 100 {
			return v, model.TypeExpense, true
		}
	}
	return 0, model.TypeExpense, false
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
