package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxFileSize bounds a single uploaded export.
const MaxFileSize = 100 << 20

// allowedExtensions are the upload formats the parser accepts.
var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// Sheet is one worksheet flattened to string cells.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is a decoded export file.
type Workbook struct {
	Sheets []Sheet
}

// AllowedFile reports whether the filename carries an accepted extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Decode reads an export file into sheets of string cells. CSV decodes as a
// single sheet. Legacy binary .xls is not decodable here and fails with a
// per-file error the caller reports.
func Decode(filename string, data []byte) (*Workbook, error) {
	if !AllowedFile(filename) {
		return nil, fmt.Errorf("Decode: unsupported file type %q", filepath.Ext(filename))
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("Decode: file %s exceeds the %dMB limit", filename, MaxFileSize>>20)
	}

	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return decodeCSV(data)
	}
	return decodeExcel(data)
}

func decodeCSV(data []byte) (*Workbook, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decodeCSV: %w", err)
		}
		rows = append(rows, record)
	}
	return &Workbook{Sheets: []Sheet{{Name: "csv", Rows: rows}}}, nil
}

func decodeExcel(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decodeExcel: open workbook: %w", err)
	}
	defer f.Close()

	var wb Workbook
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("decodeExcel: read sheet %s: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("decodeExcel: workbook has no sheets")
	}
	return &wb, nil
}

// selectSheet picks the worksheet that carries the transaction table. In
// multi-sheet workbooks card issuers usually put a cover sheet first, so the
// sheet whose header resolves the most fields (weighted by data volume)
// wins; with no recognizable header anywhere, the second sheet is the
// customary location.
func selectSheet(wb *Workbook) Sheet {
	if len(wb.Sheets) == 1 {
		return wb.Sheets[0]
	}

	best := -1
	bestScore := 0
	for i, sheet := range wb.Sheets {
		headerRow, cols := findHeader(sheet.Rows)
		if headerRow < 0 {
			continue
		}
		score := headerScoreOf(cols)*1000 + (len(sheet.Rows) - headerRow - 1)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return wb.Sheets[best]
	}
	if len(wb.Sheets) >= 2 {
		return wb.Sheets[1]
	}
	return wb.Sheets[0]
}

// findHeader locates the header row within the first rows of a sheet.
// Returns -1 when nothing resolves a date or amount column.
func findHeader(rows [][]string) (int, columnMap) {
	const maxScan = 20
	bestRow := -1
	bestScore := 0
	var bestCols columnMap
	for i, row := range rows {
		if i >= maxScan {
			break
		}
		score := headerScore(row)
		if score > bestScore {
			bestRow, bestScore = i, score
			bestCols = mapColumns(row)
		}
	}
	if bestScore == 0 {
		return -1, columnMap{}
	}
	return bestRow, bestCols
}

func headerScoreOf(cols columnMap) int {
	score := 0
	if cols.date >= 0 {
		score++
	}
	if cols.name >= 0 {
		score++
	}
	if cols.amount >= 0 || cols.income >= 0 || cols.expense >= 0 {
		score++
	}
	return score
}
