package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Excel stores dates as day counts from this epoch (the 1900 system with its
// Lotus leap-year quirk already folded in).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	isoDateRe  = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`)
	timeOnlyRe = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
	digitsRe   = regexp.MustCompile(`^\d+$`)
	amountJunk = regexp.MustCompile(`[,\s₩$원]`)
)

// parseDateCell coerces one cell into a calendar date plus an optional time
// of day. Time-only cells and unparseable values return ok=false.
func parseDateCell(cell string) (date, timeOfDay string, ok bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return "", "", false
	}

	if timeOnlyRe.MatchString(s) {
		return "", "", false
	}

	// Excel serial number, possibly with a fractional time of day.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && digitLike(s) {
		return parseExcelSerial(serial)
	}

	// Datetime forms split on space or T.
	datePart := s
	timePart := ""
	if idx := strings.IndexAny(s, " T"); idx != -1 {
		datePart, timePart = s[:idx], strings.TrimSpace(s[idx+1:])
	}

	if m := isoDateRe.FindString(datePart); m != "" {
		norm := strings.NewReplacer("/", "-", ".", "-").Replace(m)
		parsed, err := time.Parse("2006-1-2", norm)
		if err != nil {
			return "", "", false
		}
		return parsed.Format("2006-01-02"), normalizeTime(timePart), true
	}

	if digitsRe.MatchString(datePart) {
		switch len(datePart) {
		case 8: // YYYYMMDD
			parsed, err := time.Parse("20060102", datePart)
			if err != nil {
				return "", "", false
			}
			return parsed.Format("2006-01-02"), normalizeTime(timePart), true
		case 6: // YYMMDD
			year, _ := strconv.Atoi(datePart[:2])
			century := "20"
			if year >= 50 {
				century = "19"
			}
			parsed, err := time.Parse("20060102", century+datePart)
			if err != nil {
				return "", "", false
			}
			return parsed.Format("2006-01-02"), normalizeTime(timePart), true
		}
	}

	return "", "", false
}

// parseExcelSerial converts an Excel day count. Values below one carry no
// date, only a fraction of a day, and are rejected here.
func parseExcelSerial(serial float64) (date, timeOfDay string, ok bool) {
	if serial < 1 {
		return "", "", false
	}
	days := math.Floor(serial)
	t := excelEpoch.AddDate(0, 0, int(days))
	frac := serial - days
	if frac > 0 {
		seconds := int(math.Round(frac * 86400))
		timeOfDay = fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
	}
	return t.Format("2006-01-02"), timeOfDay, true
}

// dayFractionTime renders an Excel time-of-day fraction (0 <= f < 1).
func dayFractionTime(f float64) (string, bool) {
	if f < 0 || f >= 1 {
		return "", false
	}
	seconds := int(math.Round(f * 86400))
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60), true
}

// normalizeTime pads HH:mm to HH:mm:ss and drops anything unrecognizable.
func normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !timeOnlyRe.MatchString(s) {
		return ""
	}
	parts := strings.Split(s, ":")
	for len(parts) < 3 {
		parts = append(parts, "00")
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

func digitLike(s string) bool {
	// Serial numbers come through as bare digits with an optional fraction;
	// 8- and 6-digit runs are calendar forms, not serials.
	if digitsRe.MatchString(s) {
		return len(s) != 8 && len(s) != 6
	}
	dot := strings.Count(s, ".")
	if dot != 1 {
		return false
	}
	return digitsRe.MatchString(strings.Replace(s, ".", "", 1))
}

// parseAmount strips currency decoration and returns the rounded value.
// KB exports wrap refunds in parentheses, handled by the stripParens flag.
func parseAmount(cell string, stripParens bool) (int64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	negative := false
	if stripParens && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
		negative = true
	}
	s = amountJunk.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return int64(math.Round(f)), true
}
