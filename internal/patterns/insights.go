package patterns

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dvloznov/txnflow/internal/model"
)

// DefaultWindowMonths is how far back analysis reaches when the caller gives
// no explicit range.
const DefaultWindowMonths = 6

// weekdayNames are the Korean single-character day labels, Sunday first.
var weekdayNames = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// WeekdayName returns the Korean label for a time.Weekday-numbered day.
func WeekdayName(day int) string {
	if day < 0 || day > 6 {
		return ""
	}
	return weekdayNames[day]
}

// Report bundles everything the analysis endpoint returns.
type Report struct {
	Patterns []model.RecurringPattern `json:"recurringPatterns"`
	Summary  model.SpendingSummary    `json:"summary"`
	Insights []string                 `json:"insights"`
}

// Analyze runs pattern mining, aggregation and insight generation over one
// window of transactions.
func Analyze(transactions []model.Transaction) Report {
	recurring := FindRecurring(transactions)
	summary := Summarize(transactions)
	return Report{
		Patterns: recurring,
		Summary:  summary,
		Insights: Insights(summary, recurring),
	}
}

// Insights renders human-readable observations about the spending summary.
func Insights(summary model.SpendingSummary, recurring []model.RecurringPattern) []string {
	var insights []string

	if summary.TopCategory != nil && summary.TotalExpenses > 0 {
		share := float64(summary.TopCategory.Amount) / float64(summary.TotalExpenses)
		if share > 0.4 {
			insights = append(insights, fmt.Sprintf(
				"%s 지출이 전체의 %.0f%%를 차지합니다. 지출이 한 카테고리에 집중되어 있어요.",
				summary.TopCategory.Name, share*100))
		}
	}

	if len(recurring) > 0 {
		var total int64
		biggest := recurring[0]
		for _, p := range recurring {
			total += p.Amount
			if p.Amount > biggest.Amount {
				biggest = p
			}
		}
		insights = append(insights, fmt.Sprintf(
			"반복 지출이 %d건 발견되었습니다 (합계 %s). 가장 큰 항목은 %s(%s)입니다.",
			len(recurring), FormatWon(total), biggest.Name, FormatWon(biggest.Amount)))
	}

	if summary.TopWeekday != nil {
		avg := topWeekdayAvg(summary)
		insights = append(insights, fmt.Sprintf(
			"%s요일에 가장 많이 지출합니다 (평균 %s).",
			summary.TopWeekday.Name, FormatWon(int64(avg))))
	}

	if insight, ok := monthOverMonth(summary.MonthlySpending); ok {
		insights = append(insights, insight)
	}

	return insights
}

// monthOverMonth compares the two most recent months and reports swings
// beyond ten percent either way.
func monthOverMonth(monthly map[string]int64) (string, bool) {
	if len(monthly) < 2 {
		return "", false
	}
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	last := monthly[months[len(months)-1]]
	prev := monthly[months[len(months)-2]]
	if prev == 0 {
		return "", false
	}

	change := (float64(last) - float64(prev)) / float64(prev)
	switch {
	case change > 0.1:
		return fmt.Sprintf("지난달보다 지출이 %.0f%% 늘었습니다 (%s → %s).",
			change*100, FormatWon(prev), FormatWon(last)), true
	case change < -0.1:
		return fmt.Sprintf("지난달보다 지출이 %.0f%% 줄었습니다 (%s → %s).",
			-change*100, FormatWon(prev), FormatWon(last)), true
	default:
		return "", false
	}
}

func topWeekdayAvg(summary model.SpendingSummary) float64 {
	for day, name := range weekdayNames {
		if summary.TopWeekday != nil && name == summary.TopWeekday.Name {
			return summary.WeekdayAvg[day]
		}
	}
	return 0
}

// FormatWon renders an amount with thousands separators and the 원 suffix.
func FormatWon(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s + "원"
}
