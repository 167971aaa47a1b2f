// Package patterns mines recurring expenses and aggregates spending out of a
// profile's transaction history.
package patterns

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/txnflow/internal/model"
)

// MinOccurrences is the smallest group size that can form a pattern.
const MinOccurrences = 2

// MinConfidence filters patterns too weak to report.
const MinConfidence = 0.5

// FindRecurring groups expenses by (category, name, amount) and rates how
// regular each group's cadence is. Only groups whose cadence earns at least
// MinConfidence are returned, strongest first.
func FindRecurring(transactions []model.Transaction) []model.RecurringPattern {
	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if txn.Type != model.TypeExpense {
			continue
		}
		category := txn.Category
		if category == "" {
			category = model.CategoryOther
		}
		key := fmt.Sprintf("%s|%s|%d", category, txn.Name, txn.Amount)
		groups[key] = append(groups[key], txn)
	}

	var patterns []model.RecurringPattern
	for key, group := range groups {
		if len(group) < MinOccurrences {
			continue
		}

		dates := make([]string, 0, len(group))
		for _, txn := range group {
			dates = append(dates, txn.Date)
		}
		sort.Strings(dates)

		freq, conf := rateCadence(dates)
		if conf < MinConfidence {
			continue
		}

		parts := strings.SplitN(key, "|", 3)
		patterns = append(patterns, model.RecurringPattern{
			Name:       group[0].Name,
			Category:   parts[0],
			Amount:     group[0].Amount,
			Dates:      dates,
			Frequency:  freq,
			Confidence: conf,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		return patterns[i].Name < patterns[j].Name
	})
	return patterns
}

// rateCadence classifies the average gap between consecutive dates and
// returns a frequency plus a confidence, boosted when the gaps are steady.
func rateCadence(dates []string) (model.Frequency, float64) {
	gaps := dayGaps(dates)
	if len(gaps) == 0 {
		return model.FrequencyIrregular, 0
	}

	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))

	var freq model.Frequency
	var conf float64
	switch {
	case mean >= 28 && mean <= 31:
		freq, conf = model.FrequencyMonthly, 0.8
	case mean >= 6 && mean <= 8:
		freq, conf = model.FrequencyWeekly, 0.7
	case mean >= 0.9 && mean <= 1.1:
		freq, conf = model.FrequencyDaily, 0.6
	case mean >= 25 && mean <= 35:
		freq, conf = model.FrequencyMonthly, 0.6
	default:
		return model.FrequencyIrregular, 0
	}

	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	stddev := math.Sqrt(variance / float64(len(gaps)))
	if stddev < 2 {
		conf = math.Min(conf+0.1, 0.9)
	}

	return freq, conf
}

func dayGaps(dates []string) []float64 {
	var gaps []float64
	var prev civil.Date
	havePrev := false
	for _, d := range dates {
		day, err := civil.ParseDate(d)
		if err != nil {
			continue
		}
		if havePrev {
			gaps = append(gaps, float64(day.DaysSince(prev)))
		}
		prev = day
		havePrev = true
	}
	return gaps
}

// Summarize aggregates expenses by category, weekday and month. Weekdays
// follow time.Weekday numbering, Sunday = 0.
func Summarize(transactions []model.Transaction) model.SpendingSummary {
	summary := model.SpendingSummary{
		CategorySpending: map[string]int64{},
		CategoryAvg:      map[string]float64{},
		WeekdaySpending:  map[int]int64{},
		WeekdayAvg:       map[int]float64{},
		MonthlySpending:  map[string]int64{},
	}

	categoryCount := map[string]int{}
	weekdayCount := map[int]int{}

	for _, txn := range transactions {
		if txn.Type != model.TypeExpense {
			continue
		}
		category := txn.Category
		if category == "" {
			category = model.CategoryOther
		}

		summary.CategorySpending[category] += txn.Amount
		categoryCount[category]++
		summary.TotalExpenses += txn.Amount
		summary.TotalCount++

		if day, err := civil.ParseDate(txn.Date); err == nil {
			wd := int(day.In(time.UTC).Weekday())
			summary.WeekdaySpending[wd] += txn.Amount
			weekdayCount[wd]++
		}
		if len(txn.Date) >= 7 {
			summary.MonthlySpending[txn.Date[:7]] += txn.Amount
		}
	}

	for category, total := range summary.CategorySpending {
		summary.CategoryAvg[category] = float64(total) / float64(categoryCount[category])
	}
	for wd, total := range summary.WeekdaySpending {
		summary.WeekdayAvg[wd] = float64(total) / float64(weekdayCount[wd])
	}

	summary.TopCategory = topEntry(summary.CategorySpending)
	summary.TopWeekday = topWeekday(summary.WeekdaySpending)
	return summary
}

func topEntry(totals map[string]int64) *model.CategoryTotal {
	var top *model.CategoryTotal
	for name, amount := range totals {
		if top == nil || amount > top.Amount || (amount == top.Amount && name < top.Name) {
			top = &model.CategoryTotal{Name: name, Amount: amount}
		}
	}
	return top
}

func topWeekday(totals map[int]int64) *model.CategoryTotal {
	var top *model.CategoryTotal
	topDay := -1
	for day, amount := range totals {
		if top == nil || amount > top.Amount || (amount == top.Amount && day < topDay) {
			top = &model.CategoryTotal{Name: WeekdayName(day), Amount: amount}
			topDay = day
		}
	}
	return top
}
