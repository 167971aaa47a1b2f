package model

// Frequency classifies the cadence of a recurring expense series.
type Frequency string

const (
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyDaily     Frequency = "DAILY"
	FrequencyIrregular Frequency = "IRREGULAR"
)

// RecurringPattern is a derived recurring-expense series. It is computed on
// demand and never persisted.
type RecurringPattern struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Amount     int64     `json:"amount"`
	Dates      []string  `json:"dates"`
	Frequency  Frequency `json:"frequency"`
	Confidence float64   `json:"confidence"`
}

// CategoryTotal pairs a label with a spend total.
type CategoryTotal struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// SpendingSummary aggregates expense records by category, weekday and month.
// Weekday keys run 0=Sunday through 6=Saturday.
type SpendingSummary struct {
	CategorySpending map[string]int64   `json:"categorySpending"`
	CategoryAvg      map[string]float64 `json:"categoryAvg"`
	WeekdaySpending  map[int]int64      `json:"dayOfWeekSpending"`
	WeekdayAvg       map[int]float64    `json:"dayOfWeekAvg"`
	MonthlySpending  map[string]int64   `json:"monthlySpending"` // keyed YYYY-MM
	TopCategory      *CategoryTotal     `json:"topCategory"`
	TopWeekday       *CategoryTotal     `json:"topDay"`
	TotalExpenses    int64              `json:"totalExpenses"`
	TotalCount       int                `json:"totalCount"`
}
