package model

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	// TypeIncome marks money coming into the account.
	TypeIncome TransactionType = "INCOME"
	// TypeExpense marks money leaving the account.
	TypeExpense TransactionType = "EXPENSE"
)

// CategoryOther is the fallback category for unclassified transactions.
const CategoryOther = "기타"

// Categories is the closed category vocabulary used across classification,
// the remote oracle prompt, and the mapping tables.
var Categories = []string{
	"식비",
	"교통비",
	"주유비",
	"쇼핑",
	"통신비",
	"공과금",
	"보험",
	"의료",
	"교육",
	"유흥",
	"급여",
	"용돈",
	"저축/투자",
	"대출/이자",
	"세금",
	CategoryOther,
}

// ValidCategory reports whether c belongs to the closed category vocabulary.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Transaction is one normalized row from a bank or card export.
// Amount is always a non-negative magnitude; the sign seen in the source row
// is preserved in OriginalAmount, and cancellation state in IsCancelled.
type Transaction struct {
	ID        string          `json:"id" firestore:"id"`
	ProfileID string          `json:"profileId" firestore:"profileId"`
	Date      string          `json:"date" firestore:"date"`                           // YYYY-MM-DD
	Datetime  string          `json:"datetime,omitempty" firestore:"datetime"`         // YYYY-MM-DD HH:mm:ss
	Type      TransactionType `json:"type" firestore:"type"`
	Category  string          `json:"category" firestore:"category"`
	Name      string          `json:"name" firestore:"name"`
	Amount    int64           `json:"amount" firestore:"amount"`

	Description       string `json:"description,omitempty" firestore:"description"`
	TransactionNumber string `json:"transactionNumber,omitempty" firestore:"transactionNumber"`
	OriginalText      string `json:"originalText,omitempty" firestore:"originalText"`

	Confidence           float64 `json:"confidence" firestore:"confidence"`
	NeedsReview          bool    `json:"needsReview" firestore:"needsReview"`
	UserConfirmed        bool    `json:"userConfirmed" firestore:"userConfirmed"`
	AICategory           string  `json:"aiCategory,omitempty" firestore:"aiCategory"`
	ClassificationReason string  `json:"classificationReason,omitempty" firestore:"classificationReason"`

	PossibleDuplicate        bool    `json:"possibleDuplicate,omitempty" firestore:"possibleDuplicate"`
	DuplicateCheckConfidence float64 `json:"duplicateCheckConfidence,omitempty" firestore:"duplicateCheckConfidence"`

	SourceFile          string `json:"sourceFile,omitempty" firestore:"sourceFile"`
	SourceCardName      string `json:"sourceCardName,omitempty" firestore:"sourceCardName"`
	SourceCardNumber    string `json:"sourceCardNumber,omitempty" firestore:"sourceCardNumber"`
	SourceAccountNumber string `json:"sourceAccountNumber,omitempty" firestore:"sourceAccountNumber"`

	IsCancelled    bool  `json:"isCancelled,omitempty" firestore:"isCancelled"`
	OriginalAmount int64 `json:"originalAmount,omitempty" firestore:"originalAmount"` // signed
}

// SortKey orders transactions chronologically. Datetime wins when present.
func (t *Transaction) SortKey() string {
	if t.Datetime != "" {
		return t.Datetime
	}
	return t.Date + " 00:00:00"
}
