// Package dedup decides which freshly parsed transactions survive a merge
// with the stored set: confident duplicates are rejected, borderline matches
// are kept but flagged for review, and cancellation rows knock out the
// originals they refund.
package dedup

import (
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/txnflow/internal/model"
)

// Duplicate score bands. An incoming record is scored against every stored
// record plus every record already accepted from the same batch, and the
// maximum score decides its fate.
const (
	scoreExactMatch        = 1.0
	scoreCloseDatetime     = 0.9
	scoreSameNumberNoTime  = 0.8
	scoreSameNumberOffTime = 0.7
	scoreSameDayTightTime  = 0.85
	scoreSameDayLooseTime  = 0.6
	scoreSameDayNoTime     = 0.7
	scoreSameDayWeakName   = 0.5
	scoreNameMismatch      = 0.3
)

const datetimeLayout = "2006-01-02 15:04:05"

// Options tunes the merge. The zero value is unusable; start from
// DefaultOptions.
type Options struct {
	// AutoRejectThreshold is the score at or above which an incoming record
	// is dropped as a duplicate.
	AutoRejectThreshold float64
	// AmbiguousThreshold is the score at or above which an incoming record
	// is kept but flagged as a possible duplicate.
	AmbiguousThreshold float64
	// CancelMaxDayGap bounds how many days a cancellation row may sit from
	// the original it refunds.
	CancelMaxDayGap int
	// CancelAmountTolerance allows the refunded amount to differ from the
	// original by this many currency units.
	CancelAmountTolerance int64
	// CancelNameSimilarity is the minimum name similarity for a
	// cancellation match.
	CancelNameSimilarity float64
	// UseDatetime additionally rejects cancellation matches whose refund
	// datetime falls on a day before the original purchase.
	UseDatetime bool
}

// DefaultOptions returns the tuning the product has always shipped with.
func DefaultOptions() Options {
	return Options{
		AutoRejectThreshold:   0.9,
		AmbiguousThreshold:    0.5,
		CancelMaxDayGap:       4,
		CancelAmountTolerance: 1,
		CancelNameSimilarity:  0.8,
	}
}

// Result is the outcome of merging one parsed batch against the stored set.
type Result struct {
	// Accepted are new records to store as-is.
	Accepted []model.Transaction
	// Ambiguous are new records to store flagged as possible duplicates.
	Ambiguous []model.Transaction
	// Duplicates were rejected outright.
	Duplicates []model.Transaction
	// CancelledIDs are batch records identified as cancellation rows; they
	// are not stored.
	CancelledIDs []string
	// RemovedExistingIDs are stored records matched by a cancellation row;
	// the caller deletes them.
	RemovedExistingIDs []string
}

// Merge runs the cancellation pass and then duplicate scoring over the batch.
// existing is the profile's stored transaction set.
func Merge(batch, existing []model.Transaction, opts Options) Result {
	var res Result

	skip := cancellationPass(batch, existing, opts, &res)

	removed := make(map[string]struct{}, len(res.RemovedExistingIDs))
	for _, id := range res.RemovedExistingIDs {
		removed[id] = struct{}{}
	}
	pool := make([]model.Transaction, 0, len(existing))
	for _, ex := range existing {
		if _, gone := removed[ex.ID]; gone {
			continue
		}
		pool = append(pool, ex)
	}

	for i, txn := range batch {
		if _, skipped := skip[i]; skipped {
			continue
		}

		maxScore := 0.0
		for _, other := range pool {
			if score := duplicateScore(txn, other); score > maxScore {
				maxScore = score
			}
			if maxScore >= scoreExactMatch {
				break
			}
		}

		switch {
		case maxScore >= opts.AutoRejectThreshold:
			res.Duplicates = append(res.Duplicates, txn)
		case maxScore >= opts.AmbiguousThreshold:
			txn.PossibleDuplicate = true
			txn.NeedsReview = true
			txn.DuplicateCheckConfidence = maxScore
			res.Ambiguous = append(res.Ambiguous, txn)
			pool = append(pool, txn)
		default:
			res.Accepted = append(res.Accepted, txn)
			pool = append(pool, txn)
		}
	}

	return res
}

// duplicateScore rates how likely a and b are the same real-world
// transaction.
func duplicateScore(a, b model.Transaction) float64 {
	aT, aOK := parseDatetime(a)
	bT, bOK := parseDatetime(b)

	if a.TransactionNumber != "" && a.TransactionNumber == b.TransactionNumber {
		switch {
		case aOK && bOK && aT.Equal(bT):
			return scoreExactMatch
		case aOK && bOK:
			return scoreSameNumberOffTime
		default:
			return scoreSameNumberNoTime
		}
	}

	if aOK && bOK {
		diff := aT.Sub(bT)
		if diff < 0 {
			diff = -diff
		}
		if diff <= 5*time.Minute && a.Amount == b.Amount && a.Name == b.Name {
			if diff == 0 {
				return scoreExactMatch
			}
			return scoreCloseDatetime
		}
	}

	if a.Date == b.Date && a.Amount == b.Amount {
		sim := Similarity(a.Name, b.Name)
		switch {
		case sim > 0.9:
			if aOK && bOK {
				diff := aT.Sub(bT)
				if diff < 0 {
					diff = -diff
				}
				if diff <= 30*time.Minute {
					return scoreSameDayTightTime
				}
				return scoreSameDayLooseTime
			}
			return scoreSameDayNoTime
		case sim > 0.7:
			return scoreSameDayWeakName
		default:
			return scoreNameMismatch
		}
	}

	return 0
}

// cancellationPass pairs refund rows with the purchases they undo. Candidates
// are matched against the stored set first, then against batch siblings.
// Returns the batch indices to exclude from duplicate scoring.
func cancellationPass(batch, existing []model.Transaction, opts Options, res *Result) map[int]struct{} {
	skip := make(map[int]struct{})

	for i, txn := range batch {
		if !txn.IsCancelled && txn.OriginalAmount >= 0 {
			continue
		}

		cancelled := txn.OriginalAmount
		if cancelled == 0 {
			cancelled = txn.Amount
		}
		if cancelled < 0 {
			cancelled = -cancelled
		}

		matched := false
		for _, ex := range existing {
			if cancellationMatches(txn, ex, cancelled, opts) {
				res.RemovedExistingIDs = append(res.RemovedExistingIDs, ex.ID)
				matched = true
				break
			}
		}
		if !matched {
			for j, sibling := range batch {
				if j == i {
					continue
				}
				if _, gone := skip[j]; gone {
					continue
				}
				if sibling.IsCancelled || sibling.OriginalAmount < 0 {
					continue
				}
				if cancellationMatches(txn, sibling, cancelled, opts) {
					skip[j] = struct{}{}
					matched = true
					break
				}
			}
		}

		// Only a matched pair disappears. An unmatched refund row stays
		// in the batch and goes through normal duplicate scoring: its
		// offsetting purchase may live outside the window entirely.
		if matched {
			res.CancelledIDs = append(res.CancelledIDs, txn.ID)
			skip[i] = struct{}{}
		}
	}

	return skip
}

func cancellationMatches(cancel, original model.Transaction, cancelledAmount int64, opts Options) bool {
	if Similarity(cancel.Name, original.Name) < opts.CancelNameSimilarity {
		return false
	}
	diff := original.Amount - cancelledAmount
	if diff < 0 {
		diff = -diff
	}
	if diff > opts.CancelAmountTolerance {
		return false
	}
	gap, err := dayGap(cancel.Date, original.Date)
	if err != nil || gap > opts.CancelMaxDayGap {
		return false
	}
	if opts.UseDatetime {
		// A refund logged strictly before the purchase's day cannot be
		// its cancellation.
		cT, cOK := parseDatetime(cancel)
		oT, oOK := parseDatetime(original)
		if cOK && oOK && cT.Before(oT) && !sameDay(cT, oT) {
			return false
		}
	}
	return true
}

func dayGap(a, b string) (int, error) {
	da, err := civil.ParseDate(a)
	if err != nil {
		return 0, fmt.Errorf("dayGap: parse %q: %w", a, err)
	}
	db, err := civil.ParseDate(b)
	if err != nil {
		return 0, fmt.Errorf("dayGap: parse %q: %w", b, err)
	}
	return int(math.Abs(float64(da.DaysSince(db)))), nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func parseDatetime(t model.Transaction) (time.Time, bool) {
	if t.Datetime == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(datetimeLayout, t.Datetime)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
