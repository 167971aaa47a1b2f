package dedup

import (
	"testing"

	"github.com/dvloznov/txnflow/internal/model"
)

func txn(id, date, datetime, name string, amount int64) model.Transaction {
	return model.Transaction{
		ID:       id,
		Date:     date,
		Datetime: datetime,
		Type:     model.TypeExpense,
		Name:     name,
		Amount:   amount,
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"스타벅스", "스타벅스", 1.0},
		{"", "스타벅스", 0},
		{"스타벅스", "", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarityContainmentFloor(t *testing.T) {
	if got := Similarity("스타벅스", "스타벅스 강남점"); got < 0.8 {
		t.Errorf("Similarity with containment = %v, want >= 0.8", got)
	}
	if got := Similarity("ab", "xyzw"); got != 0 {
		t.Errorf("Similarity of disjoint names = %v, want 0", got)
	}
}

func TestDuplicateScoreTransactionNumber(t *testing.T) {
	a := txn("a", "2025-03-01", "2025-03-01 12:00:00", "스타벅스", 5500)
	a.TransactionNumber = "A123"
	b := txn("b", "2025-03-01", "2025-03-01 12:00:00", "스타벅스", 5500)
	b.TransactionNumber = "A123"

	if got := duplicateScore(a, b); got != scoreExactMatch {
		t.Errorf("same number, same datetime = %v, want %v", got, scoreExactMatch)
	}

	b.Datetime = "2025-03-01 18:30:00"
	if got := duplicateScore(a, b); got != scoreSameNumberOffTime {
		t.Errorf("same number, different datetime = %v, want %v", got, scoreSameNumberOffTime)
	}

	b.Datetime = ""
	if got := duplicateScore(a, b); got != scoreSameNumberNoTime {
		t.Errorf("same number, missing datetime = %v, want %v", got, scoreSameNumberNoTime)
	}
}

func TestDuplicateScoreCloseDatetime(t *testing.T) {
	a := txn("a", "2025-03-01", "2025-03-01 12:00:00", "스타벅스", 5500)
	b := txn("b", "2025-03-01", "2025-03-01 12:03:00", "스타벅스", 5500)

	if got := duplicateScore(a, b); got != scoreCloseDatetime {
		t.Errorf("3-minute gap, same amount and name = %v, want %v", got, scoreCloseDatetime)
	}
}

func TestDuplicateScoreSameDayBands(t *testing.T) {
	a := txn("a", "2025-03-01", "2025-03-01 12:00:00", "스타벅스 강남점", 5500)

	// Identical name, 20-minute gap.
	b := txn("b", "2025-03-01", "2025-03-01 12:20:00", "스타벅스 강남점", 5500)
	if got := duplicateScore(a, b); got != scoreSameDayTightTime {
		t.Errorf("tight-time band = %v, want %v", got, scoreSameDayTightTime)
	}

	// Identical name, 2-hour gap.
	b.Datetime = "2025-03-01 14:00:00"
	if got := duplicateScore(a, b); got != scoreSameDayLooseTime {
		t.Errorf("loose-time band = %v, want %v", got, scoreSameDayLooseTime)
	}

	// Identical name, no datetimes at all.
	a2 := txn("a2", "2025-03-01", "", "스타벅스 강남점", 5500)
	b2 := txn("b2", "2025-03-01", "", "스타벅스 강남점", 5500)
	if got := duplicateScore(a2, b2); got != scoreSameDayNoTime {
		t.Errorf("no-time band = %v, want %v", got, scoreSameDayNoTime)
	}

	// Unrelated name, same date and amount.
	c := txn("c", "2025-03-01", "", "xy", 5500)
	d := txn("d", "2025-03-01", "", "zw", 5500)
	if got := duplicateScore(c, d); got != scoreNameMismatch {
		t.Errorf("name-mismatch band = %v, want %v", got, scoreNameMismatch)
	}
}

func TestMergeRejectsExactDuplicates(t *testing.T) {
	existing := []model.Transaction{
		txn("e1", "2025-03-01", "2025-03-01 12:00:00", "스타벅스", 5500),
	}
	batch := []model.Transaction{
		txn("b1", "2025-03-01", "2025-03-01 12:00:00", "스타벅스", 5500),
		txn("b2", "2025-03-02", "2025-03-02 09:00:00", "김밥천국", 4000),
	}

	res := Merge(batch, existing, DefaultOptions())
	if len(res.Duplicates) != 1 || res.Duplicates[0].ID != "b1" {
		t.Fatalf("duplicates = %+v, want exactly b1", res.Duplicates)
	}
	if len(res.Accepted) != 1 || res.Accepted[0].ID != "b2" {
		t.Fatalf("accepted = %+v, want exactly b2", res.Accepted)
	}
}

func TestMergeIdempotentReingest(t *testing.T) {
	batch := []model.Transaction{
		txn("b1", "2025-03-01", "2025-03-01 12:00:00", "스타벅스", 5500),
		txn("b2", "2025-03-02", "2025-03-02 09:00:00", "김밥천국", 4000),
	}

	first := Merge(batch, nil, DefaultOptions())
	if len(first.Accepted) != 2 {
		t.Fatalf("first merge accepted %d, want 2", len(first.Accepted))
	}

	second := Merge(batch, first.Accepted, DefaultOptions())
	if len(second.Accepted) != 0 || len(second.Ambiguous) != 0 {
		t.Errorf("re-ingest stored %d+%d records, want 0", len(second.Accepted), len(second.Ambiguous))
	}
	if len(second.Duplicates) != 2 {
		t.Errorf("re-ingest rejected %d, want 2", len(second.Duplicates))
	}
}

func TestMergeInBatchDuplicates(t *testing.T) {
	// Two identical rows in one file: datetimes materialize the same, so
	// the second scores 1.0 against the first within the batch.
	batch := []model.Transaction{
		txn("b1", "2025-03-01", "2025-03-01 00:00:00", "ABC마트", 30000),
		txn("b2", "2025-03-01", "2025-03-01 00:00:00", "ABC마트", 30000),
	}

	res := Merge(batch, nil, DefaultOptions())
	if len(res.Accepted) != 1 {
		t.Errorf("accepted %d, want 1", len(res.Accepted))
	}
	if len(res.Duplicates) != 1 {
		t.Errorf("duplicates %d, want 1", len(res.Duplicates))
	}
}

func TestMergeAmbiguousFlagging(t *testing.T) {
	existing := []model.Transaction{
		txn("e1", "2025-03-01", "", "스타벅스커피", 5500),
	}
	// Same date and amount, contained name (similarity floors at 0.8), no
	// datetimes: lands in the flag-for-review band.
	b := txn("b1", "2025-03-01", "", "스타벅스커", 5500)

	res := Merge([]model.Transaction{b}, existing, DefaultOptions())
	if len(res.Ambiguous) != 1 {
		t.Fatalf("ambiguous = %d, want 1 (accepted=%d duplicates=%d)", len(res.Ambiguous), len(res.Accepted), len(res.Duplicates))
	}
	got := res.Ambiguous[0]
	if !got.PossibleDuplicate || !got.NeedsReview {
		t.Error("ambiguous record must carry possible-duplicate and review flags")
	}
	if got.DuplicateCheckConfidence < DefaultOptions().AmbiguousThreshold {
		t.Errorf("confidence = %v, want >= %v", got.DuplicateCheckConfidence, DefaultOptions().AmbiguousThreshold)
	}
}

func TestCancellationRemovesExistingOriginal(t *testing.T) {
	existing := []model.Transaction{
		txn("e1", "2025-03-01", "", "스타벅스 강남점", 5500),
	}
	cancel := txn("c1", "2025-03-03", "", "스타벅스 강남점", 5500)
	cancel.IsCancelled = true
	cancel.OriginalAmount = -5500

	res := Merge([]model.Transaction{cancel}, existing, DefaultOptions())
	if len(res.RemovedExistingIDs) != 1 || res.RemovedExistingIDs[0] != "e1" {
		t.Fatalf("removed = %v, want [e1]", res.RemovedExistingIDs)
	}
	if len(res.CancelledIDs) != 1 || res.CancelledIDs[0] != "c1" {
		t.Fatalf("cancelled = %v, want [c1]", res.CancelledIDs)
	}
	if len(res.Accepted)+len(res.Ambiguous) != 0 {
		t.Error("cancellation row must not be stored")
	}
}

func TestCancellationPairWithinBatch(t *testing.T) {
	purchase := txn("p1", "2025-03-01", "", "올리브영 명동점", 23000)
	cancel := txn("c1", "2025-03-02", "", "올리브영 명동점", 23000)
	cancel.OriginalAmount = -23000

	res := Merge([]model.Transaction{purchase, cancel}, nil, DefaultOptions())
	if len(res.Accepted)+len(res.Ambiguous) != 0 {
		t.Errorf("stored %d records, want 0 (pair cancels out)", len(res.Accepted)+len(res.Ambiguous))
	}
	if len(res.CancelledIDs) != 1 {
		t.Errorf("cancelled = %v, want the refund row only", res.CancelledIDs)
	}
}

func TestCancellationRespectsDayGap(t *testing.T) {
	existing := []model.Transaction{
		txn("e1", "2025-03-01", "", "스타벅스 강남점", 5500),
	}
	cancel := txn("c1", "2025-03-10", "", "스타벅스 강남점", 5500)
	cancel.OriginalAmount = -5500

	res := Merge([]model.Transaction{cancel}, existing, DefaultOptions())
	if len(res.RemovedExistingIDs) != 0 {
		t.Errorf("removed = %v, want none beyond the 4-day window", res.RemovedExistingIDs)
	}
	// With no match inside the window the refund row is kept as a record
	// of its own.
	if len(res.CancelledIDs) != 0 {
		t.Errorf("cancelled = %v, want none", res.CancelledIDs)
	}
	if len(res.Accepted) != 1 || res.Accepted[0].ID != "c1" {
		t.Errorf("accepted = %v, want the unmatched refund stored", res.Accepted)
	}
}

func TestUnmatchedRefundIsStored(t *testing.T) {
	cancel := txn("c1", "2025-03-02", "", "ABC마트 취소", 50000)
	cancel.OriginalAmount = -50000
	cancel.IsCancelled = true

	res := Merge([]model.Transaction{cancel}, nil, DefaultOptions())
	if len(res.CancelledIDs) != 0 {
		t.Errorf("cancelled = %v, want none without an offsetting purchase", res.CancelledIDs)
	}
	if len(res.Duplicates) != 0 {
		t.Errorf("duplicates = %v, want none", res.Duplicates)
	}
	if len(res.Accepted) != 1 || res.Accepted[0].ID != "c1" {
		t.Errorf("accepted = %v, want [c1]", res.Accepted)
	}
}

func TestCancellationAmountTolerance(t *testing.T) {
	existing := []model.Transaction{
		txn("e1", "2025-03-01", "", "스타벅스 강남점", 5500),
	}
	cancel := txn("c1", "2025-03-02", "", "스타벅스 강남점", 5501)
	cancel.OriginalAmount = -5501

	res := Merge([]model.Transaction{cancel}, existing, DefaultOptions())
	if len(res.RemovedExistingIDs) != 1 {
		t.Errorf("removed = %v, want e1 within 1-unit tolerance", res.RemovedExistingIDs)
	}
}
