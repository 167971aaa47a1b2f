package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txnflow/internal/dedup"
	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/parser"
	"github.com/dvloznov/txnflow/internal/store"
	"github.com/dvloznov/txnflow/internal/store/memory"
)

func newTestIngestor(st *memory.Store) *Ingestor {
	log := zerolog.Nop()
	return NewIngestor(parser.New(log), st, st, st, nil, dedup.DefaultOptions(), log)
}

func csvFile(name string, lines ...string) File {
	return File{Name: name, Data: []byte(strings.Join(lines, "\n"))}
}

func TestIngestFileEndToEnd(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	res, err := in.IngestFile(ctx, "p1", "shinhan.csv",
		[]byte(strings.Join([]string{
			"날짜,내용,금액",
			"2025-03-01,스타벅스 역삼점,5500",
			"2025-03-02,카카오택시,12000",
			"2025-03-03,알수없는가게,30000",
		}, "\n")))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 3, res.Stored)
	assert.Equal(t, 0, res.Duplicates)
	assert.Empty(t, res.SkippedFiles)

	saved, err := st.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	byName := make(map[string]model.Transaction)
	for _, txn := range saved {
		byName[txn.OriginalText] = txn
	}
	assert.Equal(t, "식비", byName["스타벅스 역삼점"].Category)
	assert.Equal(t, "식비", byName["스타벅스 역삼점"].AICategory)
	assert.Equal(t, "교통비", byName["카카오택시"].Category)

	unknown := byName["알수없는가게"]
	assert.Equal(t, model.CategoryOther, unknown.Category)
	assert.True(t, unknown.NeedsReview)
	assert.Empty(t, unknown.AICategory)
}

func TestIngestFileIdempotent(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	file := csvFile("export.csv",
		"날짜,내용,금액",
		"2025-03-01,GS25 서초점,4300",
		"2025-03-02,쿠팡,28900",
	)

	first, err := in.IngestFiles(ctx, "p1", []File{file})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stored)

	second, err := in.IngestFiles(ctx, "p1", []File{file})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, 2, second.Duplicates)

	saved, err := st.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestIngestCancellationPairInBatch(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	res, err := in.IngestFile(ctx, "p1", "card.csv",
		[]byte(strings.Join([]string{
			"날짜,내용,금액",
			"2025-03-01,ABC마트,50000",
			"2025-03-02,ABC마트 취소,-50000",
			"2025-03-03,GS25,4300",
		}, "\n")))
	require.NoError(t, err)

	// The purchase and its refund cancel each other out.
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Cancelled)

	saved, err := st.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "GS25", saved[0].OriginalText)
}

func TestIngestCancellationRemovesStored(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	_, err := in.IngestFile(ctx, "p1", "march.csv",
		[]byte("날짜,내용,금액\n2025-03-01,ABC마트,50000"))
	require.NoError(t, err)

	res, err := in.IngestFile(ctx, "p1", "refund.csv",
		[]byte("날짜,내용,금액\n2025-03-02,ABC마트 취소,-50000"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stored)

	saved, err := st.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestIngestSkipsBadFileKeepsBatch(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	res, err := in.IngestFiles(ctx, "p1", []File{
		csvFile("good.csv", "날짜,내용,금액", "2025-03-01,GS25,4300"),
		{Name: "broken.xlsx", Data: []byte("not a spreadsheet")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stored)
	require.Len(t, res.SkippedFiles, 1)
	assert.Equal(t, "broken.xlsx", res.SkippedFiles[0].Name)
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	in := newTestIngestor(memory.New())

	_, err := in.IngestFiles(context.Background(), "p1", []File{
		{Name: "notes.pdf", Data: []byte("%PDF")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file types")
}

func TestIngestRequiresProfileID(t *testing.T) {
	in := newTestIngestor(memory.New())

	_, err := in.IngestFiles(context.Background(), "", []File{
		csvFile("a.csv", "날짜,내용,금액", "2025-03-01,GS25,4300"),
	})
	require.Error(t, err)
}

func TestPersonalMappingWinsOnIngest(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	require.NoError(t, st.SavePersonalMapping(ctx, "p1", "스타벅스 역삼점", "유흥"))

	res, err := in.IngestFile(ctx, "p1", "coffee.csv",
		[]byte("날짜,내용,금액\n2025-03-01,스타벅스 역삼점,5500"))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "유흥", res.Transactions[0].Category)
	assert.False(t, res.Transactions[0].NeedsReview)
}

func TestReclassifyAppliesNewMapping(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	_, err := in.IngestFile(ctx, "p1", "shop.csv",
		[]byte("날짜,내용,금액\n2025-03-03,동네반찬가게,15000"))
	require.NoError(t, err)

	// Still unclassified, so nothing changes without a mapping.
	res, err := in.Reclassify(ctx, "p1", ScopeNeedsReview, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Examined)
	assert.Equal(t, 0, res.Updated)

	require.NoError(t, st.SavePersonalMapping(ctx, "p1", "동네반찬가게", "식비"))

	res, err = in.Reclassify(ctx, "p1", ScopeNeedsReview, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	saved, err := st.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "식비", saved[0].Category)
	assert.Equal(t, "식비", saved[0].AICategory)
	assert.False(t, saved[0].NeedsReview)
}

func TestReclassifySkipsUserConfirmed(t *testing.T) {
	st := memory.New()
	in := newTestIngestor(st)
	ctx := context.Background()

	require.NoError(t, st.SaveTransactions(ctx, "p1", []model.Transaction{{
		ID:            "t1",
		ProfileID:     "p1",
		Date:          "2025-03-01",
		Type:          model.TypeExpense,
		Category:      model.CategoryOther,
		Name:          "수동확정",
		OriginalText:  "수동확정",
		Amount:        10000,
		NeedsReview:   true,
		UserConfirmed: true,
	}}))
	require.NoError(t, st.SavePersonalMapping(ctx, "p1", "수동확정", "식비"))

	res, err := in.Reclassify(ctx, "p1", ScopeAll, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Examined)
	assert.Equal(t, 0, res.Updated)
}

func TestReclassifyRejectsUnknownScope(t *testing.T) {
	in := newTestIngestor(memory.New())

	_, err := in.Reclassify(context.Background(), "p1", "everything", 0)
	require.Error(t, err)
}
