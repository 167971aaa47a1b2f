package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/store"
)

func TestMergeAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	txns := []model.Transaction{
		{ID: "t1", Date: "2025-03-01", Type: model.TypeExpense, Name: "스타벅스", Amount: 5500},
		{ID: "t2", Date: "2025-03-05", Type: model.TypeIncome, Name: "급여", Amount: 3000000},
		{ID: "t3", Date: "2025-03-10", Type: model.TypeExpense, Name: "김밥천국", Amount: 4000},
	}
	require.NoError(t, s.SaveTransactions(ctx, "p1", txns))

	all, err := s.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t3", all[0].ID, "newest date first")

	expenses, err := s.GetTransactions(ctx, "p1", store.TransactionFilter{Type: model.TypeExpense})
	require.NoError(t, err)
	assert.Len(t, expenses, 2)

	window, err := s.GetTransactions(ctx, "p1", store.TransactionFilter{
		StartDate: "2025-03-02", EndDate: "2025-03-09",
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "t2", window[0].ID)

	// Merge replaces t1 and drops t3.
	update := txns[0]
	update.Category = "식비"
	require.NoError(t, s.MergeTransactions(ctx, "p1", []model.Transaction{update}, []string{"t3"}))

	all, err = s.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestProfileIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveTransactions(ctx, "p1", []model.Transaction{{ID: "t1", Date: "2025-03-01"}}))
	require.NoError(t, s.SaveTransactions(ctx, "p2", []model.Transaction{{ID: "t2", Date: "2025-03-01"}}))
	require.NoError(t, s.DeleteAllTransactions(ctx, "p1"))

	p1, err := s.GetTransactions(ctx, "p1", store.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, p1)

	p2, err := s.GetTransactions(ctx, "p2", store.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, p2, 1)
}

func TestMappings(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SavePersonalMapping(ctx, "p1", "  스타벅스 강남점 ", "식비"))
	personal, err := s.PersonalMappings(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "식비", personal["스타벅스 강남점"], "keys are trimmed and case-folded")

	other, err := s.PersonalMappings(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.SaveKeywordMapping(ctx, "넷플릭스", "유흥"))
	keywords, err := s.KeywordMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "유흥", keywords["넷플릭스"])
	require.NoError(t, s.DeleteKeywordMapping(ctx, "넷플릭스"))
	keywords, err = s.KeywordMappings(ctx)
	require.NoError(t, err)
	assert.Empty(t, keywords)

	// Merchant keys normalize, so the branch name resolves to the brand.
	require.NoError(t, s.SaveMerchantCategory(ctx, "스타벅스 강남점", "식비"))
	category, ok, err := s.MerchantCategory(ctx, "스타벅스")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "식비", category)
}
