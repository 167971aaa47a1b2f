// Package store defines the persistence contracts for transactions and
// category mappings. Implementations live in the firestore and memory
// subpackages.
package store

import (
	"context"

	"github.com/dvloznov/txnflow/internal/model"
)

// TransactionFilter narrows a transaction listing. Zero values mean no
// constraint on that axis.
type TransactionFilter struct {
	// StartDate and EndDate bound the calendar date, inclusive, as
	// YYYY-MM-DD strings.
	StartDate string
	EndDate   string
	Type      model.TransactionType
}

// TransactionStore is the per-profile transaction collection.
type TransactionStore interface {
	// SaveTransactions upserts a batch of transactions.
	SaveTransactions(ctx context.Context, profileID string, txns []model.Transaction) error

	// MergeTransactions applies one merge outcome atomically: removeIDs
	// are deleted and txns are upserted in the same batch.
	MergeTransactions(ctx context.Context, profileID string, txns []model.Transaction, removeIDs []string) error

	// GetTransactions lists transactions matching the filter, newest date
	// first.
	GetTransactions(ctx context.Context, profileID string, filter TransactionFilter) ([]model.Transaction, error)

	// ReplaceAllTransactions swaps the profile's whole set for txns.
	ReplaceAllTransactions(ctx context.Context, profileID string, txns []model.Transaction) error

	DeleteTransaction(ctx context.Context, profileID, id string) error
	DeleteAllTransactions(ctx context.Context, profileID string) error
}

// MappingStore holds the three classification mapping tiers: the profile's
// personal name mappings, the shared keyword mappings, and the shared
// merchant mappings written by the classification oracle.
type MappingStore interface {
	PersonalMappings(ctx context.Context, profileID string) (map[string]string, error)
	SavePersonalMapping(ctx context.Context, profileID, text, category string) error
	DeletePersonalMapping(ctx context.Context, profileID, text string) error

	KeywordMappings(ctx context.Context) (map[string]string, error)
	SaveKeywordMapping(ctx context.Context, keyword, category string) error
	DeleteKeywordMapping(ctx context.Context, keyword string) error

	MerchantCategory(ctx context.Context, merchantName string) (string, bool, error)
	SaveMerchantCategory(ctx context.Context, merchantName, category string) error
}
