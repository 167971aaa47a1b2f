// Package memory is an in-memory implementation of the store contracts, used
// by tests and the one-shot CLI.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/normalize"
	"github.com/dvloznov/txnflow/internal/store"
)

// Store keeps everything in maps guarded by one RWMutex. Values are copied
// on the way in and out so callers can't mutate shared state.
type Store struct {
	mu               sync.RWMutex
	transactions     map[string]map[string]model.Transaction // profileID -> txnID -> txn
	personalMappings map[string]map[string]string            // profileID -> key -> category
	keywordMappings  map[string]string
	merchantMappings map[string]string
}

var (
	_ store.TransactionStore = (*Store)(nil)
	_ store.MappingStore     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		transactions:     make(map[string]map[string]model.Transaction),
		personalMappings: make(map[string]map[string]string),
		keywordMappings:  make(map[string]string),
		merchantMappings: make(map[string]string),
	}
}

func (s *Store) SaveTransactions(ctx context.Context, profileID string, txns []model.Transaction) error {
	return s.MergeTransactions(ctx, profileID, txns, nil)
}

func (s *Store) MergeTransactions(_ context.Context, profileID string, txns []model.Transaction, removeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.transactions[profileID]
	if coll == nil {
		coll = make(map[string]model.Transaction)
		s.transactions[profileID] = coll
	}
	for _, id := range removeIDs {
		delete(coll, id)
	}
	for _, txn := range txns {
		coll[txn.ID] = txn
	}
	return nil
}

func (s *Store) GetTransactions(_ context.Context, profileID string, filter store.TransactionFilter) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txns []model.Transaction
	for _, txn := range s.transactions[profileID] {
		if filter.StartDate != "" && txn.Date < filter.StartDate {
			continue
		}
		if filter.EndDate != "" && txn.Date > filter.EndDate {
			continue
		}
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].Date != txns[j].Date {
			return txns[i].Date > txns[j].Date
		}
		return txns[i].ID < txns[j].ID
	})
	return txns, nil
}

func (s *Store) ReplaceAllTransactions(_ context.Context, profileID string, txns []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := make(map[string]model.Transaction, len(txns))
	for _, txn := range txns {
		coll[txn.ID] = txn
	}
	s.transactions[profileID] = coll
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, profileID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions[profileID], id)
	return nil
}

func (s *Store) DeleteAllTransactions(_ context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, profileID)
	return nil
}

func (s *Store) PersonalMappings(_ context.Context, profileID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.personalMappings[profileID]), nil
}

func (s *Store) SavePersonalMapping(_ context.Context, profileID, text, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.personalMappings[profileID] == nil {
		s.personalMappings[profileID] = make(map[string]string)
	}
	s.personalMappings[profileID][normalize.Key(text)] = category
	return nil
}

func (s *Store) DeletePersonalMapping(_ context.Context, profileID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.personalMappings[profileID], normalize.Key(text))
	return nil
}

func (s *Store) KeywordMappings(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.keywordMappings), nil
}

func (s *Store) SaveKeywordMapping(_ context.Context, keyword, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywordMappings[normalize.Key(keyword)] = category
	return nil
}

func (s *Store) DeleteKeywordMapping(_ context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keywordMappings, normalize.Key(keyword))
	return nil
}

func (s *Store) MerchantCategory(_ context.Context, merchantName string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.merchantMappings[normalize.Merchant(merchantName)]
	return category, ok, nil
}

func (s *Store) SaveMerchantCategory(_ context.Context, merchantName, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchantMappings[normalize.Merchant(merchantName)] = category
	return nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
