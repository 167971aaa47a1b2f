// Package firestore persists transactions and mappings in Cloud Firestore.
// Transactions live under profiles/{profileID}/transactions; the personal
// name mappings sit beside them as a settings document, while the shared
// keyword and merchant mappings are top-level settings documents.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/txnflow/internal/model"
	"github.com/dvloznov/txnflow/internal/normalize"
	"github.com/dvloznov/txnflow/internal/store"
)

const (
	profilesCollection     = "profiles"
	transactionsCollection = "transactions"
	settingsCollection     = "settings"

	personalMappingsDoc = "transactionNameMappings"
	keywordMappingsDoc  = "keywordCategoryMappings"
	merchantMappingsDoc = "merchantCategoryMappings"
)

// Store implements store.TransactionStore and store.MappingStore on
// Firestore.
type Store struct {
	client *firestore.Client
}

var (
	_ store.TransactionStore = (*Store)(nil)
	_ store.MappingStore     = (*Store)(nil)
)

// New creates a Store with its own Firestore client.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("New: firestore client: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client; the caller owns its lifecycle.
func NewWithClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) transactions(profileID string) *firestore.CollectionRef {
	return s.client.Collection(profilesCollection).Doc(profileID).Collection(transactionsCollection)
}

// SaveTransactions upserts a batch of transactions.
func (s *Store) SaveTransactions(ctx context.Context, profileID string, txns []model.Transaction) error {
	return s.MergeTransactions(ctx, profileID, txns, nil)
}

// MergeTransactions deletes removeIDs and upserts txns in one bulk write.
func (s *Store) MergeTransactions(ctx context.Context, profileID string, txns []model.Transaction, removeIDs []string) error {
	if len(txns) == 0 && len(removeIDs) == 0 {
		return nil
	}
	coll := s.transactions(profileID)
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(removeIDs)+len(txns))
	for _, id := range removeIDs {
		job, err := bw.Delete(coll.Doc(id))
		if err != nil {
			return fmt.Errorf("MergeTransactions: queue delete %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	for _, txn := range txns {
		job, err := bw.Set(coll.Doc(txn.ID), txn)
		if err != nil {
			return fmt.Errorf("MergeTransactions: queue set %s: %w", txn.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	// End flushes but individual writes can still fail; each job carries
	// its own result.
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("MergeTransactions: write: %w", err)
		}
	}
	return nil
}

// GetTransactions lists transactions matching the filter, newest date first.
func (s *Store) GetTransactions(ctx context.Context, profileID string, filter store.TransactionFilter) ([]model.Transaction, error) {
	q := s.transactions(profileID).Query
	if filter.StartDate != "" {
		q = q.Where("date", ">=", filter.StartDate)
	}
	if filter.EndDate != "" {
		q = q.Where("date", "<=", filter.EndDate)
	}
	if filter.Type != "" {
		q = q.Where("type", "==", string(filter.Type))
	}
	q = q.OrderBy("date", firestore.Desc)

	it := q.Documents(ctx)
	defer it.Stop()

	var txns []model.Transaction
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: iterate: %w", err)
		}
		var txn model.Transaction
		if err := doc.DataTo(&txn); err != nil {
			return nil, fmt.Errorf("GetTransactions: decode %s: %w", doc.Ref.ID, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// ReplaceAllTransactions swaps the profile's whole transaction set.
func (s *Store) ReplaceAllTransactions(ctx context.Context, profileID string, txns []model.Transaction) error {
	ids, err := s.transactionIDs(ctx, profileID)
	if err != nil {
		return fmt.Errorf("ReplaceAllTransactions: %w", err)
	}
	if err := s.MergeTransactions(ctx, profileID, txns, ids); err != nil {
		return fmt.Errorf("ReplaceAllTransactions: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, profileID, id string) error {
	if _, err := s.transactions(profileID).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("DeleteTransaction: %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteAllTransactions(ctx context.Context, profileID string) error {
	ids, err := s.transactionIDs(ctx, profileID)
	if err != nil {
		return fmt.Errorf("DeleteAllTransactions: %w", err)
	}
	if err := s.MergeTransactions(ctx, profileID, nil, ids); err != nil {
		return fmt.Errorf("DeleteAllTransactions: %w", err)
	}
	return nil
}

func (s *Store) transactionIDs(ctx context.Context, profileID string) ([]string, error) {
	it := s.transactions(profileID).Select().Documents(ctx)
	defer it.Stop()

	var ids []string
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transactionIDs: iterate: %w", err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

// PersonalMappings loads the profile's name→category map.
func (s *Store) PersonalMappings(ctx context.Context, profileID string) (map[string]string, error) {
	ref := s.client.Collection(profilesCollection).Doc(profileID).
		Collection(settingsCollection).Doc(personalMappingsDoc)
	return s.mappingDoc(ctx, ref)
}

// SavePersonalMapping records one name→category choice for the profile. Keys
// are stored trimmed and case-folded so lookups are insensitive to source
// formatting.
func (s *Store) SavePersonalMapping(ctx context.Context, profileID, text, category string) error {
	ref := s.client.Collection(profilesCollection).Doc(profileID).
		Collection(settingsCollection).Doc(personalMappingsDoc)
	return s.setMappingKey(ctx, ref, normalize.Key(text), category)
}

func (s *Store) DeletePersonalMapping(ctx context.Context, profileID, text string) error {
	ref := s.client.Collection(profilesCollection).Doc(profileID).
		Collection(settingsCollection).Doc(personalMappingsDoc)
	return s.deleteMappingKey(ctx, ref, normalize.Key(text))
}

// KeywordMappings loads the shared keyword→category map.
func (s *Store) KeywordMappings(ctx context.Context) (map[string]string, error) {
	return s.mappingDoc(ctx, s.client.Collection(settingsCollection).Doc(keywordMappingsDoc))
}

func (s *Store) SaveKeywordMapping(ctx context.Context, keyword, category string) error {
	ref := s.client.Collection(settingsCollection).Doc(keywordMappingsDoc)
	return s.setMappingKey(ctx, ref, normalize.Key(keyword), category)
}

func (s *Store) DeleteKeywordMapping(ctx context.Context, keyword string) error {
	ref := s.client.Collection(settingsCollection).Doc(keywordMappingsDoc)
	return s.deleteMappingKey(ctx, ref, normalize.Key(keyword))
}

// MerchantCategory looks up the shared merchant mapping. Keys are the
// normalized merchant name so "스타벅스 강남점" and "스타벅스" resolve alike.
func (s *Store) MerchantCategory(ctx context.Context, merchantName string) (string, bool, error) {
	mappings, err := s.mappingDoc(ctx, s.client.Collection(settingsCollection).Doc(merchantMappingsDoc))
	if err != nil {
		return "", false, fmt.Errorf("MerchantCategory: %w", err)
	}
	category, ok := mappings[normalize.Merchant(merchantName)]
	return category, ok, nil
}

func (s *Store) SaveMerchantCategory(ctx context.Context, merchantName, category string) error {
	ref := s.client.Collection(settingsCollection).Doc(merchantMappingsDoc)
	return s.setMappingKey(ctx, ref, normalize.Merchant(merchantName), category)
}

func (s *Store) mappingDoc(ctx context.Context, ref *firestore.DocumentRef) (map[string]string, error) {
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("mappingDoc: get %s: %w", ref.ID, err)
	}

	mappings := make(map[string]string)
	for key, value := range snap.Data() {
		if category, ok := value.(string); ok {
			mappings[key] = category
		}
	}
	return mappings, nil
}

func (s *Store) setMappingKey(ctx context.Context, ref *firestore.DocumentRef, key, category string) error {
	if key == "" {
		return fmt.Errorf("setMappingKey: empty key for %s", ref.ID)
	}
	if _, err := ref.Set(ctx, map[string]interface{}{key: category}, firestore.MergeAll); err != nil {
		return fmt.Errorf("setMappingKey: %s: %w", ref.ID, err)
	}
	return nil
}

func (s *Store) deleteMappingKey(ctx context.Context, ref *firestore.DocumentRef, key string) error {
	update := firestore.Update{FieldPath: firestore.FieldPath{key}, Value: firestore.Delete}
	if _, err := ref.Update(ctx, []firestore.Update{update}); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("deleteMappingKey: %s: %w", ref.ID, err)
	}
	return nil
}
