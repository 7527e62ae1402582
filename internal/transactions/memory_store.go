package transactions

import (
	"context"
	"sort"
	"sync"

	"github.com/mbd888/fraudguard/internal/risk"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu   sync.RWMutex
	txns map[string]*Transaction
}

// NewMemoryStore creates an in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txns: make(map[string]*Transaction)}
}

func (s *MemoryStore) Upsert(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[tx.ID] = tx.clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*Transaction, error) {
	opts = opts.normalized()

	s.mu.RLock()
	matched := make([]*Transaction, 0, len(s.txns))
	for _, tx := range s.txns {
		if opts.Prediction != "" && string(tx.Prediction) != opts.Prediction {
			continue
		}
		if opts.StartDate != "" && tx.Timestamp < opts.StartDate {
			continue
		}
		if opts.EndDate != "" && tx.Timestamp > opts.EndDate {
			continue
		}
		matched = append(matched, tx)
	}
	s.mu.RUnlock()

	// Newest first; id breaks ties so paging is stable.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp != matched[j].Timestamp {
			return matched[i].Timestamp > matched[j].Timestamp
		}
		return matched[i].ID > matched[j].ID
	})

	if opts.Offset >= len(matched) {
		return []*Transaction{}, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]*Transaction, 0, end-opts.Offset)
	for _, tx := range matched[opts.Offset:end] {
		result = append(result, tx.clone())
	}
	return result, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var fraud int64
	for _, tx := range s.txns {
		if tx.Prediction == risk.PredictionFraudulent {
			fraud++
		}
	}
	return NewStats(int64(len(s.txns)), fraud), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[id]; !ok {
		return false, nil
	}
	delete(s.txns, id)
	return true, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.txns))
	s.txns = make(map[string]*Transaction)
	return n, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
