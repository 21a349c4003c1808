package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// Store is the append-only usage ledger contract. Records are written once
// per completed, successful provider call; the normal operational path
// never updates or deletes them. Append must be safe under concurrent
// writers. Retention and compaction are housekeeping concerns owned by the
// store implementation, not this interface.
type Store interface {
	Append(ctx context.Context, rec models.UsageRecord) error
	// Between returns a subscriber's records with CreatedAt in [from, to).
	Between(ctx context.Context, subscriberID string, from, to time.Time) ([]models.UsageRecord, error)
	All(ctx context.Context) ([]models.UsageRecord, error)
}

// MemoryStore is the in-process reference implementation of the Store
// contract, used in tests and single-node development runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.UsageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, rec models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) Between(_ context.Context, subscriberID string, from, to time.Time) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UsageRecord
	for _, rec := range s.records {
		if rec.SubscriberID != subscriberID {
			continue
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) All(_ context.Context) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UsageRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
