package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

var _ store.AuditStore = (*AuditStore)(nil)

// AuditStore implements store.AuditStore using in-memory storage.
// Data is lost on restart.
type AuditStore struct {
	mu sync.RWMutex

	records []*models.AuditRecord
	closed  bool
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Append stores a copy of rec.
func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}

	if want := int64(len(s.records)) + 1; rec.Sequence != want {
		return fmt.Errorf("%w: got %d, want %d", store.ErrSequenceConflict, rec.Sequence, want)
	}

	// Clone to avoid external modifications
	s.records = append(s.records, rec.Clone())

	return nil
}

// List returns copies of matching records in sequence order.
func (s *AuditStore) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}

	start := 0
	if filter.FromSequence > 1 {
		start = int(min(filter.FromSequence-1, int64(len(s.records))))
	}

	var out []*models.AuditRecord
	for _, rec := range s.records[start:] {
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, rec.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	return out, nil
}

// Last returns a copy of the most recent record.
func (s *AuditStore) Last(ctx context.Context) (*models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}

	if len(s.records) == 0 {
		return nil, nil
	}

	return s.records[len(s.records)-1].Clone(), nil
}

func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
