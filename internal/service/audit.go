package service

import (
	"context"

	"github.com/wolfeidau/traceledger/internal/ledger"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

// Replay returns audit records matching filter.
func (s *Service) Replay(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	return s.log.Replay(ctx, filter)
}

// Subscribe streams matching history followed by live audit records.
func (s *Service) Subscribe(ctx context.Context, filter store.AuditFilter) (<-chan *models.AuditRecord, error) {
	return s.log.Subscribe(ctx, filter)
}

// BatchHistory returns the process and status history of one batch.
func (s *Service) BatchHistory(ctx context.Context, handle, productID, batchID string) ([]*models.AuditRecord, error) {
	if err := s.readLedger(handle, func(*ledger.Ledger) error { return nil }); err != nil {
		return nil, err
	}
	return s.log.BatchHistory(ctx, handle, productID, batchID)
}

// Verify checks the audit hash chain and returns the number of records.
func (s *Service) Verify(ctx context.Context) (int64, error) {
	return s.log.Verify(ctx)
}

// LastSequence returns the sequence of the newest audit record.
func (s *Service) LastSequence(ctx context.Context) (int64, error) {
	return s.log.LastSequence(ctx)
}
