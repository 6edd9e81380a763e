package store

import (
	"context"
	"errors"
	"slices"

	"github.com/wolfeidau/traceledger/internal/models"
)

// Sentinel errors for audit store operations
var (
	ErrSequenceConflict = errors.New("audit sequence conflict")
	ErrChainBroken      = errors.New("audit hash chain broken")
	ErrStoreClosed      = errors.New("audit store closed")
)

// AuditFilter selects audit records. Zero fields match everything.
type AuditFilter struct {
	Kinds        []models.EventKind
	Ledger       string
	Key          string
	SubKey       string
	Caller       models.Identity
	FromSequence int64 // inclusive
	Limit        int
}

// Matches reports whether rec passes every set field of the filter.
// Limit is not considered.
func (f AuditFilter) Matches(rec *models.AuditRecord) bool {
	if rec.Sequence < f.FromSequence {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, rec.Kind) {
		return false
	}
	if f.Ledger != "" && rec.Ledger != f.Ledger {
		return false
	}
	if f.Key != "" && rec.Key != f.Key {
		return false
	}
	if f.SubKey != "" && rec.SubKey != f.SubKey {
		return false
	}
	if f.Caller != "" && rec.Caller != f.Caller {
		return false
	}
	return true
}

// AuditStore persists the audit log. Records are appended strictly in
// sequence order starting at 1.
type AuditStore interface {
	// Append persists rec. Returns ErrSequenceConflict unless rec.Sequence
	// is exactly one past the last stored sequence.
	Append(ctx context.Context, rec *models.AuditRecord) error

	// List returns matching records in sequence order.
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditRecord, error)

	// Last returns the most recent record, or nil if the store is empty.
	Last(ctx context.Context) (*models.AuditRecord, error)

	Close() error
}
