package audit

import (
	"context"

	"github.com/wolfeidau/traceledger/internal/models"
)

// ContextRecorder records events through a Log using the context of the
// operation currently being applied. Only a single writer may use it.
type ContextRecorder struct {
	log *Log
	ctx context.Context
}

// NewContextRecorder returns a recorder appending to l.
func NewContextRecorder(l *Log) *ContextRecorder {
	return &ContextRecorder{log: l, ctx: context.Background()}
}

// Use sets the context for subsequent Record calls.
func (r *ContextRecorder) Use(ctx context.Context) {
	r.ctx = ctx
}

func (r *ContextRecorder) Record(ev models.Event) (*models.AuditRecord, error) {
	return r.log.Append(r.ctx, ev)
}
