package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/models"
)

func TestAuditFilterMatches(t *testing.T) {
	rec := &models.AuditRecord{
		Sequence: 5,
		Event: models.Event{
			Kind:   models.EventStatusUpdated,
			Ledger: "h1",
			Key:    "P1",
			SubKey: "B1",
			Caller: "0xmanager",
		},
	}

	tests := []struct {
		name   string
		filter AuditFilter
		want   bool
	}{
		{"empty filter", AuditFilter{}, true},
		{"kind match", AuditFilter{Kinds: []models.EventKind{models.EventProcessesUpdated, models.EventStatusUpdated}}, true},
		{"kind mismatch", AuditFilter{Kinds: []models.EventKind{models.EventProductAdded}}, false},
		{"batch history", AuditFilter{Ledger: "h1", Key: "P1", SubKey: "B1"}, true},
		{"other batch", AuditFilter{Ledger: "h1", Key: "P1", SubKey: "B2"}, false},
		{"other ledger", AuditFilter{Ledger: "h2"}, false},
		{"caller match", AuditFilter{Caller: "0xmanager"}, true},
		{"caller mismatch", AuditFilter{Caller: "0xauditor"}, false},
		{"from sequence inclusive", AuditFilter{FromSequence: 5}, true},
		{"from sequence after", AuditFilter{FromSequence: 6}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}
