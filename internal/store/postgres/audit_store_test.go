package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    store.AuditFilter
		wantWhere string
		wantArgs  int
	}{
		{
			name:      "no filter",
			filter:    store.AuditFilter{},
			wantWhere: "FROM audit_records ORDER BY sequence ASC",
			wantArgs:  0,
		},
		{
			name: "batch history",
			filter: store.AuditFilter{
				Kinds:  []models.EventKind{models.EventProcessesUpdated, models.EventStatusUpdated},
				Ledger: "h1",
				Key:    "P1",
				SubKey: "B1",
			},
			wantWhere: "WHERE kind = ANY($1) AND ledger = $2 AND key = $3 AND sub_key = $4 ORDER BY sequence ASC",
			wantArgs:  4,
		},
		{
			name:      "from sequence with limit",
			filter:    store.AuditFilter{FromSequence: 10, Caller: "0xabc", Limit: 5},
			wantWhere: "WHERE sequence >= $1 AND caller = $2 ORDER BY sequence ASC LIMIT $3",
			wantArgs:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.filter)
			require.Contains(t, query, tt.wantWhere)
			require.Len(t, args, tt.wantArgs)
		})
	}
}

func TestBuildListQueryBindsTextAsBytes(t *testing.T) {
	_, args := buildListQuery(store.AuditFilter{Ledger: "h1", Key: "P\x001", Caller: "0xabc"})
	require.Equal(t, []any{[]byte("h1"), []byte("P\x001"), []byte("0xabc")}, args)
}
