//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*AuditStore, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &AuditStoreConfig{
		Pool: PoolConfig{
			ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		},
		AutoMigrate: true,
	}

	s, err := NewAuditStore(ctx, cfg)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = container.Terminate(ctx)
	}

	return s, cleanup
}

func testRecord(seq int64, kind models.EventKind, key, subKey string, values map[string]string) *models.AuditRecord {
	return &models.AuditRecord{
		Sequence:  seq,
		Timestamp: time.Date(2026, 3, 1, 12, 0, int(seq), 123000, time.UTC),
		Event: models.Event{
			Kind:   kind,
			Ledger: "h1",
			Key:    key,
			SubKey: subKey,
			Values: values,
			Caller: "0xcaller",
		},
		PrevHash: fmt.Sprintf("prev-%d", seq),
		Hash:     fmt.Sprintf("hash-%d", seq),
	}
}

func TestIntegration_AuditStore(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	last, err := s.Last(ctx)
	require.NoError(t, err)
	require.Nil(t, last)

	require.NoError(t, s.Append(ctx, testRecord(1, models.EventProductAdded, "P1", "", map[string]string{"name": "名前🌾"})))
	require.NoError(t, s.Append(ctx, testRecord(2, models.EventProcessesUpdated, "P1", "B1", map[string]string{"processes": "x"})))
	require.NoError(t, s.Append(ctx, testRecord(3, models.EventStatusUpdated, "P1", "B1", map[string]string{"status": "y"})))

	t.Run("gaps and duplicates are rejected", func(t *testing.T) {
		require.ErrorIs(t, s.Append(ctx, testRecord(3, models.EventProductAdded, "P2", "", nil)), store.ErrSequenceConflict)
		require.ErrorIs(t, s.Append(ctx, testRecord(5, models.EventProductAdded, "P2", "", nil)), store.ErrSequenceConflict)
	})

	t.Run("round trip", func(t *testing.T) {
		recs, err := s.List(ctx, store.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, recs, 3)
		require.Equal(t, testRecord(1, models.EventProductAdded, "P1", "", map[string]string{"name": "名前🌾"}), recs[0])
	})

	t.Run("batch history", func(t *testing.T) {
		recs, err := s.List(ctx, store.AuditFilter{Ledger: "h1", Key: "P1", SubKey: "B1"})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.Equal(t, models.EventProcessesUpdated, recs[0].Kind)
		require.Equal(t, models.EventStatusUpdated, recs[1].Kind)
	})

	t.Run("nul bytes round trip", func(t *testing.T) {
		rec := testRecord(4, models.EventProcessesUpdated, "P\x001", "B\x00", map[string]string{"processes": "line\x00break"})
		rec.Caller = "0xcal\x00ler"
		require.NoError(t, s.Append(ctx, rec))

		recs, err := s.List(ctx, store.AuditFilter{Key: "P\x001", SubKey: "B\x00", Caller: "0xcal\x00ler"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, rec, recs[0])
	})

	last, err = s.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), last.Sequence)
	require.Equal(t, "line\x00break", last.Values["processes"])
}
