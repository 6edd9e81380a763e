package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
	"github.com/wolfeidau/traceledger/internal/store/memory"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLog(t *testing.T) (*Log, *memory.AuditStore) {
	t.Helper()
	s := memory.NewAuditStore()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.FixedZone("AEST", 10*3600))}
	return New(s, Config{Clock: clock.Now, SubscriberBuffer: 8}), s
}

func processes(product, batch, text string) models.Event {
	return models.Event{
		Kind:   models.EventProcessesUpdated,
		Ledger: "h1",
		Key:    product,
		SubKey: batch,
		Values: map[string]string{models.ValueProcesses: text},
		Caller: "0xauditor",
	}
}

func TestLog_Append(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t)

	first, err := l.Append(ctx, processes("P1", "B1", "washed"))
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Sequence)
	require.Equal(t, GenesisHash, first.PrevHash)
	require.Len(t, first.Hash, 64)
	require.Equal(t, time.UTC, first.Timestamp.Location())
	require.Zero(t, first.Timestamp.Nanosecond()%1000)

	second, err := l.Append(ctx, processes("P1", "B2", "dried"))
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Sequence)
	require.Equal(t, first.Hash, second.PrevHash)
	require.NotEqual(t, first.Hash, second.Hash)

	seq, err := l.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), seq)

	n, err := l.Verify(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestLog_ResumesFromStore(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLog(t)

	_, err := l.Append(ctx, processes("P1", "B1", "a"))
	require.NoError(t, err)
	last, err := l.Append(ctx, processes("P1", "B1", "b"))
	require.NoError(t, err)

	reopened := New(s, Config{})
	rec, err := reopened.Append(ctx, processes("P1", "B1", "c"))
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.Sequence)
	require.Equal(t, last.Hash, rec.PrevHash)

	_, err = reopened.Verify(ctx)
	require.NoError(t, err)
}

func TestLog_AppendFailureLeavesChainIntact(t *testing.T) {
	ctx := context.Background()
	l, s := newTestLog(t)

	_, err := l.Append(ctx, processes("P1", "B1", "a"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = l.Append(ctx, processes("P1", "B1", "b"))
	require.ErrorIs(t, err, store.ErrStoreClosed)

	seq, err := l.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
}

func TestVerifyChain(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t)
	for _, b := range []string{"B1", "B2", "B3"} {
		_, err := l.Append(ctx, processes("P1", b, "x"))
		require.NoError(t, err)
	}
	good, err := l.Replay(ctx, store.AuditFilter{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		tamper func(recs []*models.AuditRecord) []*models.AuditRecord
	}{
		{
			name: "edited value",
			tamper: func(recs []*models.AuditRecord) []*models.AuditRecord {
				recs[1].Values[models.ValueProcesses] = "forged"
				return recs
			},
		},
		{
			name: "edited caller",
			tamper: func(recs []*models.AuditRecord) []*models.AuditRecord {
				recs[0].Caller = "0xmallory"
				return recs
			},
		},
		{
			name: "rehashed record breaks the next link",
			tamper: func(recs []*models.AuditRecord) []*models.AuditRecord {
				recs[1].SubKey = "B9"
				recs[1].Hash, _ = ComputeHash(recs[1])
				return recs
			},
		},
		{
			name: "dropped record",
			tamper: func(recs []*models.AuditRecord) []*models.AuditRecord {
				return append(recs[:1], recs[2:]...)
			},
		},
		{
			name: "reordered records",
			tamper: func(recs []*models.AuditRecord) []*models.AuditRecord {
				recs[1], recs[2] = recs[2], recs[1]
				return recs
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := make([]*models.AuditRecord, len(good))
			for i, rec := range good {
				recs[i] = rec.Clone()
			}
			_, err := VerifyChain(tt.tamper(recs))
			require.ErrorIs(t, err, store.ErrChainBroken)
		})
	}

	n, err := VerifyChain(good)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestComputeHash_NilAndEmptyValuesMatch(t *testing.T) {
	rec := &models.AuditRecord{Sequence: 1, Timestamp: time.Unix(0, 0), PrevHash: GenesisHash}
	a, err := ComputeHash(rec)
	require.NoError(t, err)

	rec.Values = map[string]string{}
	b, err := ComputeHash(rec)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestLog_BatchHistory(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t)

	_, err := l.Append(ctx, processes("P1", "B1", "harvested"))
	require.NoError(t, err)
	_, err = l.Append(ctx, processes("P1", "B2", "other batch"))
	require.NoError(t, err)
	_, err = l.Append(ctx, models.Event{
		Kind: models.EventStatusUpdated, Ledger: "h1", Key: "P1", SubKey: "B1",
		Values: map[string]string{models.ValueStatus: "shipped"},
	})
	require.NoError(t, err)
	_, err = l.Append(ctx, processes("P1", "B1", "other ledger"))
	require.NoError(t, err)

	hist, err := l.BatchHistory(ctx, "h1", "P1", "B1")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.Equal(t, "harvested", hist[0].Values[models.ValueProcesses])
	require.Equal(t, "shipped", hist[1].Values[models.ValueStatus])
}

func receive(t *testing.T, ch <-chan *models.AuditRecord) *models.AuditRecord {
	t.Helper()
	select {
	case rec, ok := <-ch:
		require.True(t, ok, "channel closed")
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit record")
		return nil
	}
}

func TestLog_Subscribe(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLog(t)

	_, err := l.Append(ctx, processes("P1", "B1", "one"))
	require.NoError(t, err)
	_, err = l.Append(ctx, processes("P2", "B1", "two"))
	require.NoError(t, err)

	subCtx, cancel := context.WithCancel(ctx)
	ch, err := l.Subscribe(subCtx, store.AuditFilter{Key: "P1"})
	require.NoError(t, err)

	require.Equal(t, int64(1), receive(t, ch).Sequence)

	_, err = l.Append(ctx, processes("P2", "B1", "skipped"))
	require.NoError(t, err)
	_, err = l.Append(ctx, processes("P1", "B3", "live"))
	require.NoError(t, err)

	rec := receive(t, ch)
	require.Equal(t, int64(4), rec.Sequence)
	require.Equal(t, "live", rec.Values[models.ValueProcesses])

	cancel()
	for range ch {
	}
}

func TestLog_SubscribeFromSequence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, _ := newTestLog(t)

	for _, b := range []string{"B1", "B2", "B3"} {
		_, err := l.Append(ctx, processes("P1", b, "x"))
		require.NoError(t, err)
	}

	ch, err := l.Subscribe(ctx, store.AuditFilter{FromSequence: 3})
	require.NoError(t, err)
	require.Equal(t, int64(3), receive(t, ch).Sequence)

	_, err = l.Append(ctx, processes("P1", "B4", "x"))
	require.NoError(t, err)
	require.Equal(t, int64(4), receive(t, ch).Sequence)
}

func TestLog_SlowSubscriberIsClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, _ := newTestLog(t)

	ch, err := l.Subscribe(ctx, store.AuditFilter{})
	require.NoError(t, err)

	// the subscriber never reads, so the live buffer and the output
	// channel fill up and the subscription is dropped
	for i := 0; i < 200; i++ {
		_, err := l.Append(ctx, processes("P1", "B1", "x"))
		require.NoError(t, err)
	}

	count := 0
	for range ch {
		count++
	}
	require.Less(t, count, 200)
}
