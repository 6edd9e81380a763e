package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

func record(seq int64, key, subKey string) *models.AuditRecord {
	return &models.AuditRecord{
		Sequence:  seq,
		Timestamp: time.Unix(1700000000+seq, 0).UTC(),
		Event: models.Event{
			Kind:   models.EventProcessesUpdated,
			Ledger: "h1",
			Key:    key,
			SubKey: subKey,
			Values: map[string]string{models.ValueProcesses: "mixing"},
			Caller: "0xabc",
		},
		PrevHash: "prev",
		Hash:     "hash",
	}
}

func openWithRecords(t *testing.T, path string, n int) *Journal {
	t.Helper()
	j, err := Open(path)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		require.NoError(t, j.Append(context.Background(), record(int64(i), "P1", "B1")))
	}
	return j
}

func TestJournal_AppendAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit", "audit.jrn")

	j := openWithRecords(t, path, 3)
	require.Equal(t, 3, j.Count())
	require.ErrorIs(t, j.Append(ctx, record(5, "P1", "B1")), store.ErrSequenceConflict)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	_, err := j.List(ctx, store.AuditFilter{})
	require.ErrorIs(t, err, store.ErrStoreClosed)

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	require.Equal(t, 3, j.Count())
	last, err := j.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), last.Sequence)
	require.Equal(t, "mixing", last.Values[models.ValueProcesses])
	require.True(t, last.Timestamp.Equal(time.Unix(1700000003, 0)))

	require.NoError(t, j.Append(ctx, record(4, "P2", "B9")))

	recs, err := j.List(ctx, store.AuditFilter{Key: "P2"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "B9", recs[0].SubKey)

	recs, err = j.List(ctx, store.AuditFilter{FromSequence: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, int64(2), recs[0].Sequence)
	require.Equal(t, int64(3), recs[1].Sequence)
}

func TestJournal_EmptyLast(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "audit.jrn"))
	require.NoError(t, err)
	defer j.Close()

	last, err := j.Last(context.Background())
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestJournal_TruncatesCorruptTail(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, path string)
		want    int
	}{
		{
			name: "trailing garbage",
			corrupt: func(t *testing.T, path string) {
				f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
				require.NoError(t, err)
				_, err = f.Write([]byte{0x01, 0x02, 0x03})
				require.NoError(t, err)
				require.NoError(t, f.Close())
			},
			want: 3,
		},
		{
			name: "flipped byte in last record",
			corrupt: func(t *testing.T, path string) {
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				data[len(data)-12] ^= 0xff
				require.NoError(t, os.WriteFile(path, data, 0o644))
			},
			want: 2,
		},
		{
			name: "torn last record",
			corrupt: func(t *testing.T, path string) {
				info, err := os.Stat(path)
				require.NoError(t, err)
				require.NoError(t, os.Truncate(path, info.Size()-5))
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "audit.jrn")
			j := openWithRecords(t, path, 3)
			require.NoError(t, j.Close())

			tt.corrupt(t, path)

			j, err := Open(path)
			require.NoError(t, err)
			defer j.Close()
			require.Equal(t, tt.want, j.Count())

			// appends continue from the last good record
			require.NoError(t, j.Append(context.Background(), record(int64(tt.want+1), "P1", "B1")))
			recs, err := j.List(context.Background(), store.AuditFilter{})
			require.NoError(t, err)
			require.Len(t, recs, tt.want+1)
		})
	}
}

func TestJournal_RejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jrn")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a journal"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jrn")
	archiveDir := filepath.Join(dir, "archive")

	j := openWithRecords(t, path, 5)
	require.NoError(t, j.Close())

	archivePath, err := Archive(path, archiveDir, false)
	require.NoError(t, err)
	require.FileExists(t, archivePath)
	require.FileExists(t, path)

	recs, err := ReadArchive(archivePath)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, rec := range recs {
		require.Equal(t, int64(i+1), rec.Sequence)
	}

	archivePath, err = Archive(path, filepath.Join(dir, "archive2"), true)
	require.NoError(t, err)
	require.FileExists(t, archivePath)
	require.NoFileExists(t, path)

	t.Run("cleanup keeps recent archives", func(t *testing.T) {
		deleted, err := CleanupArchive(archiveDir, 30)
		require.NoError(t, err)
		require.Zero(t, deleted)

		old := time.Now().AddDate(0, 0, -40)
		entries, err := os.ReadDir(archiveDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.NoError(t, os.Chtimes(filepath.Join(archiveDir, entries[0].Name()), old, old))

		deleted, err = CleanupArchive(archiveDir, 30)
		require.NoError(t, err)
		require.Equal(t, 1, deleted)
	})

	t.Run("not a journal", func(t *testing.T) {
		other := filepath.Join(dir, "other.jrn")
		require.NoError(t, os.WriteFile(other, []byte("nope nope nope nope"), 0o644))
		_, err := Archive(other, archiveDir, false)
		require.Error(t, err)
	})
}
