package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

var _ store.AuditStore = (*Journal)(nil)

// Journal is a single file, append only audit store. Every append is
// fsynced before it returns. On open the file is scanned and truncated at
// the first torn or corrupt record.
type Journal struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	entries []entry
}

// Open opens the journal at path, creating it and its directory if needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{path: path, file: file}

	if !exists {
		if err := writeHeader(file); err != nil {
			file.Close()
			return nil, err
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to fsync: %w", err)
		}
		log.Debug().Str("path", path).Msg("Created new journal with header")
		return j, nil
	}

	if err := j.load(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to load journal %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("records", len(j.entries)).
		Msg("Journal loaded")

	return j, nil
}

// load rebuilds the index and leaves the file positioned for appends.
func (j *Journal) load() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	if err := readHeader(j.file); err != nil {
		return err
	}

	entries, valid, err := scan(j.file, 0)
	if err != nil {
		return err
	}

	info, err := j.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	if info.Size() > valid {
		log.Warn().
			Str("path", j.path).
			Int64("size", info.Size()).
			Int64("valid", valid).
			Msg("Journal corruption detected and truncated")
		if err := j.file.Truncate(valid); err != nil {
			return fmt.Errorf("failed to truncate journal: %w", err)
		}
	}

	if _, err := j.file.Seek(valid, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	j.entries = entries
	return nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

func (j *Journal) lastSequence() int64 {
	if len(j.entries) == 0 {
		return 0
	}
	return j.entries[len(j.entries)-1].sequence
}

// Append writes rec and fsyncs the file.
func (j *Journal) Append(ctx context.Context, rec *models.AuditRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return store.ErrStoreClosed
	}

	if want := j.lastSequence() + 1; rec.Sequence != want {
		return fmt.Errorf("%w: got %d, want %d", store.ErrSequenceConflict, rec.Sequence, want)
	}

	data, err := buildRecord(rec)
	if err != nil {
		return err
	}

	offset, err := j.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to get file position: %w", err)
	}

	if _, err := j.file.Write(data); err != nil {
		// drop any partial write so the next append starts clean
		if truncErr := j.file.Truncate(offset); truncErr != nil {
			log.Error().Err(truncErr).Str("path", j.path).Msg("Failed to truncate after write error")
		}
		_, _ = j.file.Seek(offset, io.SeekStart)
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to fsync: %w", err)
	}

	j.entries = append(j.entries, entry{
		sequence:  rec.Sequence,
		offset:    offset,
		length:    int64(len(data)),
		timestamp: rec.Timestamp.UnixNano(),
	})

	log.Debug().
		Int64("sequence", rec.Sequence).
		Int64("offset", offset).
		Msg("Audit record appended to journal")

	return nil
}

// List reads matching records from disk in sequence order.
func (j *Journal) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.file == nil {
		return nil, store.ErrStoreClosed
	}

	start := 0
	if filter.FromSequence > 1 {
		start = int(min(filter.FromSequence-1, int64(len(j.entries))))
	}

	var out []*models.AuditRecord
	for _, e := range j.entries[start:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecordAt(j.file, e)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Last returns the most recent record, or nil if the journal is empty.
func (j *Journal) Last(ctx context.Context) (*models.AuditRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.file == nil {
		return nil, store.ErrStoreClosed
	}
	if len(j.entries) == 0 {
		return nil, nil
	}
	return readRecordAt(j.file, j.entries[len(j.entries)-1])
}

// Count returns the number of records in the journal.
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.file.Close()
	j.file = nil
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}

	log.Info().Str("path", j.path).Int("records", len(j.entries)).Msg("Journal closed")
	return nil
}
