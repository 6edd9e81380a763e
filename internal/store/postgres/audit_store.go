package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

var _ store.AuditStore = (*AuditStore)(nil)

const auditColumns = `sequence, recorded_at, kind, ledger, key, sub_key, vals, caller, prev_hash, hash`

// AuditStore implements store.AuditStore using PostgreSQL.
type AuditStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewAuditStore opens a pool, optionally runs migrations, and returns the store.
func NewAuditStore(ctx context.Context, cfg *AuditStoreConfig) (*AuditStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := NewPool(ctx, &cfg.Pool)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	return NewAuditStoreWithPool(pool, cfg.QueryTimeout), nil
}

// NewAuditStoreWithPool wraps an existing pool. Close closes the pool.
func NewAuditStoreWithPool(pool *pgxpool.Pool, timeout time.Duration) *AuditStore {
	return &AuditStore{pool: pool, timeout: timeout}
}

func (s *AuditStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Append inserts rec only if it directly follows the last stored sequence.
// Free text fields are stored as bytes so any string, NUL included, round
// trips unchanged.
func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		SELECT $1::bigint, $2::timestamptz, $3::text, $4::bytea, $5::bytea,
		       $6::bytea, $7::bytea, $8::bytea, $9::text, $10::text
		WHERE COALESCE((SELECT MAX(sequence) FROM audit_records), 0) = $1::bigint - 1
	`

	values := rec.Values
	if values == nil {
		values = map[string]string{}
	}
	vals, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode values of audit record %d: %w", rec.Sequence, err)
	}

	tag, err := s.pool.Exec(ctx, query,
		rec.Sequence,
		rec.Timestamp,
		string(rec.Kind),
		[]byte(rec.Ledger),
		[]byte(rec.Key),
		[]byte(rec.SubKey),
		vals,
		[]byte(rec.Caller),
		rec.PrevHash,
		rec.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", mapPostgresError(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sequence %d does not follow the last record", store.ErrSequenceConflict, rec.Sequence)
	}

	log.Debug().
		Int64("sequence", rec.Sequence).
		Str("kind", string(rec.Kind)).
		Msg("Appended audit record")

	return nil
}

// List returns matching records in sequence order.
func (s *AuditStore) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var out []*models.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", mapPostgresError(err))
	}

	return out, nil
}

// Last returns the record with the highest sequence, or nil when empty.
func (s *AuditStore) Last(ctx context.Context) (*models.AuditRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_records ORDER BY sequence DESC LIMIT 1`)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (s *AuditStore) Close() error {
	s.pool.Close()
	return nil
}

// buildListQuery renders the filter as a parameterized query.
func buildListQuery(filter store.AuditFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.FromSequence > 0 {
		add("sequence >= $%d", filter.FromSequence)
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		add("kind = ANY($%d)", kinds)
	}
	if filter.Ledger != "" {
		add("ledger = $%d", []byte(filter.Ledger))
	}
	if filter.Key != "" {
		add("key = $%d", []byte(filter.Key))
	}
	if filter.SubKey != "" {
		add("sub_key = $%d", []byte(filter.SubKey))
	}
	if filter.Caller != "" {
		add("caller = $%d", []byte(filter.Caller))
	}

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM audit_records")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY sequence ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args
}

func scanRecord(row pgx.Row) (*models.AuditRecord, error) {
	var (
		rec                         models.AuditRecord
		kind                        string
		ledger, key, subKey, caller []byte
		vals                        []byte
	)
	err := row.Scan(
		&rec.Sequence,
		&rec.Timestamp,
		&kind,
		&ledger,
		&key,
		&subKey,
		&vals,
		&caller,
		&rec.PrevHash,
		&rec.Hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit record: %w", mapPostgresError(err))
	}
	if len(vals) > 0 {
		if err := json.Unmarshal(vals, &rec.Values); err != nil {
			return nil, fmt.Errorf("failed to decode values of audit record %d: %w", rec.Sequence, err)
		}
	}

	rec.Kind = models.EventKind(kind)
	rec.Ledger = string(ledger)
	rec.Key = string(key)
	rec.SubKey = string(subKey)
	rec.Caller = models.Identity(caller)
	rec.Timestamp = rec.Timestamp.UTC()
	if len(rec.Values) == 0 {
		rec.Values = nil
	}
	return &rec, nil
}
