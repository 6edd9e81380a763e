// Package audit implements the append only, hash chained audit log that is
// the source of truth for registry and ledger state.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
	"github.com/wolfeidau/traceledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config tunes a Log.
type Config struct {
	// Clock stamps new records. Defaults to time.Now.
	Clock func() time.Time

	// SubscriberBuffer is the number of live records a subscriber may fall
	// behind before it is closed.
	SubscriberBuffer int
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 256
	}
}

// Log sequences events into audit records and persists them to a store.
// It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	store   store.AuditStore
	cfg     Config
	tip     *models.AuditRecord
	loaded  bool
	subs    map[*subscriber]struct{}
	metrics *telemetry.Metrics
}

type subscriber struct {
	filter store.AuditFilter
	live   chan *models.AuditRecord
}

// New returns a log backed by s.
func New(s store.AuditStore, cfg Config) *Log {
	cfg.ApplyDefaults()
	return &Log{
		store:   s,
		cfg:     cfg,
		subs:    make(map[*subscriber]struct{}),
		metrics: telemetry.GetMetrics(),
	}
}

// Store returns the underlying store.
func (l *Log) Store() store.AuditStore { return l.store }

// loadTip reads the last record once. Callers hold l.mu.
func (l *Log) loadTip(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	last, err := l.store.Last(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last audit record: %w", err)
	}
	l.tip = last
	l.loaded = true
	return nil
}

// Append sequences ev, chains it to the previous record and persists it.
// The returned record is only valid once Append returns nil.
func (l *Log) Append(ctx context.Context, ev models.Event) (*models.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadTip(ctx); err != nil {
		return nil, err
	}

	rec := &models.AuditRecord{
		Sequence:  1,
		Timestamp: l.cfg.Clock().UTC().Truncate(time.Microsecond),
		Event:     ev,
		PrevHash:  GenesisHash,
	}
	if l.tip != nil {
		rec.Sequence = l.tip.Sequence + 1
		rec.PrevHash = l.tip.Hash
	}

	hash, err := ComputeHash(rec)
	if err != nil {
		return nil, err
	}
	rec.Hash = hash

	if err := l.store.Append(ctx, rec); err != nil {
		l.metrics.AuditAppendErrorsTotal.Add(ctx, 1)
		if errors.Is(err, store.ErrSequenceConflict) {
			// another writer touched the store, re-read the tip next time
			l.loaded = false
		}
		return nil, fmt.Errorf("failed to append audit record: %w", err)
	}

	l.tip = rec.Clone()
	l.metrics.AuditRecordsAppendedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(rec.Kind))))

	log.Debug().
		Int64("sequence", rec.Sequence).
		Str("kind", string(rec.Kind)).
		Str("ledger", rec.Ledger).
		Msg("Audit record appended")

	l.fanout(rec)

	return rec.Clone(), nil
}

// LastSequence returns the sequence of the most recent record, 0 if empty.
func (l *Log) LastSequence(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadTip(ctx); err != nil {
		return 0, err
	}
	if l.tip == nil {
		return 0, nil
	}
	return l.tip.Sequence, nil
}

// Replay returns the stored records matching filter in sequence order.
func (l *Log) Replay(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	recs, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return recs, nil
}

// BatchHistory returns every record touching one batch of a product.
func (l *Log) BatchHistory(ctx context.Context, ledger, productID, batchID string) ([]*models.AuditRecord, error) {
	return l.Replay(ctx, store.AuditFilter{
		Kinds:  []models.EventKind{models.EventProcessesUpdated, models.EventStatusUpdated},
		Ledger: ledger,
		Key:    productID,
		SubKey: batchID,
	})
}

// Verify walks the whole chain and checks sequences, links and hashes. It
// returns the number of records checked.
func (l *Log) Verify(ctx context.Context) (int64, error) {
	recs, err := l.store.List(ctx, store.AuditFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list audit records: %w", err)
	}
	return VerifyChain(recs)
}

// VerifyChain checks that recs form a gap free chain starting at sequence 1.
func VerifyChain(recs []*models.AuditRecord) (int64, error) {
	prev := GenesisHash
	for i, rec := range recs {
		want := int64(i + 1)
		if rec.Sequence != want {
			return int64(i), fmt.Errorf("%w: expected sequence %d, found %d", store.ErrChainBroken, want, rec.Sequence)
		}
		if rec.PrevHash != prev {
			return int64(i), fmt.Errorf("%w: record %d does not link to its predecessor", store.ErrChainBroken, rec.Sequence)
		}
		hash, err := ComputeHash(rec)
		if err != nil {
			return int64(i), err
		}
		if hash != rec.Hash {
			return int64(i), fmt.Errorf("%w: record %d hash mismatch", store.ErrChainBroken, rec.Sequence)
		}
		prev = rec.Hash
	}
	return int64(len(recs)), nil
}

// Subscribe streams records matching filter. Stored history from
// filter.FromSequence is sent first, then live records as they are
// appended, with no gaps or duplicates between the two. filter.Limit is
// ignored. The channel is closed when ctx is done, when history cannot be
// read, or when the subscriber falls too far behind.
func (l *Log) Subscribe(ctx context.Context, filter store.AuditFilter) (<-chan *models.AuditRecord, error) {
	l.mu.Lock()
	if err := l.loadTip(ctx); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	var upTo int64
	if l.tip != nil {
		upTo = l.tip.Sequence
	}
	sub := &subscriber{
		filter: filter,
		live:   make(chan *models.AuditRecord, l.cfg.SubscriberBuffer),
	}
	l.subs[sub] = struct{}{}
	l.mu.Unlock()

	l.metrics.ActiveSubscriptions.Add(ctx, 1)

	out := make(chan *models.AuditRecord, 100)

	go func() {
		defer func() {
			l.unsubscribe(sub)
			l.metrics.ActiveSubscriptions.Add(context.Background(), -1)
			close(out)
		}()

		if upTo >= max(filter.FromSequence, 1) {
			start := time.Now()
			history := filter
			history.Limit = 0
			recs, err := l.store.List(ctx, history)
			if err != nil {
				log.Error().Err(err).Msg("Failed to read audit history for subscription")
				return
			}

			sent := 0
			for _, rec := range recs {
				if rec.Sequence > upTo {
					break
				}
				select {
				case out <- rec:
					sent++
				case <-ctx.Done():
					return
				}
			}

			l.metrics.HistoricalReplayDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
			l.metrics.HistoricalRecordsReplay.Add(ctx, int64(sent))
		}

		for {
			select {
			case rec, ok := <-sub.live:
				if !ok {
					return
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// fanout delivers rec to matching subscribers. Callers hold l.mu.
func (l *Log) fanout(rec *models.AuditRecord) {
	for sub := range l.subs {
		if !sub.filter.Matches(rec) {
			continue
		}
		select {
		case sub.live <- rec.Clone():
		default:
			log.Error().
				Int64("sequence", rec.Sequence).
				Msg("Audit subscriber fell behind, closing subscription")
			l.metrics.SubscriberOverflowTotal.Add(context.Background(), 1)
			delete(l.subs, sub)
			close(sub.live)
		}
	}
}

func (l *Log) unsubscribe(sub *subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[sub]; ok {
		delete(l.subs, sub)
		close(sub.live)
	}
}
