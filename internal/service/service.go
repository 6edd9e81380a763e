// Package service is the entry point for every registry, ledger and audit
// operation. Mutations run one at a time through a sequencer and are
// durably recorded in the audit log before they change state.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/traceledger/internal/audit"
	"github.com/wolfeidau/traceledger/internal/ledger"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/registry"
	"github.com/wolfeidau/traceledger/internal/sequencer"
	"github.com/wolfeidau/traceledger/internal/store"
	"github.com/wolfeidau/traceledger/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config configures a Service.
type Config struct {
	// RegistryOwner owns a fresh registry. Ownership transfers recorded in
	// the audit log take precedence on restore.
	RegistryOwner models.Identity
	Limits        registry.Limits
	Sequencer     sequencer.Config
	Audit         audit.Config
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RegistryOwner.IsZero() {
		return fmt.Errorf("registry owner is required")
	}
	if c.Limits.MaxLedgersPerOrganization < 0 || c.Limits.Ledger.MaxProducts < 0 || c.Limits.Ledger.MaxBatches < 0 || c.Limits.Ledger.MaxData < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

// Service owns the registry and serializes access to it.
type Service struct {
	mu       sync.RWMutex
	cfg      Config
	registry *registry.Registry
	log      *audit.Log
	recorder *audit.ContextRecorder
	seq      *sequencer.Sequencer
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

// New returns a service over the audit store s. Call Start before use.
func New(s store.AuditStore, cfg Config, logger zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	auditLog := audit.New(s, cfg.Audit)
	recorder := audit.NewContextRecorder(auditLog)

	return &Service{
		cfg:      cfg,
		registry: registry.New(cfg.RegistryOwner, recorder, cfg.Limits),
		log:      auditLog,
		recorder: recorder,
		seq:      sequencer.New(cfg.Sequencer),
		logger:   logger.With().Str("component", "service").Logger(),
		metrics:  telemetry.GetMetrics(),
		tracer:   telemetry.Tracer(),
	}, nil
}

// Start restores state from the audit log and starts accepting mutations.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.Restore(ctx); err != nil {
		return err
	}
	return s.seq.Start()
}

// Stop waits for queued mutations to finish and rejects new ones.
func (s *Service) Stop(ctx context.Context) error {
	return s.seq.Stop(ctx)
}

// Restore verifies the audit chain and rebuilds the registry from it,
// replacing any in memory state. It returns the number of records applied.
func (s *Service) Restore(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "service.Restore")
	defer span.End()

	start := time.Now()

	recs, err := s.log.Replay(ctx, store.AuditFilter{})
	if err != nil {
		return 0, err
	}
	if _, err := audit.VerifyChain(recs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit chain verification failed")
		return 0, err
	}

	fresh := registry.New(s.cfg.RegistryOwner, s.recorder, s.cfg.Limits)
	for _, rec := range recs {
		if err := fresh.Apply(rec); err != nil {
			return 0, fmt.Errorf("failed to restore audit record %d: %w", rec.Sequence, err)
		}
	}

	s.mu.Lock()
	s.registry = fresh
	s.mu.Unlock()

	s.metrics.AuditRecordsRestoredTotal.Add(ctx, int64(len(recs)))
	span.SetAttributes(attribute.Int("records", len(recs)))

	s.logger.Info().
		Int("records", len(recs)).
		Str("registry_owner", fresh.Owner().String()).
		Dur("duration", time.Since(start)).
		Msg("State restored from audit log")

	return int64(len(recs)), nil
}

// mutate runs fn on the sequencer holding the state write lock.
func (s *Service) mutate(ctx context.Context, op string, caller models.Identity, fn func(r *registry.Registry) error) error {
	ctx, span := s.tracer.Start(ctx, "service."+op, trace.WithAttributes(
		attribute.String("caller", caller.String()),
	))
	defer span.End()

	start := time.Now()
	err := s.seq.Do(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.recorder.Use(ctx)
		defer s.recorder.Use(context.Background())

		return fn(s.registry)
	})

	opAttr := attribute.String("operation", op)
	s.metrics.OperationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(opAttr))

	if err != nil {
		kind := models.KindOf(err)
		if kind == "" {
			kind = "Internal"
			s.logger.Error().Err(err).Str("operation", op).Str("caller", caller.String()).Msg("Operation failed")
		} else {
			s.logger.Debug().Err(err).Str("operation", op).Str("kind", string(kind)).Msg("Operation rejected")
		}
		s.metrics.OperationsRejectedTotal.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String("kind", string(kind))))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		return err
	}

	s.metrics.OperationsAppliedTotal.Add(ctx, 1, metric.WithAttributes(opAttr))
	return nil
}

func (s *Service) mutateLedger(ctx context.Context, op, handle string, caller models.Identity, fn func(l *ledger.Ledger) error) error {
	return s.mutate(ctx, op, caller, func(r *registry.Registry) error {
		l, err := r.Ledger(handle)
		if err != nil {
			return err
		}
		return fn(l)
	})
}

func (s *Service) read(fn func(r *registry.Registry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.registry)
}

func (s *Service) readLedger(handle string, fn func(l *ledger.Ledger) error) error {
	return s.read(func(r *registry.Registry) error {
		l, err := r.Ledger(handle)
		if err != nil {
			return err
		}
		return fn(l)
	})
}

// AuditLog returns the underlying audit log.
func (s *Service) AuditLog() *audit.Log { return s.log }
