// Package sequencer applies submitted operations one at a time, in
// submission order, on a single goroutine.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/telemetry"
)

// ErrStopped is returned by Do once the sequencer has been stopped.
var ErrStopped = errors.New("sequencer stopped")

// Config tunes a Sequencer.
type Config struct {
	// QueueDepth bounds the number of operations waiting to run. Do blocks
	// while the queue is full.
	QueueDepth int
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
}

type op struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Sequencer is the single writer for ledger state.
type Sequencer struct {
	mu        sync.RWMutex
	isStarted bool
	stopped   bool

	queue   chan *op
	stopCh  chan struct{}
	doneCh  chan struct{}
	metrics *telemetry.Metrics
}

// New returns a sequencer. Call Start before Do.
func New(cfg Config) *Sequencer {
	cfg.ApplyDefaults()
	return &Sequencer{
		queue:   make(chan *op, cfg.QueueDepth),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		metrics: telemetry.GetMetrics(),
	}
}

// Start launches the apply loop.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.isStarted {
		return fmt.Errorf("sequencer already started")
	}

	go s.run()
	s.isStarted = true

	log.Debug().Int("queue_depth", cap(s.queue)).Msg("Sequencer started")
	return nil
}

// Stop rejects new operations, lets queued ones finish and waits for the
// loop to exit or ctx to be done.
func (s *Sequencer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	started := s.isStarted
	s.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-s.doneCh:
		log.Debug().Msg("Sequencer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do queues fn and waits for it to run, returning its error. If ctx is done
// before fn is scheduled, fn never runs and ctx.Err() is returned. Once fn
// has been scheduled Do always waits for its outcome.
func (s *Sequencer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	o := &op{ctx: ctx, fn: fn, done: make(chan error, 1)}

	if err := s.enqueue(ctx, o); err != nil {
		return err
	}
	return <-o.done
}

func (s *Sequencer) enqueue(ctx context.Context, o *op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return ErrStopped
	}
	if !s.isStarted {
		return fmt.Errorf("sequencer not started")
	}

	s.metrics.SequencerQueueDepth.Add(ctx, 1)
	select {
	case s.queue <- o:
		return nil
	case <-ctx.Done():
		s.metrics.SequencerQueueDepth.Add(context.Background(), -1)
		return ctx.Err()
	}
}

func (s *Sequencer) run() {
	defer close(s.doneCh)

	for {
		select {
		case o := <-s.queue:
			s.exec(o)
		case <-s.stopCh:
			// no sender holds the read lock once stopCh is closed, so the
			// queue can only shrink from here
			for {
				select {
				case o := <-s.queue:
					s.exec(o)
				default:
					return
				}
			}
		}
	}
}

func (s *Sequencer) exec(o *op) {
	s.metrics.SequencerQueueDepth.Add(context.Background(), -1)

	if err := o.ctx.Err(); err != nil {
		o.done <- err
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Sequenced operation panicked")
			o.done <- fmt.Errorf("operation panicked: %v", r)
		}
	}()

	o.done <- o.fn(o.ctx)
}
