package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSequencer(t *testing.T, depth int) *Sequencer {
	t.Helper()
	s := New(Config{QueueDepth: depth})
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestSequencer_RunsOneAtATime(t *testing.T) {
	s := startSequencer(t, 4)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		total   int
		wg      sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Do(ctx, func(ctx context.Context) error {
				mu.Lock()
				running++
				maxSeen = max(maxSeen, running)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				total++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Equal(t, 50, total)
}

func TestSequencer_PreservesSubmissionOrder(t *testing.T) {
	s := startSequencer(t, 4)
	ctx := context.Background()

	var got []int
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Do(ctx, func(ctx context.Context) error {
			got = append(got, i)
			return nil
		}))
	}
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestSequencer_ReturnsOperationError(t *testing.T) {
	s := startSequencer(t, 1)
	boom := errors.New("boom")

	err := s.Do(context.Background(), func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	err = s.Do(context.Background(), func(ctx context.Context) error { panic("bad op") })
	require.ErrorContains(t, err, "bad op")

	// the loop survives a panicking operation
	require.NoError(t, s.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestSequencer_CancelledBeforeScheduled(t *testing.T) {
	s := startSequencer(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Do(ctx, func(ctx context.Context) error {
			ran = true
			return nil
		})
	}()

	cancel()
	close(release)

	require.ErrorIs(t, <-errCh, context.Canceled)
	require.False(t, ran)
}

func TestSequencer_Stop(t *testing.T) {
	s := New(Config{})

	err := s.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)

	require.NoError(t, s.Start())
	require.Error(t, s.Start())

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	err = s.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, ErrStopped)
	require.ErrorIs(t, s.Start(), ErrStopped)
}
