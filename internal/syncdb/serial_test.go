package syncdb

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_OneAtATimePerKey(t *testing.T) {
	s := NewSerializer()

	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Do(context.Background(), "alice", func(ctx context.Context) error {
				n := inFlight.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, s.size())
}

func TestSerializer_DifferentKeysRunConcurrently(t *testing.T) {
	s := NewSerializer()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = s.Do(context.Background(), "alice", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- s.Do(context.Background(), "bob", func(ctx context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bob was blocked by alice")
	}
	close(release)
}

func TestSerializer_WaitHonoursCancellation(t *testing.T) {
	s := NewSerializer()
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = s.Do(context.Background(), "alice", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := s.Do(ctx, "alice", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestSerializer_ReturnsFnError(t *testing.T) {
	s := NewSerializer()
	err := s.Do(context.Background(), "k", func(ctx context.Context) error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	waitFor(t, func() bool { return s.size() == 0 })
}
