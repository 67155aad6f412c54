package syncdb

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Serializer runs at most one function per key at a time. Waiting for a
// busy key honours context cancellation. Idle keys hold no memory.
type Serializer struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewSerializer() *Serializer {
	return &Serializer{slots: make(map[string]*slot)}
}

// Do runs fn once no other fn holds key. It returns ctx.Err() if ctx ends
// while waiting, and fn's error otherwise.
func (s *Serializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	sl := s.ref(key)
	defer s.unref(key, sl)

	if err := sl.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer sl.sem.Release(1)

	return fn(ctx)
}

func (s *Serializer) ref(key string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{sem: semaphore.NewWeighted(1)}
		s.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (s *Serializer) unref(key string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, key)
	}
}

func (s *Serializer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
