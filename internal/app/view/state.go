// Package view holds the per-view state containers behind every screen:
// fetch on mount, an explicit loading flag, and optional interval polling for
// the lifetime of the view.
//
// A view is bounded by a context.Context. When it is cancelled the polling
// loop stops and in-flight fetches are abandoned, so nothing is written into
// a view that has gone away.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agrocredit/agrolend/internal/infra/observability"
)

// Fetch loads one resource.
type Fetch[T any] func(ctx context.Context) (T, error)

// Snapshot is a consistent copy of a State.
type Snapshot[T any] struct {
	Loading  bool
	Data     T
	Err      error
	LoadedAt time.Time
}

// Failed reports whether the last load failed.
func (s Snapshot[T]) Failed() bool { return s.Err != nil }

// State is a view-local container. It is safe for concurrent use because a
// polling loop publishes from its own goroutine.
type State[T any] struct {
	mu       sync.RWMutex
	pending  bool
	inflight int
	data     T
	err      error
	loadedAt time.Time
}

// NewState creates a container holding initial until the first load succeeds.
func NewState[T any](initial T) *State[T] {
	return &State[T]{data: initial}
}

// Mount marks the container loading before its first fetch is issued.
func (s *State[T]) Mount() {
	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()
}

// Loading reports whether a fetch is outstanding.
func (s *State[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending || s.inflight > 0
}

// Load runs fetch and stores its result. On failure the prior data is kept
// and the error is recorded and returned. The loading flag is cleared either
// way.
func (s *State[T]) Load(ctx context.Context, fetch Fetch[T]) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	v, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.pending = false
	s.err = err
	if err == nil {
		s.data = v
		s.loadedAt = time.Now()
	}
	return err
}

// Set replaces the data directly, e.g. after a LoadAll group settles.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	s.data = v
	s.err = nil
	s.pending = false
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

// Fail records err without touching the data.
func (s *State[T]) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.pending = false
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *State[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot[T]{
		Loading:  s.pending || s.inflight > 0,
		Data:     s.data,
		Err:      s.err,
		LoadedAt: s.loadedAt,
	}
}

// ─── Parallel Group ─────────────────────────────────────────────────────────

// LoadAll runs fetches in parallel. The group is all or nothing: the first
// failure cancels the others and is returned. Fetches should write into
// locals that the caller assigns only when LoadAll returns nil.
func LoadAll(ctx context.Context, fetches ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fetches {
		g.Go(func() error { return f(gctx) })
	}
	return g.Wait()
}

// ─── Polling ────────────────────────────────────────────────────────────────

// ErrBadInterval is returned by Watch for a non-positive interval.
var ErrBadInterval = errors.New("poll interval must be positive")

// Watch loads once, publishes, then reloads and publishes every interval until
// ctx is done. A failed reload keeps the prior data; the snapshot carries the
// error. Watch returns nil on teardown, or the first publish error.
func (s *State[T]) Watch(ctx context.Context, feed string, interval time.Duration, fetch Fetch[T], publish func(Snapshot[T]) error) error {
	if interval <= 0 {
		return ErrBadInterval
	}

	gauge := observability.LiveViews.WithLabelValues(feed)
	gauge.Inc()
	defer gauge.Dec()

	refresh := func() error {
		err := s.Load(ctx, fetch)
		if ctx.Err() != nil {
			return nil
		}
		observability.LiveRefreshes.WithLabelValues(feed, observability.Outcome(err)).Inc()
		return publish(s.Snapshot())
	}

	s.Mount()
	if err := refresh(); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := refresh(); err != nil {
				return err
			}
		}
	}
}
