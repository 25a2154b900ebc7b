// Package session keeps short-lived, per-user workflow state in memory.
//
// A Store holds at most one session per user. Sessions are not durable: they
// disappear on Clear, on restart, and once the sweeper finds them older than
// the configured TTL.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

type entry[T any] struct {
	value     T
	createdAt time.Time
}

// Store is a concurrency-safe map from user id to a session payload T.
// T is normally a pointer so handlers can mutate it in place.
type Store[T any] struct {
	name    string
	newFunc func() T
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry[T]

	locks keyedMutex

	// onSweep is called after each sweep with the live count.
	onSweep func(live int)
}

// NewStore creates a store. name labels log lines and metrics; newFunc builds
// a default payload.
func NewStore[T any](name string, newFunc func() T) *Store[T] {
	return &Store[T]{
		name:    name,
		newFunc: newFunc,
		now:     time.Now,
		entries: make(map[string]*entry[T]),
	}
}

// Name is the workflow kind this store serves.
func (s *Store[T]) Name() string { return s.name }

// OnSweep registers a callback run after every Cleanup with the remaining size.
func (s *Store[T]) OnSweep(fn func(live int)) {
	s.onSweep = fn
}

// GetOrCreate returns the user's session, inserting a fresh one if absent.
func (s *Store[T]) GetOrCreate(userID string) T {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e.value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e.value
	}
	e = &entry[T]{value: s.newFunc(), createdAt: s.now()}
	s.entries[userID] = e
	return e.value
}

// Reset discards any existing session and starts a fresh one.
func (s *Store[T]) Reset(userID string) T {
	e := &entry[T]{value: s.newFunc(), createdAt: s.now()}
	s.mu.Lock()
	s.entries[userID] = e
	s.mu.Unlock()
	return e.value
}

// TryGet looks up a session without creating one.
func (s *Store[T]) TryGet(userID string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// CreatedAt reports when the user's session started.
func (s *Store[T]) CreatedAt(userID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.createdAt, true
}

// Clear removes the user's session. Missing sessions are ignored.
func (s *Store[T]) Clear(userID string) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Cleanup removes sessions whose age is at least olderThan and returns how
// many were removed. It scans a snapshot, so concurrent inserts and removals
// are safe; an entry replaced after the snapshot is left alone.
func (s *Store[T]) Cleanup(olderThan time.Duration) int {
	cutoff := s.now().Add(-olderThan)

	type candidate struct {
		userID string
		e      *entry[T]
	}
	s.mu.RLock()
	snapshot := make([]candidate, 0, len(s.entries))
	for userID, e := range s.entries {
		snapshot = append(snapshot, candidate{userID: userID, e: e})
	}
	s.mu.RUnlock()

	removed := 0
	for _, c := range snapshot {
		if c.e.createdAt.After(cutoff) {
			continue
		}
		s.mu.Lock()
		if current, ok := s.entries[c.userID]; ok && current == c.e {
			delete(s.entries, c.userID)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Lock serializes transitions for one user. Call the returned func to release.
func (s *Store[T]) Lock(userID string) func() {
	return s.locks.lock(userID)
}

// StartSweeper runs Cleanup(ttl) every interval until ctx is done.
func (s *Store[T]) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		logger.Info("Session sweeper started",
			zap.String("store", s.name),
			zap.Duration("interval", interval),
			zap.Duration("ttl", ttl))

		for {
			select {
			case <-ticker.C:
				s.sweep(ttl)
			case <-ctx.Done():
				logger.Info("Session sweeper stopped", zap.String("store", s.name))
				return
			}
		}
	}()
}

func (s *Store[T]) sweep(ttl time.Duration) {
	removed := s.Cleanup(ttl)
	live := s.Len()
	if removed > 0 {
		logger.Info("Expired sessions removed",
			zap.String("store", s.name),
			zap.Int("removed", removed),
			zap.Int("live", live))
	}
	if s.onSweep != nil {
		s.onSweep(live)
	}
}
