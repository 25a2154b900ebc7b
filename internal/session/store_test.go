package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type draft struct {
	Title string
}

func newTestStore(now *time.Time) *Store[*draft] {
	s := NewStore("test", func() *draft { return &draft{Title: "default"} })
	s.now = func() time.Time { return *now }
	return s
}

func TestStore_GetOrCreateReturnsSameSession(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newTestStore(&now)

	first := s.GetOrCreate("u1")
	first.Title = "edited"

	second := s.GetOrCreate("u1")
	if second != first {
		t.Fatalf("GetOrCreate returned a different session")
	}
	if second.Title != "edited" {
		t.Fatalf("Title = %q, want edited", second.Title)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStore_ResetReplacesSessionAndTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newTestStore(&now)

	old := s.GetOrCreate("u1")
	old.Title = "old"

	now = now.Add(10 * time.Minute)
	fresh := s.Reset("u1")
	if fresh == old {
		t.Fatalf("Reset should create a new payload")
	}
	created, ok := s.CreatedAt("u1")
	if !ok || !created.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", created, now)
	}
}

func TestStore_TryGetAndClear(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newTestStore(&now)

	if _, ok := s.TryGet("u1"); ok {
		t.Fatalf("TryGet should not find a missing session")
	}
	if s.Len() != 0 {
		t.Fatalf("TryGet must not insert")
	}

	s.GetOrCreate("u1")
	if _, ok := s.TryGet("u1"); !ok {
		t.Fatalf("TryGet should find the session")
	}

	s.Clear("u1")
	s.Clear("u1")
	if _, ok := s.TryGet("u1"); ok {
		t.Fatalf("session should be cleared")
	}
}

func TestStore_CleanupBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newTestStore(&now)

	s.GetOrCreate("exact")
	now = now.Add(time.Minute)
	s.GetOrCreate("younger")
	now = now.Add(29 * time.Minute)

	removed := s.Cleanup(30 * time.Minute)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := s.TryGet("exact"); ok {
		t.Fatalf("session aged exactly the TTL should be removed")
	}
	if _, ok := s.TryGet("younger"); !ok {
		t.Fatalf("younger session should survive")
	}
}

func TestStore_CleanupProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Cleanup removes exactly the sessions aged >= ttl", prop.ForAll(
		func(ages []int, ttlMinutes int) bool {
			base := time.Unix(1_700_000_000, 0)
			now := base
			s := newTestStore(&now)

			expectRemoved := map[string]bool{}
			for i, age := range ages {
				id := fmt.Sprintf("user-%d", i)
				now = base.Add(-time.Duration(age) * time.Minute)
				s.GetOrCreate(id)
				expectRemoved[id] = age >= ttlMinutes
			}
			now = base

			removed := s.Cleanup(time.Duration(ttlMinutes) * time.Minute)

			wantRemoved := 0
			for id, gone := range expectRemoved {
				_, found := s.TryGet(id)
				if gone == found {
					return false
				}
				if gone {
					wantRemoved++
				}
			}
			return removed == wantRemoved && s.Len() == len(ages)-wantRemoved
		},
		gen.SliceOf(gen.IntRange(0, 120)),
		gen.IntRange(1, 90),
	))

	properties.TestingRun(t)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore("test", func() *draft { return &draft{} })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i%10)
			s.GetOrCreate(id)
			s.TryGet(id)
			if i%3 == 0 {
				s.Clear(id)
			}
			s.Cleanup(time.Hour)
		}(i)
	}
	wg.Wait()

	if s.Len() > 10 {
		t.Fatalf("Len = %d, want <= 10", s.Len())
	}
}

func TestStore_LockSerializesPerUser(t *testing.T) {
	s := NewStore("test", func() *draft { return &draft{} })

	unlock := s.Lock("u1")
	acquired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		release := s.Lock("u1")
		close(acquired)
		release()
		close(done)
	}()

	select {
	case <-acquired:
		t.Fatalf("second Lock acquired while first was held")
	case <-time.After(20 * time.Millisecond):
	}

	otherUnlock := s.Lock("u2")
	otherUnlock()

	unlock()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second Lock never acquired")
	}
	<-done

	if n := s.locks.size(); n != 0 {
		t.Fatalf("lock table size = %d, want 0", n)
	}
}

func TestStore_SweeperRunsUntilCancelled(t *testing.T) {
	s := NewStore("test", func() *draft { return &draft{} })
	s.GetOrCreate("u1")
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	swept := make(chan int, 4)
	s.OnSweep(func(live int) {
		select {
		case swept <- live:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartSweeper(ctx, 5*time.Millisecond, time.Minute)

	select {
	case live := <-swept:
		if live != 0 {
			t.Fatalf("live = %d after sweep, want 0", live)
		}
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not run")
	}
}
