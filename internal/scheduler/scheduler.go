package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// FinalizeTimeout bounds one deferred action once its wait is over.
var FinalizeTimeout = 2 * time.Minute

// Func is a deferred action. Its context survives Shutdown so an action that
// already started can finish.
type Func func(ctx context.Context) error

// Scheduler holds one cancellable wait per key.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		pending: make(map[string]context.CancelFunc),
	}
}

// Schedule runs fn at endsAt. It returns false when key is already pending
// or the scheduler is shut down.
func (s *Scheduler) Schedule(key string, endsAt time.Time, fn Func) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.pending[key]; ok {
		s.mu.Unlock()
		logger.Debug("Deferred action already scheduled", zap.String("key", key))
		return false
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.pending[key] = cancel
	metrics.ScheduledEvents.Set(float64(len(s.pending)))
	s.wg.Add(1)
	s.mu.Unlock()

	delay := endsAt.Sub(s.now())
	logger.Info("Deferred action scheduled",
		zap.String("key", key),
		zap.Time("ends_at", endsAt),
		zap.Duration("delay", delay))

	go s.run(ctx, key, delay, fn)
	return true
}

func (s *Scheduler) run(ctx context.Context, key string, delay time.Duration, fn Func) {
	defer s.wg.Done()

	err := Sleep(ctx, delay)
	s.done(key)
	if err != nil {
		logger.Info("Deferred action cancelled", zap.String("key", key))
		return
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FinalizeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Deferred action panicked", zap.String("key", key), zap.Any("panic", r))
		}
	}()

	switch err := fn(runCtx); {
	case err == nil:
	case errs.Is(err, errs.ErrSchedulerAbort):
		logger.Warn("Deferred action aborted; record left open for retry", zap.String("key", key), zap.Error(err))
	default:
		logger.Error("Deferred action failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Scheduler) done(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.pending[key]; ok {
		cancel()
		delete(s.pending, key)
	}
	metrics.ScheduledEvents.Set(float64(len(s.pending)))
}

// Cancel stops a pending wait. It reports whether key was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	cancel, ok := s.pending[key]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Pending returns the number of waits not yet elapsed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// IsPending reports whether key is waiting.
func (s *Scheduler) IsPending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Shutdown cancels every wait and blocks until running actions return.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	logger.Info("Scheduler stopped")
}
