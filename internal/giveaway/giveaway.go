// Package giveaway runs reaction giveaways: announce, wait, draw, announce
// the winners.
package giveaway

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/scheduler"
	"golang.org/x/time/rate"
)

const (
	CommandName  = "giveaway"
	DefaultEmoji = "\U0001F39F\uFE0F" // admission tickets

	announceColor = 0xffcc00
	resultColor   = 0x2ecc71
)

// Store is the slice of the event store giveaways need.
type Store interface {
	CreateGiveaway(ctx context.Context, g localdb.Giveaway) (int64, error)
	GetGiveaway(ctx context.Context, id int64) (*localdb.Giveaway, error)
	ListOpenGiveaways(ctx context.Context) ([]localdb.Giveaway, error)
	MarkGiveawayEnded(ctx context.Context, id int64, winners []string) error
}

// Scheduler defers finalization to the deadline.
type Scheduler interface {
	Schedule(key string, endsAt time.Time, fn scheduler.Func) bool
}

// Publisher receives outcome events; may be nil.
type Publisher interface {
	Publish(msgType string, data any)
}

type Service struct {
	client  platform.Client
	store   Store
	sched   Scheduler
	events  Publisher
	cfg     *env.Config
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewService(cfg *env.Config, client platform.Client, store Store, sched Scheduler, events Publisher) *Service {
	return &Service{
		client:   client,
		store:    store,
		sched:    sched,
		events:   events,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.ReactionPageRate), 1),
		now:      time.Now,
		inFlight: make(map[int64]struct{}),
	}
}

// Register wires /giveaway into r.
func (s *Service) Register(r *platform.Router) {
	r.Command(CommandName, s.HandleCommand)
}

// Key is the scheduler key for giveaway id.
func Key(id int64) string {
	return "giveaway:" + strconv.FormatInt(id, 10)
}

func (s *Service) schedule(id int64, endsAt time.Time) bool {
	return s.sched.Schedule(Key(id), endsAt, func(ctx context.Context) error {
		return s.Finalize(ctx, id)
	})
}

// Recover reschedules every giveaway that has not ended. Overdue ones run
// immediately.
func (s *Service) Recover(ctx context.Context) (int, error) {
	open, err := s.store.ListOpenGiveaways(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range open {
		if s.schedule(g.ID, g.EndsAt) {
			n++
		}
	}
	return n, nil
}

func (s *Service) begin(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[id]; ok {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) end(id int64) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}
