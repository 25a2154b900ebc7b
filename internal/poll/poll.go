// Package poll runs timed reaction polls.
package poll

import (
	"context"
	"strconv"
	"time"

	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/scheduler"
)

const (
	CommandName = "poll"
	ModalPrefix = "poll-modal"

	MinAnswers = 2
	MaxAnswers = 10

	pollColor    = 0x3498db
	resultsColor = 0x9b59b6
)

// DefaultEmojis are used when the creator leaves emojis blank.
var DefaultEmojis = []string{
	"1\uFE0F\u20E3", "2\uFE0F\u20E3", "3\uFE0F\u20E3", "4\uFE0F\u20E3", "5\uFE0F\u20E3",
	"6\uFE0F\u20E3", "7\uFE0F\u20E3", "8\uFE0F\u20E3", "9\uFE0F\u20E3", "\U0001F51F",
}

type Store interface {
	CreatePoll(ctx context.Context, p localdb.Poll) (int64, error)
	GetPoll(ctx context.Context, id int64) (*localdb.Poll, error)
	ListOpenPolls(ctx context.Context) ([]localdb.Poll, error)
	MarkPollEnded(ctx context.Context, id int64) error
}

type Scheduler interface {
	Schedule(key string, endsAt time.Time, fn scheduler.Func) bool
}

type Publisher interface {
	Publish(msgType string, data any)
}

type Service struct {
	client platform.Client
	store  Store
	sched  Scheduler
	events Publisher
	cfg    *env.Config
	now    func() time.Time
}

func NewService(cfg *env.Config, client platform.Client, store Store, sched Scheduler, events Publisher) *Service {
	return &Service{
		client: client,
		store:  store,
		sched:  sched,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Register wires /poll and its modal into r.
func (s *Service) Register(r *platform.Router) {
	r.CommandModal(CommandName, s.HandleCommand)
	r.Modal(ModalPrefix, s.HandleModal)
}

// Key is the scheduler key for poll id.
func Key(id int64) string {
	return "poll:" + strconv.FormatInt(id, 10)
}

func (s *Service) schedule(id int64, endsAt time.Time) bool {
	return s.sched.Schedule(Key(id), endsAt, func(ctx context.Context) error {
		return s.Finalize(ctx, id)
	})
}

// Recover reschedules every poll that has not ended.
func (s *Service) Recover(ctx context.Context) (int, error) {
	open, err := s.store.ListOpenPolls(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range open {
		if s.schedule(p.ID, p.EndsAt) {
			n++
		}
	}
	return n, nil
}
