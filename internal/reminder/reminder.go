// Package reminder lets users schedule a message to themselves and manage the
// reminders they have pending.
package reminder

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/scheduler"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

const (
	CommandName       = "remind"
	ListCommandName   = "myreminders"
	DeleteCommandName = "reminder-delete"
	SelectID          = "reminder-delete"
)

// Store is the slice of the event store reminders need.
type Store interface {
	CreateReminder(ctx context.Context, r localdb.Reminder) (int64, error)
	GetReminder(ctx context.Context, id int64) (*localdb.Reminder, error)
	ListUserReminders(ctx context.Context, userID string) ([]localdb.Reminder, error)
	ListPendingReminders(ctx context.Context) ([]localdb.Reminder, error)
	DeleteUserReminder(ctx context.Context, userID string, id int64) (bool, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Scheduler defers delivery and drops it when a reminder is deleted.
type Scheduler interface {
	Schedule(key string, endsAt time.Time, fn scheduler.Func) bool
	Cancel(key string) bool
}

type Service struct {
	client platform.Client
	store  Store
	sched  Scheduler
	cfg    *env.Config
	now    func() time.Time
}

func NewService(cfg *env.Config, client platform.Client, store Store, sched Scheduler) *Service {
	return &Service{client: client, store: store, sched: sched, cfg: cfg, now: time.Now}
}

// Register wires the reminder commands into r.
func (s *Service) Register(r *platform.Router) {
	r.Command(CommandName, s.HandleRemind)
	r.Command(ListCommandName, s.HandleList)
	r.Command(DeleteCommandName, s.HandleDelete)
	r.Component(SelectID, s.HandleSelect)
}

// Key is the scheduler key for reminder id.
func Key(id int64) string {
	return "reminder:" + strconv.FormatInt(id, 10)
}

func (s *Service) schedule(id int64, at time.Time) bool {
	return s.sched.Schedule(Key(id), at, func(ctx context.Context) error {
		return s.Deliver(ctx, id)
	})
}

// Recover reschedules every unsent reminder. Overdue ones are delivered
// right away.
func (s *Service) Recover(ctx context.Context) (int, error) {
	pending, err := s.store.ListPendingReminders(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range pending {
		if s.schedule(r.ID, r.RemindAt) {
			n++
		}
	}
	return n, nil
}

// Deliver posts reminder id to its channel and marks it sent. Deleted or
// already delivered reminders are skipped.
func (s *Service) Deliver(ctx context.Context, id int64) error {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return errs.Wrap(err, "load reminder")
	}
	if r == nil || r.HasSent {
		logger.Debug("Reminder no longer pending", zap.Int64("id", id))
		return nil
	}

	_, err = s.client.SendMessage(ctx, r.ChannelID, platform.MessageSend{
		Content: "<@" + r.UserID + "> reminder: " + r.Task,
	})
	if errors.Is(err, platform.ErrNotFound) {
		logger.Warn("Reminder channel is gone; dropping reminder",
			zap.Int64("id", id), zap.String("channel_id", r.ChannelID))
		metrics.Finalizations.WithLabelValues("reminder", "channel_missing").Inc()
		return s.markSent(ctx, id)
	}
	if err != nil {
		metrics.Finalizations.WithLabelValues("reminder", "error").Inc()
		return errs.External(err, "")
	}

	if err := s.markSent(ctx, id); err != nil {
		return err
	}
	metrics.Finalizations.WithLabelValues("reminder", "ok").Inc()
	logger.Info("Reminder delivered", zap.Int64("id", id), zap.String("user_id", r.UserID))
	return nil
}

func (s *Service) markSent(ctx context.Context, id int64) error {
	err := s.store.MarkReminderSent(ctx, id)
	if errors.Is(err, localdb.ErrAlreadySent) {
		return nil
	}
	return err
}
