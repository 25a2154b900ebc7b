package reminder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/scheduler"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

const maxTaskLength = 1000

// HandleRemind serves /remind task date time.
func (s *Service) HandleRemind(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	task := in.StringOption("task")
	if task == "" {
		return nil, errs.Validation("Please tell me what to remind you about.")
	}
	if len([]rune(task)) > maxTaskLength {
		return nil, errs.Validation(fmt.Sprintf("Reminders are limited to %d characters.", maxTaskLength))
	}

	at, err := scheduler.ParseEndTime(s.now(), in.StringOption("date"), in.StringOption("time"), s.cfg.Location())
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateReminder(ctx, localdb.Reminder{
		UserID:    in.User.ID,
		ChannelID: in.ChannelID,
		Task:      task,
		RemindAt:  at,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, errs.Wrap(err, "persist reminder")
	}
	s.schedule(id, at)

	logger.Info("Reminder created",
		zap.Int64("id", id),
		zap.String("user_id", in.User.ID),
		zap.Time("remind_at", at))

	return platform.Reply(fmt.Sprintf("⏰ Reminder %d set for <t:%d:F>.", id, at.Unix())), nil
}

// HandleList serves /myreminders.
func (s *Service) HandleList(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	reminders, err := s.store.ListUserReminders(ctx, in.User.ID)
	if err != nil {
		return nil, errs.Wrap(err, "list reminders")
	}
	return listResponse(in.User, reminders, s.now()), nil
}

// HandleDelete serves /reminder-delete id.
func (s *Service) HandleDelete(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	id := in.IntOption("id", 0)
	if id <= 0 {
		return platform.Reply("❌ Reminder ID must be a positive number."), nil
	}
	deleted, err := s.delete(ctx, in.User.ID, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return platform.Reply("❌ That reminder doesn't exist or was already sent."), nil
	}
	return platform.Reply(fmt.Sprintf("✅ Deleted reminder %d.", id)), nil
}

// HandleSelect deletes the reminder picked from the /myreminders menu and
// refreshes the list in place.
func (s *Service) HandleSelect(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	if len(in.Values) == 0 {
		return nil, nil
	}
	id, err := strconv.ParseInt(in.Values[0], 10, 64)
	if err != nil || id <= 0 {
		return platform.Reply("Invalid reminder selection."), nil
	}

	deleted, err := s.delete(ctx, in.User.ID, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return platform.Reply("That reminder no longer exists or is already sent."), nil
	}

	reminders, err := s.store.ListUserReminders(ctx, in.User.ID)
	if err != nil {
		return nil, errs.Wrap(err, "list reminders")
	}
	resp := listResponse(in.User, reminders, s.now())
	resp.Update = true
	if len(reminders) == 0 {
		resp.ClearComponents = true
	}
	return resp, nil
}

func (s *Service) delete(ctx context.Context, userID string, id int64) (bool, error) {
	deleted, err := s.store.DeleteUserReminder(ctx, userID, id)
	if err != nil {
		return false, errs.Wrap(err, "delete reminder")
	}
	if deleted {
		s.sched.Cancel(Key(id))
		logger.Info("Reminder deleted", zap.Int64("id", id), zap.String("user_id", userID))
	}
	return deleted, nil
}
