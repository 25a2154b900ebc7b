package localdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := SetupDB(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGiveawayLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	endsAt := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	id, err := s.CreateGiveaway(ctx, Giveaway{
		GuildID:         "g1",
		ChannelID:       "c1",
		MessageID:       "m1",
		Prize:           "Nitro",
		WinnerCount:     2,
		ReactionEmoji:   "🎉",
		EndsAt:          endsAt,
		CreatedByUserID: "u1",
	})
	if err != nil {
		t.Fatalf("CreateGiveaway failed: %v", err)
	}

	got, err := s.GetGiveaway(ctx, id)
	if err != nil {
		t.Fatalf("GetGiveaway failed: %v", err)
	}
	if got == nil {
		t.Fatalf("GetGiveaway returned nil")
	}
	if got.Prize != "Nitro" || got.WinnerCount != 2 || got.ReactionEmoji != "🎉" {
		t.Fatalf("unexpected giveaway: %+v", got)
	}
	if !got.EndsAt.Equal(endsAt) {
		t.Fatalf("EndsAt = %v, want %v", got.EndsAt, endsAt)
	}
	if got.HasEnded {
		t.Fatalf("new giveaway should not be ended")
	}

	open, err := s.ListOpenGiveaways(ctx)
	if err != nil {
		t.Fatalf("ListOpenGiveaways failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != id {
		t.Fatalf("open giveaways = %+v, want [%d]", open, id)
	}

	if err := s.MarkGiveawayEnded(ctx, id, []string{"a", "b"}); err != nil {
		t.Fatalf("MarkGiveawayEnded failed: %v", err)
	}
	if err := s.MarkGiveawayEnded(ctx, id, []string{"c"}); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("second MarkGiveawayEnded err = %v, want ErrAlreadyEnded", err)
	}

	ended, err := s.GetGiveaway(ctx, id)
	if err != nil {
		t.Fatalf("GetGiveaway after end failed: %v", err)
	}
	if !ended.HasEnded {
		t.Fatalf("giveaway should be ended")
	}
	if len(ended.Winners) != 2 || ended.Winners[0] != "a" || ended.Winners[1] != "b" {
		t.Fatalf("winners = %v, want [a b]", ended.Winners)
	}

	open, err = s.ListOpenGiveaways(ctx)
	if err != nil {
		t.Fatalf("ListOpenGiveaways failed: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open giveaways after end = %d, want 0", len(open))
	}
}

func TestGetGiveawayMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetGiveaway(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetGiveaway failed: %v", err)
	}
	if got != nil {
		t.Fatalf("GetGiveaway = %+v, want nil", got)
	}
	if err := s.MarkGiveawayEnded(context.Background(), 42, nil); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("MarkGiveawayEnded on missing id err = %v, want ErrAlreadyEnded", err)
	}
}

func TestPollLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreatePoll(ctx, Poll{
		GuildID:         "g1",
		ChannelID:       "c1",
		MessageID:       "m2",
		Question:        "Lunch?",
		Answers:         []string{"Pizza", "Sushi"},
		Emojis:          []string{"🍕", "🍣"},
		EndsAt:          time.Now().Add(time.Hour),
		CreatedByUserID: "u1",
	})
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}

	got, err := s.GetPoll(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("GetPoll = %v, %v", got, err)
	}
	if len(got.Answers) != 2 || got.Answers[1] != "Sushi" || got.Emojis[0] != "🍕" {
		t.Fatalf("unexpected poll: %+v", got)
	}

	if err := s.MarkPollEnded(ctx, id); err != nil {
		t.Fatalf("MarkPollEnded failed: %v", err)
	}
	if err := s.MarkPollEnded(ctx, id); !errors.Is(err, ErrAlreadyEnded) {
		t.Fatalf("second MarkPollEnded err = %v, want ErrAlreadyEnded", err)
	}

	open, err := s.ListOpenPolls(ctx)
	if err != nil {
		t.Fatalf("ListOpenPolls failed: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open polls = %d, want 0", len(open))
	}
}

func TestCreatePollRejectsMisalignedEmojis(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreatePoll(context.Background(), Poll{
		Question: "q",
		Answers:  []string{"a", "b"},
		Emojis:   []string{"1"},
		EndsAt:   time.Now(),
	})
	if err == nil {
		t.Fatalf("CreatePoll accepted misaligned emojis")
	}
}

func TestReminderDeleteAndSent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	later, err := s.CreateReminder(ctx, Reminder{UserID: "u1", ChannelID: "c1", Task: "later", RemindAt: now.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	sooner, err := s.CreateReminder(ctx, Reminder{UserID: "u1", ChannelID: "c1", Task: "sooner", RemindAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	other, err := s.CreateReminder(ctx, Reminder{UserID: "u2", ChannelID: "c1", Task: "theirs", RemindAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}

	mine, err := s.ListUserReminders(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserReminders failed: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != sooner || mine[1].ID != later {
		t.Fatalf("reminders = %+v, want [sooner later]", mine)
	}

	ok, err := s.DeleteUserReminder(ctx, "u1", other)
	if err != nil {
		t.Fatalf("DeleteUserReminder failed: %v", err)
	}
	if ok {
		t.Fatalf("deleted another user's reminder")
	}

	if err := s.MarkReminderSent(ctx, sooner); err != nil {
		t.Fatalf("MarkReminderSent failed: %v", err)
	}
	if err := s.MarkReminderSent(ctx, sooner); !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("second MarkReminderSent err = %v, want ErrAlreadySent", err)
	}
	ok, err = s.DeleteUserReminder(ctx, "u1", sooner)
	if err != nil {
		t.Fatalf("DeleteUserReminder failed: %v", err)
	}
	if ok {
		t.Fatalf("deleted a reminder that was already sent")
	}

	ok, err = s.DeleteUserReminder(ctx, "u1", later)
	if err != nil || !ok {
		t.Fatalf("DeleteUserReminder = %v, %v; want true", ok, err)
	}

	pending, err := s.ListPendingReminders(ctx)
	if err != nil {
		t.Fatalf("ListPendingReminders failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != other {
		t.Fatalf("pending = %+v, want [%d]", pending, other)
	}
}
