package reminder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/platform/platformtest"
	"github.com/tsgs/tsgsbot/internal/scheduler"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeScheduler struct {
	mu        sync.Mutex
	fns       map[string]scheduler.Func
	at        map[string]time.Time
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{fns: map[string]scheduler.Func{}, at: map[string]time.Time{}}
}

func (f *fakeScheduler) Schedule(key string, endsAt time.Time, fn scheduler.Func) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fns[key]; ok {
		return false
	}
	f.fns[key] = fn
	f.at[key] = endsAt
	return true
}

func (f *fakeScheduler) Cancel(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fns[key]
	delete(f.fns, key)
	f.cancelled = append(f.cancelled, key)
	return ok
}

func (f *fakeScheduler) fire(t *testing.T, key string) {
	t.Helper()
	f.mu.Lock()
	fn, ok := f.fns[key]
	delete(f.fns, key)
	f.mu.Unlock()
	if !ok {
		t.Fatalf("nothing scheduled under %s", key)
	}
	if err := fn(context.Background()); err != nil {
		t.Fatalf("%s failed: %v", key, err)
	}
}

type fixture struct {
	svc    *Service
	client *platformtest.Client
	store  *localdb.Store
	sched  *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := localdb.SetupDB(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	store := localdb.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{client: platformtest.New(), store: store, sched: newFakeScheduler()}
	f.svc = NewService(&env.Config{}, f.client, store, f.sched)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func remind(task, date, clock string) *platform.Interaction {
	return &platform.Interaction{
		Kind:      platform.KindCommand,
		Name:      CommandName,
		ChannelID: "10",
		User:      platform.User{ID: "42", Username: "kay"},
		Options: map[string]platform.OptionValue{
			"task": {Kind: platform.OptionString, String: task},
			"date": {Kind: platform.OptionString, String: date},
			"time": {Kind: platform.OptionString, String: clock},
		},
	}
}

func TestRemind_CreateAndDeliver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.HandleRemind(ctx, remind("water plants", "", "18:30"))
	if err != nil {
		t.Fatalf("HandleRemind failed: %v", err)
	}
	want := time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)
	if !strings.Contains(resp.Content, fmt.Sprintf("<t:%d:F>", want.Unix())) {
		t.Fatalf("reply = %q", resp.Content)
	}
	if got := f.sched.at[Key(1)]; !got.Equal(want) {
		t.Fatalf("scheduled at %v, want %v", got, want)
	}

	f.sched.fire(t, Key(1))
	msg, ok := f.client.LastSent()
	if !ok || msg.Content != "<@42> reminder: water plants" {
		t.Fatalf("delivered = %+v", msg)
	}
	if f.client.SentTo[0] != "10" {
		t.Fatalf("sent to %s, want channel 10", f.client.SentTo[0])
	}

	r, err := f.store.GetReminder(ctx, 1)
	if err != nil || r == nil || !r.HasSent {
		t.Fatalf("reminder = %+v, %v", r, err)
	}

	// A second delivery is a no-op.
	if err := f.svc.Deliver(ctx, 1); err != nil {
		t.Fatalf("second Deliver failed: %v", err)
	}
	if f.client.SentCount() != 1 {
		t.Fatalf("sent %d messages, want 1", f.client.SentCount())
	}
}

func TestRemind_RejectsPastAndEmpty(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.HandleRemind(context.Background(), remind("", "", "")); err == nil {
		t.Fatalf("expected error for empty task")
	}
	if _, err := f.svc.HandleRemind(context.Background(), remind("x", "2026-03-10", "11:00")); err == nil {
		t.Fatalf("expected error for past time")
	}
	if len(f.sched.fns) != 0 {
		t.Fatalf("nothing should be scheduled")
	}
}

func TestMyReminders_ListAndSelectDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, clock := range []string{"20:00", "14:00"} {
		if _, err := f.svc.HandleRemind(ctx, remind("task "+clock, "", clock)); err != nil {
			t.Fatalf("HandleRemind failed: %v", err)
		}
	}

	list, err := f.svc.HandleList(ctx, &platform.Interaction{User: platform.User{ID: "42", Username: "kay"}})
	if err != nil {
		t.Fatalf("HandleList failed: %v", err)
	}
	if list.Embed == nil || list.Embed.Title != "📋 Your Reminders (2)" {
		t.Fatalf("embed = %+v", list.Embed)
	}
	if list.Embed.Fields[0].Name != "task 14:00" {
		t.Fatalf("first field = %q, want soonest first", list.Embed.Fields[0].Name)
	}
	if !strings.HasPrefix(list.Embed.Fields[0].Value, "ID: 2\n<t:") {
		t.Fatalf("field value = %q", list.Embed.Fields[0].Value)
	}
	menu := list.Components[0].Select
	if menu == nil || menu.CustomID != SelectID || len(menu.Options) != 2 {
		t.Fatalf("menu = %+v", menu)
	}

	sel := &platform.Interaction{Kind: platform.KindComponent, CustomID: SelectID, User: platform.User{ID: "42"}, Values: []string{"2"}}
	resp, err := f.svc.HandleSelect(ctx, sel)
	if err != nil {
		t.Fatalf("HandleSelect failed: %v", err)
	}
	if !resp.Update || resp.Embed.Title != "📋 Your Reminders (1)" {
		t.Fatalf("refreshed = %+v", resp)
	}
	if len(f.sched.cancelled) != 1 || f.sched.cancelled[0] != Key(2) {
		t.Fatalf("cancelled = %v", f.sched.cancelled)
	}

	sel.Values = []string{"1"}
	resp, err = f.svc.HandleSelect(ctx, sel)
	if err != nil {
		t.Fatalf("HandleSelect failed: %v", err)
	}
	if resp.Content != "📭 You don't have any active reminders." || !resp.ClearComponents {
		t.Fatalf("empty list = %+v", resp)
	}
}

func TestReminderDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.HandleRemind(ctx, remind("stretch", "", "")); err != nil {
		t.Fatalf("HandleRemind failed: %v", err)
	}

	del := func(userID string, id int64) string {
		t.Helper()
		resp, err := f.svc.HandleDelete(ctx, &platform.Interaction{
			User:    platform.User{ID: userID},
			Options: map[string]platform.OptionValue{"id": {Kind: platform.OptionInt, Int: id}},
		})
		if err != nil {
			t.Fatalf("HandleDelete failed: %v", err)
		}
		return resp.Content
	}

	if got := del("42", 0); got != "❌ Reminder ID must be a positive number." {
		t.Fatalf("zero id = %q", got)
	}
	if got := del("99", 1); got != "❌ That reminder doesn't exist or was already sent." {
		t.Fatalf("other user = %q", got)
	}
	if got := del("42", 1); got != "✅ Deleted reminder 1." {
		t.Fatalf("delete = %q", got)
	}
	if got := del("42", 1); got != "❌ That reminder doesn't exist or was already sent." {
		t.Fatalf("repeat delete = %q", got)
	}
}

func TestRecoverReschedulesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, at := range []time.Time{fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour)} {
		if _, err := f.store.CreateReminder(ctx, localdb.Reminder{UserID: "42", ChannelID: "10", Task: fmt.Sprint(i), RemindAt: at}); err != nil {
			t.Fatalf("CreateReminder failed: %v", err)
		}
	}
	if err := f.store.MarkReminderSent(ctx, 1); err != nil {
		t.Fatalf("MarkReminderSent failed: %v", err)
	}

	n, err := f.svc.Recover(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Recover = %d, %v; want 1", n, err)
	}
	if _, ok := f.sched.fns[Key(2)]; !ok {
		t.Fatalf("reminder 2 not rescheduled")
	}
}

func TestDeliverDropsWhenChannelGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.store.CreateReminder(ctx, localdb.Reminder{UserID: "42", ChannelID: "10", Task: "x", RemindAt: fixedNow})
	if err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}
	f.client.ErrSend = fmt.Errorf("channel: %w", platform.ErrNotFound)

	if err := f.svc.Deliver(ctx, id); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	r, _ := f.store.GetReminder(ctx, id)
	if !r.HasSent {
		t.Fatalf("reminder should be closed when its channel is gone")
	}
}
