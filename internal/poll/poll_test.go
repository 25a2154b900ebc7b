package poll

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/platform/platformtest"
	"github.com/tsgs/tsgsbot/internal/scheduler"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeScheduler struct {
	mu     sync.Mutex
	keys   []string
	endsAt []time.Time
}

func (f *fakeScheduler) Schedule(key string, endsAt time.Time, _ scheduler.Func) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.endsAt = append(f.endsAt, endsAt)
	return true
}

func newService(t *testing.T) (*Service, *platformtest.Client, *localdb.Store, *fakeScheduler) {
	t.Helper()
	db, err := localdb.SetupDB(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	store := localdb.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	client := platformtest.New()
	sched := &fakeScheduler{}
	svc := NewService(&env.Config{}, client, store, sched, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, client, store, sched
}

func TestHandleCommandOpensModal(t *testing.T) {
	svc, client, _, sched := newService(t)
	resp, err := svc.HandleCommand(context.Background(), &platform.Interaction{
		Kind: platform.KindCommand,
		Name: CommandName,
		Options: map[string]platform.OptionValue{
			"endtime": {Kind: platform.OptionString, String: "12:30"},
		},
	})
	if err != nil {
		t.Fatalf("HandleCommand failed: %v", err)
	}
	if resp.Modal == nil {
		t.Fatalf("expected a modal")
	}
	want := ModalPrefix + ":" + strconv.FormatInt(fixedNow.Add(30*time.Minute).Unix(), 10)
	if resp.Modal.CustomID != want {
		t.Fatalf("modal id = %q, want %q", resp.Modal.CustomID, want)
	}
	if len(resp.Modal.Inputs) != 3 {
		t.Fatalf("inputs = %d, want 3", len(resp.Modal.Inputs))
	}
	if client.SentCount() != 0 || len(sched.keys) != 0 {
		t.Fatalf("opening the modal must not post or schedule")
	}
}

func TestHandleCommandRejectsPast(t *testing.T) {
	svc, client, _, sched := newService(t)
	_, err := svc.HandleCommand(context.Background(), &platform.Interaction{
		Options: map[string]platform.OptionValue{
			"date":    {Kind: platform.OptionString, String: "2026-03-09"},
			"endtime": {Kind: platform.OptionString, String: "10:00"},
		},
	})
	if !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if client.SentCount() != 0 || len(sched.keys) != 0 {
		t.Fatalf("rejected poll posted or scheduled")
	}
}

func modal(endsAt time.Time, fields map[string]string) *platform.Interaction {
	return &platform.Interaction{
		Kind:      platform.KindModalSubmit,
		CustomID:  ModalPrefix + ":" + strconv.FormatInt(endsAt.Unix(), 10),
		GuildID:   "g1",
		ChannelID: "c1",
		User:      platform.User{ID: "500", Username: "host"},
		Fields:    fields,
	}
}

func TestHandleModalPostsAndSchedules(t *testing.T) {
	svc, client, store, sched := newService(t)
	endsAt := fixedNow.Add(time.Hour)

	resp, err := svc.HandleModal(context.Background(), modal(endsAt, map[string]string{
		"question": "Lunch?",
		"answers":  "Pizza\n\nSushi\nTacos\n",
	}))
	if err != nil {
		t.Fatalf("HandleModal failed: %v", err)
	}
	if !resp.Ephemeral || !strings.HasPrefix(resp.Content, "Poll created!") {
		t.Fatalf("unexpected response: %+v", resp)
	}

	sent, _ := client.LastSent()
	if sent.Embed.Title != "\U0001F4CA Lunch?" {
		t.Fatalf("title = %q", sent.Embed.Title)
	}
	open, err := store.ListOpenPolls(context.Background())
	if err != nil || len(open) != 1 {
		t.Fatalf("ListOpenPolls = %v, %v", open, err)
	}
	p := open[0]
	if len(p.Answers) != 3 || p.Emojis[2] != DefaultEmojis[2] {
		t.Fatalf("stored poll = %+v", p)
	}

	msg, _ := client.Message(context.Background(), "c1", p.MessageID)
	if len(msg.Reactions) != 3 {
		t.Fatalf("seeded %d reactions, want 3", len(msg.Reactions))
	}
	if len(sched.keys) != 1 || sched.keys[0] != Key(p.ID) || !sched.endsAt[0].Equal(endsAt) {
		t.Fatalf("scheduled %v at %v", sched.keys, sched.endsAt)
	}
}

func TestHandleModalValidation(t *testing.T) {
	endsAt := fixedNow.Add(time.Hour)
	tests := []struct {
		name   string
		fields map[string]string
		want   string
	}{
		{"one answer", map[string]string{"question": "q", "answers": "only"}, "Please provide between 2 and 10 answers, one per line."},
		{"eleven answers", map[string]string{"question": "q", "answers": strings.Repeat("a\n", 11)}, "Please provide between 2 and 10 answers, one per line."},
		{"blank question", map[string]string{"question": " ", "answers": "a\nb"}, "Please provide a poll question."},
		{"emoji mismatch", map[string]string{"question": "q", "answers": "a\nb", "emojis": "\U0001F355"}, "Emoji count (1) must match answer count (2), or leave emojis blank."},
		{"duplicate emoji", map[string]string{"question": "q", "answers": "a\nb", "emojis": "\U0001F355\n\U0001F355"}, "Each answer needs a different emoji."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, client, _, _ := newService(t)
			_, err := svc.HandleModal(context.Background(), modal(endsAt, tt.fields))
			if got := errs.UserMessage(err); got != tt.want {
				t.Fatalf("UserMessage = %q, want %q", got, tt.want)
			}
			if client.SentCount() != 0 {
				t.Fatalf("invalid poll was posted")
			}
		})
	}
}

func TestHandleModalRejectsExpiredDeadline(t *testing.T) {
	svc, client, _, _ := newService(t)
	_, err := svc.HandleModal(context.Background(), modal(fixedNow.Add(-time.Minute), map[string]string{
		"question": "q", "answers": "a\nb",
	}))
	if !errs.Is(err, errs.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if client.SentCount() != 0 {
		t.Fatalf("expired poll was posted")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	svc, client, store, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.HandleModal(ctx, modal(fixedNow.Add(time.Hour), map[string]string{
		"question": "Lunch?", "answers": "Pizza\nSushi\nTacos",
	})); err != nil {
		t.Fatalf("HandleModal failed: %v", err)
	}
	open, _ := store.ListOpenPolls(ctx)
	p := open[0]

	voters := func(prefix string, n int) []platform.User {
		var out []platform.User
		for i := 0; i < n; i++ {
			out = append(out, platform.User{ID: prefix + strconv.Itoa(i)})
		}
		return out
	}
	client.React(p.MessageID, platform.ParseEmoji(DefaultEmojis[0]), voters("a", 6)...)
	client.React(p.MessageID, platform.ParseEmoji(DefaultEmojis[1]), voters("b", 4)...)
	client.React(p.MessageID, platform.ParseEmoji(DefaultEmojis[2]), voters("c", 4)...)
	sentBefore := client.SentCount()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Finalize(ctx, p.ID); err != nil {
				t.Errorf("Finalize failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := client.SentCount() - sentBefore; got != 1 {
		t.Fatalf("results posted %d times, want 1", got)
	}
	result, _ := client.LastSent()
	for _, want := range []string{"**Pizza** \U0001F3C6 WINNER", "(42.9%)", "(28.6%)", "**Total votes:** 14"} {
		if !strings.Contains(result.Embed.Description, want) {
			t.Fatalf("results missing %q:\n%s", want, result.Embed.Description)
		}
	}
	if len(client.Deleted) != 1 || client.Deleted[0] != p.MessageID {
		t.Fatalf("deleted = %v", client.Deleted)
	}

	stored, _ := store.GetPoll(ctx, p.ID)
	if !stored.HasEnded {
		t.Fatalf("poll not marked ended")
	}
}
