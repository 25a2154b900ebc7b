package platform

import (
	"context"
	"testing"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })
	return logs
}

func TestRouter_DispatchByPrefix(t *testing.T) {
	r := NewRouter()
	var got string
	r.Component("rolepanel-toggle", func(_ context.Context, in *Interaction) (*Response, error) {
		got = in.CustomIDArg("rolepanel-toggle")
		return Reply("ok"), nil
	})

	resp := r.Dispatch(context.Background(), &Interaction{Kind: KindComponent, CustomID: "rolepanel-toggle:123"})
	if resp.Content != "ok" || got != "123" {
		t.Fatalf("resp = %q, arg = %q", resp.Content, got)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	observeLogs(t)
	r := NewRouter()
	resp := r.Dispatch(context.Background(), &Interaction{Kind: KindComponent, CustomID: "nope:1"})
	if resp.Content != "That action is no longer available." || !resp.Ephemeral {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRouter_ErrorsBecomeReplies(t *testing.T) {
	logs := observeLogs(t)
	r := NewRouter()
	r.Command("bad", func(context.Context, *Interaction) (*Response, error) {
		return nil, errs.Validation("Please provide a prize.")
	})
	r.Command("broken", func(context.Context, *Interaction) (*Response, error) {
		return nil, errs.External(errs.New("503"), "")
	})

	if got := r.Dispatch(context.Background(), &Interaction{Kind: KindCommand, Name: "bad"}).Content; got != "Please provide a prize." {
		t.Fatalf("validation reply = %q", got)
	}
	if got := r.Dispatch(context.Background(), &Interaction{Kind: KindCommand, Name: "broken"}).Content; got != errs.UserMessage(errs.External(errs.New("x"), "")) {
		t.Fatalf("external reply = %q", got)
	}

	if n := logs.FilterMessage("Interaction rejected").Len(); n != 1 {
		t.Fatalf("rejected logs = %d, want 1", n)
	}
	failed := logs.FilterMessage("Interaction failed").All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel {
		t.Fatalf("failed logs = %+v", failed)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	logs := observeLogs(t)
	r := NewRouter()
	r.Command("boom", func(context.Context, *Interaction) (*Response, error) {
		panic("kaboom")
	})

	resp := r.Dispatch(context.Background(), &Interaction{Kind: KindCommand, Name: "boom"})
	if resp == nil || resp.Content == "" {
		t.Fatalf("expected a reply after panic, got %+v", resp)
	}
	if logs.FilterMessage("Interaction handler panicked").Len() != 1 {
		t.Fatalf("panic was not logged")
	}
}

func TestRouter_AuditHookSkipsComponents(t *testing.T) {
	r := NewRouter()
	ok := func(context.Context, *Interaction) (*Response, error) { return nil, nil }
	r.Command("ping", ok)
	r.Component("btn", ok)

	var audited []string
	r.OnInvoke(func(in *Interaction) { audited = append(audited, in.Name) })

	if got := r.Dispatch(context.Background(), &Interaction{Kind: KindCommand, Name: "ping"}).Content; got != "Done." {
		t.Fatalf("nil response reply = %q", got)
	}
	r.Dispatch(context.Background(), &Interaction{Kind: KindComponent, CustomID: "btn"})
	if len(audited) != 1 || audited[0] != "ping" {
		t.Fatalf("audited = %v", audited)
	}
}

func TestRouter_DuplicateRegistrationPanics(t *testing.T) {
	r := NewRouter()
	h := func(context.Context, *Interaction) (*Response, error) { return nil, nil }
	r.Command("ping", h)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate route")
		}
	}()
	r.Command("ping", h)
}

func TestRouter_ModalRoutesAreMarked(t *testing.T) {
	r := NewRouter()
	h := func(context.Context, *Interaction) (*Response, error) { return nil, nil }
	r.CommandModal("poll", h)
	r.Command("giveaway", h)

	if route, _ := r.Lookup(&Interaction{Kind: KindCommand, Name: "poll"}); !route.OpensModal {
		t.Fatalf("poll should open a modal")
	}
	if route, _ := r.Lookup(&Interaction{Kind: KindCommand, Name: "giveaway"}); route.OpensModal {
		t.Fatalf("giveaway should be deferred")
	}
}
