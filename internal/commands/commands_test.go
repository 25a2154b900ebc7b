package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/platform/platformtest"
)

var pngMagic = []byte("\x89PNG")

func newService(t *testing.T) (*Service, *platformtest.Client) {
	t.Helper()
	client := platformtest.New()
	client.AddRole(platform.Role{ID: "300", Name: "Supporter", Position: 5})
	client.AddRole(platform.Role{ID: "301", Name: "Mod", Position: 9})
	client.AddMember(platform.Member{
		User:     platform.User{ID: "42", Username: "kay", CreatedAt: time.Unix(1500000000, 0)},
		Nick:     "Kay",
		RoleIDs:  []string{"301"},
		JoinedAt: time.Unix(1600000000, 0),
	})
	cfg := &env.Config{
		InviteURL:        "https://discord.gg/Cddu5aJ",
		ReportsChannelID: "77",
		SupporterRoleID:  "300",
		VerifyCode:       "letmein",
	}
	s := NewService(cfg, client)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s, client
}

func interaction(name string, opts map[string]platform.OptionValue) *platform.Interaction {
	return &platform.Interaction{
		Kind:      platform.KindCommand,
		Name:      name,
		GuildID:   "1",
		ChannelID: "10",
		User:      platform.User{ID: "42", Username: "kay"},
		Options:   opts,
	}
}

func str(v string) platform.OptionValue {
	return platform.OptionValue{Kind: platform.OptionString, String: v}
}

func TestPing(t *testing.T) {
	s, _ := newService(t)
	resp, err := s.Ping(context.Background(), interaction("ping", nil))
	if err != nil || resp.Content != "Pong! 42 ms" {
		t.Fatalf("Ping = %+v, %v", resp, err)
	}
}

func TestInviteAttachesQRCode(t *testing.T) {
	s, _ := newService(t)
	resp, err := s.Invite(context.Background(), interaction("invite", nil))
	if err != nil {
		t.Fatalf("Invite failed: %v", err)
	}
	if resp.Content != "https://discord.gg/Cddu5aJ" {
		t.Fatalf("content = %q", resp.Content)
	}
	if len(resp.Files) != 1 || !bytes.HasPrefix(resp.Files[0].Data, pngMagic) {
		t.Fatalf("expected one PNG attachment, got %+v", resp.Files)
	}
}

func TestReport(t *testing.T) {
	s, client := newService(t)
	target := &platform.User{ID: "99", Username: "troll"}

	resp, err := s.Report(context.Background(), interaction("report", map[string]platform.OptionValue{
		"user":   {Kind: platform.OptionUser, User: target},
		"reason": str("spam"),
	}))
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if !strings.HasPrefix(resp.Content, "✅") {
		t.Fatalf("reply = %q", resp.Content)
	}
	if client.SentTo[0] != "77" {
		t.Fatalf("report sent to %s, want reports channel", client.SentTo[0])
	}
	msg, _ := client.LastSent()
	if msg.Embed.Fields[0].Value != "<@99>" || msg.Embed.Fields[3].Value != "spam" {
		t.Fatalf("report embed = %+v", msg.Embed.Fields)
	}

	if _, err := s.Report(context.Background(), interaction("report", map[string]platform.OptionValue{
		"user": {Kind: platform.OptionUser, User: target},
	})); err == nil {
		t.Fatalf("expected error without a reason")
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	s, client := newService(t)
	ctx := context.Background()
	verify := func(code string) string {
		t.Helper()
		resp, err := s.Verify(ctx, interaction("verify", map[string]platform.OptionValue{"code": str(code)}))
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		return resp.Content
	}

	if got := verify("nope"); got != "❌ That code isn't valid." {
		t.Fatalf("wrong code = %q", got)
	}
	if got := verify("letmein"); got != "✅ You're verified! Welcome aboard." {
		t.Fatalf("first verify = %q", got)
	}
	if got := verify("letmein"); got != "You're already verified." {
		t.Fatalf("second verify = %q", got)
	}
	if len(client.Added) != 1 || client.Added[0] != "42:300" {
		t.Fatalf("added = %v", client.Added)
	}
}

func TestUserInfo(t *testing.T) {
	s, _ := newService(t)

	resp, err := s.UserInfo(context.Background(), interaction("userinfo", nil))
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	e := resp.Embed
	if e.AuthorName != "Kay" {
		t.Fatalf("author = %q, want nickname", e.AuthorName)
	}
	last := e.Fields[len(e.Fields)-1]
	if last.Name != "Roles (1)" || last.Value != "<@&301>" {
		t.Fatalf("roles field = %+v", last)
	}

	in := interaction("User Info", nil)
	in.Kind = platform.KindUserCommand
	in.TargetUser = &platform.User{ID: "555", Username: "ghost"}
	resp, err = s.UserInfo(context.Background(), in)
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	if resp.Embed.Footer != "Not a member of this server" {
		t.Fatalf("footer = %q", resp.Embed.Footer)
	}
}

func TestMentionableRender(t *testing.T) {
	cases := []struct {
		name string
		in   platform.OptionValue
		want string
	}{
		{"user", platform.OptionValue{Kind: platform.OptionUser, User: &platform.User{ID: "1"}}, "<@1>"},
		{"role", platform.OptionValue{Kind: platform.OptionRole, Role: &platform.Role{ID: "2"}}, "<@&2>"},
		{"channel", platform.OptionValue{Kind: platform.OptionChannel, ChannelID: "3"}, "3"},
		{"int", platform.OptionValue{Kind: platform.OptionInt, Int: 5}, "**5**"},
		{"string", str("hello"), "**hello**"},
		{"empty", str(""), "**null**"},
		{"missing user", platform.OptionValue{Kind: platform.OptionUser}, "**null**"},
	}
	for _, tc := range cases {
		if got := FromOption(tc.in).Render(); got != tc.want {
			t.Fatalf("%s: Render = %q, want %q", tc.name, got, tc.want)
		}
	}
	if got := (Mentionable{Kind: MentionID, ID: "9"}).Render(); got != "<@!9>" {
		t.Fatalf("raw id = %q", got)
	}
}

func TestAuditLine(t *testing.T) {
	in := interaction("giveaway", map[string]platform.OptionValue{
		"prize":   str("Nitro"),
		"winners": {Kind: platform.OptionInt, Int: 2},
	})
	in.OptionOrder = []string{"prize", "winners"}

	want := "<@42> used **/giveaway** *prize:* **Nitro** *winners:* **2** in <#10>"
	if got := AuditLine(in); got != want {
		t.Fatalf("AuditLine = %q\nwant       %q", got, want)
	}
}

func TestAuditorPostsToChannel(t *testing.T) {
	client := platformtest.New()
	a := NewAuditor(client, "55")
	a.send = a.post

	a.Record(interaction("ping", nil))
	if client.SentCount() != 1 || client.SentTo[0] != "55" {
		t.Fatalf("audit not posted: %v", client.SentTo)
	}

	quiet := NewAuditor(client, "")
	quiet.Record(interaction("ping", nil))
	if client.SentCount() != 1 {
		t.Fatalf("auditor without channel must not post")
	}
}
