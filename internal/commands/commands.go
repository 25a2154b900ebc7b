// Package commands holds the small public slash commands and the audit hook
// that records every command invocation.
package commands

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

const (
	qrSize      = 256
	reportColor = 0xe74c3c
	infoColor   = 0x3498db

	UserInfoMenuName = "User Info"
)

type Service struct {
	cfg    *env.Config
	client platform.Client
	now    func() time.Time
}

func NewService(cfg *env.Config, client platform.Client) *Service {
	return &Service{cfg: cfg, client: client, now: time.Now}
}

// Register wires the commands into r.
func (s *Service) Register(r *platform.Router) {
	r.Command("ping", s.Ping)
	r.Command("invite", s.Invite)
	r.Command("report", s.Report)
	r.Command("verify", s.Verify)
	r.Command("userinfo", s.UserInfo)
	r.UserCommand(UserInfoMenuName, s.UserInfo)
}

// Ping reports the gateway heartbeat latency.
func (s *Service) Ping(context.Context, *platform.Interaction) (*platform.Response, error) {
	return platform.Reply(fmt.Sprintf("Pong! %d ms", s.client.Latency().Milliseconds())), nil
}

// Invite replies with the server invite and a QR code for it.
func (s *Service) Invite(context.Context, *platform.Interaction) (*platform.Response, error) {
	png, err := qrcode.Encode(s.cfg.InviteURL, qrcode.Medium, qrSize)
	if err != nil {
		logger.Error("Failed to encode invite QR code", zap.Error(err))
		return platform.Reply(s.cfg.InviteURL), nil
	}
	return &platform.Response{
		Content: s.cfg.InviteURL,
		Files:   []platform.File{{Name: "invite.png", ContentType: "image/png", Data: png}},
	}, nil
}

// Report forwards a user report to the moderators' channel.
func (s *Service) Report(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	if s.cfg.ReportsChannelID == "" {
		return nil, errs.Validation("Reporting isn't set up on this server.")
	}
	target := in.UserOption("user")
	if target == nil {
		return nil, errs.Validation("Please pick the user you want to report.")
	}
	reason := in.StringOption("reason")
	if reason == "" {
		return nil, errs.Validation("Please give a reason for the report.")
	}
	if target.ID == in.User.ID {
		return nil, errs.Validation("You can't report yourself.")
	}

	_, err := s.client.SendMessage(ctx, s.cfg.ReportsChannelID, platform.MessageSend{
		Embed: &platform.Embed{
			Title: "\U0001F6A8 New Report",
			Color: reportColor,
			Fields: []platform.EmbedField{
				{Name: "Reported user", Value: target.Mention(), Inline: true},
				{Name: "Reported by", Value: in.User.Mention(), Inline: true},
				{Name: "Channel", Value: "<#" + in.ChannelID + ">", Inline: true},
				{Name: "Reason", Value: reason},
			},
			Timestamp: s.now(),
		},
	})
	if err != nil {
		return nil, errs.External(err, "I couldn't deliver your report. Please contact a moderator directly.")
	}

	logger.Info("User report filed",
		zap.String("reporter_id", in.User.ID),
		zap.String("target_id", target.ID))
	return platform.Reply("✅ Your report has been sent to the moderators."), nil
}

// Verify grants the supporter role when the code matches.
func (s *Service) Verify(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	if s.cfg.SupporterRoleID == "" || s.cfg.VerifyCode == "" {
		return nil, errs.Validation("Verification isn't set up on this server.")
	}
	if in.GuildID == "" {
		return nil, errs.Validation("This only works inside a server.")
	}
	code := in.StringOption("code")
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.cfg.VerifyCode)) != 1 {
		logger.Info("Verification failed", zap.String("user_id", in.User.ID))
		return platform.Reply("❌ That code isn't valid."), nil
	}

	member, err := s.client.Member(ctx, in.GuildID, in.User.ID)
	if err != nil {
		return nil, errs.External(err, "")
	}
	if member.HasRole(s.cfg.SupporterRoleID) {
		return platform.Reply("You're already verified."), nil
	}
	if err := s.client.AddMemberRole(ctx, in.GuildID, in.User.ID, s.cfg.SupporterRoleID); err != nil {
		return nil, errs.External(err, "I couldn't give you the role. Please contact a moderator.")
	}

	logger.Info("User verified", zap.String("user_id", in.User.ID))
	return platform.Reply("✅ You're verified! Welcome aboard."), nil
}

// UserInfo shows account and membership details for a user. It serves both
// /userinfo and the user context menu.
func (s *Service) UserInfo(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	target := in.TargetUser
	if target == nil {
		target = in.UserOption("user")
	}
	if target == nil {
		target = &in.User
	}

	embed := &platform.Embed{
		Title:      "User info",
		AuthorName: target.Username,
		AuthorIcon: target.AvatarURL,
		Thumbnail:  target.AvatarURL,
		Color:      infoColor,
		Timestamp:  s.now(),
		Fields: []platform.EmbedField{
			{Name: "User", Value: target.Mention(), Inline: true},
			{Name: "ID", Value: target.ID, Inline: true},
		},
	}
	if !target.CreatedAt.IsZero() {
		embed.Fields = append(embed.Fields, platform.EmbedField{
			Name: "Account created", Value: fmt.Sprintf("<t:%d:R>", target.CreatedAt.Unix()), Inline: true,
		})
	}

	if in.GuildID != "" {
		member, err := s.client.Member(ctx, in.GuildID, target.ID)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			embed.Footer = "Not a member of this server"
		case err != nil:
			return nil, errs.External(err, "")
		default:
			embed.AuthorName = member.DisplayName()
			if !member.JoinedAt.IsZero() {
				embed.Fields = append(embed.Fields, platform.EmbedField{
					Name: "Joined", Value: fmt.Sprintf("<t:%d:R>", member.JoinedAt.Unix()), Inline: true,
				})
			}
			roles, err := s.memberRoles(ctx, in.GuildID, member)
			if err != nil {
				return nil, err
			}
			embed.Fields = append(embed.Fields, platform.EmbedField{Name: fmt.Sprintf("Roles (%d)", len(roles)), Value: roles.String()})
		}
	}

	return &platform.Response{Embed: embed, Ephemeral: true}, nil
}

type roleList []platform.Role

func (l roleList) String() string {
	if len(l) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(l))
	for _, r := range l {
		parts = append(parts, r.Mention())
	}
	return strings.Join(parts, " ")
}

// memberRoles returns the member's roles, highest first.
func (s *Service) memberRoles(ctx context.Context, guildID string, m *platform.Member) (roleList, error) {
	all, err := s.client.Roles(ctx, guildID)
	if err != nil {
		return nil, errs.External(err, "")
	}
	var out roleList
	for _, r := range all {
		if r.ID != guildID && m.HasRole(r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}
