// Package discord adapts a discordgo session to platform.Client and feeds
// gateway interactions into a platform.Router.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tsgs/tsgsbot/internal/platform"
)

// Client implements platform.Client over the Discord REST API.
type Client struct {
	s *discordgo.Session
}

var _ platform.Client = (*Client)(nil)

func NewClient(s *discordgo.Session) *Client {
	return &Client{s: s}
}

// mapErr turns 404 responses into platform.ErrNotFound.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", what, platform.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (c *Client) SendMessage(ctx context.Context, channelID string, msg platform.MessageSend) (*platform.Message, error) {
	send := &discordgo.MessageSend{
		Content:    msg.Content,
		Components: toComponents(msg.Components),
		Files:      toFiles(msg.Files),
		// Mentions in content still render; only explicitly allowed ones ping.
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers, discordgo.AllowedMentionTypeRoles},
		},
	}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}
	m, err := c.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "send message")
	}
	return fromMessage(m), nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, msg platform.MessageSend) (*platform.Message, error) {
	content := msg.Content
	embeds := []*discordgo.MessageEmbed{}
	if msg.Embed != nil {
		embeds = append(embeds, toEmbed(msg.Embed))
	}
	components := toComponents(msg.Components)
	m, err := c.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "edit message")
	}
	return fromMessage(m), nil
}

func (c *Client) Message(ctx context.Context, channelID, messageID string) (*platform.Message, error) {
	m, err := c.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "get message")
	}
	return fromMessage(m), nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapErr(c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)), "delete message")
}

func (c *Client) AddReaction(ctx context.Context, channelID, messageID string, emoji platform.Emoji) error {
	return mapErr(c.s.MessageReactionAdd(channelID, messageID, emoji.APIName(), discordgo.WithContext(ctx)), "add reaction")
}

func (c *Client) ReactionUsers(ctx context.Context, channelID, messageID string, emoji platform.Emoji, limit int, after string) ([]platform.User, error) {
	limit = min(max(limit, 1), platform.ReactionPageSize)
	users, err := c.s.MessageReactions(channelID, messageID, emoji.APIName(), limit, "", after, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "list reactions")
	}
	out := make([]platform.User, 0, len(users))
	for _, u := range users {
		out = append(out, fromUser(u))
	}
	return out, nil
}

func (c *Client) Role(ctx context.Context, guildID, roleID string) (*platform.Role, error) {
	if r, err := c.s.State.Role(guildID, roleID); err == nil {
		role := fromRole(r)
		return &role, nil
	}
	roles, err := c.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "list roles")
	}
	for _, r := range roles {
		if r.ID == roleID {
			role := fromRole(r)
			return &role, nil
		}
	}
	return nil, fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
}

func (c *Client) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	roles, err := c.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "list roles")
	}
	return sortedRoles(roles), nil
}

func (c *Client) Member(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	m, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "get member")
	}
	member := fromMember(m)
	return &member, nil
}

func (c *Client) User(ctx context.Context, userID string) (*platform.User, error) {
	u, err := c.s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err, "get user")
	}
	user := fromUser(u)
	return &user, nil
}

// BotStanding derives the bot's role permissions and highest role position.
func (c *Client) BotStanding(ctx context.Context, guildID string) (platform.BotStanding, error) {
	if c.s.State == nil || c.s.State.User == nil {
		return platform.BotStanding{}, errors.New("bot standing: session not ready")
	}
	member, err := c.s.GuildMember(guildID, c.s.State.User.ID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.BotStanding{}, mapErr(err, "get bot member")
	}
	roles, err := c.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.BotStanding{}, mapErr(err, "list roles")
	}
	return standing(guildID, member.Roles, roles), nil
}

func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapErr(c.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)), "add member role")
}

func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapErr(c.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)), "remove member role")
}

func (c *Client) Latency() time.Duration {
	return c.s.HeartbeatLatency()
}

// standing computes what the bot may manage from its role ids. The @everyone
// role shares the guild id and always applies.
func standing(guildID string, memberRoleIDs []string, roles []*discordgo.Role) platform.BotStanding {
	held := make(map[string]bool, len(memberRoleIDs)+1)
	held[guildID] = true
	for _, id := range memberRoleIDs {
		held[id] = true
	}

	var st platform.BotStanding
	for _, r := range roles {
		if !held[r.ID] {
			continue
		}
		if r.Permissions&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) != 0 {
			st.CanManageRoles = true
		}
		if r.ID != guildID && r.Position > st.TopPosition {
			st.TopPosition = r.Position
		}
	}
	return st
}

func toFiles(files []platform.File) []*discordgo.File {
	out := make([]*discordgo.File, 0, len(files))
	for _, f := range files {
		out = append(out, &discordgo.File{Name: f.Name, ContentType: f.ContentType, Reader: bytes.NewReader(f.Data)})
	}
	return out
}
