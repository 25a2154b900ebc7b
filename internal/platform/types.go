// Package platform describes the messaging platform as the bot sees it: the
// entities it reads, the calls it makes, and the inbound interactions it
// answers. Concrete adapters live in subpackages.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Client lookups when the entity does not exist.
var ErrNotFound = errors.New("platform: not found")

// ReactionPageSize is the largest page ReactionUsers returns.
const ReactionPageSize = 100

type User struct {
	ID        string
	Username  string
	AvatarURL string
	Bot       bool
	CreatedAt time.Time
}

// Mention renders the user mention markup.
func (u User) Mention() string { return "<@" + u.ID + ">" }

type Member struct {
	User     User
	Nick     string
	RoleIDs  []string
	JoinedAt time.Time
}

// DisplayName prefers the guild nickname.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

// HasRole reports whether the member currently holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

type Role struct {
	ID       string
	Name     string
	Position int
	// Managed roles belong to integrations and cannot be granted by bots.
	Managed bool
}

func (r Role) Mention() string { return "<@&" + r.ID + ">" }

// BotStanding is what decides whether the bot may grant or revoke a role.
type BotStanding struct {
	CanManageRoles bool
	// TopPosition is the position of the bot's highest role.
	TopPosition int
}

// CanManage reports whether the bot can grant or revoke r right now.
func (b BotStanding) CanManage(r Role) bool {
	return !r.Managed && b.CanManageRoles && b.TopPosition > r.Position
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	AuthorName  string
	AuthorIcon  string
	ImageURL    string
	Thumbnail   string
	Footer      string
	Color       int
	Timestamp   time.Time
	Fields      []EmbedField
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
}

type SelectOption struct {
	Label       string
	Value       string
	Description string
}

type SelectMenu struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// ActionRow holds up to five buttons or a single select menu.
type ActionRow struct {
	Buttons []Button
	Select  *SelectMenu
}

// MaxButtonsPerRow is the platform limit on buttons in one action row.
const MaxButtonsPerRow = 5

type Reaction struct {
	Emoji Emoji
	Count int
}

type Message struct {
	ID         string
	ChannelID  string
	GuildID    string
	AuthorID   string
	Content    string
	Embeds     []Embed
	Components []ActionRow
	Reactions  []Reaction
}

// File is an attachment uploaded with a message.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type MessageSend struct {
	Content    string
	Embed      *Embed
	Components []ActionRow
	Files      []File
}

// Client is the subset of the platform API the bot consumes. Lookups return
// ErrNotFound (possibly wrapped) when the entity is gone.
type Client interface {
	SendMessage(ctx context.Context, channelID string, msg MessageSend) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, msg MessageSend) (*Message, error)
	Message(ctx context.Context, channelID, messageID string) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID string, emoji Emoji) error
	// ReactionUsers returns up to limit users who reacted with emoji, with ids
	// greater than after.
	ReactionUsers(ctx context.Context, channelID, messageID string, emoji Emoji, limit int, after string) ([]User, error)

	Role(ctx context.Context, guildID, roleID string) (*Role, error)
	// Roles lists the guild's roles ordered by descending position.
	Roles(ctx context.Context, guildID string) ([]Role, error)
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	User(ctx context.Context, userID string) (*User, error)
	BotStanding(ctx context.Context, guildID string) (BotStanding, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error

	Latency() time.Duration
}
