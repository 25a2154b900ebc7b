// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tsgs/tsgsbot/internal/platform"
)

// Client is a goroutine-safe fake. Populate the exported maps before use;
// inspect Sent, Deleted and the Err* hooks afterwards.
type Client struct {
	mu sync.Mutex

	GuildRoles map[string]platform.Role    // roleID -> role
	Members    map[string]*platform.Member // userID -> member
	Users      map[string]platform.User
	Standing   platform.BotStanding
	Messages   map[string]*platform.Message // messageID -> message
	// Reactors holds reacting users per message and emoji API name.
	Reactors map[string]map[string][]platform.User

	Sent    []platform.MessageSend
	SentTo  []string
	Deleted []string
	Edited  []string
	Added   []string // "user:role"
	Removed []string

	ErrSend       error
	ErrDelete     error
	ErrRoleChange error
	ErrMessage    error

	ReactionCalls int
	nextID        int
}

func New() *Client {
	return &Client{
		GuildRoles: map[string]platform.Role{},
		Members:    map[string]*platform.Member{},
		Users:      map[string]platform.User{},
		Messages:   map[string]*platform.Message{},
		Reactors:   map[string]map[string][]platform.User{},
		Standing:   platform.BotStanding{CanManageRoles: true, TopPosition: 100},
		nextID:     1000,
	}
}

// AddRole registers a role.
func (c *Client) AddRole(r platform.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GuildRoles[r.ID] = r
}

// AddMember registers a member and its user.
func (c *Client) AddMember(m platform.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mm := m
	c.Members[m.User.ID] = &mm
	c.Users[m.User.ID] = m.User
}

// PutMessage stores msg as if it had been posted earlier.
func (c *Client) PutMessage(msg platform.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := msg
	c.Messages[msg.ID] = &m
}

// React records users reacting to a message and bumps the bucket count.
func (c *Client) React(messageID string, emoji platform.Emoji, users ...platform.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Reactors[messageID] == nil {
		c.Reactors[messageID] = map[string][]platform.User{}
	}
	key := emoji.APIName()
	c.Reactors[messageID][key] = append(c.Reactors[messageID][key], users...)
	msg, ok := c.Messages[messageID]
	if !ok {
		return
	}
	for i := range msg.Reactions {
		if msg.Reactions[i].Emoji.APIName() == key {
			msg.Reactions[i].Count += len(users)
			return
		}
	}
	msg.Reactions = append(msg.Reactions, platform.Reaction{Emoji: emoji, Count: len(users)})
}

func (c *Client) SendMessage(_ context.Context, channelID string, msg platform.MessageSend) (*platform.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrSend != nil {
		return nil, c.ErrSend
	}
	c.nextID++
	id := strconv.Itoa(c.nextID)
	stored := &platform.Message{ID: id, ChannelID: channelID, Content: msg.Content, Components: msg.Components}
	if msg.Embed != nil {
		stored.Embeds = []platform.Embed{*msg.Embed}
	}
	c.Messages[id] = stored
	c.Sent = append(c.Sent, msg)
	c.SentTo = append(c.SentTo, channelID)
	cp := *stored
	return &cp, nil
}

func (c *Client) EditMessage(_ context.Context, _ string, messageID string, msg platform.MessageSend) (*platform.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrSend != nil {
		return nil, c.ErrSend
	}
	stored, ok := c.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, platform.ErrNotFound)
	}
	stored.Content = msg.Content
	stored.Components = msg.Components
	stored.Embeds = nil
	if msg.Embed != nil {
		stored.Embeds = []platform.Embed{*msg.Embed}
	}
	c.Edited = append(c.Edited, messageID)
	cp := *stored
	return &cp, nil
}

func (c *Client) Message(_ context.Context, _ string, messageID string) (*platform.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrMessage != nil {
		return nil, c.ErrMessage
	}
	msg, ok := c.Messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, platform.ErrNotFound)
	}
	cp := *msg
	cp.Reactions = append([]platform.Reaction(nil), msg.Reactions...)
	return &cp, nil
}

func (c *Client) DeleteMessage(_ context.Context, _ string, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrDelete != nil {
		return c.ErrDelete
	}
	if _, ok := c.Messages[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, platform.ErrNotFound)
	}
	delete(c.Messages, messageID)
	c.Deleted = append(c.Deleted, messageID)
	return nil
}

func (c *Client) AddReaction(_ context.Context, _ string, messageID string, emoji platform.Emoji) error {
	c.React(messageID, emoji, platform.User{ID: "bot", Username: "bot", Bot: true})
	return nil
}

func (c *Client) ReactionUsers(_ context.Context, _ string, messageID string, emoji platform.Emoji, limit int, after string) ([]platform.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReactionCalls++
	all := append([]platform.User(nil), c.Reactors[messageID][emoji.APIName()]...)
	sort.Slice(all, func(i, j int) bool { return idLess(all[i].ID, all[j].ID) })
	out := make([]platform.User, 0, limit)
	for _, u := range all {
		if after != "" && !idLess(after, u.ID) {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// idLess orders snowflake-like ids numerically when possible.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (c *Client) Role(_ context.Context, _ string, roleID string) (*platform.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.GuildRoles[roleID]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
	}
	return &r, nil
}

func (c *Client) Roles(context.Context, string) ([]platform.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]platform.Role, 0, len(c.GuildRoles))
	for _, r := range c.GuildRoles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position > out[j].Position })
	return out, nil
}

func (c *Client) Member(_ context.Context, _ string, userID string) (*platform.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.Members[userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	cp := *m
	cp.RoleIDs = append([]string(nil), m.RoleIDs...)
	return &cp, nil
}

func (c *Client) User(_ context.Context, userID string) (*platform.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.Users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, platform.ErrNotFound)
	}
	return &u, nil
}

func (c *Client) BotStanding(context.Context, string) (platform.BotStanding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Standing, nil
}

func (c *Client) AddMemberRole(_ context.Context, _ string, userID, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrRoleChange != nil {
		return c.ErrRoleChange
	}
	m, ok := c.Members[userID]
	if !ok {
		return fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	m.RoleIDs = append(m.RoleIDs, roleID)
	c.Added = append(c.Added, userID+":"+roleID)
	return nil
}

func (c *Client) RemoveMemberRole(_ context.Context, _ string, userID, roleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ErrRoleChange != nil {
		return c.ErrRoleChange
	}
	m, ok := c.Members[userID]
	if !ok {
		return fmt.Errorf("member %s: %w", userID, platform.ErrNotFound)
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	c.Removed = append(c.Removed, userID+":"+roleID)
	return nil
}

func (c *Client) Latency() time.Duration { return 42 * time.Millisecond }

// SentCount returns how many messages were sent.
func (c *Client) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// LastSent returns the most recently sent message.
func (c *Client) LastSent() (platform.MessageSend, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return platform.MessageSend{}, false
	}
	return c.Sent[len(c.Sent)-1], true
}
