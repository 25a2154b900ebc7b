package commands

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tsgs/tsgsbot/internal/platform"
)

// MentionKind tags what a Mentionable holds.
type MentionKind int

const (
	MentionNull MentionKind = iota
	MentionUser
	MentionRole
	MentionChannel
	MentionID
	MentionPlain
)

// Mentionable is one option value as it appears in an audit line.
type Mentionable struct {
	Kind  MentionKind
	ID    string
	Value string
}

// FromOption classifies a resolved command option.
func FromOption(o platform.OptionValue) Mentionable {
	switch o.Kind {
	case platform.OptionUser:
		if o.User != nil {
			return Mentionable{Kind: MentionUser, ID: o.User.ID}
		}
	case platform.OptionRole:
		if o.Role != nil {
			return Mentionable{Kind: MentionRole, ID: o.Role.ID}
		}
	case platform.OptionChannel:
		if o.ChannelID != "" {
			return Mentionable{Kind: MentionChannel, ID: o.ChannelID}
		}
	case platform.OptionInt:
		return Mentionable{Kind: MentionPlain, Value: strconv.FormatInt(o.Int, 10)}
	case platform.OptionString:
		if o.String == "" {
			return Mentionable{Kind: MentionNull}
		}
		return Mentionable{Kind: MentionPlain, Value: o.String}
	}
	return Mentionable{Kind: MentionNull}
}

// Render formats m using the platform's mention markup.
func (m Mentionable) Render() string {
	switch m.Kind {
	case MentionUser:
		return "<@" + m.ID + ">"
	case MentionRole:
		return "<@&" + m.ID + ">"
	case MentionChannel:
		return m.ID
	case MentionID:
		return "<@!" + m.ID + ">"
	case MentionPlain:
		return "**" + m.Value + "**"
	default:
		return "**null**"
	}
}

// AuditLine renders who ran what, with which options, where.
func AuditLine(in *platform.Interaction) string {
	var b strings.Builder
	b.WriteString("<@" + in.User.ID + "> ")
	if in.Kind == platform.KindModalSubmit {
		b.WriteString("**Submitted a modal**")
	} else {
		b.WriteString("used **/" + in.Name + "**")
	}

	for _, name := range optionNames(in) {
		b.WriteString(" *" + name + ":* ")
		b.WriteString(FromOption(in.Options[name]).Render())
	}
	if in.TargetUser != nil {
		b.WriteString(" *target:* " + Mentionable{Kind: MentionID, ID: in.TargetUser.ID}.Render())
	}
	if in.Kind == platform.KindMessageCommand && in.Message != nil {
		b.WriteString(" *message:* " + Mentionable{Kind: MentionPlain, Value: in.Message.ID}.Render())
	}

	b.WriteString(" in <#" + in.ChannelID + ">")
	return b.String()
}

// optionNames keeps the order the user typed options in when known.
func optionNames(in *platform.Interaction) []string {
	if len(in.OptionOrder) > 0 {
		return in.OptionOrder
	}
	names := make([]string, 0, len(in.Options))
	for name := range in.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
