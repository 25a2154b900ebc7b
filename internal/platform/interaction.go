package platform

import "strings"

type InteractionKind int

const (
	KindCommand InteractionKind = iota + 1
	KindComponent
	KindModalSubmit
	KindMessageCommand
	KindUserCommand
)

func (k InteractionKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindComponent:
		return "component"
	case KindModalSubmit:
		return "modal"
	case KindMessageCommand:
		return "message_command"
	case KindUserCommand:
		return "user_command"
	default:
		return "unknown"
	}
}

// OptionKind tags what an OptionValue holds.
type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionInt
	OptionUser
	OptionRole
	OptionChannel
)

// OptionValue is one resolved slash-command option.
type OptionValue struct {
	Kind   OptionKind
	String string
	Int    int64
	User   *User
	Role   *Role
	// ChannelID is set for OptionChannel.
	ChannelID string
}

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

// Interaction is one inbound event to answer.
type Interaction struct {
	ID        string
	Kind      InteractionKind
	Name      string // command name
	CustomID  string // component or modal id
	GuildID   string
	ChannelID string
	User      User
	Member    *Member

	Options     map[string]OptionValue
	OptionOrder []string
	Values      []string // select menu values
	Fields      map[string]string
	Attachments []Attachment
	// Message is the message a component lives on, or the target of a
	// message command.
	Message *Message
	// TargetUser is set for user commands.
	TargetUser *User
}

// StringOption returns a trimmed string option or "".
func (in *Interaction) StringOption(name string) string {
	if o, ok := in.Options[name]; ok {
		return strings.TrimSpace(o.String)
	}
	return ""
}

// IntOption returns an integer option or def when absent.
func (in *Interaction) IntOption(name string, def int64) int64 {
	if o, ok := in.Options[name]; ok && o.Kind == OptionInt {
		return o.Int
	}
	return def
}

// RoleOption returns a role option or nil.
func (in *Interaction) RoleOption(name string) *Role {
	if o, ok := in.Options[name]; ok {
		return o.Role
	}
	return nil
}

// UserOption returns a user option or nil.
func (in *Interaction) UserOption(name string) *User {
	if o, ok := in.Options[name]; ok {
		return o.User
	}
	return nil
}

// CustomIDArg returns the part of the custom id after prefix+":".
func (in *Interaction) CustomIDArg(prefix string) string {
	return strings.TrimPrefix(in.CustomID, prefix+":")
}

type TextInput struct {
	CustomID    string
	Label       string
	Paragraph   bool
	Placeholder string
	Value       string
	Required    bool
	MaxLength   int
}

type Modal struct {
	CustomID string
	Title    string
	Inputs   []TextInput
}

// Response is what a handler asks the adapter to show.
type Response struct {
	Content    string
	Embed      *Embed
	Components []ActionRow
	Files      []File
	Modal      *Modal
	Ephemeral  bool
	// Update replaces the message the interaction originated from instead of
	// sending a new reply.
	Update bool
	// ClearComponents removes components from an updated message.
	ClearComponents bool
}

// Reply is an ephemeral text response.
func Reply(content string) *Response {
	return &Response{Content: content, Ephemeral: true}
}
