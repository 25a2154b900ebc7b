package platform

import (
	"regexp"
	"strings"
)

// Emoji is a unicode emoji (ID empty) or a custom guild emoji.
type Emoji struct {
	Name     string
	ID       string
	Animated bool
}

var customEmojiPattern = regexp.MustCompile(`^<(a?):([A-Za-z0-9_]+):(\d+)>$`)

// ParseEmoji accepts "🎟️", "<:name:id>", "<a:name:id>" or ":name:".
func ParseEmoji(s string) Emoji {
	s = strings.TrimSpace(s)
	if m := customEmojiPattern.FindStringSubmatch(s); m != nil {
		return Emoji{Name: m[2], ID: m[3], Animated: m[1] == "a"}
	}
	if len(s) > 2 && strings.HasPrefix(s, ":") && strings.HasSuffix(s, ":") {
		return Emoji{Name: strings.Trim(s, ":")}
	}
	return Emoji{Name: s}
}

// String renders the emoji the way it is typed into a message.
func (e Emoji) String() string {
	if e.ID == "" {
		return e.Name
	}
	prefix := "<:"
	if e.Animated {
		prefix = "<a:"
	}
	return prefix + e.Name + ":" + e.ID + ">"
}

// APIName is the form used in reaction endpoints.
func (e Emoji) APIName() string {
	if e.ID == "" {
		return e.Name
	}
	return e.Name + ":" + e.ID
}

// Matches reports whether a reaction bucket emoji corresponds to the
// configured one. Custom emoji match by id when both have one, otherwise by
// name; unicode emoji match by exact name, tolerating a missing variation
// selector.
func (e Emoji) Matches(configured Emoji) bool {
	if e.ID != "" || configured.ID != "" {
		if e.ID != "" && configured.ID != "" {
			return e.ID == configured.ID
		}
		return e.Name == configured.Name
	}
	return stripVariation(e.Name) == stripVariation(configured.Name)
}

func stripVariation(s string) string {
	return strings.ReplaceAll(s, "\uFE0F", "")
}

// FindReaction returns the reaction bucket matching emoji.
func (m *Message) FindReaction(emoji Emoji) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.Emoji.Matches(emoji) {
			return r, true
		}
	}
	return Reaction{}, false
}
