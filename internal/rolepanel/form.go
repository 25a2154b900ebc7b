// Package rolepanel drives the self-assign role panel workflow: draft,
// preview, edit, confirm or cancel, and the standing toggle buttons on the
// posted panel.
package rolepanel

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/tsgs/tsgsbot/internal/session"
)

const (
	DefaultTitle       = "Self-assign Roles"
	DefaultDescription = "Click a button to toggle a role."

	MaxRoles       = 5
	maxLabelLength = 80
)

// Form is the draft a user is composing. ButtonLabels[i] labels RoleIDs[i].
type Form struct {
	// ID ties preview buttons to this draft; a newer draft invalidates them.
	ID string

	Title          string
	Description    string
	RoleIDs        []string
	SkippedRoleIDs []string
	ButtonLabels   []string
	ImageURL       string

	// Set when editing a panel that was already posted.
	OriginalChannelID string
	OriginalMessageID string
}

var newFormID = func() string { return gonanoid.Must() }

func newForm() *Form {
	return &Form{ID: newFormID(), Title: DefaultTitle}
}

// NewSessions returns the session store role panel drafts live in.
func NewSessions() *session.Store[*Form] {
	return session.NewStore("rolepanel", newForm)
}

// labelFor returns the button label for roleID, or fallback.
func (f *Form) labelFor(roleID, fallback string) string {
	for i, id := range f.RoleIDs {
		if id == roleID && i < len(f.ButtonLabels) {
			if l := strings.TrimSpace(f.ButtonLabels[i]); l != "" {
				return truncate(l, maxLabelLength)
			}
		}
	}
	return truncate(fallback, maxLabelLength)
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

func sanitizeTitle(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultTitle
	}
	return s
}

func sanitizeDescription(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultDescription
	}
	return unescapeNewlines(s)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
