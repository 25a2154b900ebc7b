package rolepanel

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/session"
)

const (
	CommandName     = "role-panel"
	ContextMenuName = "Edit Role Panel"

	ConfirmPrefix = "rolepanel-confirm"
	EditPrefix    = "rolepanel-edit"
	CancelPrefix  = "rolepanel-cancel"
	ModalPrefix   = "rolepanel-edit-modal"
	TogglePrefix  = "rolepanel-toggle"

	restartHint = "/role-panel"
	panelColor  = 0x206694

	// text input limits; posted embeds allow longer descriptions
	maxTitleInput       = 256
	maxDescriptionInput = 4000
)

// Publisher receives panel events; may be nil.
type Publisher interface {
	Publish(msgType string, data any)
}

// Engine holds the role panel transitions. Each handler resolves the user's
// draft and passes it explicitly to the transition it runs.
type Engine struct {
	client   platform.Client
	sessions *session.Store[*Form]
	events   Publisher
	now      func() time.Time
}

func NewEngine(client platform.Client, sessions *session.Store[*Form], events Publisher) *Engine {
	return &Engine{
		client:   client,
		sessions: sessions,
		events:   events,
		now:      time.Now,
	}
}

// Register wires the workflow into r.
func (e *Engine) Register(r *platform.Router) {
	r.Command(CommandName, e.HandleCommand)
	r.MessageCommand(ContextMenuName, e.HandleEditExisting)
	r.Component(ConfirmPrefix, e.HandleConfirm)
	r.ComponentModal(EditPrefix, e.HandleEdit)
	r.Component(CancelPrefix, e.HandleCancel)
	r.Component(TogglePrefix, e.HandleToggle)
	r.Modal(ModalPrefix, e.HandleModal)
}

// draft returns the user's live form when the custom id still points at it.
func (e *Engine) draft(in *platform.Interaction, prefix string) (*Form, error) {
	form, ok := e.sessions.TryGet(in.User.ID)
	if !ok || form.ID != in.CustomIDArg(prefix) {
		return nil, errs.Expired(restartHint)
	}
	return form, nil
}

// resolveRoles looks up roleIDs in order, dropping roles that no longer exist.
func (e *Engine) resolveRoles(ctx context.Context, guildID string, roleIDs []string) ([]platform.Role, error) {
	roles := make([]platform.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		r, err := e.client.Role(ctx, guildID, id)
		if errors.Is(err, platform.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errs.External(err, "")
		}
		roles = append(roles, *r)
	}
	return roles, nil
}

func byPositionDesc(roles []platform.Role) {
	sort.SliceStable(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })
}

func mentions(roles []platform.Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, r.Mention())
	}
	return strings.Join(parts, ", ")
}

func names(roles []platform.Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, r.Name)
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) panelEmbed(in *platform.Interaction, form *Form, titleSuffix string) *platform.Embed {
	author := in.User.Username
	if in.Member != nil {
		author = in.Member.DisplayName()
	}
	title := form.Title
	if titleSuffix != "" {
		title += " " + titleSuffix
	}
	return &platform.Embed{
		Title:       title,
		Description: form.Description,
		AuthorName:  author,
		AuthorIcon:  in.User.AvatarURL,
		ImageURL:    form.ImageURL,
		Color:       panelColor,
		Timestamp:   e.now(),
	}
}

func (e *Engine) editModal(form *Form) *platform.Modal {
	return &platform.Modal{
		CustomID: ModalPrefix + ":" + form.ID,
		Title:    "Edit Role Panel",
		Inputs: []platform.TextInput{
			{CustomID: "title", Label: "Title", Placeholder: DefaultTitle, Value: truncate(form.Title, maxTitleInput), Required: true, MaxLength: maxTitleInput},
			{CustomID: "description", Label: "Description", Paragraph: true, Placeholder: "Select your roles below", Value: truncate(form.Description, maxDescriptionInput), Required: true, MaxLength: maxDescriptionInput},
			{CustomID: "button_labels", Label: "Button Labels (one per line)", Paragraph: true, Placeholder: "Role 1\nRole 2\nRole 3", Value: strings.Join(form.ButtonLabels, "\n")},
			{CustomID: "image_url", Label: "Image URL (optional)", Placeholder: "https://...", Value: form.ImageURL},
		},
	}
}
