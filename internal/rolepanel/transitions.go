package rolepanel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tsgs/tsgsbot/internal/broadcast"
	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

var errOutsideGuild = errs.Validation("This only works inside a server.")

// HandleCommand serves /role-panel title description role1..role5 [image].
func (e *Engine) HandleCommand(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	if in.GuildID == "" {
		return nil, errOutsideGuild
	}

	seen := map[string]bool{}
	var roles []platform.Role
	for i := 1; i <= MaxRoles; i++ {
		r := in.RoleOption(fmt.Sprintf("role%d", i))
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		roles = append(roles, *r)
	}
	if len(roles) == 0 {
		return nil, errs.Validation("Pick at least one role.")
	}
	byPositionDesc(roles)

	standing, err := e.client.BotStanding(ctx, in.GuildID)
	if err != nil {
		return nil, errs.External(err, "")
	}
	var manageable, skipped []platform.Role
	for _, r := range roles {
		if standing.CanManage(r) {
			manageable = append(manageable, r)
		} else {
			skipped = append(skipped, r)
		}
	}
	if len(manageable) == 0 {
		logger.Warn("Role panel create failed: bot cannot manage any provided roles",
			zap.String("user_id", in.User.ID),
			zap.Int("bot_top_position", standing.TopPosition))
		return nil, errs.Validation("I can't manage any of the provided roles. Move my role above them and try again.")
	}

	unlock := e.sessions.Lock(in.User.ID)
	defer unlock()

	form := e.sessions.Reset(in.User.ID)
	form.Title = sanitizeTitle(in.StringOption("title"))
	form.Description = sanitizeDescription(in.StringOption("description"))
	for _, r := range manageable {
		form.RoleIDs = append(form.RoleIDs, r.ID)
		form.ButtonLabels = append(form.ButtonLabels, r.Name)
	}
	for _, r := range skipped {
		form.SkippedRoleIDs = append(form.SkippedRoleIDs, r.ID)
	}
	if len(in.Attachments) > 0 {
		form.ImageURL = in.Attachments[0].URL
	}

	logger.Info("Role panel preview created",
		zap.String("user_id", in.User.ID),
		zap.Int("roles", len(manageable)),
		zap.Int("skipped", len(skipped)))

	return e.preview(ctx, in, form, "Does this look good?", true)
}

// preview renders the draft with Confirm, Edit and Cancel buttons.
func (e *Engine) preview(ctx context.Context, in *platform.Interaction, form *Form, content string, includeSkipped bool) (*platform.Response, error) {
	if includeSkipped && len(form.SkippedRoleIDs) > 0 {
		skipped, err := e.resolveRoles(ctx, in.GuildID, form.SkippedRoleIDs)
		if err != nil {
			return nil, err
		}
		if len(skipped) > 0 {
			content += "\nSkipped (can't manage): " + mentions(skipped)
		}
	}

	return &platform.Response{
		Content: content,
		Embed:   e.panelEmbed(in, form, "(Preview)"),
		Components: []platform.ActionRow{{Buttons: []platform.Button{
			{Label: "Confirm", CustomID: ConfirmPrefix + ":" + form.ID, Style: platform.ButtonSuccess},
			{Label: "Edit", CustomID: EditPrefix + ":" + form.ID, Style: platform.ButtonSecondary},
			{Label: "Cancel", CustomID: CancelPrefix + ":" + form.ID, Style: platform.ButtonDanger},
		}}},
		Ephemeral: true,
		// Preview buttons edit the preview in place; a modal opened from a
		// context menu has no preview yet.
		Update: in.Message != nil,
	}, nil
}

// HandleEdit opens the edit form pre-filled from the draft.
func (e *Engine) HandleEdit(_ context.Context, in *platform.Interaction) (*platform.Response, error) {
	unlock := e.sessions.Lock(in.User.ID)
	defer unlock()

	form, err := e.draft(in, EditPrefix)
	if err != nil {
		return nil, err
	}
	return &platform.Response{Modal: e.editModal(form)}, nil
}

// HandleModal applies an edit form submission and shows the refreshed preview.
func (e *Engine) HandleModal(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	unlock := e.sessions.Lock(in.User.ID)
	defer unlock()

	form, err := e.draft(in, ModalPrefix)
	if err != nil {
		return nil, err
	}

	title := form.Title
	if t := strings.TrimSpace(in.Fields["title"]); t != "" {
		title = t
	}
	description := form.Description
	if d := strings.TrimSpace(in.Fields["description"]); d != "" {
		description = unescapeNewlines(d)
	}

	image := form.ImageURL
	if len(in.Attachments) > 0 {
		image = in.Attachments[0].URL
	} else if u := strings.TrimSpace(in.Fields["image_url"]); u != "" && u != form.ImageURL {
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return nil, errs.Validation("Image URL must start with http:// or https://.")
		}
		image = u
	}

	labels := form.ButtonLabels
	content := "Updated. Confirm to post."
	if raw := in.Fields["button_labels"]; strings.TrimSpace(raw) != "" {
		custom := splitLines(raw)
		if len(custom) != len(form.RoleIDs) {
			content = fmt.Sprintf("Button label count (%d) must match role count (%d). Keeping the previous labels.\n%s",
				len(custom), len(form.RoleIDs), content)
		} else {
			labels = custom
		}
	}

	form.Title = title
	form.Description = description
	form.ButtonLabels = labels
	form.ImageURL = image

	logger.Info("Role panel draft updated", zap.String("user_id", in.User.ID))
	return e.preview(ctx, in, form, content, false)
}

// HandleConfirm posts the panel and ends the draft.
func (e *Engine) HandleConfirm(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	unlock := e.sessions.Lock(in.User.ID)
	defer unlock()

	form, err := e.draft(in, ConfirmPrefix)
	if err != nil {
		return nil, err
	}

	roles, err := e.resolveRoles(ctx, in.GuildID, form.RoleIDs)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		e.sessions.Clear(in.User.ID)
		return nil, errs.NotFound("No valid roles to post. Please recreate the panel.")
	}

	sent, err := e.client.SendMessage(ctx, in.ChannelID, platform.MessageSend{
		Embed:      e.panelEmbed(in, form, ""),
		Components: toggleRows(form, roles),
	})
	if err != nil {
		return nil, errs.External(err, "")
	}
	e.sessions.Clear(in.User.ID)

	if form.OriginalMessageID != "" {
		channelID := form.OriginalChannelID
		if channelID == "" {
			channelID = in.ChannelID
		}
		if err := e.client.DeleteMessage(ctx, channelID, form.OriginalMessageID); err != nil && !errors.Is(err, platform.ErrNotFound) {
			logger.Warn("Failed to delete original role panel message",
				zap.String("message_id", form.OriginalMessageID), zap.Error(err))
		} else if err == nil {
			logger.Info("Deleted original role panel message after editing",
				zap.String("message_id", form.OriginalMessageID))
		}
	}

	content := "Role panel posted."
	if len(form.SkippedRoleIDs) > 0 {
		skipped, err := e.resolveRoles(ctx, in.GuildID, form.SkippedRoleIDs)
		if err == nil && len(skipped) > 0 {
			content += " Skipped: " + names(skipped) + "."
		}
	}

	if e.events != nil {
		e.events.Publish(broadcast.TypeRolePanel, map[string]any{
			"message_id": sent.ID,
			"channel_id": in.ChannelID,
			"roles":      len(roles),
		})
	}
	logger.Info("Role panel posted",
		zap.String("user_id", in.User.ID),
		zap.Int("buttons", len(roles)),
		zap.String("message_id", sent.ID))

	return &platform.Response{Content: content, Ephemeral: true, Update: true, ClearComponents: true}, nil
}

// toggleRows builds one toggle button per role, five per row, in role order.
func toggleRows(form *Form, roles []platform.Role) []platform.ActionRow {
	var rows []platform.ActionRow
	for i, r := range roles {
		if i%platform.MaxButtonsPerRow == 0 {
			rows = append(rows, platform.ActionRow{})
		}
		row := &rows[len(rows)-1]
		row.Buttons = append(row.Buttons, platform.Button{
			Label:    form.labelFor(r.ID, r.Name),
			CustomID: TogglePrefix + ":" + r.ID,
			Style:    platform.ButtonSecondary,
		})
	}
	return rows
}

// HandleCancel discards the draft.
func (e *Engine) HandleCancel(_ context.Context, in *platform.Interaction) (*platform.Response, error) {
	unlock := e.sessions.Lock(in.User.ID)
	defer unlock()

	if _, err := e.draft(in, CancelPrefix); err != nil {
		return nil, err
	}
	e.sessions.Clear(in.User.ID)
	logger.Info("Role panel creation cancelled", zap.String("user_id", in.User.ID))

	return &platform.Response{Content: "Role panel creation cancelled.", Ephemeral: true, Update: true, ClearComponents: true}, nil
}

// HandleEditExisting loads a posted panel into a new draft and opens the edit
// form for it.
func (e *Engine) HandleEditExisting(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	if in.GuildID == "" {
		return nil, errOutsideGuild
	}
	msg := in.Message
	if msg == nil || len(msg.Embeds) == 0 {
		return nil, errs.Validation("Target message must have an embed.")
	}

	type entry struct {
		role  platform.Role
		label string
	}
	var (
		entries []entry
		found   int
	)
	for _, row := range msg.Components {
		for _, b := range row.Buttons {
			id, ok := strings.CutPrefix(b.CustomID, TogglePrefix+":")
			if !ok || !isSnowflake(id) {
				continue
			}
			found++
			r, err := e.client.Role(ctx, in.GuildID, id)
			if errors.Is(err, platform.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, errs.External(err, "")
			}
			entries = append(entries, entry{role: *r, label: b.Label})
		}
	}
	if found == 0 {
		logger.Warn("No role buttons found on message", zap.String("message_id", msg.ID))
		return nil, errs.Validation("Message doesn't appear to be a valid role panel (no role buttons found).")
	}
	if len(entries) != found {
		logger.Warn("Some role panel roles are no longer available",
			zap.String("message_id", msg.ID),
			zap.Int("missing", found-len(entries)))
	}
	if len(entries) == 0 {
		return nil, errs.NotFound("None of the roles on that panel exist anymore.")
	}

	sortEntries := make([]platform.Role, len(entries))
	labelByID := make(map[string]string, len(entries))
	for i, en := range entries {
		sortEntries[i] = en.role
		labelByID[en.role.ID] = en.label
	}
	byPositionDesc(sortEntries)

	unlock := e.sessions.Lock(in.User.ID)
	defer unlock()

	embed := msg.Embeds[0]
	form := e.sessions.Reset(in.User.ID)
	form.Title = sanitizeTitle(embed.Title)
	form.Description = embed.Description
	form.ImageURL = embed.ImageURL
	form.OriginalMessageID = msg.ID
	form.OriginalChannelID = msg.ChannelID
	if form.OriginalChannelID == "" {
		form.OriginalChannelID = in.ChannelID
	}
	for _, r := range sortEntries {
		form.RoleIDs = append(form.RoleIDs, r.ID)
		label := labelByID[r.ID]
		if strings.TrimSpace(label) == "" {
			label = r.Name
		}
		form.ButtonLabels = append(form.ButtonLabels, label)
	}

	logger.Info("Loaded role panel for editing",
		zap.String("message_id", msg.ID),
		zap.Int("roles", len(form.RoleIDs)))

	return &platform.Response{Modal: e.editModal(form)}, nil
}

func isSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
