package discord

import (
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tsgs/tsgsbot/internal/platform"
)

func fromUser(u *discordgo.User) platform.User {
	if u == nil {
		return platform.User{}
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	created, _ := discordgo.SnowflakeTimestamp(u.ID)
	return platform.User{
		ID:        u.ID,
		Username:  name,
		AvatarURL: u.AvatarURL(""),
		Bot:       u.Bot,
		CreatedAt: created,
	}
}

func fromMember(m *discordgo.Member) platform.Member {
	return platform.Member{
		User:     fromUser(m.User),
		Nick:     m.Nick,
		RoleIDs:  append([]string(nil), m.Roles...),
		JoinedAt: m.JoinedAt,
	}
}

func fromRole(r *discordgo.Role) platform.Role {
	return platform.Role{ID: r.ID, Name: r.Name, Position: r.Position, Managed: r.Managed}
}

func sortedRoles(roles []*discordgo.Role) []platform.Role {
	out := make([]platform.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, fromRole(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position > out[j].Position })
	return out
}

func fromEmoji(e *discordgo.Emoji) platform.Emoji {
	if e == nil {
		return platform.Emoji{}
	}
	return platform.Emoji{Name: e.Name, ID: e.ID, Animated: e.Animated}
}

func fromMessage(m *discordgo.Message) *platform.Message {
	if m == nil {
		return nil
	}
	out := &platform.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	for _, e := range m.Embeds {
		out.Embeds = append(out.Embeds, fromEmbed(e))
	}
	for _, c := range m.Components {
		if row, ok := fromRow(c); ok {
			out.Components = append(out.Components, row)
		}
	}
	for _, r := range m.Reactions {
		out.Reactions = append(out.Reactions, platform.Reaction{Emoji: fromEmoji(r.Emoji), Count: r.Count})
	}
	return out
}

func fromEmbed(e *discordgo.MessageEmbed) platform.Embed {
	out := platform.Embed{Title: e.Title, Description: e.Description, Color: e.Color}
	if e.Image != nil {
		out.ImageURL = e.Image.URL
	}
	if e.Thumbnail != nil {
		out.Thumbnail = e.Thumbnail.URL
	}
	if e.Author != nil {
		out.AuthorName = e.Author.Name
		out.AuthorIcon = e.Author.IconURL
	}
	if e.Footer != nil {
		out.Footer = e.Footer.Text
	}
	if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		out.Timestamp = t
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, platform.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

// fromRow reads buttons and select menus; components arrive as pointers from
// the API and as values when built locally.
func fromRow(c discordgo.MessageComponent) (platform.ActionRow, bool) {
	var children []discordgo.MessageComponent
	switch r := c.(type) {
	case *discordgo.ActionsRow:
		children = r.Components
	case discordgo.ActionsRow:
		children = r.Components
	default:
		return platform.ActionRow{}, false
	}

	var row platform.ActionRow
	for _, child := range children {
		switch b := child.(type) {
		case *discordgo.Button:
			row.Buttons = append(row.Buttons, fromButton(*b))
		case discordgo.Button:
			row.Buttons = append(row.Buttons, fromButton(b))
		case *discordgo.SelectMenu:
			row.Select = fromSelect(*b)
		case discordgo.SelectMenu:
			row.Select = fromSelect(b)
		}
	}
	return row, true
}

func fromButton(b discordgo.Button) platform.Button {
	style := platform.ButtonSecondary
	switch b.Style {
	case discordgo.PrimaryButton:
		style = platform.ButtonPrimary
	case discordgo.SuccessButton:
		style = platform.ButtonSuccess
	case discordgo.DangerButton:
		style = platform.ButtonDanger
	}
	return platform.Button{Label: b.Label, CustomID: b.CustomID, Style: style}
}

func fromSelect(s discordgo.SelectMenu) *platform.SelectMenu {
	menu := &platform.SelectMenu{CustomID: s.CustomID, Placeholder: s.Placeholder}
	for _, o := range s.Options {
		menu.Options = append(menu.Options, platform.SelectOption{Label: o.Label, Value: o.Value, Description: o.Description})
	}
	return menu
}

func toEmbed(e *platform.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Thumbnail != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.AuthorName != "" {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIcon}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

var buttonStyles = map[platform.ButtonStyle]discordgo.ButtonStyle{
	platform.ButtonPrimary:   discordgo.PrimaryButton,
	platform.ButtonSecondary: discordgo.SecondaryButton,
	platform.ButtonSuccess:   discordgo.SuccessButton,
	platform.ButtonDanger:    discordgo.DangerButton,
}

func toComponents(rows []platform.ActionRow) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		var children []discordgo.MessageComponent
		if row.Select != nil {
			one := 1
			menu := discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    row.Select.CustomID,
				Placeholder: row.Select.Placeholder,
				MinValues:   &one,
				MaxValues:   1,
			}
			for _, o := range row.Select.Options {
				menu.Options = append(menu.Options, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
			}
			children = append(children, menu)
		}
		for _, b := range row.Buttons {
			style, ok := buttonStyles[b.Style]
			if !ok {
				style = discordgo.SecondaryButton
			}
			children = append(children, discordgo.Button{Label: b.Label, CustomID: b.CustomID, Style: style})
		}
		if len(children) > 0 {
			out = append(out, discordgo.ActionsRow{Components: children})
		}
	}
	return out
}

func toModal(m *platform.Modal) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{CustomID: m.CustomID, Title: m.Title}
	for _, in := range m.Inputs {
		style := discordgo.TextInputShort
		if in.Paragraph {
			style = discordgo.TextInputParagraph
		}
		data.Components = append(data.Components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    in.CustomID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Value:       in.Value,
				Required:    in.Required,
				MaxLength:   in.MaxLength,
			},
		}})
	}
	return data
}

// modalFields flattens submitted text inputs by custom id.
func modalFields(components []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	var walk func(c discordgo.MessageComponent)
	walk = func(c discordgo.MessageComponent) {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			for _, child := range v.Components {
				walk(child)
			}
		case discordgo.ActionsRow:
			for _, child := range v.Components {
				walk(child)
			}
		case *discordgo.TextInput:
			fields[v.CustomID] = v.Value
		case discordgo.TextInput:
			fields[v.CustomID] = v.Value
		}
	}
	for _, c := range components {
		walk(c)
	}
	return fields
}
