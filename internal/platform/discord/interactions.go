package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// handlerTimeout bounds one interaction; the interaction token itself is
// valid for 15 minutes.
const handlerTimeout = 5 * time.Minute

// responder is the slice of discordgo.Session used to answer interactions.
type responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(i *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Dispatcher answers gateway interactions through a platform.Router.
type Dispatcher struct {
	router *platform.Router
	base   context.Context
}

func NewDispatcher(base context.Context, router *platform.Router) *Dispatcher {
	return &Dispatcher{router: router, base: base}
}

// Handle is registered with discordgo.Session.AddHandler. discordgo runs
// each handler on its own goroutine.
func (d *Dispatcher) Handle(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	d.handle(s, ic.Interaction)
}

func (d *Dispatcher) handle(r responder, i *discordgo.Interaction) {
	in, ok := toInteraction(i)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(d.base, handlerTimeout)
	defer cancel()

	log := logger.With(
		zap.String("interaction_id", i.ID),
		zap.String("kind", in.Kind.String()),
		zap.String("user_id", in.User.ID))

	route, found := d.router.Lookup(in)
	if found && route.OpensModal {
		// Modals cannot follow a deferral; answer directly.
		resp := d.router.Dispatch(ctx, in)
		if err := r.InteractionRespond(i, immediate(resp)); err != nil {
			log.Error("Failed to respond to interaction", zap.Error(err))
		}
		return
	}

	update := in.Kind == platform.KindComponent || (in.Kind == platform.KindModalSubmit && in.Message != nil)
	if err := r.InteractionRespond(i, deferral(update)); err != nil {
		log.Error("Failed to defer interaction", zap.Error(err))
		return
	}

	resp := d.router.Dispatch(ctx, in)
	if err := deliver(r, i, resp, update); err != nil {
		log.Error("Failed to deliver interaction response", zap.Error(err))
	}
}

func deferral(update bool) *discordgo.InteractionResponse {
	if update {
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}
}

// immediate builds a direct reply: a modal, or the text a handler answered
// with instead.
func immediate(resp *platform.Response) *discordgo.InteractionResponse {
	if resp.Modal != nil {
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal, Data: toModal(resp.Modal)}
	}
	data := &discordgo.InteractionResponseData{Content: resp.Content, Components: toComponents(resp.Components)}
	if resp.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{toEmbed(resp.Embed)}
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseChannelMessageWithSource, Data: data}
}

// deliver completes a deferred interaction.
//
//   - Update responses edit the message the interaction came from.
//   - Other responses to a deferred update become follow-ups.
//   - Ephemeral replies fill the deferred ephemeral reply; public ones
//     replace it with a public follow-up.
func deliver(r responder, i *discordgo.Interaction, resp *platform.Response, deferredUpdate bool) error {
	switch {
	case resp.Update && deferredUpdate, resp.Ephemeral && !deferredUpdate:
		_, err := r.InteractionResponseEdit(i, webhookEdit(resp))
		return err
	case !deferredUpdate:
		if err := r.InteractionResponseDelete(i); err != nil {
			logger.Warn("Failed to remove deferred reply", zap.Error(err))
		}
		fallthrough
	default:
		_, err := r.FollowupMessageCreate(i, true, webhookParams(resp))
		return err
	}
}

func webhookEdit(resp *platform.Response) *discordgo.WebhookEdit {
	content := resp.Content
	embeds := []*discordgo.MessageEmbed{}
	if resp.Embed != nil {
		embeds = append(embeds, toEmbed(resp.Embed))
	}
	edit := &discordgo.WebhookEdit{Content: &content, Embeds: &embeds, Files: toFiles(resp.Files)}
	if resp.Components != nil || resp.ClearComponents {
		components := toComponents(resp.Components)
		edit.Components = &components
	}
	return edit
}

func webhookParams(resp *platform.Response) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:    resp.Content,
		Components: toComponents(resp.Components),
		Files:      toFiles(resp.Files),
	}
	if resp.Embed != nil {
		params.Embeds = []*discordgo.MessageEmbed{toEmbed(resp.Embed)}
	}
	if resp.Ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}

// toInteraction converts the kinds the bot handles; pings and autocomplete
// are ignored.
func toInteraction(i *discordgo.Interaction) (*platform.Interaction, bool) {
	in := &platform.Interaction{
		ID:        i.ID,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Message:   fromMessage(i.Message),
	}
	switch {
	case i.Member != nil:
		m := fromMember(i.Member)
		in.Member = &m
		in.User = m.User
	case i.User != nil:
		in.User = fromUser(i.User)
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		in.Name = data.Name
		switch data.CommandType {
		case discordgo.MessageApplicationCommand:
			in.Kind = platform.KindMessageCommand
			if data.Resolved != nil {
				if m, ok := data.Resolved.Messages[data.TargetID]; ok {
					in.Message = fromMessage(m)
				}
			}
		case discordgo.UserApplicationCommand:
			in.Kind = platform.KindUserCommand
			if data.Resolved != nil {
				if u, ok := data.Resolved.Users[data.TargetID]; ok {
					target := fromUser(u)
					in.TargetUser = &target
				}
			}
		default:
			in.Kind = platform.KindCommand
			readOptions(in, data.Options, data.Resolved)
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		in.Kind = platform.KindComponent
		in.CustomID = data.CustomID
		in.Values = data.Values
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		in.Kind = platform.KindModalSubmit
		in.CustomID = data.CustomID
		in.Fields = modalFields(data.Components)
	default:
		return nil, false
	}
	return in, true
}

func readOptions(in *platform.Interaction, opts []*discordgo.ApplicationCommandInteractionDataOption, resolved *discordgo.ApplicationCommandInteractionDataResolved) {
	in.Options = make(map[string]platform.OptionValue, len(opts))
	for _, o := range opts {
		var v platform.OptionValue
		id, _ := o.Value.(string)
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			v = platform.OptionValue{Kind: platform.OptionString, String: o.StringValue()}
		case discordgo.ApplicationCommandOptionInteger:
			v = platform.OptionValue{Kind: platform.OptionInt, Int: o.IntValue()}
		case discordgo.ApplicationCommandOptionUser:
			v = platform.OptionValue{Kind: platform.OptionUser, User: &platform.User{ID: id}}
			if resolved != nil {
				if u, ok := resolved.Users[id]; ok {
					user := fromUser(u)
					v.User = &user
				}
			}
		case discordgo.ApplicationCommandOptionRole:
			v = platform.OptionValue{Kind: platform.OptionRole, Role: &platform.Role{ID: id}}
			if resolved != nil {
				if r, ok := resolved.Roles[id]; ok {
					role := fromRole(r)
					v.Role = &role
				}
			}
		case discordgo.ApplicationCommandOptionChannel:
			v = platform.OptionValue{Kind: platform.OptionChannel, ChannelID: id}
		case discordgo.ApplicationCommandOptionAttachment:
			if resolved != nil {
				if a, ok := resolved.Attachments[id]; ok {
					in.Attachments = append(in.Attachments, platform.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType})
				}
			}
			continue
		default:
			continue
		}
		in.Options[o.Name] = v
		in.OptionOrder = append(in.OptionOrder, o.Name)
	}
}
