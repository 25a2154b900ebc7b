package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func perm(p int64) *int64 { return &p }

var (
	noDM       = false
	oneWinner  = 1.0
	firstRoles = []string{"First role button", "Second role (optional)", "Third role (optional)", "Fourth role (optional)", "Fifth role (optional)"}
)

func str(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: desc, Required: required}
}

func dateOptions(timeName string) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		str("date", "End date in YYYY-MM-DD (default: today)", false),
		str(timeName, "End time in HH:MM (24-hour, default: 1 hour from now)", false),
	}
}

func rolePanelOptions() []*discordgo.ApplicationCommandOption {
	opts := []*discordgo.ApplicationCommandOption{
		str("title", "Embed title", false),
		str("description", "Embed description", false),
	}
	for i, desc := range firstRoles {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        fmt.Sprintf("role%d", i+1),
			Description: desc,
			Required:    i == 0,
		})
	}
	return append(opts, &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionAttachment,
		Name:        "image",
		Description: "Image shown in the panel (optional)",
	})
}

// Definitions is the full application command set.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "ping", Description: "pong"},
		{Name: "invite", Description: "Get the invite URL"},
		{
			Name:        "userinfo",
			Description: "Get user info",
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "The user to show information on",
			}},
		},
		{Name: "User Info", Type: discordgo.UserApplicationCommand},
		{
			Name:         "report",
			Description:  "Report a user to the moderators",
			DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "The user to report", Required: true},
				str("reason", "What has this person done?", true),
			},
		},
		{
			Name:         "verify",
			Description:  "Verify your donation to receive the exclusive supporter role",
			DMPermission: &noDM,
			Options:      []*discordgo.ApplicationCommandOption{str("code", "Your unique verification code", true)},
		},
		{
			Name:                     "role-panel",
			Description:              "Create an embed with self-assign role buttons",
			DefaultMemberPermissions: perm(discordgo.PermissionManageRoles),
			DMPermission:             &noDM,
			Options:                  rolePanelOptions(),
		},
		{
			Name:                     "Edit Role Panel",
			Type:                     discordgo.MessageApplicationCommand,
			DefaultMemberPermissions: perm(discordgo.PermissionManageRoles),
			DMPermission:             &noDM,
		},
		{
			Name:                     "giveaway",
			Description:              "Start a giveaway where users can participate by reacting.",
			DefaultMemberPermissions: perm(discordgo.PermissionManageEvents),
			DMPermission:             &noDM,
			Options: append([]*discordgo.ApplicationCommandOption{
				str("prize", "The prize for the giveaway", true),
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "winners", Description: "Number of winners (default: 1)", MinValue: &oneWinner},
				str("reaction_emoji", "The emoji to react with (default: \U0001F39F\uFE0F)", false),
			}, dateOptions("endtime")...),
		},
		{
			Name:                     "poll",
			Description:              "Start a reaction poll",
			DefaultMemberPermissions: perm(discordgo.PermissionManageEvents),
			DMPermission:             &noDM,
			Options:                  dateOptions("endtime"),
		},
		{
			Name:        "remind",
			Description: "Set a reminder",
			Options: append([]*discordgo.ApplicationCommandOption{
				str("task", "What to remind you about", true),
			}, dateOptions("time")...),
		},
		{Name: "myreminders", Description: "View all your active reminders"},
		{
			Name:        "reminder-delete",
			Description: "Delete one of your active reminders by ID",
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "The reminder ID to delete", Required: true,
			}},
		},
	}
}
