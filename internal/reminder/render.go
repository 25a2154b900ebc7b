package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
)

const (
	maxListed      = 25
	maxFieldName   = 80
	maxOptionLabel = 100
	listColor      = 0x3498db
)

// listResponse renders the user's active reminders with a delete menu.
func listResponse(user platform.User, reminders []localdb.Reminder, now time.Time) *platform.Response {
	if len(reminders) == 0 {
		return &platform.Response{Content: "📭 You don't have any active reminders.", Ephemeral: true}
	}

	embed := &platform.Embed{
		Title:     fmt.Sprintf("📋 Your Reminders (%d)", len(reminders)),
		Color:     listColor,
		Footer:    "Requested by " + user.Username,
		Timestamp: now,
	}
	if len(reminders) > maxListed {
		embed.Description = fmt.Sprintf("Showing the next %d reminders. Delete a few and re-run /myreminders to see the rest.", maxListed)
	}

	menu := &platform.SelectMenu{CustomID: SelectID, Placeholder: "Select a reminder to delete"}
	for _, r := range reminders[:min(len(reminders), maxListed)] {
		unix := r.RemindAt.Unix()
		id := strconv.FormatInt(r.ID, 10)
		embed.Fields = append(embed.Fields, platform.EmbedField{
			Name:  truncateLabel(r.Task, maxFieldName),
			Value: fmt.Sprintf("ID: %d\n<t:%d:F>\n*<t:%d:R>*", r.ID, unix, unix),
		})
		menu.Options = append(menu.Options, platform.SelectOption{
			Label:       truncateLabel(r.Task, maxOptionLabel),
			Value:       id,
			Description: "ID " + id,
		})
	}

	return &platform.Response{
		Embed:      embed,
		Components: []platform.ActionRow{{Select: menu}},
		Ephemeral:  true,
	}
}

func truncateLabel(text string, n int) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return "Reminder"
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
