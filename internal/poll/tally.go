package poll

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tsgs/tsgsbot/internal/platform"
)

const (
	BarSegments = 12

	MarkWinner = "WINNER"
	MarkTie    = "TIE"
)

// Option is one answer with its final tally.
type Option struct {
	Answer  string
	Emoji   string
	Votes   int
	Percent float64
	Mark    string
}

// CountVotes reads each emoji's reaction count from msg, discounting the
// bot's own seed reaction. Missing buckets count zero.
func CountVotes(msg *platform.Message, emojis []string) []int {
	counts := make([]int, len(emojis))
	for i, e := range emojis {
		if r, ok := msg.FindReaction(platform.ParseEmoji(e)); ok {
			counts[i] = max(r.Count-1, 0)
		}
	}
	return counts
}

// Tally sorts options by votes (stable, descending), fills percentages and
// marks the leader. A leader tied with the runner-up is marked TIE along with
// everyone sharing its count, so with no votes at all every option ties.
func Tally(answers, emojis []string, counts []int) ([]Option, int) {
	opts := make([]Option, len(answers))
	total := 0
	for i := range answers {
		opts[i] = Option{Answer: answers[i], Emoji: emojis[i], Votes: counts[i]}
		total += counts[i]
	}

	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Votes > opts[j].Votes })

	for i := range opts {
		if total > 0 {
			opts[i].Percent = float64(opts[i].Votes) * 100 / float64(total)
		}
	}

	if len(opts) == 0 {
		return opts, total
	}
	top := opts[0].Votes
	if len(opts) > 1 && opts[1].Votes == top {
		for i := range opts {
			if opts[i].Votes == top {
				opts[i].Mark = MarkTie
			}
		}
	} else {
		opts[0].Mark = MarkWinner
	}
	return opts, total
}

// Bar renders pct as a fixed-width bar of BarSegments cells.
func Bar(pct float64) string {
	filled := int(math.Round(pct / (100.0 / BarSegments)))
	filled = min(max(filled, 0), BarSegments)
	return strings.Repeat("█", filled) + strings.Repeat("░", BarSegments-filled)
}

// FormatPercent renders pct with one decimal.
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// RenderResults builds the results description.
func RenderResults(question string, opts []Option, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", question)
	for _, o := range opts {
		fmt.Fprintf(&b, "%s **%s**", o.Emoji, o.Answer)
		switch o.Mark {
		case MarkWinner:
			b.WriteString(" \U0001F3C6 " + MarkWinner)
		case MarkTie:
			b.WriteString(" \U0001F91D " + MarkTie)
		}
		noun := "votes"
		if o.Votes == 1 {
			noun = "vote"
		}
		fmt.Fprintf(&b, "\n`%s` %d %s (%s)\n\n", Bar(o.Percent), o.Votes, noun, FormatPercent(o.Percent))
	}
	fmt.Fprintf(&b, "**Total votes:** %d", total)
	return b.String()
}
