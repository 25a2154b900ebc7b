package poll

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/scheduler"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// HandleCommand validates the deadline and opens the poll form. The deadline
// travels in the modal's custom id.
func (s *Service) HandleCommand(_ context.Context, in *platform.Interaction) (*platform.Response, error) {
	endsAt, err := scheduler.ParseEndTime(s.now(), in.StringOption("date"), in.StringOption("endtime"), s.cfg.Location())
	if err != nil {
		return nil, err
	}

	return &platform.Response{Modal: &platform.Modal{
		CustomID: ModalPrefix + ":" + strconv.FormatInt(endsAt.Unix(), 10),
		Title:    "Create Your Poll",
		Inputs: []platform.TextInput{
			{CustomID: "question", Label: "Poll Question", Required: true, MaxLength: 256},
			{CustomID: "answers", Label: "Answers (one per line, 2–10)", Paragraph: true, Required: true},
			{CustomID: "emojis", Label: "Emojis (one per line, optional)", Paragraph: true},
		},
	}}, nil
}

// form is a validated poll submission.
type form struct {
	question string
	answers  []string
	emojis   []string
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseForm(fields map[string]string) (*form, error) {
	f := &form{
		question: strings.TrimSpace(fields["question"]),
		answers:  splitLines(fields["answers"]),
		emojis:   splitLines(fields["emojis"]),
	}
	if f.question == "" {
		return nil, errs.Validation("Please provide a poll question.")
	}
	if len(f.answers) < MinAnswers || len(f.answers) > MaxAnswers {
		return nil, errs.Validation(fmt.Sprintf("Please provide between %d and %d answers, one per line.", MinAnswers, MaxAnswers))
	}
	if len(f.emojis) == 0 {
		f.emojis = append([]string(nil), DefaultEmojis[:len(f.answers)]...)
	}
	if len(f.emojis) != len(f.answers) {
		return nil, errs.Validation(fmt.Sprintf("Emoji count (%d) must match answer count (%d), or leave emojis blank.", len(f.emojis), len(f.answers)))
	}
	seen := make(map[string]struct{}, len(f.emojis))
	for i, e := range f.emojis {
		key := platform.ParseEmoji(e).APIName()
		if _, dup := seen[key]; dup {
			return nil, errs.Validation("Each answer needs a different emoji.")
		}
		seen[key] = struct{}{}
		f.emojis[i] = platform.ParseEmoji(e).String()
	}
	return f, nil
}

// HandleModal posts the poll, seeds one reaction per answer, persists it and
// schedules the tally.
func (s *Service) HandleModal(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	unix, err := strconv.ParseInt(in.CustomIDArg(ModalPrefix), 10, 64)
	if err != nil {
		return nil, errs.Validation("That poll form is no longer valid. Run /poll again.")
	}
	endsAt := time.Unix(unix, 0).In(s.cfg.Location())
	if !endsAt.After(s.now()) {
		return nil, scheduler.ErrInvalidEndTime
	}

	f, err := parseForm(in.Fields)
	if err != nil {
		return nil, err
	}

	author := in.User.Username
	if in.Member != nil {
		author = in.Member.DisplayName()
	}

	var lines []string
	for i, a := range f.answers {
		lines = append(lines, f.emojis[i]+" "+a)
	}
	sent, err := s.client.SendMessage(ctx, in.ChannelID, platform.MessageSend{
		Embed: &platform.Embed{
			Title:       "\U0001F4CA " + f.question,
			Description: strings.Join(lines, "\n") + fmt.Sprintf("\n\n⏳ **Ends:** <t:%d:R>", endsAt.Unix()),
			Color:       pollColor,
			Footer:      "Poll by " + author,
			Timestamp:   endsAt,
		},
	})
	if err != nil {
		return nil, errs.External(err, "")
	}

	for _, e := range f.emojis {
		if err := s.client.AddReaction(ctx, in.ChannelID, sent.ID, platform.ParseEmoji(e)); err != nil {
			s.discard(ctx, in.ChannelID, sent.ID)
			return nil, errs.External(err, fmt.Sprintf("I couldn't react with %s. Check the emojis and try again.", e))
		}
	}

	id, err := s.store.CreatePoll(ctx, localdb.Poll{
		GuildID:         in.GuildID,
		ChannelID:       in.ChannelID,
		MessageID:       sent.ID,
		Question:        f.question,
		Answers:         f.answers,
		Emojis:          f.emojis,
		EndsAt:          endsAt,
		CreatedByUserID: in.User.ID,
		CreatedAt:       s.now(),
	})
	if err != nil {
		s.discard(ctx, in.ChannelID, sent.ID)
		return nil, errs.Wrap(err, "persist poll")
	}

	s.schedule(id, endsAt)
	logger.Info("Poll started",
		zap.Int64("id", id),
		zap.Int("answers", len(f.answers)),
		zap.Time("ends_at", endsAt))

	return platform.Reply(fmt.Sprintf("Poll created! It ends <t:%d:R>.", endsAt.Unix())), nil
}

func (s *Service) discard(ctx context.Context, channelID, messageID string) {
	if err := s.client.DeleteMessage(ctx, channelID, messageID); err != nil {
		logger.Warn("Failed to remove incomplete poll", zap.String("message_id", messageID), zap.Error(err))
	}
}
