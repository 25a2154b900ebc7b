package giveaway

import (
	"context"
	"fmt"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/scheduler"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// HandleCommand serves /giveaway prize winners reaction_emoji date endtime.
func (s *Service) HandleCommand(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	prize := in.StringOption("prize")
	if prize == "" {
		return nil, errs.Validation("Please provide a prize.")
	}
	winners := int(in.IntOption("winners", 1))
	if winners < 1 {
		return nil, errs.Validation("Winner count must be at least 1.")
	}
	emojiText := in.StringOption("reaction_emoji")
	if emojiText == "" {
		emojiText = DefaultEmoji
	}
	emoji := platform.ParseEmoji(emojiText)

	endsAt, err := scheduler.ParseEndTime(s.now(), in.StringOption("date"), in.StringOption("endtime"), s.cfg.Location())
	if err != nil {
		return nil, err
	}

	sent, err := s.client.SendMessage(ctx, in.ChannelID, platform.MessageSend{
		Embed: &platform.Embed{
			Title: "\U0001F389 Giveaway!",
			Description: fmt.Sprintf("**Prize:** %s\n\nReact with %s to enter!\n\n\U0001F3C6 **Winners:** %d\n⏳ **Ends:** <t:%d:R>",
				prize, emoji.String(), winners, endsAt.Unix()),
			Color:     announceColor,
			Footer:    "Ends at",
			Timestamp: endsAt,
		},
	})
	if err != nil {
		return nil, errs.External(err, "")
	}

	if err := s.client.AddReaction(ctx, in.ChannelID, sent.ID, emoji); err != nil {
		s.discard(ctx, in.ChannelID, sent.ID)
		return nil, errs.External(err, "I couldn't react with that emoji. Check it and try again.")
	}

	id, err := s.store.CreateGiveaway(ctx, localdb.Giveaway{
		GuildID:         in.GuildID,
		ChannelID:       in.ChannelID,
		MessageID:       sent.ID,
		Prize:           prize,
		WinnerCount:     winners,
		ReactionEmoji:   emoji.String(),
		EndsAt:          endsAt,
		CreatedByUserID: in.User.ID,
		CreatedAt:       s.now(),
	})
	if err != nil {
		s.discard(ctx, in.ChannelID, sent.ID)
		return nil, errs.Wrap(err, "persist giveaway")
	}

	s.schedule(id, endsAt)
	logger.Info("Giveaway started",
		zap.Int64("id", id),
		zap.String("prize", prize),
		zap.Int("winners", winners),
		zap.Time("ends_at", endsAt))

	return platform.Reply("Giveaway started successfully!"), nil
}

// discard removes an announcement whose setup failed halfway.
func (s *Service) discard(ctx context.Context, channelID, messageID string) {
	if err := s.client.DeleteMessage(ctx, channelID, messageID); err != nil {
		logger.Warn("Failed to remove incomplete giveaway announcement",
			zap.String("message_id", messageID), zap.Error(err))
	}
}
