package giveaway

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsgs/tsgsbot/internal/broadcast"
	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/lottery"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// Finalize draws and announces the winners of giveaway id. Calling it again
// after a successful run, or while another run is in progress, does nothing.
func (s *Service) Finalize(ctx context.Context, id int64) error {
	if !s.begin(id) {
		logger.Info("Giveaway finalization already running", zap.Int64("id", id))
		return nil
	}
	defer s.end(id)

	g, err := s.store.GetGiveaway(ctx, id)
	if err != nil {
		return errs.Wrap(err, "load giveaway")
	}
	if g == nil {
		logger.Info("Giveaway not found", zap.Int64("id", id))
		return nil
	}
	if g.HasEnded {
		logger.Info("Giveaway already finalized", zap.Int64("id", id))
		return nil
	}

	msg, err := s.client.Message(ctx, g.ChannelID, g.MessageID)
	if errors.Is(err, platform.ErrNotFound) {
		logger.Warn("Giveaway message is gone; closing without a draw",
			zap.Int64("id", id), zap.String("message_id", g.MessageID))
		metrics.Finalizations.WithLabelValues("giveaway", "message_missing").Inc()
		return s.markEnded(ctx, g, nil)
	}
	if err != nil {
		metrics.Finalizations.WithLabelValues("giveaway", "error").Inc()
		return errs.External(err, "")
	}

	configured := platform.ParseEmoji(g.ReactionEmoji)
	bucket, ok := msg.FindReaction(configured)
	if !ok {
		available := make([]string, 0, len(msg.Reactions))
		for _, r := range msg.Reactions {
			available = append(available, r.Emoji.String())
		}
		logger.Warn("Giveaway reaction not found on message",
			zap.Int64("id", id),
			zap.String("configured", g.ReactionEmoji),
			zap.Strings("available", available))
		metrics.Finalizations.WithLabelValues("giveaway", "aborted").Inc()
		return errs.Mark(fmt.Errorf("giveaway %d: reaction %s not found", id, g.ReactionEmoji), errs.ErrSchedulerAbort)
	}

	reactors, err := s.collectReactors(ctx, g.ChannelID, g.MessageID, bucket.Emoji)
	if err != nil {
		metrics.Finalizations.WithLabelValues("giveaway", "error").Inc()
		return errs.External(err, "")
	}

	result, err := lottery.DrawWinners(reactors, g.WinnerCount)
	if err != nil {
		return errs.Wrap(err, "draw winners")
	}
	logger.Debug("Giveaway winners drawn",
		zap.Int64("id", id),
		zap.Int("participants", result.Participants),
		zap.Strings("winners", result.WinnerIDs()))

	embed := s.resultEmbed(ctx, g, result)

	// The announcement stays until the result is posted so a retry can redraw.
	if _, err := s.client.SendMessage(ctx, g.ChannelID, platform.MessageSend{Embed: embed}); err != nil {
		metrics.Finalizations.WithLabelValues("giveaway", "error").Inc()
		return errs.External(err, "")
	}
	if err := s.client.DeleteMessage(ctx, g.ChannelID, g.MessageID); err != nil && !errors.Is(err, platform.ErrNotFound) {
		logger.Warn("Failed to delete giveaway announcement", zap.Int64("id", id), zap.Error(err))
	}

	if err := s.markEnded(ctx, g, result.WinnerIDs()); err != nil {
		return err
	}

	s.publish(broadcast.TypeGiveawayEnded, map[string]any{
		"id":           g.ID,
		"prize":        g.Prize,
		"winners":      result.WinnerIDs(),
		"participants": result.Participants,
	})
	metrics.Finalizations.WithLabelValues("giveaway", "ok").Inc()
	logger.Info("Successfully finalized giveaway", zap.Int64("id", id), zap.Int("participants", result.Participants))
	return nil
}

func (s *Service) markEnded(ctx context.Context, g *localdb.Giveaway, winners []string) error {
	err := s.store.MarkGiveawayEnded(ctx, g.ID, winners)
	if errors.Is(err, localdb.ErrAlreadyEnded) {
		logger.Info("Giveaway was ended concurrently", zap.Int64("id", g.ID))
		return nil
	}
	return err
}

func (s *Service) publish(msgType string, data any) {
	if s.events != nil {
		s.events.Publish(msgType, data)
	}
}

// collectReactors pages through every user who reacted with emoji.
func (s *Service) collectReactors(ctx context.Context, channelID, messageID string, emoji platform.Emoji) ([]platform.User, error) {
	var (
		all   []platform.User
		after string
	)
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.client.ReactionUsers(ctx, channelID, messageID, emoji, platform.ReactionPageSize, after)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < platform.ReactionPageSize {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *Service) resultEmbed(ctx context.Context, g *localdb.Giveaway, result *lottery.DrawResult) *platform.Embed {
	authorName, authorIcon := "Unknown", ""
	if m, err := s.client.Member(ctx, g.GuildID, g.CreatedByUserID); err == nil {
		authorName, authorIcon = m.DisplayName(), m.User.AvatarURL
	} else if u, err := s.client.User(ctx, g.CreatedByUserID); err == nil {
		authorName, authorIcon = u.Username, u.AvatarURL
	}

	winnerLabel := "Winner"
	if g.WinnerCount > 1 {
		winnerLabel = "Winners"
	}
	entryLabel := "Entry"
	if result.Participants > 1 {
		entryLabel = "Entries"
	}

	description := fmt.Sprintf("**Prize:** %s\n\n\U0001F3C6 **%s:** %s\n\n\U0001F4CB **%s:** %d",
		g.Prize, winnerLabel, result.Mentions(), entryLabel, result.Participants)
	if s.cfg.GiveawayPingRoleID != "" {
		description += "\n\n<@&" + s.cfg.GiveawayPingRoleID + ">"
	}

	return &platform.Embed{
		Title:       "\U0001F389 Giveaway Ended!",
		AuthorName:  authorName,
		AuthorIcon:  authorIcon,
		Description: description,
		Color:       resultColor,
		Timestamp:   s.now(),
	}
}
