package poll

import (
	"context"
	"errors"

	"github.com/tsgs/tsgsbot/internal/broadcast"
	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// Finalize closes poll id and posts the results. The record is marked ended
// before counting, so only the first caller gets past the store.
func (s *Service) Finalize(ctx context.Context, id int64) error {
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return errs.Wrap(err, "load poll")
	}
	if p == nil {
		logger.Info("Poll not found", zap.Int64("id", id))
		return nil
	}
	if p.HasEnded {
		logger.Info("Poll already finalized", zap.Int64("id", id))
		return nil
	}

	if err := s.store.MarkPollEnded(ctx, id); err != nil {
		if errors.Is(err, localdb.ErrAlreadyEnded) {
			logger.Info("Poll was ended concurrently", zap.Int64("id", id))
			return nil
		}
		return errs.Wrap(err, "mark poll ended")
	}

	msg, err := s.client.Message(ctx, p.ChannelID, p.MessageID)
	if errors.Is(err, platform.ErrNotFound) {
		logger.Warn("Poll message is gone; no results posted", zap.Int64("id", id))
		metrics.Finalizations.WithLabelValues("poll", "message_missing").Inc()
		return nil
	}
	if err != nil {
		metrics.Finalizations.WithLabelValues("poll", "error").Inc()
		return errs.External(err, "")
	}

	opts, total := Tally(p.Answers, p.Emojis, CountVotes(msg, p.Emojis))

	if err := s.client.DeleteMessage(ctx, p.ChannelID, p.MessageID); err != nil && !errors.Is(err, platform.ErrNotFound) {
		logger.Warn("Failed to delete poll message", zap.Int64("id", id), zap.Error(err))
	}
	if _, err := s.client.SendMessage(ctx, p.ChannelID, platform.MessageSend{
		Embed: &platform.Embed{
			Title:       "\U0001F4CA Poll Results",
			Description: RenderResults(p.Question, opts, total),
			Color:       resultsColor,
			Timestamp:   s.now(),
		},
	}); err != nil {
		metrics.Finalizations.WithLabelValues("poll", "error").Inc()
		return errs.External(err, "")
	}

	results := make([]map[string]any, 0, len(opts))
	for _, o := range opts {
		results = append(results, map[string]any{"answer": o.Answer, "votes": o.Votes, "mark": o.Mark})
	}
	if s.events != nil {
		s.events.Publish(broadcast.TypePollEnded, map[string]any{
			"id":       p.ID,
			"question": p.Question,
			"total":    total,
			"results":  results,
		})
	}
	metrics.Finalizations.WithLabelValues("poll", "ok").Inc()
	logger.Info("Successfully finalized poll", zap.Int64("id", id), zap.Int("total_votes", total))
	return nil
}
