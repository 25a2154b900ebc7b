package commands

import (
	"context"
	"time"

	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

const auditSendTimeout = 10 * time.Second

// Auditor records command invocations to the log and, when a channel is
// configured, to that channel.
type Auditor struct {
	client    platform.Client
	channelID string
	send      func(line string)
}

func NewAuditor(client platform.Client, channelID string) *Auditor {
	a := &Auditor{client: client, channelID: channelID}
	a.send = func(line string) { go a.post(line) }
	return a
}

// Record is installed as the router's invoke hook.
func (a *Auditor) Record(in *platform.Interaction) {
	line := AuditLine(in)
	logger.Info("Command invoked",
		zap.String("kind", in.Kind.String()),
		zap.String("command", in.Name),
		zap.String("user_id", in.User.ID),
		zap.String("channel_id", in.ChannelID),
		zap.String("audit", line))

	if a.channelID != "" && a.client != nil {
		a.send(line)
	}
}

func (a *Auditor) post(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), auditSendTimeout)
	defer cancel()
	if _, err := a.client.SendMessage(ctx, a.channelID, platform.MessageSend{Content: line}); err != nil {
		logger.Warn("Failed to post audit line", zap.String("channel_id", a.channelID), zap.Error(err))
	}
}
