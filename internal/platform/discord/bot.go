package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"github.com/tsgs/tsgsbot/internal/status"
	"go.uber.org/zap"
)

const intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions

// Bot owns the gateway session.
type Bot struct {
	Session *discordgo.Session
	guildID string
}

// NewBot creates a session for token. Commands are registered to guildID,
// or globally when it is empty.
func NewBot(token, guildID string) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = intents
	return &Bot{Session: s, guildID: guildID}, nil
}

// Client returns the platform client backed by this session.
func (b *Bot) Client() *Client {
	return NewClient(b.Session)
}

// Start wires the router and opens the gateway. Commands are registered on
// every Ready.
func (b *Bot) Start(ctx context.Context, router *platform.Router) error {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Discord session ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
		if err := b.registerCommands(r.User.ID); err != nil {
			logger.Error("Failed to register application commands", zap.Error(err))
		}
	})
	b.Session.AddHandler(func(*discordgo.Session, *discordgo.Connect) {
		logger.Info("Discord gateway connected")
		status.SetGatewayConnected(true)
	})
	b.Session.AddHandler(func(*discordgo.Session, *discordgo.Disconnect) {
		logger.Warn("Discord gateway disconnected")
		status.SetGatewayConnected(false)
	})
	b.Session.AddHandler(NewDispatcher(ctx, router).Handle)

	logger.Info("Connecting to Discord...")
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

func (b *Bot) registerCommands(appID string) error {
	cmds, err := b.Session.ApplicationCommandBulkOverwrite(appID, b.guildID, Definitions())
	if err != nil {
		return err
	}
	logger.Info("Registered application commands",
		zap.Int("count", len(cmds)),
		zap.String("guild_id", b.guildID))
	return nil
}

// Stop closes the gateway.
func (b *Bot) Stop() {
	if err := b.Session.Close(); err != nil {
		logger.Warn("Failed to close discord session", zap.Error(err))
	}
	status.SetGatewayConnected(false)
}
