package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsgs/tsgsbot/internal/broadcast"
	"github.com/tsgs/tsgsbot/internal/commands"
	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/giveaway"
	"github.com/tsgs/tsgsbot/internal/localdb"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/platform/discord"
	"github.com/tsgs/tsgsbot/internal/poll"
	"github.com/tsgs/tsgsbot/internal/reminder"
	"github.com/tsgs/tsgsbot/internal/rolepanel"
	"github.com/tsgs/tsgsbot/internal/scheduler"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"github.com/tsgs/tsgsbot/internal/version"
	"github.com/tsgs/tsgsbot/internal/webserver"
	"go.uber.org/zap"
)

func main() {
	logger.Init(false)
	defer logger.Sync()

	cfg, err := env.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Debug() {
		logger.Init(true)
		logger.Info("Debug mode enabled")
	}
	logger.Info("Starting tsgsbot", zap.String("version", version.String()))

	if err := ensureDataDir(cfg.DBPath); err != nil {
		logger.Fatal("Failed to ensure data directory", zap.Error(err))
	}
	db, err := localdb.SetupDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to setup database", zap.Error(err))
	}
	store := localdb.NewStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := broadcast.NewHub()
	go hub.Run(ctx)
	watchGateway(hub)

	bot, err := discord.NewBot(cfg.DiscordToken, cfg.GuildID)
	if err != nil {
		logger.Fatal("Failed to create Discord session", zap.Error(err))
	}
	client := bot.Client()

	sched := scheduler.New(ctx)
	sessions := rolepanel.NewSessions()

	giveaways := giveaway.NewService(cfg, client, store, sched, hub)
	polls := poll.NewService(cfg, client, store, sched, hub)
	reminders := reminder.NewService(cfg, client, store, sched)

	router := platform.NewRouter()
	router.OnInvoke(commands.NewAuditor(client, cfg.AuditChannelID).Record)
	rolepanel.NewEngine(client, sessions, hub).Register(router)
	giveaways.Register(router)
	polls.Register(router)
	reminders.Register(router)
	commands.NewService(cfg, client).Register(router)

	startSweeper(ctx, cfg, sessions)

	var server *webserver.Server
	if cfg.HTTPPort > 0 {
		server = webserver.New(webserver.Options{
			Port:      cfg.HTTPPort,
			StartedAt: cfg.StartedAt,
			Scheduler: sched,
			Sessions:  []webserver.SessionCounter{sessions},
			Feed:      hub,
		})
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start web server", zap.Error(err))
		}
	}

	if err := bot.Start(ctx, router); err != nil {
		logger.Fatal("Failed to connect to Discord", zap.Error(err))
	}

	recoverScheduled(ctx, giveaways, polls, reminders)

	fields := []zap.Field{zap.Int("pending", sched.Pending())}
	if server != nil {
		fields = append(fields, zap.String("status", fmt.Sprintf("http://localhost:%d/status", cfg.HTTPPort)))
	}
	logger.Info("Bot started", fields...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	bot.Stop()
	sched.Shutdown()
	cancel()
	if server != nil {
		server.Shutdown()
	}
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
