package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsgs/tsgsbot/internal/broadcast"
	"github.com/tsgs/tsgsbot/internal/env"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/rolepanel"
	"github.com/tsgs/tsgsbot/internal/session"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"github.com/tsgs/tsgsbot/internal/status"
	"go.uber.org/zap"
)

func ensureDataDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

func watchGateway(hub *broadcast.Hub) {
	status.RegisterGatewayStatusChangeCallback(func(connected bool) {
		hub.Publish(broadcast.TypeGateway, map[string]bool{"connected": connected})
	})
}

func startSweeper(ctx context.Context, cfg *env.Config, sessions *session.Store[*rolepanel.Form]) {
	gauge := metrics.SessionsActive.WithLabelValues(sessions.Name())
	sessions.OnSweep(func(live int) { gauge.Set(float64(live)) })
	sessions.StartSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionTTL)
}

// recoverer reschedules persisted work after a restart.
type recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// recoverScheduled reschedules unfinished giveaways, polls and reminders;
// overdue ones finalize right away.
func recoverScheduled(ctx context.Context, giveaways, polls, reminders recoverer) {
	for _, r := range []struct {
		name string
		svc  recoverer
	}{
		{"giveaways", giveaways},
		{"polls", polls},
		{"reminders", reminders},
	} {
		n, err := r.svc.Recover(ctx)
		if err != nil {
			logger.Error("Failed to recover scheduled work", zap.String("kind", r.name), zap.Error(err))
			continue
		}
		logger.Info("Recovered scheduled work", zap.String("kind", r.name), zap.Int("count", n))
	}
}
