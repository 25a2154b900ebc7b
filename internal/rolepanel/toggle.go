package rolepanel

import (
	"context"
	"errors"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/platform"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

const toggleFailed = "Couldn't update your role. Please try again or contact a moderator."

// HandleToggle flips one role on the clicking member. Manageability is
// checked again at click time.
func (e *Engine) HandleToggle(ctx context.Context, in *platform.Interaction) (*platform.Response, error) {
	roleID := in.CustomIDArg(TogglePrefix)
	if !isSnowflake(roleID) {
		return nil, errs.Validation("That role button is no longer valid.")
	}
	if in.GuildID == "" {
		return nil, errOutsideGuild
	}

	role, err := e.client.Role(ctx, in.GuildID, roleID)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, errs.NotFound("That role is no longer available.")
	}
	if err != nil {
		return nil, errs.External(err, "")
	}
	member, err := e.client.Member(ctx, in.GuildID, in.User.ID)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, errs.NotFound("That role is no longer available.")
	}
	if err != nil {
		return nil, errs.External(err, "")
	}

	standing, err := e.client.BotStanding(ctx, in.GuildID)
	if err != nil {
		return nil, errs.External(err, "")
	}
	if !standing.CanManage(*role) {
		metrics.RoleToggles.WithLabelValues("denied").Inc()
		return platform.Reply("I can't manage that role. Please ask an admin to move my role above it."), nil
	}

	if member.HasRole(role.ID) {
		if err := e.client.RemoveMemberRole(ctx, in.GuildID, in.User.ID, role.ID); err != nil {
			return nil, errs.External(err, toggleFailed)
		}
		metrics.RoleToggles.WithLabelValues("remove").Inc()
		logger.Info("Removed role from user", zap.String("role_id", role.ID), zap.String("user_id", in.User.ID))
		return platform.Reply("Removed " + role.Mention() + " from you."), nil
	}

	if err := e.client.AddMemberRole(ctx, in.GuildID, in.User.ID, role.ID); err != nil {
		return nil, errs.External(err, toggleFailed)
	}
	metrics.RoleToggles.WithLabelValues("add").Inc()
	logger.Info("Added role to user", zap.String("role_id", role.ID), zap.String("user_id", in.User.ID))
	return platform.Reply("Added " + role.Mention() + " to you."), nil
}
