// Package guard implements the nickname enforcement engine: it decides
// whether a member-update event violates the guild's policy and issues the
// corrective rename when it does.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guardianbot/guardian/gateway"
	"github.com/guardianbot/guardian/guard/rolestore"
	"github.com/guardianbot/guardian/guard/suppress"
)

// PlatformClient is the outbound surface the engine needs from the chat
// platform. Satisfied by *platform.Client; tests substitute a fake.
type PlatformClient interface {
	SetMemberNick(ctx context.Context, guildID, memberID, nick string) error
	SendMessage(ctx context.Context, channelID, content string) error
}

// Engine is the runtime for nickname enforcement. All collaborators are
// injected; the engine holds no per-event state of its own beyond the revert
// markers.
type Engine struct {
	Logger   *slog.Logger
	Roles    rolestore.RoleStore
	Platform PlatformClient
	Markers  *suppress.MarkerStore

	// AdminRoleID, if set, restricts administrative commands to authors
	// carrying that role. Empty means no restriction.
	AdminRoleID string

	// per-call deadline for store lookups and platform mutations
	CallTimeout time.Duration
}

func (eng *Engine) callTimeout() time.Duration {
	if eng.CallTimeout == 0 {
		return 5 * time.Second
	}
	return eng.CallTimeout
}

// ProcessMemberUpdate runs one member-update event through the enforcement
// state machine. Returns an error only for unexpected internal failures;
// policy outcomes (allowed, reverted, suppressed) all return nil.
func (eng *Engine) ProcessMemberUpdate(ctx context.Context, evt *gateway.MemberUpdate) error {
	// similar to an HTTP server, we want to recover any panics from event processing
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("enforcement event execution exception", "err", r, "guild", evt.GuildID, "member", evt.MemberID)
		}
	}()
	start := time.Now()
	defer func() {
		eventProcessDuration.WithLabelValues("member_update").Observe(time.Since(start).Seconds())
	}()
	eventProcessCount.WithLabelValues("member_update").Inc()

	logger := eng.Logger.With("guild", evt.GuildID, "member", evt.MemberID, "seq", evt.Seq)

	if evt.Kind != gateway.MemberUpdateNameChanged {
		// role changes and the like carry no display-name change to enforce
		return nil
	}

	// a rename the daemon itself just issued echoes back as a fresh event;
	// recognize and drop it so enforcement terminates after one round-trip
	if eng.Markers != nil && eng.Markers.Consume(evt.GuildID, evt.MemberID, evt.NewNick) {
		revertsSuppressed.Inc()
		logger.Debug("observed our own corrective rename", "nick", evt.NewNick)
		return nil
	}

	immune, err := eng.isMemberImmune(ctx, evt.GuildID, evt.RoleIDs)
	if err != nil {
		// store outage: default to NOT reverting, so a flaky database can't
		// disruptively rename members who were allowed to change their name
		storeFailures.Inc()
		logger.Error("immunity check failed, skipping enforcement", "err", err)
		return nil
	}
	if immune {
		logger.Info("allowed nickname change", "old", evt.OldNick, "new", evt.NewNick)
		return nil
	}

	logger.Info("reverting unauthorized nickname change", "old", evt.OldNick, "new", evt.NewNick)
	return eng.revertNick(ctx, logger, evt.GuildID, evt.MemberID, evt.OldNick)
}

// isMemberImmune reports whether any of the member's current roles is
// registered immune for the guild. An empty role set is never immune.
func (eng *Engine) isMemberImmune(ctx context.Context, guildID string, roleIDs []string) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, eng.callTimeout())
	defer cancel()

	roles, err := eng.Roles.ListImmuneRoles(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("listing immune roles: %w", err)
	}
	if len(roles) == 0 {
		return false, nil
	}

	member := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		member[id] = true
	}
	for _, r := range roles {
		if member[r.RoleID] {
			return true, nil
		}
	}
	return false, nil
}

// HealthCheck probes the config store. Exposed through both the liveness
// endpoint and the health-check command.
func (eng *Engine) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, eng.callTimeout())
	defer cancel()
	if err := eng.Roles.HealthCheck(ctx); err != nil {
		if errors.Is(err, rolestore.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", rolestore.ErrUnavailable, err)
	}
	return nil
}
