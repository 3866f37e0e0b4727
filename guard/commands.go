package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/guardianbot/guardian/gateway"
	"github.com/guardianbot/guardian/guard/rolestore"
)

type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandAddImmuneRole
	CommandRemoveImmuneRole
	CommandListImmuneRoles
	CommandHealthCheck
	CommandStatus
)

func (k CommandKind) String() string {
	switch k {
	case CommandAddImmuneRole:
		return "add_immune_role"
	case CommandRemoveImmuneRole:
		return "remove_immune_role"
	case CommandListImmuneRoles:
		return "list_immune_roles"
	case CommandHealthCheck:
		return "health_check"
	case CommandStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Command is an administrative request, parsed once at the gateway boundary
// so the engine never touches raw message text.
type Command struct {
	Kind          CommandKind
	GuildID       string
	ChannelID     string
	AuthorID      string
	AuthorRoleIDs []string

	// role arguments for add/remove
	RoleID   string
	RoleName string
}

// cleanRoleArg accepts either a bare role ID or a <@&id> style mention.
func cleanRoleArg(arg string) string {
	arg = strings.TrimPrefix(arg, "<@&")
	return strings.TrimSuffix(arg, ">")
}

// ParseCommand recognizes administrative commands in a chat message. Returns
// false for anything that isn't a command for us, including messages without
// the prefix; malformed commands come back as CommandUnknown so the caller
// can reply with usage help.
func ParseCommand(prefix string, msg *gateway.MessageCreate) (*Command, bool) {
	if !strings.HasPrefix(msg.Content, prefix) {
		return nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(msg.Content, prefix))
	if len(fields) == 0 {
		return nil, false
	}

	cmd := &Command{
		GuildID:       msg.GuildID,
		ChannelID:     msg.ChannelID,
		AuthorID:      msg.AuthorID,
		AuthorRoleIDs: msg.AuthorRoleIDs,
	}

	switch fields[0] {
	case "immune_role":
		if len(fields) < 2 {
			cmd.Kind = CommandUnknown
			return cmd, true
		}
		cmd.Kind = CommandAddImmuneRole
		cmd.RoleID = cleanRoleArg(fields[1])
		cmd.RoleName = strings.Join(fields[2:], " ")
		if cmd.RoleName == "" {
			cmd.RoleName = cmd.RoleID
		}
	case "unimmune_role":
		if len(fields) < 2 {
			cmd.Kind = CommandUnknown
			return cmd, true
		}
		cmd.Kind = CommandRemoveImmuneRole
		cmd.RoleID = cleanRoleArg(fields[1])
	case "immune_roles":
		cmd.Kind = CommandListImmuneRoles
	case "guard_health":
		cmd.Kind = CommandHealthCheck
	case "guard_status":
		cmd.Kind = CommandStatus
	default:
		return nil, false
	}
	return cmd, true
}

const usageReply = "usage: immune_role <role> [name], unimmune_role <role>, immune_roles, guard_health, guard_status"

// ProcessCommand executes an administrative command against the config store
// and returns the reply text to post back to the channel. Store outages
// produce an explicit failure reply, never a silent success.
func (eng *Engine) ProcessCommand(ctx context.Context, cmd *Command) string {
	commandsProcessed.WithLabelValues(cmd.Kind.String()).Inc()
	logger := eng.Logger.With("guild", cmd.GuildID, "author", cmd.AuthorID, "command", cmd.Kind.String())

	if !eng.authorized(cmd) {
		logger.Info("rejected unauthorized command")
		return "you are not allowed to manage immune roles"
	}

	ctx, cancel := context.WithTimeout(ctx, eng.callTimeout())
	defer cancel()

	switch cmd.Kind {
	case CommandAddImmuneRole:
		if err := eng.Roles.AddImmuneRole(ctx, cmd.GuildID, cmd.RoleID, cmd.RoleName); err != nil {
			logger.Error("failed to add immune role", "role", cmd.RoleID, "err", err)
			return storeFailureReply(err)
		}
		logger.Info("added immune role", "role", cmd.RoleID)
		return fmt.Sprintf("role %s is now immune: its members may change their own nickname", cmd.RoleName)

	case CommandRemoveImmuneRole:
		if err := eng.Roles.RemoveImmuneRole(ctx, cmd.GuildID, cmd.RoleID); err != nil {
			logger.Error("failed to remove immune role", "role", cmd.RoleID, "err", err)
			return storeFailureReply(err)
		}
		logger.Info("removed immune role", "role", cmd.RoleID)
		return fmt.Sprintf("role %s is no longer immune", cmd.RoleID)

	case CommandListImmuneRoles:
		roles, err := eng.Roles.ListImmuneRoles(ctx, cmd.GuildID)
		if err != nil {
			logger.Error("failed to list immune roles", "err", err)
			return storeFailureReply(err)
		}
		if len(roles) == 0 {
			return "no immune roles configured: all nickname changes are reverted"
		}
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = r.RoleName
		}
		return "immune roles: " + strings.Join(names, ", ")

	case CommandHealthCheck:
		if err := eng.HealthCheck(ctx); err != nil {
			return storeFailureReply(err)
		}
		return "config store connection ok"

	case CommandStatus:
		storeStatus := "connected"
		if err := eng.HealthCheck(ctx); err != nil {
			storeStatus = "unavailable"
		}
		count := "?"
		if roles, err := eng.Roles.ListImmuneRoles(ctx, cmd.GuildID); err == nil {
			count = fmt.Sprintf("%d", len(roles))
		}
		return fmt.Sprintf("config store: %s, immune roles here: %s", storeStatus, count)

	default:
		return usageReply
	}
}

func (eng *Engine) authorized(cmd *Command) bool {
	// list/status/health are read-only and open to everyone
	switch cmd.Kind {
	case CommandAddImmuneRole, CommandRemoveImmuneRole:
	default:
		return true
	}
	if eng.AdminRoleID == "" {
		return true
	}
	for _, id := range cmd.AuthorRoleIDs {
		if id == eng.AdminRoleID {
			return true
		}
	}
	return false
}

func storeFailureReply(err error) string {
	if errors.Is(err, rolestore.ErrUnavailable) {
		return "config store is unavailable, try again later"
	}
	return "internal error, check the logs"
}
