package rolestore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached (network or
// auth failure). It is distinct from a not-found condition, which is never an
// error: a guild with no configured roles gets an empty list and false
// membership checks.
var ErrUnavailable = errors.New("role store unavailable")

// ImmuneRole marks a single role as exempt from nickname enforcement within
// one guild. The role name is cached at insertion time for display and may go
// stale if the role is renamed on the platform.
type ImmuneRole struct {
	GuildID  string
	RoleID   string
	RoleName string
	AddedAt  time.Time
}

// RoleStore is the per-guild immune-role configuration store.
//
// AddImmuneRole is an idempotent upsert keyed by (guild, role): re-adding an
// already-immune role overwrites the cached name and refreshes the timestamp.
// Writes are durable on successful return.
type RoleStore interface {
	AddImmuneRole(ctx context.Context, guildID, roleID, roleName string) error
	RemoveImmuneRole(ctx context.Context, guildID, roleID string) error
	ListImmuneRoles(ctx context.Context, guildID string) ([]ImmuneRole, error)
	IsRoleImmune(ctx context.Context, guildID, roleID string) (bool, error)
	HealthCheck(ctx context.Context) error
}
