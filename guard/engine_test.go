package guard

import (
	"context"
	"fmt"
	"testing"

	"github.com/guardianbot/guardian/gateway"
	"github.com/guardianbot/guardian/guard/rolestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nameChange(guildID, memberID, oldNick, newNick string, roles []string) *gateway.MemberUpdate {
	evt := &gateway.MemberUpdate{
		GuildID:  guildID,
		MemberID: memberID,
		OldNick:  oldNick,
		NewNick:  newNick,
		RoleIDs:  roles,
		Kind:     gateway.MemberUpdateNameChanged,
	}
	if oldNick == newNick {
		evt.Kind = gateway.MemberUpdateOther
	}
	return evt
}

func TestImmuneMemberNotReverted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()

	// member M has the immune role among others
	evt := nameChange("guild1", "memberM", "Alice", "Bob", []string{"role-immune", "role-other"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt))
	assert.Empty(p.Nicks)
}

func TestNonImmuneMemberReverted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()

	evt := nameChange("guild1", "memberN", "Carl", "Dave", []string{"role-other"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt))
	require.Len(t, p.Nicks, 1)
	assert.Equal("Carl", p.Nicks[0].Nick)
	assert.Equal("guild1", p.Nicks[0].GuildID)
	assert.Equal("memberN", p.Nicks[0].MemberID)
}

func TestEmptyRoleSetNotImmune(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()

	evt := nameChange("guild1", "memberX", "Old", "New", nil)
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt))
	assert.Len(p.Nicks, 1)
}

func TestRevertDoesNotLoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()

	// unauthorized change produces one corrective rename
	evt := nameChange("guild1", "memberN", "Carl", "Dave", []string{"role-other"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt))
	require.Len(t, p.Nicks, 1)

	// the platform echoes our rename back as a fresh event; it must be
	// recognized and dropped, not re-enforced
	echo := nameChange("guild1", "memberN", "Dave", "Carl", []string{"role-other"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, echo))
	assert.Len(p.Nicks, 1, "corrective rename must not cascade")
}

func TestNonNameEventsIgnored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()

	evt := nameChange("guild1", "memberN", "Same", "Same", []string{"role-other"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt))
	assert.Empty(p.Nicks)

	roleEvt := &gateway.MemberUpdate{
		GuildID:  "guild1",
		MemberID: "memberN",
		OldNick:  "Same",
		NewNick:  "Same",
		RoleIDs:  []string{"role-a"},
		Kind:     gateway.MemberUpdateRoleChanged,
	}
	assert.NoError(eng.ProcessMemberUpdate(ctx, roleEvt))
	assert.Empty(p.Nicks)
}

func TestGuildsAreIsolated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()
	// same role ID immune only in guild1
	evt := nameChange("guild2", "memberM", "Alice", "Bob", []string{"role-immune"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt))
	assert.Len(p.Nicks, 1, "immunity in guild1 must not leak into guild2")
}

type downRoleStore struct{}

func (downRoleStore) AddImmuneRole(ctx context.Context, guildID, roleID, roleName string) error {
	return fmt.Errorf("%w: connection refused", rolestore.ErrUnavailable)
}
func (downRoleStore) RemoveImmuneRole(ctx context.Context, guildID, roleID string) error {
	return fmt.Errorf("%w: connection refused", rolestore.ErrUnavailable)
}
func (downRoleStore) ListImmuneRoles(ctx context.Context, guildID string) ([]rolestore.ImmuneRole, error) {
	return nil, fmt.Errorf("%w: connection refused", rolestore.ErrUnavailable)
}
func (downRoleStore) IsRoleImmune(ctx context.Context, guildID, roleID string) (bool, error) {
	return false, fmt.Errorf("%w: connection refused", rolestore.ErrUnavailable)
}
func (downRoleStore) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("%w: connection refused", rolestore.ErrUnavailable)
}

func TestStoreOutageSkipsEnforcement(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()
	eng.Roles = downRoleStore{}

	evt := nameChange("guild1", "memberN", "Carl", "Dave", []string{"role-other"})
	assert.NoError(eng.ProcessMemberUpdate(ctx, evt), "store outage must not crash the loop")
	assert.Empty(p.Nicks, "no reverts during a store outage")

	assert.Error(eng.HealthCheck(ctx))
}

func TestScenario(t *testing.T) {
	// guild S has immune role R1; M{R1,R2} renames freely, N{R2} gets
	// reverted; admin adds R3 and the list reflects it
	assert := assert.New(t)
	ctx := context.Background()

	eng, p := EngineTestFixture()
	require.NoError(t, eng.Roles.AddImmuneRole(ctx, "guildS", "R1", "R1"))

	assert.NoError(eng.ProcessMemberUpdate(ctx, nameChange("guildS", "M", "Alice", "Bob", []string{"R1", "R2"})))
	assert.Empty(p.Nicks)

	assert.NoError(eng.ProcessMemberUpdate(ctx, nameChange("guildS", "N", "Carl", "Dave", []string{"R2"})))
	require.Len(t, p.Nicks, 1)
	assert.Equal("Carl", p.Nicks[0].Nick)

	reply := eng.ProcessCommand(ctx, &Command{Kind: CommandAddImmuneRole, GuildID: "guildS", RoleID: "R3", RoleName: "R3"})
	assert.Contains(reply, "R3")

	roles, err := eng.Roles.ListImmuneRoles(ctx, "guildS")
	require.NoError(t, err)
	ids := []string{roles[0].RoleID, roles[1].RoleID}
	assert.ElementsMatch([]string{"R1", "R3"}, ids)
}
