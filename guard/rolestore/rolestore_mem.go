package rolestore

import (
	"context"
	"sync"
	"time"
)

// MemRoleStore keeps immune roles in process memory. Used in tests and for
// running without a database; everything is lost on restart.
type MemRoleStore struct {
	lk     sync.RWMutex
	guilds map[string][]ImmuneRole
}

var _ RoleStore = (*MemRoleStore)(nil)

func NewMemRoleStore() *MemRoleStore {
	return &MemRoleStore{
		guilds: make(map[string][]ImmuneRole),
	}
}

func (s *MemRoleStore) AddImmuneRole(ctx context.Context, guildID, roleID, roleName string) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	roles := s.guilds[guildID]
	for i := range roles {
		if roles[i].RoleID == roleID {
			roles[i].RoleName = roleName
			roles[i].AddedAt = time.Now()
			return nil
		}
	}
	s.guilds[guildID] = append(roles, ImmuneRole{
		GuildID:  guildID,
		RoleID:   roleID,
		RoleName: roleName,
		AddedAt:  time.Now(),
	})
	return nil
}

func (s *MemRoleStore) RemoveImmuneRole(ctx context.Context, guildID, roleID string) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	roles := s.guilds[guildID]
	out := roles[:0]
	for _, r := range roles {
		if r.RoleID != roleID {
			out = append(out, r)
		}
	}
	s.guilds[guildID] = out
	return nil
}

func (s *MemRoleStore) ListImmuneRoles(ctx context.Context, guildID string) ([]ImmuneRole, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()

	roles := s.guilds[guildID]
	out := make([]ImmuneRole, len(roles))
	copy(out, roles)
	return out, nil
}

func (s *MemRoleStore) IsRoleImmune(ctx context.Context, guildID, roleID string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()

	for _, r := range s.guilds[guildID] {
		if r.RoleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemRoleStore) HealthCheck(ctx context.Context) error {
	return nil
}
