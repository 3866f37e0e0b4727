package rolestore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormImmuneRole is the database row backing an ImmuneRole entry.
type GormImmuneRole struct {
	ID       uint   `gorm:"primarykey"`
	GuildID  string `gorm:"uniqueIndex:idx_guild_role;index"`
	RoleID   string `gorm:"uniqueIndex:idx_guild_role"`
	RoleName string
	AddedAt  time.Time
}

// GormRoleStore is a gorm-backed implementation of the RoleStore interface.
// Works with either sqlite or postgres; the (guild, role) unique index plus
// upsert-on-conflict keeps concurrent re-adds from duplicating entries.
type GormRoleStore struct {
	db *gorm.DB
}

var _ RoleStore = (*GormRoleStore)(nil)

func NewGormRoleStore(db *gorm.DB) (*GormRoleStore, error) {
	if err := db.AutoMigrate(&GormImmuneRole{}); err != nil {
		return nil, fmt.Errorf("migrating immune role table: %w", err)
	}
	return &GormRoleStore{db: db}, nil
}

func (s *GormRoleStore) AddImmuneRole(ctx context.Context, guildID, roleID, roleName string) error {
	row := GormImmuneRole{
		GuildID:  guildID,
		RoleID:   roleID,
		RoleName: roleName,
		AddedAt:  time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "role_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role_name", "added_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: upserting immune role: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *GormRoleStore) RemoveImmuneRole(ctx context.Context, guildID, roleID string) error {
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND role_id = ?", guildID, roleID).
		Delete(&GormImmuneRole{}).Error
	if err != nil {
		return fmt.Errorf("%w: deleting immune role: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *GormRoleStore) ListImmuneRoles(ctx context.Context, guildID string) ([]ImmuneRole, error) {
	var rows []GormImmuneRole
	err := s.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing immune roles: %v", ErrUnavailable, err)
	}
	out := make([]ImmuneRole, len(rows))
	for i, r := range rows {
		out[i] = ImmuneRole{
			GuildID:  r.GuildID,
			RoleID:   r.RoleID,
			RoleName: r.RoleName,
			AddedAt:  r.AddedAt,
		}
	}
	return out, nil
}

func (s *GormRoleStore) IsRoleImmune(ctx context.Context, guildID, roleID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&GormImmuneRole{}).
		Where("guild_id = ? AND role_id = ?", guildID, roleID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: checking immune role: %v", ErrUnavailable, err)
	}
	return count > 0, nil
}

func (s *GormRoleStore) HealthCheck(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
