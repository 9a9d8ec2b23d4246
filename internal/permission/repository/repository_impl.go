package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/permission/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) FindProfile(ctx context.Context, id snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM profiles ORDER BY created_at ASC`,
	).Scan(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repository) UpsertPermission(ctx context.Context, perm *domain.ObjectPermission) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "profile_id"}, {Name: "object_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"can_read", "can_create", "can_edit", "can_delete", "can_view_all",
		}),
	}).Create(perm).Error
}

func (r *repository) ListPermissions(ctx context.Context) ([]domain.ObjectPermission, error) {
	var perms []domain.ObjectPermission
	err := r.db.WithContext(ctx).Raw(
		`SELECT * FROM object_permissions`,
	).Scan(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}
