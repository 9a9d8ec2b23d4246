package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	CreateProfile(ctx context.Context, profile *Profile) error
	FindProfile(ctx context.Context, id snowflake.ID) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	UpsertPermission(ctx context.Context, perm *ObjectPermission) error
	ListPermissions(ctx context.Context) ([]ObjectPermission, error)
}
