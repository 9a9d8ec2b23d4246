package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	// MarkConfigured flips is_configured exactly once; it is a no-op
	// returning ErrAlreadyConfigured when the row is already configured.
	MarkConfigured(ctx context.Context, id snowflake.ID, subdomain string) error
}
