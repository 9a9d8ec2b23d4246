package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	// CompleteSetup finishes the onboarding wizard: it claims the subdomain
	// and flips is_configured. It is idempotent-hostile on purpose: a
	// configured organization cannot re-enter setup.
	CompleteSetup(ctx context.Context, req CompleteSetupRequest) (*Organization, error)
	Get(ctx context.Context, id snowflake.ID) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
}

type CreateOrganizationRequest struct {
	Name         string
	CountryCode  string
	TimezoneName string
}

type CompleteSetupRequest struct {
	OrganizationID snowflake.ID
	Subdomain      string
}
