package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lokera/lokera/internal/clock"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/tenant/domain"
	"github.com/lokera/lokera/pkg/db"
	"go.uber.org/zap"
)

// DirectoryInvalidator drops directory cache entries after a mutation.
type DirectoryInvalidator interface {
	Invalidate(org domain.Organization)
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	dir    DirectoryInvalidator
	holder *config.AccessConfigHolder
	genID  *snowflake.Node
	clock  clock.Clock
}

func NewService(log *zap.Logger, repo domain.Repository, dir DirectoryInvalidator, holder *config.AccessConfigHolder, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &Service{
		log:    log.Named("tenant.service"),
		repo:   repo,
		dir:    dir,
		holder: holder,
		genID:  genID,
		clock:  clk,
	}
}

func (s *Service) CreateOrganization(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("organization name is required")
	}

	now := s.clock.Now()
	org := &domain.Organization{
		ID:           s.genID.Generate(),
		Name:         name,
		CountryCode:  strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		TimezoneName: strings.TrimSpace(req.TimezoneName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) CompleteSetup(ctx context.Context, req domain.CompleteSetupRequest) (*domain.Organization, error) {
	label := slug.Make(strings.TrimSpace(req.Subdomain))
	if label == "" {
		return nil, domain.ErrSubdomainReserved
	}
	if s.holder.Get().IsReservedSubdomain(label) {
		return nil, domain.ErrSubdomainReserved
	}

	if existing, err := s.repo.FindBySubdomain(ctx, label); err == nil {
		if existing.ID != req.OrganizationID {
			return nil, domain.ErrSubdomainTaken
		}
	} else if !errors.Is(err, domain.ErrTenantNotFound) {
		return nil, err
	}

	if err := s.repo.MarkConfigured(ctx, req.OrganizationID, label); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSubdomainTaken
		}
		return nil, err
	}

	org, err := s.repo.FindByID(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	// Stale directory entries would keep redirecting the fresh tenant to
	// setup until the TTL lapses.
	s.dir.Invalidate(*org)

	s.log.Info("organization setup completed",
		zap.String("org_id", org.ID.String()),
		zap.String("subdomain", label),
	)
	return org, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Organization, error) {
	return s.repo.List(ctx)
}
