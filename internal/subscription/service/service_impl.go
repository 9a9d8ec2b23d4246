package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/clock"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	"github.com/lokera/lokera/internal/subscription/domain"
	"go.uber.org/zap"
)

// ProviderInvalidator drops the cached subscription for an organization.
type ProviderInvalidator interface {
	Invalidate(orgID snowflake.ID)
}

// BillingEvent is the normalized payload of a billing provider webhook.
type BillingEvent struct {
	OrgID            snowflake.ID
	PlanCode         string
	Status           domain.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	planRepo plandomain.Repository
	provider ProviderInvalidator
	genID    *snowflake.Node
	clock    clock.Clock
}

func NewService(log *zap.Logger, repo domain.Repository, planRepo plandomain.Repository, provider ProviderInvalidator, genID *snowflake.Node, clk clock.Clock) *Service {
	return &Service{
		log:      log.Named("subscription.service"),
		repo:     repo,
		planRepo: planRepo,
		provider: provider,
		genID:    genID,
		clock:    clk,
	}
}

// ApplyBillingEvent records a subscription status transition reported by
// the billing provider. Status changes for the current plan update the
// latest row in place; a plan change appends a new authoritative row.
func (s *Service) ApplyBillingEvent(ctx context.Context, event BillingEvent) (*domain.Subscription, error) {
	plan, err := s.planRepo.FindByCode(ctx, event.PlanCode)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.LatestByOrganization(ctx, event.OrgID)
	if err != nil && !errors.Is(err, domain.ErrNoSubscription) {
		return nil, err
	}

	defer s.provider.Invalidate(event.OrgID)

	now := s.clock.Now()
	if current != nil && current.PlanID == plan.ID {
		// Renewals carry the same plan with a new period end; both move
		// together with the status.
		if err := s.repo.UpdateStatus(ctx, current.ID, event.Status, event.CurrentPeriodEnd, now); err != nil {
			return nil, err
		}
		current.Status = event.Status
		if event.CurrentPeriodEnd != nil {
			current.CurrentPeriodEnd = event.CurrentPeriodEnd
		}
		current.UpdatedAt = now
		s.log.Info("subscription status updated",
			zap.String("org_id", event.OrgID.String()),
			zap.String("status", string(event.Status)),
		)
		return current, nil
	}

	sub := &domain.Subscription{
		ID:               s.genID.Generate(),
		OrgID:            event.OrgID,
		PlanID:           plan.ID,
		Status:           event.Status,
		CurrentPeriodEnd: event.CurrentPeriodEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("org_id", event.OrgID.String()),
		zap.String("plan", event.PlanCode),
		zap.String("status", string(event.Status)),
	)
	return sub, nil
}
