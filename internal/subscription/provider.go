// Package subscription answers "what is this organization's current
// subscription" for the request gate.
package subscription

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/cache"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/subscription/domain"
	"go.uber.org/zap"
)

// snapshot caches the absence of a subscription as well as its presence,
// so organizations without billing history do not hit the store per
// request.
type snapshot struct {
	sub *domain.Subscription
}

// StatusProvider is a read-through view of the current subscription per
// organization. Entries are time-boxed: billing webhooks mutate status
// concurrently and a stale operational verdict must not outlive them.
type StatusProvider struct {
	log   *zap.Logger
	repo  domain.Repository
	cache cache.Cache[snowflake.ID, snapshot]
}

func NewStatusProvider(log *zap.Logger, holder *config.AccessConfigHolder, repo domain.Repository) *StatusProvider {
	return &StatusProvider{
		log:   log.Named("subscription.provider"),
		repo:  repo,
		cache: cache.New[snowflake.ID, snapshot](2048, holder.Get().SubscriptionTTL),
	}
}

// CurrentForOrganization returns the current subscription, or nil when the
// organization has none. Any other error is a lookup failure.
func (p *StatusProvider) CurrentForOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Subscription, error) {
	if cached, ok := p.cache.Get(orgID); ok {
		return cached.sub, nil
	}

	sub, err := p.repo.LatestByOrganization(ctx, orgID)
	if errors.Is(err, domain.ErrNoSubscription) {
		p.cache.Set(orgID, snapshot{})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.cache.Set(orgID, snapshot{sub: sub})
	return sub, nil
}

// Operational reports whether the organization currently has an active or
// trialing subscription.
func (p *StatusProvider) Operational(ctx context.Context, orgID snowflake.ID) (bool, error) {
	sub, err := p.CurrentForOrganization(ctx, orgID)
	if err != nil {
		return false, err
	}
	return sub != nil && sub.Status.Operational(), nil
}

// Invalidate drops the cached subscription for an organization. Billing
// webhooks call this after every status transition.
func (p *StatusProvider) Invalidate(orgID snowflake.ID) {
	p.cache.Invalidate(orgID)
}
