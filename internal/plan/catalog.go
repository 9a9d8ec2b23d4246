// Package plan exposes the plan feature catalog consumed by the
// permission evaluator.
package plan

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/cache"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/observability/logger"
	"github.com/lokera/lokera/internal/plan/domain"
	"go.uber.org/zap"
)

// Limit is a numeric plan limit. Unlimited covers NULL and negative rows.
type Limit struct {
	Unlimited bool
	Value     int64
}

// planEntitlements is the validated per-plan snapshot held in cache.
type planEntitlements struct {
	plan     domain.Plan
	features map[domain.FeatureKey]bool
}

// Catalog answers plan feature and limit questions through a short-lived
// cache. Feature keys are validated against the closed enum at load; an
// unknown key in storage is a configuration error, not a silent deny.
type Catalog struct {
	log   *zap.Logger
	repo  domain.Repository
	cache cache.Cache[snowflake.ID, planEntitlements]
}

func NewCatalog(log *zap.Logger, holder *config.AccessConfigHolder, repo domain.Repository) *Catalog {
	return &Catalog{
		log:   log.Named("plan.catalog"),
		repo:  repo,
		cache: cache.New[snowflake.ID, planEntitlements](256, holder.Get().PermissionTTL),
	}
}

// FeatureEnabled reports whether the plan enables the feature. A feature
// without a row is disabled.
func (c *Catalog) FeatureEnabled(ctx context.Context, planID snowflake.ID, key domain.FeatureKey) (bool, error) {
	entitlements, err := c.load(ctx, planID)
	if err != nil {
		return false, err
	}
	return entitlements.features[key], nil
}

// LimitFor returns the plan's numeric limit for key.
func (c *Catalog) LimitFor(ctx context.Context, planID snowflake.ID, key domain.LimitKey) (Limit, error) {
	entitlements, err := c.load(ctx, planID)
	if err != nil {
		return Limit{}, err
	}

	var raw *int64
	switch key {
	case domain.LimitLots:
		raw = entitlements.plan.LotLimit
	case domain.LimitUsers:
		raw = entitlements.plan.UserLimit
	case domain.LimitExtranetTenants:
		raw = entitlements.plan.ExtranetTenantLimit
	default:
		if _, err := domain.ParseLimitKey(string(key)); err != nil {
			return Limit{}, err
		}
	}

	if raw == nil || *raw < 0 {
		return Limit{Unlimited: true}, nil
	}
	return Limit{Value: *raw}, nil
}

// Invalidate drops the cached snapshot for a plan.
func (c *Catalog) Invalidate(planID snowflake.ID) {
	c.cache.Invalidate(planID)
}

func (c *Catalog) load(ctx context.Context, planID snowflake.ID) (planEntitlements, error) {
	if cached, ok := c.cache.Get(planID); ok {
		return cached, nil
	}

	plan, err := c.repo.FindByID(ctx, planID)
	if err != nil {
		return planEntitlements{}, err
	}
	rows, err := c.repo.ListFeatures(ctx, planID)
	if err != nil {
		return planEntitlements{}, err
	}

	features := make(map[domain.FeatureKey]bool, len(rows))
	for _, row := range rows {
		key, err := domain.ParseFeatureKey(row.FeatureKey)
		if err != nil {
			logger.WithContext(ctx, c.log).Error("invalid plan feature row",
				zap.String("plan_id", planID.String()),
				zap.String("feature_key", row.FeatureKey),
			)
			return planEntitlements{}, err
		}
		features[key] = row.IsEnabled
	}

	entitlements := planEntitlements{plan: *plan, features: features}
	c.cache.Set(planID, entitlements)
	return entitlements, nil
}
