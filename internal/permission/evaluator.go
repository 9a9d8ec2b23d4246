package permission

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/observability/logger"
	"github.com/lokera/lokera/internal/observability/metrics"
	"github.com/lokera/lokera/internal/permission/domain"
	"github.com/lokera/lokera/internal/plan"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	"github.com/lokera/lokera/internal/subscription"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrNoCurrentPlan means the organization has no subscription to derive
// entitlements from.
var ErrNoCurrentPlan = errors.New("no current plan")

// Capability names the object permission a feature additionally requires
// from the principal.
type Capability struct {
	Object domain.ObjectType
	Action domain.Action
}

// EvaluatorParams collects the evaluator's dependencies.
type EvaluatorParams struct {
	fx.In

	Log     *zap.Logger
	Catalog *Catalog
	Plans   *plan.Catalog
	Subs    *subscription.StatusProvider
	Metrics *metrics.Metrics `optional:"true"`
}

// Evaluator is the sole sanctioned permission gate: it combines the
// profile permission catalog with the organization's plan entitlements.
// Permission and plan-feature are orthogonal axes; every gated affordance
// must pass both independently.
type Evaluator struct {
	log     *zap.Logger
	catalog *Catalog
	plans   *plan.Catalog
	subs    *subscription.StatusProvider
	metrics *metrics.Metrics
}

func NewEvaluator(p EvaluatorParams) *Evaluator {
	return &Evaluator{
		log:     p.Log.Named("permission.evaluator"),
		catalog: p.Catalog,
		plans:   p.Plans,
		subs:    p.Subs,
		metrics: p.Metrics,
	}
}

// CanAccessObject answers "may this principal perform action on object
// type". Denies are booleans, not errors; an error is a catalog lookup
// failure and must be treated restrictively by the caller.
func (e *Evaluator) CanAccessObject(ctx context.Context, principal *authdomain.User, objectType domain.ObjectType, action domain.Action) (bool, error) {
	if principal == nil {
		// Named deny branch: no principal, nothing to evaluate.
		return e.deny(ctx, objectType, action, "no_principal"), nil
	}
	if principal.IsSuperAdmin {
		return true, nil
	}
	if principal.ProfileID == nil {
		return e.deny(ctx, objectType, action, "no_profile"), nil
	}

	allowed, err := e.catalog.Allowed(ctx, *principal.ProfileID, objectType, action)
	if err != nil {
		return false, err
	}
	if !allowed {
		return e.deny(ctx, objectType, action, "not_granted"), nil
	}
	return true, nil
}

// IsOrganizationAdmin reports whether the principal can edit the
// Organization object, the capability that defines organization admins.
func (e *Evaluator) IsOrganizationAdmin(ctx context.Context, principal *authdomain.User) (bool, error) {
	return e.CanAccessObject(ctx, principal, domain.ObjectOrganization, domain.ActionEdit)
}

// IsSystemAdministrator reports whether the principal's profile carries
// the reserved administrator name.
func (e *Evaluator) IsSystemAdministrator(ctx context.Context, principal *authdomain.User) (bool, error) {
	if principal == nil || principal.ProfileID == nil {
		return false, nil
	}
	return e.catalog.IsSystemAdministrator(ctx, *principal.ProfileID)
}

// CanAccessFeature is true iff the organization's current plan enables
// the feature AND, when a capability is supplied, the principal also
// passes the object permission check. Both axes are required.
func (e *Evaluator) CanAccessFeature(ctx context.Context, principal *authdomain.User, orgID snowflake.ID, key plandomain.FeatureKey, required *Capability) (bool, error) {
	sub, err := e.subs.CurrentForOrganization(ctx, orgID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}

	enabled, err := e.plans.FeatureEnabled(ctx, sub.PlanID, key)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	if required == nil {
		return true, nil
	}
	return e.CanAccessObject(ctx, principal, required.Object, required.Action)
}

// LimitFor returns the organization's numeric limit for key under its
// current plan.
func (e *Evaluator) LimitFor(ctx context.Context, orgID snowflake.ID, key plandomain.LimitKey) (plan.Limit, error) {
	sub, err := e.subs.CurrentForOrganization(ctx, orgID)
	if err != nil {
		return plan.Limit{}, err
	}
	if sub == nil {
		return plan.Limit{}, ErrNoCurrentPlan
	}
	return e.plans.LimitFor(ctx, sub.PlanID, key)
}

func (e *Evaluator) deny(ctx context.Context, objectType domain.ObjectType, action domain.Action, reason string) bool {
	e.metrics.RecordPermissionDenial(ctx, string(objectType), string(action))
	logger.WithContext(ctx, e.log).Debug("permission denied",
		zap.String("object_type", string(objectType)),
		zap.String("action", string(action)),
		zap.String("reason", reason),
	)
	return false
}
