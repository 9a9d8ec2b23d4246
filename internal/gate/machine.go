// Package gate holds the per-request routing state machine. Every entry
// point funnels through Evaluate, which combines tenant resolution,
// principal classification, organization lifecycle, and subscription
// status into exactly one Decision.
package gate

import (
	"context"
	"net/url"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/observability/logger"
	"github.com/lokera/lokera/internal/observability/metrics"
	"github.com/lokera/lokera/internal/permission"
	"github.com/lokera/lokera/internal/subscription"
	"github.com/lokera/lokera/internal/tenant"
	tenantdomain "github.com/lokera/lokera/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Request is the per-request input to the state machine.
type Request struct {
	Host string
	Path string
	// Principal is nil for anonymous requests.
	Principal *authdomain.User
	// ActiveOrgID is the organization a super admin is operating as,
	// carried on the session. Nil for regular members and for super
	// admins that have not selected an organization.
	ActiveOrgID *snowflake.ID
}

// MachineParams collects the machine's dependencies.
type MachineParams struct {
	fx.In

	Log       *zap.Logger
	Holder    *config.AccessConfigHolder
	Resolver  *tenant.Resolver
	Directory *tenant.Directory
	Subs      *subscription.StatusProvider
	Evaluator *permission.Evaluator
	Metrics   *metrics.Metrics `optional:"true"`
}

// Machine evaluates the routing decision table. It holds no per-request
// state; concurrent Evaluate calls are independent.
type Machine struct {
	log     *zap.Logger
	holder  *config.AccessConfigHolder
	res     *tenant.Resolver
	dir     *tenant.Directory
	subs    *subscription.StatusProvider
	eval    *permission.Evaluator
	metrics *metrics.Metrics
}

func NewMachine(p MachineParams) *Machine {
	return &Machine{
		log:     p.Log.Named("gate"),
		holder:  p.Holder,
		res:     p.Resolver,
		dir:     p.Directory,
		subs:    p.Subs,
		eval:    p.Evaluator,
		metrics: p.Metrics,
	}
}

// Evaluate runs the decision table top to bottom; the first matching
// branch wins and every reachable state combination maps to a branch.
// A lookup failure never allows: it resolves to the most restrictive
// applicable redirect.
func (m *Machine) Evaluate(ctx context.Context, req Request) Decision {
	cfg := m.holder.Get()
	class := ClassifyRoute(req.Path, cfg)
	log := logger.WithContext(ctx, m.log).With(
		zap.String("path", req.Path),
		zap.String("route_class", class.String()),
	)

	resolution, err := m.res.ResolveForRequest(ctx, req.Host, req.Path, req.Principal, class.Protected())
	if err != nil {
		m.metrics.RecordLookupFailure(ctx, "tenant")
		log.Error("tenant resolution failed", zap.Error(err))
		if req.Principal == nil {
			return m.record(ctx, Redirect(PathSignIn, "tenant_lookup_failed"))
		}
		return m.record(ctx, Redirect(PathSetup, "tenant_lookup_failed"))
	}
	if resolution.RedirectURL != "" {
		if resolution.CrossTenant {
			m.metrics.RecordCrossTenantRedirect(ctx)
			return m.record(ctx, Redirect(resolution.RedirectURL, "cross_tenant"))
		}
		return m.record(ctx, Redirect(resolution.RedirectURL, "tenant_canonicalization"))
	}

	if req.Principal == nil {
		if !class.Protected() {
			return m.record(ctx, Allow("public_route"))
		}
		target := PathSignIn + "?redirect=" + url.QueryEscape(req.Path)
		return m.record(ctx, Redirect(target, "unauthenticated"))
	}

	if class == RouteAuth {
		if req.Principal.IsSuperAdmin {
			return m.record(ctx, Redirect(PathAdminHome, "already_authenticated"))
		}
		return m.record(ctx, Redirect(PathDashboard, "already_authenticated"))
	}

	if class == RouteSetup {
		return m.record(ctx, m.evaluateSetup(ctx, log, req))
	}

	if class == RoutePublic {
		return m.record(ctx, Allow("public_route"))
	}

	org, decision := m.effectiveOrganization(ctx, log, class, req, resolution)
	if decision != nil {
		return m.record(ctx, *decision)
	}

	// A half-onboarded organization exposes no business routes, for any
	// role, impersonating super admins included.
	if !org.IsConfigured {
		return m.record(ctx, Redirect(PathSetup, "organization_unconfigured"))
	}

	sub, err := m.subs.CurrentForOrganization(ctx, org.ID)
	if err != nil {
		m.metrics.RecordLookupFailure(ctx, "subscription")
		log.Error("subscription lookup failed",
			zap.String("org_id", org.ID.String()), zap.Error(err))
		return m.record(ctx, Redirect(PathSetup, "subscription_lookup_failed"))
	}

	if sub == nil || !sub.Status.Operational() {
		// The billing and inactive pages stay reachable so the redirect
		// below cannot loop.
		if class == RouteBilling || class == RouteInactive {
			return m.record(ctx, m.allowWithContext(org, req.Path))
		}
		isAdmin := req.Principal.IsSuperAdmin
		if !isAdmin {
			isAdmin, err = m.eval.IsOrganizationAdmin(ctx, req.Principal)
			if err != nil {
				m.metrics.RecordLookupFailure(ctx, "permission")
				log.Error("permission lookup failed", zap.Error(err))
				return m.record(ctx, Redirect(PathInactive, "permission_lookup_failed"))
			}
		}
		if isAdmin {
			return m.record(ctx, Redirect(PathBilling, "subscription_inactive"))
		}
		return m.record(ctx, Redirect(PathInactive, "subscription_inactive"))
	}

	return m.record(ctx, m.allowWithContext(org, req.Path))
}

// evaluateSetup decides the onboarding route. Configured organizations
// can never re-enter setup.
func (m *Machine) evaluateSetup(ctx context.Context, log *zap.Logger, req Request) Decision {
	if req.Principal.IsSuperAdmin {
		return Redirect(PathAdminOrgs, "super_admin_setup")
	}
	if req.Principal.OrganizationID == nil {
		return Allow("setup")
	}
	org, err := m.dir.GetOrganization(ctx, *req.Principal.OrganizationID)
	if err != nil {
		// Setup is already the fallback destination for organization
		// lookup failures, so the wizard stays reachable.
		m.metrics.RecordLookupFailure(ctx, "organization")
		log.Error("organization lookup failed on setup", zap.Error(err))
		return Allow("setup")
	}
	if org.IsConfigured {
		return Redirect(PathDashboard, "already_configured")
	}
	return Allow("setup")
}

// effectiveOrganization determines which organization the rest of the
// table evaluates against, or the decision that short-circuits it.
func (m *Machine) effectiveOrganization(ctx context.Context, log *zap.Logger, class RouteClass, req Request, resolution tenant.Resolution) (*tenantdomain.Organization, *Decision) {
	if req.Principal.IsSuperAdmin {
		if class == RouteAdmin {
			d := Allow("admin")
			return nil, &d
		}
		// Organization-scoped traffic from a super admin requires an
		// explicitly selected organization.
		if req.ActiveOrgID == nil {
			d := Redirect(PathAdminOrgs, "no_selected_organization")
			return nil, &d
		}
		org, err := m.dir.GetOrganization(ctx, *req.ActiveOrgID)
		if err != nil {
			m.metrics.RecordLookupFailure(ctx, "organization")
			log.Error("selected organization lookup failed",
				zap.String("org_id", req.ActiveOrgID.String()), zap.Error(err))
			d := Redirect(PathAdminOrgs, "organization_lookup_failed")
			return nil, &d
		}
		return org, nil
	}

	if class == RouteAdmin {
		d := Redirect(PathDashboard, "not_super_admin")
		return nil, &d
	}
	// Zero organization membership blocks every protected route.
	if req.Principal.OrganizationID == nil {
		d := Redirect(PathSetup, "no_organization")
		return nil, &d
	}

	if resolution.Org != nil && resolution.Org.ID == *req.Principal.OrganizationID {
		return resolution.Org, nil
	}
	org, err := m.dir.GetOrganization(ctx, *req.Principal.OrganizationID)
	if err != nil {
		m.metrics.RecordLookupFailure(ctx, "organization")
		log.Error("organization lookup failed",
			zap.String("org_id", req.Principal.OrganizationID.String()), zap.Error(err))
		d := Redirect(PathSetup, "organization_lookup_failed")
		return nil, &d
	}
	return org, nil
}

func (m *Machine) allowWithContext(org *tenantdomain.Organization, path string) Decision {
	return Allow("granted").
		WithHeader(HeaderOrganizationID, org.ID.String()).
		WithHeader(HeaderOrganizationSlug, org.SubdomainLabel()).
		WithHeader(HeaderPathname, path)
}

func (m *Machine) record(ctx context.Context, d Decision) Decision {
	m.metrics.RecordDecision(ctx, string(d.Outcome), d.Reason)
	return d
}
