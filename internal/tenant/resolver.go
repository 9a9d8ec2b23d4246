package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/observability/logger"
	"github.com/lokera/lokera/internal/tenant/domain"
	"go.uber.org/zap"

	authdomain "github.com/lokera/lokera/internal/auth/domain"
)

// Resolution is the outcome of resolving a request host against the
// acting principal's home organization.
type Resolution struct {
	// Org is the organization the host resolves to; nil on the base domain.
	Org *domain.Organization
	// RedirectURL is non-empty when the request must be redirected before
	// any further evaluation.
	RedirectURL string
	// CrossTenant marks a redirect caused by a principal reaching another
	// organization's host.
	CrossTenant bool
}

// Resolver decides tenant redirects: unknown subdomains fall back to the
// base domain, and authenticated tenant traffic is pinned to its own
// organization's subdomain.
type Resolver struct {
	log        *zap.Logger
	dir        *Directory
	baseDomain string
	scheme     string
}

func NewResolver(log *zap.Logger, cfg config.Config, dir *Directory) *Resolver {
	return &Resolver{
		log:        log.Named("tenant.resolver"),
		dir:        dir,
		baseDomain: strings.ToLower(strings.TrimSpace(cfg.BaseDomain)),
		scheme:     cfg.BaseScheme,
	}
}

// ResolveForRequest resolves host to an organization and, for protected
// routes, enforces that an authenticated principal operates only on its own
// organization's host. A returned error is a lookup failure; callers must
// treat it restrictively, never as an Allow.
func (r *Resolver) ResolveForRequest(ctx context.Context, host, path string, principal *authdomain.User, protected bool) (Resolution, error) {
	org, err := r.dir.Resolve(ctx, host)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoTenant):
		org = nil
	case errors.Is(err, domain.ErrTenantNotFound):
		// Unknown subdomain: send the visitor to the main domain rather
		// than leaking which tenants exist.
		return Resolution{RedirectURL: r.BaseURL("/")}, nil
	default:
		return Resolution{}, err
	}

	if !protected || principal == nil || principal.OrganizationID == nil {
		return Resolution{Org: org}, nil
	}

	if org != nil && *principal.OrganizationID != org.ID {
		home, err := r.dir.GetOrganization(ctx, *principal.OrganizationID)
		if err != nil {
			return Resolution{}, err
		}
		logger.WithContext(ctx, r.log).Warn("cross-tenant access attempt",
			zap.String("host_org_id", org.ID.String()),
			zap.String("principal_org_id", home.ID.String()),
			zap.String("path", path),
		)
		return Resolution{
			Org:         org,
			RedirectURL: r.OrgURL(home, path),
			CrossTenant: true,
		}, nil
	}

	if org == nil {
		home, err := r.dir.GetOrganization(ctx, *principal.OrganizationID)
		if err != nil {
			return Resolution{}, err
		}
		if home.SubdomainLabel() != "" {
			// Canonicalization: authenticated tenant traffic always ends
			// up on its own subdomain.
			return Resolution{RedirectURL: r.OrgURL(home, path)}, nil
		}
	}

	return Resolution{Org: org}, nil
}

// OrgURL builds an absolute URL on the organization's host, falling back to
// the base domain when the organization has no subdomain.
func (r *Resolver) OrgURL(org *domain.Organization, path string) string {
	if org == nil || org.SubdomainLabel() == "" {
		return r.BaseURL(path)
	}
	return r.scheme + "://" + org.SubdomainLabel() + "." + r.baseDomain + normalizePath(path)
}

// BaseURL builds an absolute URL on the bare base domain.
func (r *Resolver) BaseURL(path string) string {
	return r.scheme + "://" + r.baseDomain + normalizePath(path)
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
