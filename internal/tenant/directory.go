// Package tenant resolves request hosts to organizations and enforces
// tenant isolation across subdomains.
package tenant

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/cache"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/observability/logger"
	"github.com/lokera/lokera/internal/tenant/domain"
	"github.com/lokera/lokera/pkg/tenantctx"
	"go.uber.org/zap"
)

// Directory maps a request host to an organization. Lookups are exact
// matches against the subdomain column, read through a short-lived cache.
type Directory struct {
	log        *zap.Logger
	repo       domain.Repository
	holder     *config.AccessConfigHolder
	baseDomain string

	bySubdomain cache.Cache[string, domain.Organization]
	byID        cache.Cache[snowflake.ID, domain.Organization]
}

func NewDirectory(log *zap.Logger, cfg config.Config, holder *config.AccessConfigHolder, repo domain.Repository) *Directory {
	ttl := holder.Get().OrganizationTTL
	return &Directory{
		log:         log.Named("tenant.directory"),
		repo:        repo,
		holder:      holder,
		baseDomain:  strings.ToLower(strings.TrimSpace(cfg.BaseDomain)),
		bySubdomain: cache.New[string, domain.Organization](2048, ttl),
		byID:        cache.New[snowflake.ID, domain.Organization](2048, ttl),
	}
}

// Resolve maps a host to its organization. It returns ErrNoTenant for the
// bare base domain (and hosts outside it, e.g. localhost) and
// ErrTenantNotFound when the subdomain has no organization.
func (d *Directory) Resolve(ctx context.Context, host string) (*domain.Organization, error) {
	label, err := d.SubdomainForHost(host)
	if err != nil {
		return nil, err
	}

	if org, ok := d.bySubdomain.Get(label); ok {
		return &org, nil
	}

	org, err := d.repo.FindBySubdomain(ctx, label)
	if err != nil {
		return nil, err
	}

	d.bySubdomain.Set(label, *org)
	d.byID.Set(org.ID, *org)
	return org, nil
}

// GetOrganization returns the organization by id through the same cache.
func (d *Directory) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	if org, ok := d.byID.Get(id); ok {
		return &org, nil
	}

	org, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d.byID.Set(org.ID, *org)
	if sub := org.SubdomainLabel(); sub != "" {
		d.bySubdomain.Set(sub, *org)
	}
	return org, nil
}

// SubdomainForHost extracts the tenant label from a request host. The host
// is normalized first: scheme and port stripped, lowercased, the www alias
// removed.
func (d *Directory) SubdomainForHost(host string) (string, error) {
	normalized := normalizeHost(host)
	if normalized == "" || normalized == d.baseDomain {
		return "", domain.ErrNoTenant
	}

	suffix := "." + d.baseDomain
	if !strings.HasSuffix(normalized, suffix) {
		// Foreign host (custom domain, localhost): no tenant context.
		return "", domain.ErrNoTenant
	}

	label := tenantctx.NormalizeSubdomain(strings.TrimSuffix(normalized, suffix))
	if label == "" || strings.Contains(label, ".") {
		return "", domain.ErrNoTenant
	}
	if d.holder.Get().IsReservedSubdomain(label) {
		return "", domain.ErrNoTenant
	}
	return label, nil
}

// Invalidate drops cached entries for an organization. Called on setup
// completion and billing webhooks so a fresh row is read on the next
// request.
func (d *Directory) Invalidate(org domain.Organization) {
	d.byID.Invalidate(org.ID)
	if sub := org.SubdomainLabel(); sub != "" {
		d.bySubdomain.Invalidate(sub)
	}
	logger.WithContext(context.Background(), d.log).Debug("directory cache invalidated",
		zap.String("org_id", org.ID.String()))
}

// InvalidateID drops the id-keyed cache entry when the subdomain is unknown.
func (d *Directory) InvalidateID(id snowflake.ID) {
	if org, ok := d.byID.Get(id); ok {
		d.Invalidate(org)
		return
	}
	d.byID.Invalidate(id)
}

func normalizeHost(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	if idx := strings.IndexByte(host, '/'); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}
