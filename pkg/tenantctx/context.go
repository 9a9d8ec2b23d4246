// Package tenantctx carries the resolved organization through request contexts.
package tenantctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgKey is the request context key for the resolved organization.
type OrgKey struct{}

// Org identifies the organization a request is scoped to.
type Org struct {
	ID        snowflake.ID
	Subdomain string
}

// WithOrg stores the resolved organization in the context.
func WithOrg(ctx context.Context, org Org) context.Context {
	return context.WithValue(ctx, OrgKey{}, org)
}

// OrgFromContext returns the resolved organization, if set.
func OrgFromContext(ctx context.Context) (Org, bool) {
	if ctx == nil {
		return Org{}, false
	}
	org, ok := ctx.Value(OrgKey{}).(Org)
	if !ok || org.ID == 0 {
		return Org{}, false
	}
	return org, true
}

// OrgIDFromContext returns the organization ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	org, ok := OrgFromContext(ctx)
	return org.ID, ok
}

// NormalizeSubdomain lowercases and trims a subdomain label.
func NormalizeSubdomain(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
